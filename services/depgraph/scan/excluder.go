// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultExcludes are the directories skipped in every Swift project:
// build output, dependency checkouts, VCS metadata and the record cache.
var DefaultExcludes = []string{
	".git",
	".build",
	".swiftpm",
	"DerivedData",
	"Pods",
	"Carthage",
	"*.xcassets",
	".swiftdeps",
}

// Excluder decides which project-relative paths are ignored.
//
// A pattern matches when it matches the whole relative path, any single
// path segment, or any trailing run of segments. "Pods" therefore excludes
// "Pods/Alamofire/Session.swift", and "Generated/*.swift" excludes
// "App/Generated/API.swift".
//
// Thread Safety: Safe for concurrent use after construction.
type Excluder struct {
	patterns []string
	globs    []glob.Glob
}

// NewExcluder compiles patterns with '/' as the separator.
//
// Outputs:
//
//	*Excluder - The compiled excluder.
//	error     - Wraps ErrInvalidPattern if a pattern does not compile.
func NewExcluder(patterns []string) (*Excluder, error) {
	e := &Excluder{
		patterns: append([]string(nil), patterns...),
		globs:    make([]glob.Glob, 0, len(patterns)),
	}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Join(fmt.Errorf("%w: %q", ErrInvalidPattern, p), err)
		}
		e.globs = append(e.globs, g)
	}
	return e, nil
}

// Patterns returns the source patterns.
func (e *Excluder) Patterns() []string {
	return append([]string(nil), e.patterns...)
}

// Excluded reports whether relPath, a slash-separated path relative to the
// project root, matches any pattern. A nil Excluder excludes nothing.
func (e *Excluder) Excluded(relPath string) bool {
	if e == nil || relPath == "" || relPath == "." {
		return false
	}
	parts := strings.Split(strings.Trim(relPath, "/"), "/")
	for _, g := range e.globs {
		if g.Match(relPath) {
			return true
		}
		for i, part := range parts {
			if g.Match(part) || g.Match(strings.Join(parts[i:], "/")) {
				return true
			}
		}
	}
	return false
}
