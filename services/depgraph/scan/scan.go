// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan locates the project root and enumerates its Swift sources.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtension is the source extension the tool cares about.
const DefaultExtension = ".swift"

var (
	// ErrInvalidPattern indicates an exclude pattern could not be compiled.
	ErrInvalidPattern = errors.New("invalid exclude pattern")

	// ErrNotDirectory indicates the project root is not a directory.
	ErrNotDirectory = errors.New("project root is not a directory")

	// ErrOutsideRoot indicates a path does not live under the project root.
	ErrOutsideRoot = errors.New("path is outside the project root")
)

// rootMarker reports whether a directory entry marks a project root.
func rootMarker(e fs.DirEntry) bool {
	name := e.Name()
	if e.IsDir() {
		return strings.HasSuffix(name, ".xcodeproj") || strings.HasSuffix(name, ".xcworkspace")
	}
	return name == "Package.swift"
}

// FindProjectRoot walks up from start to the nearest directory holding an
// Xcode project, an Xcode workspace or a Package.swift manifest.
//
// Outputs:
//
//	string - The absolute root. When no ancestor qualifies, start itself.
//	error  - Non-nil if start cannot be made absolute.
func FindProjectRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	dir := abs
	for {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				if rootMarker(e) {
					return dir, nil
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// HasExtension reports whether path ends in one of exts. Comparison is
// case-sensitive, as Swift tooling is.
func HasExtension(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// FileID returns path relative to root with forward slashes.
func FileID(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return filepath.ToSlash(rel), nil
}

// Files returns the absolute paths of every file under root with one of the
// given extensions, sorted. Excluded directories are not entered.
// Unreadable subdirectories are skipped.
func Files(root string, ex *Excluder, exts []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}
	if len(exts) == 0 {
		exts = []string{DefaultExtension}
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := FileID(root, path)
		if relErr != nil {
			return nil
		}
		if ex.Excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && HasExtension(path, exts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
