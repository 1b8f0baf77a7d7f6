// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"fmt"
	"time"
)

// Source names accepted by NewSource.
const (
	SourceTreeSitter   = "treesitter"
	SourceSourceKitten = "sourcekitten"
)

// Source produces the structure tree of one source file.
//
// Description:
//
//	Structure is invoked with the absolute path of a file and the bytes the
//	caller already read from it. Sources that run an external tool against
//	the path may ignore content.
//
// Outputs:
//
//	*Node - Root node with empty Kind whose children are the top-level
//	        declarations. Never nil when err is nil.
//	error - Non-nil on failure; always matches ErrParseFailure.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type Source interface {
	Structure(ctx context.Context, path string, content []byte) (*Node, error)

	// Name identifies the source in logs and cache keys.
	Name() string
}

// SourceOptions configures NewSource.
type SourceOptions struct {
	// SourceKittenPath is the sourcekitten binary. Default: "sourcekitten".
	SourceKittenPath string

	// Timeout bounds a single Structure call. Zero means no timeout.
	Timeout time.Duration
}

// NewSource builds the source registered under name.
//
// Outputs:
//
//	Source - The source.
//	error  - ErrUnknownSource if name is not recognized.
func NewSource(name string, opts SourceOptions) (Source, error) {
	switch name {
	case SourceTreeSitter:
		return NewTreeSitter(opts.Timeout), nil
	case SourceSourceKitten:
		return NewSourceKitten(opts.SourceKittenPath, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
}
