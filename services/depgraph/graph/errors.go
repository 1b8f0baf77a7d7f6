// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph persistence.
var (
	// ErrCorruptGraph is returned when a persisted graph cannot be parsed.
	// Callers treat it as "no existing graph" and rebuild from scratch.
	ErrCorruptGraph = errors.New("corrupt dependency graph")

	// ErrEmptyPath is returned when a persistence call is given no path.
	ErrEmptyPath = errors.New("graph path must not be empty")
)

// CorruptGraphError carries the location of an unreadable graph file.
type CorruptGraphError struct {
	// Path is the file that failed to parse. Empty when decoding raw bytes.
	Path string

	// Cause is the decoding error.
	Cause error
}

func (e *CorruptGraphError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %v", ErrCorruptGraph, e.Cause)
	}
	return fmt.Sprintf("%v: %s: %v", ErrCorruptGraph, e.Path, e.Cause)
}

// Unwrap returns the decoding error.
func (e *CorruptGraphError) Unwrap() error {
	return e.Cause
}

// Is makes every CorruptGraphError match ErrCorruptGraph.
func (e *CorruptGraphError) Is(target error) bool {
	return target == ErrCorruptGraph
}
