// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch turns file-system notifications into debounced batches of
// changed source files.
//
// The Notifier feeds raw changes into a Debouncer. The Debouncer is a two
// state machine (Idle, Pending) that fires only after no relevant change has
// been observed for a full window, measured from the last change.
package watch

import (
	"sort"
	"time"
)

// Op is the type of a file change.
type Op int

const (
	// OpCreate indicates a file was created.
	OpCreate Op = iota

	// OpWrite indicates a file was modified.
	OpWrite

	// OpRemove indicates a file was deleted.
	OpRemove

	// OpRename indicates a file was renamed away. The new name arrives as a
	// separate create.
	OpRename
)

// String returns the string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Gone reports whether the path no longer holds the file after the change.
func (op Op) Gone() bool {
	return op == OpRemove || op == OpRename
}

// Change is one file-system change.
type Change struct {
	// Path is the absolute path of the changed file.
	Path string

	// Op is the type of change.
	Op Op
}

// Batch is the set of changes released by one debouncer firing. It holds at
// most one change per path: the last one observed.
type Batch struct {
	// Changes are ordered by path.
	Changes []Change

	// FiredAt is when the debouncer released the batch.
	FiredAt time.Time
}

// Paths returns the changed paths in order.
func (b Batch) Paths() []string {
	out := make([]string, len(b.Changes))
	for i, c := range b.Changes {
		out[i] = c.Path
	}
	return out
}

// Len returns the number of changed paths.
func (b Batch) Len() int {
	return len(b.Changes)
}

// dedupe keeps the last change per path and sorts by path.
func dedupe(changes []Change) []Change {
	last := make(map[string]Op, len(changes))
	for _, c := range changes {
		last[c.Path] = c.Op
	}
	out := make([]Change, 0, len(last))
	for path, op := range last {
		out = append(out, Change{Path: path, Op: op})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
