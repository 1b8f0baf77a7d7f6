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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AleutianAI/swiftdeps/services/depgraph/deps"
)

// DefaultFileName is the name of the persisted graph.
const DefaultFileName = "dependencies.json"

// persistIndent matches the four-space layout of existing graph files.
const persistIndent = "    "

// Persist serializes a snapshot as an indented JSON object keyed by file id.
// Keys are emitted in sorted order, so the output is stable and diffable.
func Persist(s Snapshot) ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	data, err := json.MarshalIndent(map[string]*deps.Record(s), "", persistIndent)
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a persisted graph.
//
// Outputs:
//
//	*Graph - The decoded graph.
//	error  - A *CorruptGraphError if data is not a graph object.
func Decode(data []byte) (*Graph, error) {
	var raw map[string]*deps.Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &CorruptGraphError{Cause: err}
	}
	if raw == nil {
		return nil, &CorruptGraphError{Cause: fmt.Errorf("graph is not an object")}
	}

	g := New()
	for id, rec := range raw {
		if rec == nil {
			rec = deps.Empty(id)
		}
		g.records[id] = rec.WithFileID(id)
	}
	return g, nil
}

// Load reads the graph at path.
//
// Outputs:
//
//	*Graph - The loaded graph.
//	error  - An error matching os.ErrNotExist when the file is missing, a
//	         *CorruptGraphError when it cannot be parsed.
func Load(path string) (*Graph, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	g, err := Decode(data)
	if err != nil {
		if cge, ok := err.(*CorruptGraphError); ok {
			cge.Path = path
		}
		return nil, err
	}
	return g, nil
}

// WriteFile persists a snapshot to path atomically.
//
// Description:
//
//	The graph is written to a temporary file in the same directory, synced,
//	and renamed over path. Readers see either the previous file or the new
//	one in full. On failure the previous file is untouched.
func WriteFile(path string, s Snapshot) error {
	if path == "" {
		return ErrEmptyPath
	}
	data, err := Persist(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, ".dependencies-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("write graph: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync graph: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close graph: %w", err)
	}
	if err := os.Chmod(tempPath, 0o644); err != nil {
		return fmt.Errorf("chmod graph: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename graph: %w", err)
	}

	success = true
	return nil
}
