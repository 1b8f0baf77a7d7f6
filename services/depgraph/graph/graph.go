// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the project-wide mapping from file id to dependency
// record and persists it as dependencies.json.
//
// # Ownership Model
//
// The graph stores record pointers and never copies them. Records are
// immutable, so a Snapshot shares them with the live graph safely.
//
// # Thread Safety
//
// Graph is safe for concurrent use. Snapshots are independent of later
// changes to the graph.
package graph

import (
	"sort"
	"sync"

	"github.com/AleutianAI/swiftdeps/services/depgraph/deps"
)

// Snapshot is a point-in-time copy of the graph. Do not mutate it.
type Snapshot map[string]*deps.Record

// FileIDs returns the snapshot's file ids sorted.
func (s Snapshot) FileIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Graph maps file ids to their records.
type Graph struct {
	mu      sync.RWMutex
	records map[string]*deps.Record
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{records: make(map[string]*deps.Record)}
}

// FromSnapshot returns a graph seeded with the snapshot's records.
func FromSnapshot(s Snapshot) *Graph {
	g := New()
	for id, rec := range s {
		g.records[id] = rec
	}
	return g
}

// Aggregate inserts or wholesale replaces the record for fileID. Nothing of
// a previous record survives.
func (g *Graph) Aggregate(fileID string, rec *deps.Record) {
	if rec == nil {
		rec = deps.Empty(fileID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[fileID] = rec
}

// Remove deletes the record for fileID and reports whether one existed.
func (g *Graph) Remove(fileID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.records[fileID]
	delete(g.records, fileID)
	return ok
}

// Replace swaps the whole content of the graph for records.
func (g *Graph) Replace(records map[string]*deps.Record) {
	fresh := make(map[string]*deps.Record, len(records))
	for id, rec := range records {
		fresh[id] = rec
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = fresh
}

// Get returns the record for fileID.
func (g *Graph) Get(fileID string) (*deps.Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.records[fileID]
	return rec, ok
}

// Len returns the number of files in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

// FileIDs returns every file id, sorted.
func (g *Graph) FileIDs() []string {
	return g.Snapshot().FileIDs()
}

// Snapshot returns a copy of the mapping.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := make(Snapshot, len(g.records))
	for id, rec := range g.records {
		s[id] = rec
	}
	return s
}
