// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"time"

	"github.com/AleutianAI/swiftdeps/services/depgraph/deps"
)

// PassResult summarizes one extraction pass.
type PassResult struct {
	// ID is a unique pass identifier, also attached to logs and spans.
	ID string `json:"id"`

	// Kind is "full" or "incremental".
	Kind string `json:"kind"`

	// Classified counts files that produced a record, cache hits included.
	Classified int `json:"classified"`

	// CacheHits counts records served from the record cache.
	CacheHits int `json:"cache_hits"`

	// Skipped counts files whose structure could not be produced.
	Skipped int `json:"skipped"`

	// Removed counts files dropped from the graph.
	Removed int `json:"removed"`

	// GraphFiles is the graph size after the pass.
	GraphFiles int `json:"graph_files"`

	// StartedAt is when the pass acquired the pass lock.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall time of the pass.
	Duration time.Duration `json:"duration_ns"`
}

// Status is the service state reported by the health endpoint.
type Status struct {
	Root       string      `json:"root"`
	Output     string      `json:"output"`
	Source     string      `json:"ast_source"`
	GraphFiles int         `json:"graph_files"`
	Watching   bool        `json:"watching"`
	LastPass   *PassResult `json:"last_pass,omitempty"`
	LastError  string      `json:"last_error,omitempty"`
}

// HealthResponse is the response for GET /v1/swiftdeps/health.
type HealthResponse struct {
	// Status is "healthy" once a pass has succeeded, "starting" before the
	// first pass, and "degraded" after a failed pass.
	Status  string `json:"status"`
	Version string `json:"version"`
	Service Status `json:"service"`
}

// FileResponse is the response for GET /v1/swiftdeps/files/*id.
type FileResponse struct {
	FileID string       `json:"file_id"`
	Record *deps.Record `json:"record"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
