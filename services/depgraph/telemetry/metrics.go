// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Pass kinds and outcomes used as metric attributes.
const (
	PassFull        = "full"
	PassIncremental = "incremental"

	StatusOK     = "ok"
	StatusFailed = "failed"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Metrics holds the instruments recorded by the extraction service.
// All names carry the "swiftdeps_" prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// PassesTotal counts extraction passes by kind and status.
	PassesTotal metric.Int64Counter

	// PassDuration records pass wall time in seconds by kind.
	PassDuration metric.Float64Histogram

	// FilesClassified counts files turned into records.
	FilesClassified metric.Int64Counter

	// ParseFailures counts files skipped because their tree could not be built.
	ParseFailures metric.Int64Counter

	// CacheLookups counts record cache lookups by result.
	CacheLookups metric.Int64Counter

	// ChangesObserved counts filesystem changes accepted by the debouncer.
	ChangesObserved metric.Int64Counter

	// GraphFiles is the number of files in the graph after the last pass.
	GraphFiles metric.Int64Gauge
}

// NewMetrics registers every instrument with meter.
//
// Example:
//
//	metrics, err := telemetry.NewMetrics(otel.Meter(telemetry.TracerName))
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.PassesTotal, err = meter.Int64Counter(
		"swiftdeps_passes_total",
		metric.WithDescription("Total extraction passes"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create passes_total: %w", err)
	}

	m.PassDuration, err = meter.Float64Histogram(
		"swiftdeps_pass_duration_seconds",
		metric.WithDescription("Extraction pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create pass_duration: %w", err)
	}

	m.FilesClassified, err = meter.Int64Counter(
		"swiftdeps_files_classified_total",
		metric.WithDescription("Total files classified into records"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create files_classified_total: %w", err)
	}

	m.ParseFailures, err = meter.Int64Counter(
		"swiftdeps_parse_failures_total",
		metric.WithDescription("Total files skipped on parse failure"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create parse_failures_total: %w", err)
	}

	m.CacheLookups, err = meter.Int64Counter(
		"swiftdeps_cache_lookups_total",
		metric.WithDescription("Record cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache_lookups_total: %w", err)
	}

	m.ChangesObserved, err = meter.Int64Counter(
		"swiftdeps_changes_observed_total",
		metric.WithDescription("Filesystem changes accepted for re-extraction"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create changes_observed_total: %w", err)
	}

	m.GraphFiles, err = meter.Int64Gauge(
		"swiftdeps_graph_files",
		metric.WithDescription("Files in the dependency graph"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_files: %w", err)
	}

	return m, nil
}

// NopMetrics returns instruments backed by the no-op meter.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(TracerName))
	return m
}

// RecordPass records one finished pass.
func (m *Metrics) RecordPass(ctx context.Context, kind string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.PassesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
	m.PassDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordCacheLookup counts one cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
