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
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg := DefaultConfig()
	if cfg.ServiceName != "swiftdeps" {
		t.Errorf("ServiceName = %q, want swiftdeps", cfg.ServiceName)
	}
	if cfg.TraceExporter != ExporterNone {
		t.Errorf("TraceExporter = %q, want none", cfg.TraceExporter)
	}
	if cfg.MetricExporter != ExporterPrometheus {
		t.Errorf("MetricExporter = %q, want prometheus", cfg.MetricExporter)
	}
	if cfg.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q", cfg.OTLPEndpoint)
	}
}

func TestDefaultConfig_EnvOverride(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("OTEL_METRICS_EXPORTER", "none")

	cfg := DefaultConfig()
	if cfg.TraceExporter != "stdout" {
		t.Errorf("TraceExporter = %q, want stdout", cfg.TraceExporter)
	}
	if cfg.MetricExporter != "none" {
		t.Errorf("MetricExporter = %q, want none", cfg.MetricExporter)
	}
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, Config{})
	if !errors.Is(err, ErrNilContext) {
		t.Fatalf("err = %v, want ErrNilContext", err)
	}
}

func TestInit_NoopExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		ServiceName:    "swiftdeps-test",
		TraceExporter:  ExporterNone,
		MetricExporter: ExporterNone,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"trace", Config{TraceExporter: "zipkin", MetricExporter: ExporterNone}},
		{"metric", Config{TraceExporter: ExporterNone, MetricExporter: "statsd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Init(context.Background(), tt.cfg)
			if !errors.Is(err, ErrUnknownExporter) {
				t.Fatalf("err = %v, want ErrUnknownExporter", err)
			}
		})
	}
}

func TestInit_PrometheusServesPassMetrics(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, Config{
		ServiceName:    "swiftdeps-test",
		TraceExporter:  ExporterNone,
		MetricExporter: ExporterPrometheus,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer shutdown(ctx)

	handler := MetricsHandler()
	if handler == nil {
		t.Fatal("MetricsHandler() = nil after prometheus init")
	}

	m, err := NewMetrics(otel.Meter(TracerName))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordPass(ctx, PassFull, 0.2, nil)
	m.RecordCacheLookup(ctx, true)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{"swiftdeps_passes", "swiftdeps_pass_duration_seconds", "swiftdeps_cache_lookups"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	if m == nil {
		t.Fatal("NopMetrics() = nil")
	}
	ctx := context.Background()
	m.RecordPass(ctx, PassIncremental, 1, errors.New("boom"))
	m.RecordCacheLookup(ctx, false)

	var nilMetrics *Metrics
	nilMetrics.RecordPass(ctx, PassFull, 1, nil)
	nilMetrics.RecordCacheLookup(ctx, true)
}

func TestRecordError_NilSafe(t *testing.T) {
	RecordError(nil, errors.New("x"))
	_, span := StartSpan(context.Background(), "test")
	RecordError(span, nil)
	RecordError(span, errors.New("x"))
	SetSpanOK(nil)
	span.End()
}
