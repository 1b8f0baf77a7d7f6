// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/swiftdeps/pkg/logging"
	"github.com/AleutianAI/swiftdeps/services/depgraph"
	"github.com/AleutianAI/swiftdeps/services/depgraph/ast"
	"github.com/AleutianAI/swiftdeps/services/depgraph/cache"
	"github.com/AleutianAI/swiftdeps/services/depgraph/classify"
	"github.com/AleutianAI/swiftdeps/services/depgraph/config"
	"github.com/AleutianAI/swiftdeps/services/depgraph/scan"
	"github.com/AleutianAI/swiftdeps/services/depgraph/telemetry"
)

// app holds everything a command needs, built from flags and configuration.
type app struct {
	root   string
	config *config.Config
	logger *logging.Logger
	cache  *cache.Cache
	svc    *depgraph.Service

	shutdownTelemetry func(context.Context) error
}

// newApp resolves the project root, loads configuration, applies flag
// overrides and wires the service.
func newApp(cmd *cobra.Command, f *cliFlags, stderr io.Writer) (*app, error) {
	root, err := resolveRoot(f.root)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root, f.configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, f, cfg); err != nil {
		return nil, err
	}

	a := &app{root: root, config: cfg}
	a.logger, err = newLogger(cfg, stderr)
	if err != nil {
		return nil, err
	}

	a.shutdownTelemetry, err = telemetry.Init(cmd.Context(), cfg.Telemetry)
	if err != nil {
		a.Close()
		return nil, err
	}
	metrics, err := telemetry.NewMetrics(otel.Meter(telemetry.TracerName))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	opts := []depgraph.Option{
		depgraph.WithLogger(a.logger.Slog()),
		depgraph.WithMetrics(metrics),
	}

	src, err := ast.NewSource(cfg.ASTSource, ast.SourceOptions{
		SourceKittenPath: cfg.SourceKittenPath,
		Timeout:          cfg.ParseTimeout,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	opts = append(opts, depgraph.WithSource(src))
	opts = append(opts, depgraph.WithClassifier(classify.New(classify.Options{
		DescendUntyped:       cfg.DescendUntyped,
		PersistenceBaseTypes: cfg.PersistenceBaseTypes,
	})))

	if cfg.Cache.Enabled {
		a.cache, err = cache.Open(cache.Config{
			HotSize: cfg.Cache.HotSize,
			Dir:     cfg.CacheDir(root),
			Logger:  a.logger.Slog(),
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, depgraph.WithCache(a.cache))
	}

	a.svc, err = depgraph.NewService(depgraph.ServiceConfig{
		Root:       root,
		Output:     cfg.OutputPath(root),
		Workers:    cfg.Workers,
		Extensions: cfg.Extensions,
		Exclude:    cfg.Exclude,
		Debounce:   cfg.Debounce,
		Poll:       cfg.Poll,
	}, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.logger.Debug("configured",
		"root", root,
		"output", cfg.OutputPath(root),
		"source", src.Name(),
		"cache", cfg.Cache.Enabled)
	return a, nil
}

// Close releases the cache, flushes telemetry and closes the log file.
func (a *app) Close() {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.shutdownTelemetry(ctx))
		cancel()
	}
	if err := errors.Join(errs...); err != nil && a.logger != nil {
		a.logger.Warn("shutdown incomplete", "error", err)
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

// applyFlags overlays the flags the user set and revalidates.
func applyFlags(cmd *cobra.Command, f *cliFlags, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = f.output
	}
	if flags.Changed("debounce") {
		cfg.Debounce = f.debounce
	}
	if flags.Changed("poll") {
		cfg.Poll = f.poll
	}
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	if flags.Changed("ast-source") {
		cfg.ASTSource = f.astSource
	}
	if flags.Changed("descend-untyped") {
		cfg.DescendUntyped = f.descendUntyped
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-json") {
		cfg.LogFormat = config.LogFormatText
		if f.logJSON {
			cfg.LogFormat = config.LogFormatJSON
		}
	}
	if flags.Changed("http-addr") {
		cfg.HTTPAddr = f.httpAddr
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !f.noCache
	}
	return cfg.Validate()
}

// newLogger builds the logger. The auto format is text on a terminal and
// JSON everywhere else.
func newLogger(cfg *config.Config, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var jsonOut bool
	switch cfg.LogFormat {
	case config.LogFormatJSON:
		jsonOut = true
	case config.LogFormatText:
		jsonOut = false
	default:
		jsonOut = !isTerminal(stderr)
	}

	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: cfg.Telemetry.ServiceName,
		JSON:    jsonOut,
		Writer:  stderr,
	}), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// resolveRoot uses an explicit root as given. Otherwise it searches upwards
// from the working directory for the project root.
func resolveRoot(flag string) (string, error) {
	if flag != "" {
		abs, err := filepath.Abs(flag)
		if err != nil {
			return "", fmt.Errorf("resolve root: %w", err)
		}
		return abs, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return scan.FindProjectRoot(wd)
}
