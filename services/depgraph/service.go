// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package depgraph keeps a structural dependency graph of a Swift project
// current on disk.
//
// A Service runs a full pass at start, then watches the tree and re-extracts
// only the files that changed once edits have settled:
//
//	fsnotify → Notifier → Debouncer → Service.Apply → (Cache | Source → Classifier) → Graph → dependencies.json
//
// At most one pass runs at a time. A file that cannot be parsed is skipped
// and never fails the pass.
package depgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/swiftdeps/services/depgraph/ast"
	"github.com/AleutianAI/swiftdeps/services/depgraph/cache"
	"github.com/AleutianAI/swiftdeps/services/depgraph/classify"
	"github.com/AleutianAI/swiftdeps/services/depgraph/deps"
	"github.com/AleutianAI/swiftdeps/services/depgraph/graph"
	"github.com/AleutianAI/swiftdeps/services/depgraph/scan"
	"github.com/AleutianAI/swiftdeps/services/depgraph/telemetry"
	"github.com/AleutianAI/swiftdeps/services/depgraph/watch"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Root is the absolute project root.
	Root string

	// Output is the graph file. Default: Root/dependencies.json.
	Output string

	// Workers bounds concurrent extraction. Default: runtime.NumCPU().
	Workers int

	// Extensions are the source extensions extracted. Default: [".swift"].
	Extensions []string

	// Exclude are glob patterns skipped by scanning and watching.
	// Default: scan.DefaultExcludes.
	Exclude []string

	// Debounce is the quiet window before an incremental pass. Default: 3s.
	Debounce time.Duration

	// Poll is how often the window is checked. Default: 1s.
	Poll time.Duration
}

// DefaultServiceConfig returns defaults for the project at root.
func DefaultServiceConfig(root string) ServiceConfig {
	return ServiceConfig{
		Root:       root,
		Output:     filepath.Join(root, graph.DefaultFileName),
		Workers:    runtime.NumCPU(),
		Extensions: []string{scan.DefaultExtension},
		Exclude:    append([]string(nil), scan.DefaultExcludes...),
		Debounce:   watch.DefaultWindow,
		Poll:       watch.DefaultPollInterval,
	}
}

// Option customizes a Service.
type Option func(*Service)

// WithSource sets the structure source. Default: an in-process tree-sitter
// source.
func WithSource(src ast.Source) Option {
	return func(s *Service) { s.source = src }
}

// WithClassifier sets the classifier. Default: classify.DefaultOptions().
func WithClassifier(c *classify.Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

// WithCache enables the record cache. The caller owns and closes it.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics records pass metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service extracts, aggregates and persists the dependency graph.
//
// Thread Safety:
//
//	Safe for concurrent use. Rebuild and Apply serialize on a pass lock;
//	readers (Graph, Record, Status) never wait for a pass.
type Service struct {
	config     ServiceConfig
	source     ast.Source
	classifier *classify.Classifier
	cache      *cache.Cache
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	excluder   *scan.Excluder

	graph  *graph.Graph
	passMu sync.Mutex

	statusMu  sync.RWMutex
	lastPass  *PassResult
	lastError error
	watching  bool
}

// NewService creates a Service. Zero config fields take their defaults.
//
// Outputs:
//
//	*Service - Ready to Rebuild or Watch.
//	error    - ErrRelativeRoot, or scan.ErrInvalidPattern for a bad exclude.
func NewService(config ServiceConfig, opts ...Option) (*Service, error) {
	if !filepath.IsAbs(config.Root) {
		return nil, fmt.Errorf("%w: %q", ErrRelativeRoot, config.Root)
	}
	defaults := DefaultServiceConfig(config.Root)
	if config.Output == "" {
		config.Output = defaults.Output
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if len(config.Extensions) == 0 {
		config.Extensions = defaults.Extensions
	}
	if config.Exclude == nil {
		config.Exclude = defaults.Exclude
	}
	if config.Debounce <= 0 {
		config.Debounce = defaults.Debounce
	}
	if config.Poll <= 0 {
		config.Poll = defaults.Poll
	}

	excluder, err := scan.NewExcluder(config.Exclude)
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:   config,
		excluder: excluder,
		graph:    graph.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.source == nil {
		s.source = ast.NewTreeSitter(0)
	}
	if s.classifier == nil {
		s.classifier = classify.New(classify.DefaultOptions())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "depgraph")
	return s, nil
}

// Config returns the effective configuration.
func (s *Service) Config() ServiceConfig {
	return s.config
}

// Graph returns a snapshot of the current graph.
func (s *Service) Graph() graph.Snapshot {
	return s.graph.Snapshot()
}

// Record returns the current record of one file.
func (s *Service) Record(fileID string) (*deps.Record, bool) {
	return s.graph.Get(fileID)
}

// Status reports the service state.
func (s *Service) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	st := Status{
		Root:       s.config.Root,
		Output:     s.config.Output,
		Source:     s.source.Name(),
		GraphFiles: s.graph.Len(),
		Watching:   s.watching,
	}
	if s.lastPass != nil {
		p := *s.lastPass
		st.LastPass = &p
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}

// Rebuild runs a full pass: every source file under the root is extracted
// and the graph is replaced wholesale, then persisted.
//
// Outputs:
//
//	PassResult - Counts for the pass.
//	error      - A scan error or a cancelled context leaves the graph
//	             untouched. ErrPassFailed means the graph was replaced but
//	             could not be written.
func (s *Service) Rebuild(ctx context.Context) (PassResult, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	res := s.beginPass(telemetry.PassFull)
	ctx, span := telemetry.StartSpan(ctx, "depgraph.Rebuild",
		trace.WithAttributes(attribute.String("pass_id", res.ID)))
	defer span.End()
	logger := s.logger.With("pass_id", res.ID, "kind", res.Kind)

	err := s.rebuild(ctx, logger, &res)
	s.endPass(ctx, span, logger, &res, err)
	return res, err
}

func (s *Service) rebuild(ctx context.Context, logger *slog.Logger, res *PassResult) error {
	files, err := scan.Files(s.config.Root, s.excluder, s.config.Extensions)
	if err != nil {
		return fmt.Errorf("scan %s: %w", s.config.Root, err)
	}
	logger.Debug("extracting files", "count", len(files))

	records, err := s.extractAll(ctx, logger, files, res)
	if err != nil {
		return err
	}

	byID := make(map[string]*deps.Record, len(records))
	for _, rec := range records {
		if rec != nil {
			byID[rec.FileID()] = rec
		}
	}
	s.graph.Replace(byID)
	return s.persist()
}

// Apply runs an incremental pass for a debounced batch. Changed files are
// re-extracted and replaced; removed files are dropped. A file that fails to
// parse keeps its previous record.
func (s *Service) Apply(ctx context.Context, batch watch.Batch) (PassResult, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	res := s.beginPass(telemetry.PassIncremental)
	ctx, span := telemetry.StartSpan(ctx, "depgraph.Apply",
		trace.WithAttributes(
			attribute.String("pass_id", res.ID),
			attribute.Int("changes", batch.Len()),
		))
	defer span.End()
	logger := s.logger.With("pass_id", res.ID, "kind", res.Kind)

	err := s.apply(ctx, logger, batch, &res)
	s.endPass(ctx, span, logger, &res, err)
	return res, err
}

func (s *Service) apply(ctx context.Context, logger *slog.Logger, batch watch.Batch, res *PassResult) error {
	var present []string
	for _, c := range batch.Changes {
		fileID, err := scan.FileID(s.config.Root, c.Path)
		if err != nil {
			logger.Warn("ignoring change outside the project", "path", c.Path)
			continue
		}
		if s.excluder.Excluded(fileID) || !scan.HasExtension(c.Path, s.config.Extensions) {
			continue
		}
		if c.Op.Gone() || !isRegularFile(c.Path) {
			if s.graph.Remove(fileID) {
				res.Removed++
				logger.Debug("removed file", "file", fileID)
			}
			continue
		}
		present = append(present, c.Path)
	}

	records, err := s.extractAll(ctx, logger, present, res)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec != nil {
			s.graph.Aggregate(rec.FileID(), rec)
		}
	}
	return s.persist()
}

// extractAll extracts files on a bounded worker pool. The result slice is
// parallel to files; a nil entry is a skipped file. Only cancellation
// aborts the batch.
func (s *Service) extractAll(ctx context.Context, logger *slog.Logger, files []string, res *PassResult) ([]*deps.Record, error) {
	records := make([]*deps.Record, len(files))
	hits := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, hit, err := s.extractFile(gctx, path)
			switch {
			case err == nil:
				records[i] = rec
				hits[i] = hit
			case ast.IsParseFailure(err) && gctx.Err() == nil:
				logger.Warn("skipping file", "path", path, "error", err.Error())
				if s.metrics != nil {
					s.metrics.ParseFailures.Add(gctx, 1)
				}
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	for i, rec := range records {
		switch {
		case rec == nil:
			res.Skipped++
		default:
			res.Classified++
			if hits[i] {
				res.CacheHits++
			}
		}
	}
	if s.metrics != nil {
		s.metrics.FilesClassified.Add(ctx, int64(res.Classified))
	}
	return records, nil
}

// extractFile produces the record of one file, from the cache when the
// content, classifier and source are unchanged.
func (s *Service) extractFile(ctx context.Context, path string) (*deps.Record, bool, error) {
	fileID, err := scan.FileID(s.config.Root, path)
	if err != nil {
		return nil, false, err
	}

	ctx, span := telemetry.StartSpan(ctx, "depgraph.extractFile",
		trace.WithAttributes(attribute.String("file", fileID)))
	defer span.End()

	content, err := os.ReadFile(path)
	if err != nil {
		err = ast.NewParseError(path, s.source.Name(), "read file", err)
		telemetry.RecordError(span, err)
		return nil, false, err
	}

	var key cache.Key
	if s.cache != nil {
		key = cache.NewKey(content, s.classifier.Version(), s.source.Name())
		rec, ok := s.cache.Get(ctx, key)
		s.metrics.RecordCacheLookup(ctx, ok)
		if ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return rec.WithFileID(fileID), true, nil
		}
	}

	root, err := s.source.Structure(ctx, path, content)
	if err != nil {
		err = ast.AsParseFailure(err, path, s.source.Name())
		telemetry.RecordError(span, err)
		return nil, false, err
	}
	rec := s.classifier.Classify(fileID, root)

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, rec); err != nil {
			s.logger.Warn("record cache write failed", "file", fileID, "error", err.Error())
		}
	}
	return rec, false, nil
}

// persist writes the current snapshot atomically.
func (s *Service) persist() error {
	if err := graph.WriteFile(s.config.Output, s.graph.Snapshot()); err != nil {
		return fmt.Errorf("%w: %w", ErrPassFailed, err)
	}
	return nil
}

func (s *Service) beginPass(kind string) PassResult {
	return PassResult{ID: uuid.NewString(), Kind: kind, StartedAt: time.Now()}
}

func (s *Service) endPass(ctx context.Context, span trace.Span, logger *slog.Logger, res *PassResult, err error) {
	res.Duration = time.Since(res.StartedAt)
	res.GraphFiles = s.graph.Len()

	s.metrics.RecordPass(ctx, res.Kind, res.Duration.Seconds(), err)
	if s.metrics != nil {
		s.metrics.GraphFiles.Record(ctx, int64(res.GraphFiles))
	}
	span.SetAttributes(
		attribute.Int("classified", res.Classified),
		attribute.Int("skipped", res.Skipped),
		attribute.Int("removed", res.Removed),
	)

	s.statusMu.Lock()
	s.lastError = err
	if err == nil {
		p := *res
		s.lastPass = &p
	}
	s.statusMu.Unlock()

	if err != nil {
		telemetry.RecordError(span, err)
		logger.Error("pass failed", "error", err.Error(), "duration", res.Duration)
		return
	}
	telemetry.SetSpanOK(span)
	logger.Info("pass complete",
		"classified", res.Classified,
		"cache_hits", res.CacheHits,
		"skipped", res.Skipped,
		"removed", res.Removed,
		"graph_files", res.GraphFiles,
		"duration", res.Duration,
	)
}

// Watch runs a full pass, then re-extracts changed files after each quiet
// window until ctx is cancelled.
//
// Description:
//
//	A persist failure during the cold start is logged and watching
//	continues. A pass already running when ctx is cancelled finishes;
//	changes still waiting for their window are dropped.
//
// Outputs:
//
//	error - nil after cancellation. A scan failure of the cold start, or
//	        watch.ErrNotifierStart when the tree cannot be watched.
func (s *Service) Watch(ctx context.Context) error {
	if _, err := s.Rebuild(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if !errors.Is(err, ErrPassFailed) {
			return err
		}
	}

	debouncer, err := watch.NewDebouncer(watch.Options{
		Window:       s.config.Debounce,
		PollInterval: s.config.Poll,
		Extensions:   s.config.Extensions,
	})
	if err != nil {
		return err
	}

	notifier, err := watch.NewNotifier(s.config.Root, func(c watch.Change, at time.Time) {
		if debouncer.Observe(c, at) && s.metrics != nil {
			s.metrics.ChangesObserved.Add(ctx, 1)
		}
	}, watch.NotifierOptions{Excluder: s.excluder, Logger: s.logger})
	if err != nil {
		s.logger.Error("change notifier unavailable", "error", err.Error())
		return err
	}
	if err := notifier.Start(ctx); err != nil {
		s.logger.Error("change notifier failed to start", "root", s.config.Root, "error", err.Error())
		return err
	}
	defer notifier.Stop()

	s.setWatching(true)
	defer s.setWatching(false)
	s.logger.Info("watching for changes",
		"root", s.config.Root,
		"debounce", s.config.Debounce,
		"directories", len(notifier.WatchList()),
	)

	debouncer.Run(ctx, func(ctx context.Context, batch watch.Batch) {
		s.logger.Debug("changes settled", "files", batch.Len())
		// The pass outlives a shutdown signal so the graph on disk matches a
		// completed pass.
		_, _ = s.Apply(context.WithoutCancel(ctx), batch)
	})

	s.logger.Info("stopped watching", "pending_dropped", debouncer.Pending())
	return nil
}

func (s *Service) setWatching(v bool) {
	s.statusMu.Lock()
	s.watching = v
	s.statusMu.Unlock()
}

// ContextFiles returns up to limit file ids from the persisted graph,
// sorted. A missing or corrupt graph file is regenerated first. A limit of
// zero or less returns every file.
func (s *Service) ContextFiles(ctx context.Context, limit int) ([]string, error) {
	g, err := graph.Load(s.config.Output)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist), errors.Is(err, graph.ErrCorruptGraph):
		s.logger.Info("regenerating dependency graph", "path", s.config.Output, "reason", err.Error())
		if _, err := s.Rebuild(ctx); err != nil {
			return nil, err
		}
		g = graph.FromSnapshot(s.graph.Snapshot())
	default:
		return nil, err
	}

	ids := g.FileIDs()
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
