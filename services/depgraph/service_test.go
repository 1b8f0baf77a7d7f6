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
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/swiftdeps/services/depgraph/ast"
	"github.com/AleutianAI/swiftdeps/services/depgraph/cache"
	"github.com/AleutianAI/swiftdeps/services/depgraph/deps"
	"github.com/AleutianAI/swiftdeps/services/depgraph/graph"
	"github.com/AleutianAI/swiftdeps/services/depgraph/telemetry"
	"github.com/AleutianAI/swiftdeps/services/depgraph/watch"
)

// Contents understood by fakeSource.
const (
	singletonSource = "final class Store { static let shared = Store() }"
	loggerSource    = "struct Runner { func run() { print(\"hi\") } }"
	importSource    = "import SwiftUI"
	brokenSource    = "this does not parse"
)

// fakeSource maps file content to a fixed structure tree.
type fakeSource struct {
	mu    sync.Mutex
	trees map[string]*ast.Node
	calls atomic.Int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{trees: map[string]*ast.Node{
		singletonSource: ast.NewRoot(&ast.Node{
			Kind: ast.KindClass,
			Name: "Store",
			Children: []*ast.Node{
				{Kind: ast.KindVarStatic, Name: "shared"},
			},
		}),
		loggerSource: ast.NewRoot(&ast.Node{
			Kind: ast.KindStruct,
			Name: "Runner",
			Children: []*ast.Node{{
				Kind: ast.KindMethodInstance,
				Name: "run()",
				Children: []*ast.Node{
					{Kind: ast.KindCall, Name: "print"},
				},
			}},
		}),
		importSource: ast.NewRoot(&ast.Node{Kind: ast.KindImport, Name: "SwiftUI"}),
	}}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Structure(_ context.Context, path string, content []byte) (*ast.Node, error) {
	f.calls.Add(1)
	if string(content) == brokenSource {
		return nil, ast.NewParseError(path, "fake", "unexpected token", nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if tree, ok := f.trees[string(content)]; ok {
		return tree, nil
	}
	return ast.NewRoot(), nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSwift(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestService(t *testing.T, root string, src ast.Source, opts ...Option) *Service {
	t.Helper()
	cfg := DefaultServiceConfig(root)
	cfg.Workers = 4
	all := append([]Option{WithSource(src), WithLogger(discard())}, opts...)
	svc, err := NewService(cfg, all...)
	require.NoError(t, err)
	return svc
}

func TestNewService_RelativeRoot(t *testing.T) {
	_, err := NewService(ServiceConfig{Root: "relative/dir"})
	assert.ErrorIs(t, err, ErrRelativeRoot)
}

func TestNewService_Defaults(t *testing.T) {
	root := t.TempDir()
	svc, err := NewService(ServiceConfig{Root: root})
	require.NoError(t, err)

	cfg := svc.Config()
	assert.Equal(t, filepath.Join(root, "dependencies.json"), cfg.Output)
	assert.Equal(t, []string{".swift"}, cfg.Extensions)
	assert.Equal(t, 3*time.Second, cfg.Debounce)
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, "treesitter", svc.Status().Source)
}

func TestService_RebuildEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeSwift(t, root, "App/X.swift", singletonSource)
	writeSwift(t, root, "App/Y.swift", loggerSource)
	writeSwift(t, root, "Pods/Vendor/Z.swift", importSource)
	writeSwift(t, root, "App/README.md", importSource)

	svc := newTestService(t, root, newFakeSource())
	res, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, telemetry.PassFull, res.Kind)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 2, res.Classified)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 2, res.GraphFiles)

	loaded, err := graph.Load(filepath.Join(root, "dependencies.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"App/X.swift", "App/Y.swift"}, loaded.FileIDs())

	x, ok := loaded.Get("App/X.swift")
	require.True(t, ok)
	assert.Equal(t, []string{"shared"}, x.Values(deps.Singletons))

	y, ok := loaded.Get("App/Y.swift")
	require.True(t, ok)
	assert.Equal(t, []string{deps.LoggerMarker}, y.Values(deps.Loggers))
	assert.Equal(t, []string{"print"}, y.Values(deps.FunctionCalls))
	assert.Equal(t, []string{"print"}, y.Calls("run()"))
	assert.Empty(t, y.Values(deps.Singletons))
}

func TestService_RebuildSkipsParseFailures(t *testing.T) {
	root := t.TempDir()
	writeSwift(t, root, "Good.swift", importSource)
	writeSwift(t, root, "Bad.swift", brokenSource)

	svc := newTestService(t, root, newFakeSource())
	res, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Classified)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"Good.swift"}, svc.Graph().FileIDs())
}

func TestService_RebuildReplacesWholesale(t *testing.T) {
	root := t.TempDir()
	writeSwift(t, root, "A.swift", importSource)
	gone := writeSwift(t, root, "B.swift", singletonSource)

	svc := newTestService(t, root, newFakeSource())
	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	require.Len(t, svc.Graph(), 2)

	require.NoError(t, os.Remove(gone))
	_, err = svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A.swift"}, svc.Graph().FileIDs())
}

func TestService_RebuildEmptyProject(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, root, newFakeSource())

	res, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.GraphFiles)

	data, err := os.ReadFile(filepath.Join(root, "dependencies.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestService_RebuildMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")
	svc := newTestService(t, root, newFakeSource())

	_, err := svc.Rebuild(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPassFailed)
	assert.NotEmpty(t, svc.Status().LastError)
}

func TestService_RebuildCancelled(t *testing.T) {
	root := t.TempDir()
	writeSwift(t, root, "A.swift", importSource)
	svc := newTestService(t, root, newFakeSource())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Rebuild(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, svc.Graph())

	_, statErr := os.Stat(filepath.Join(root, "dependencies.json"))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestService_PersistFailure(t *testing.T) {
	root := t.TempDir()
	writeSwift(t, root, "A.swift", importSource)

	cfg := DefaultServiceConfig(root)
	cfg.Output = filepath.Join(root, "no-such-dir", "dependencies.json")
	svc, err := NewService(cfg, WithSource(newFakeSource()), WithLogger(discard()))
	require.NoError(t, err)

	_, err = svc.Rebuild(context.Background())
	assert.ErrorIs(t, err, ErrPassFailed)
	assert.Len(t, svc.Graph(), 1, "the in-memory graph reflects the pass")
}

func TestService_ApplyIncremental(t *testing.T) {
	root := t.TempDir()
	x := writeSwift(t, root, "X.swift", singletonSource)
	y := writeSwift(t, root, "Y.swift", loggerSource)

	svc := newTestService(t, root, newFakeSource())
	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	// X now imports instead, Y is deleted, W is new.
	writeSwift(t, root, "X.swift", importSource)
	require.NoError(t, os.Remove(y))
	w := writeSwift(t, root, "Sub/W.swift", singletonSource)

	res, err := svc.Apply(context.Background(), watch.Batch{Changes: []watch.Change{
		{Path: x, Op: watch.OpWrite},
		{Path: y, Op: watch.OpRemove},
		{Path: w, Op: watch.OpCreate},
	}})
	require.NoError(t, err)
	assert.Equal(t, telemetry.PassIncremental, res.Kind)
	assert.Equal(t, 2, res.Classified)
	assert.Equal(t, 1, res.Removed)

	snap := svc.Graph()
	assert.Equal(t, []string{"Sub/W.swift", "X.swift"}, snap.FileIDs())
	assert.Equal(t, []string{"SwiftUI"}, snap["X.swift"].Values(deps.Imports))
	assert.Empty(t, snap["X.swift"].Values(deps.Singletons))

	loaded, err := graph.Load(filepath.Join(root, "dependencies.json"))
	require.NoError(t, err)
	assert.Equal(t, snap.FileIDs(), loaded.FileIDs())
}

func TestService_ApplyWriteToVanishedFileRemovesIt(t *testing.T) {
	root := t.TempDir()
	a := writeSwift(t, root, "A.swift", importSource)
	svc := newTestService(t, root, newFakeSource())
	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(a))
	res, err := svc.Apply(context.Background(), watch.Batch{Changes: []watch.Change{{Path: a, Op: watch.OpWrite}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Empty(t, svc.Graph())
}

func TestService_ApplyParseFailureKeepsPreviousRecord(t *testing.T) {
	root := t.TempDir()
	x := writeSwift(t, root, "X.swift", singletonSource)
	svc := newTestService(t, root, newFakeSource())
	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	writeSwift(t, root, "X.swift", brokenSource)
	res, err := svc.Apply(context.Background(), watch.Batch{Changes: []watch.Change{{Path: x, Op: watch.OpWrite}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	rec, ok := svc.Record("X.swift")
	require.True(t, ok)
	assert.Equal(t, []string{"shared"}, rec.Values(deps.Singletons))
}

func TestService_ApplyIgnoresExcludedAndOutsidePaths(t *testing.T) {
	root := t.TempDir()
	svc := newTestService(t, root, newFakeSource())
	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)

	pod := writeSwift(t, root, "Pods/P.swift", importSource)
	outside := writeSwift(t, t.TempDir(), "O.swift", importSource)

	res, err := svc.Apply(context.Background(), watch.Batch{Changes: []watch.Change{
		{Path: pod, Op: watch.OpCreate},
		{Path: outside, Op: watch.OpCreate},
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Classified)
	assert.Empty(t, svc.Graph())
}

func TestService_CacheHitSkipsSource(t *testing.T) {
	root := t.TempDir()
	writeSwift(t, root, "A.swift", singletonSource)
	writeSwift(t, root, "B.swift", loggerSource)

	c, err := cache.Open(cache.Config{HotSize: 16})
	require.NoError(t, err)
	defer c.Close()

	src := newFakeSource()
	svc := newTestService(t, root, src, WithCache(c), WithMetrics(telemetry.NopMetrics()))

	first, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, first.CacheHits)
	assert.Equal(t, int64(2), src.calls.Load())

	second, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.CacheHits)
	assert.Equal(t, int64(2), src.calls.Load(), "cached files are not parsed again")

	rec, ok := svc.Record("A.swift")
	require.True(t, ok)
	assert.Equal(t, "A.swift", rec.FileID(), "cached records are rekeyed to the file")
	assert.Equal(t, []string{"shared"}, rec.Values(deps.Singletons))
}

func TestService_CacheSharedContentDifferentFiles(t *testing.T) {
	root := t.TempDir()
	writeSwift(t, root, "One.swift", importSource)
	writeSwift(t, root, "Two.swift", importSource)

	c, err := cache.Open(cache.Config{})
	require.NoError(t, err)
	defer c.Close()

	svc := newTestService(t, root, newFakeSource(), WithCache(c))
	_, err = svc.Rebuild(context.Background())
	require.NoError(t, err)

	one, _ := svc.Record("One.swift")
	two, _ := svc.Record("Two.swift")
	require.NotNil(t, one)
	require.NotNil(t, two)
	assert.Equal(t, "One.swift", one.FileID())
	assert.Equal(t, "Two.swift", two.FileID())
}

func TestService_ContextFiles(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"C.swift", "A.swift", "B.swift"} {
		writeSwift(t, root, name, importSource)
	}
	svc := newTestService(t, root, newFakeSource())

	// No graph on disk yet: regenerated.
	files, err := svc.ContextFiles(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.swift", "B.swift"}, files)

	all, err := svc.ContextFiles(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestService_ContextFilesCorruptGraphRebuilds(t *testing.T) {
	root := t.TempDir()
	writeSwift(t, root, "A.swift", importSource)
	out := filepath.Join(root, "dependencies.json")
	require.NoError(t, os.WriteFile(out, []byte("{not json"), 0o644))

	svc := newTestService(t, root, newFakeSource())
	files, err := svc.ContextFiles(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.swift"}, files)

	_, err = graph.Load(out)
	assert.NoError(t, err, "the corrupt file was replaced")
}

func TestService_PassWaitsForRunningPass(t *testing.T) {
	root := t.TempDir()
	a := writeSwift(t, root, "A.swift", importSource)
	svc := newTestService(t, root, newFakeSource())

	// Hold the pass lock as a running pass would.
	svc.passMu.Lock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Apply(context.Background(), watch.Batch{Changes: []watch.Change{{Path: a, Op: watch.OpCreate}}})
		assert.NoError(t, err)
	}()

	select {
	case <-done:
		t.Fatal("Apply ran while another pass held the lock")
	case <-time.After(50 * time.Millisecond):
	}
	svc.passMu.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Apply did not run after the lock was released")
	}
	assert.Equal(t, []string{"A.swift"}, svc.Graph().FileIDs())
}

func TestService_ConcurrentRebuilds(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d"} {
		writeSwift(t, root, name+".swift", importSource)
	}
	src := newFakeSource()
	svc := newTestService(t, root, src)

	var wg sync.WaitGroup
	ids := make([]string, 3)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Rebuild(context.Background())
			assert.NoError(t, err)
			ids[i] = res.ID
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(12), src.calls.Load())
	assert.Len(t, svc.Graph(), 4)
	assert.NotEqual(t, ids[0], ids[1])
	assert.NotEqual(t, ids[1], ids[2])
}

func TestService_Watch(t *testing.T) {
	root := t.TempDir()
	writeSwift(t, root, "A.swift", importSource)

	cfg := DefaultServiceConfig(root)
	cfg.Debounce = 200 * time.Millisecond
	cfg.Poll = 50 * time.Millisecond
	svc, err := NewService(cfg, WithSource(newFakeSource()), WithLogger(discard()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx) }()

	require.Eventually(t, func() bool { return svc.Status().Watching }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"A.swift"}, svc.Graph().FileIDs())

	writeSwift(t, root, "B.swift", singletonSource)
	require.Eventually(t, func() bool {
		rec, ok := svc.Record("B.swift")
		return ok && rec.Has(deps.Singletons, "shared")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancellation")
	}
	assert.False(t, svc.Status().Watching)
}

func TestService_WatchMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gone")
	svc := newTestService(t, root, newFakeSource())

	err := svc.Watch(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPassFailed))
}
