// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// ErrNotifierStart is returned when the change notifier cannot start.
// Extraction already performed stays valid; only watching is lost.
var ErrNotifierStart = errors.New("change notifier failed to start")

// NotifierError describes a notifier start failure.
type NotifierError struct {
	// Root is the directory that was to be watched.
	Root string

	// Cause is the underlying error.
	Cause error
}

func (e *NotifierError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrNotifierStart, e.Root, e.Cause)
}

// Unwrap returns the underlying error.
func (e *NotifierError) Unwrap() error {
	return e.Cause
}

// Is makes every NotifierError match ErrNotifierStart.
func (e *NotifierError) Is(target error) bool {
	return target == ErrNotifierStart
}

// Excluder decides which project-relative paths are ignored.
type Excluder interface {
	Excluded(relPath string) bool
}

// Sink receives each change the notifier sees.
type Sink func(c Change, at time.Time)

// NotifierOptions configures a Notifier.
type NotifierOptions struct {
	// Excluder skips paths. Nil watches everything.
	Excluder Excluder

	// Logger receives watch errors. Nil uses slog.Default().
	Logger *slog.Logger
}

// Notifier watches a directory tree recursively and forwards every change to
// a Sink.
//
// Description:
//
//	Directories are registered with fsnotify at start and as they are
//	created. Excluded directories are never registered. Watch errors are
//	logged, throttled to a few per interval, and never stop the notifier.
//
// Thread Safety:
//
//	Safe for concurrent use. The sink is called from a single goroutine and
//	must not block for long.
type Notifier struct {
	root     string
	watcher  *fsnotify.Watcher
	sink     Sink
	excluder Excluder
	logger   *slog.Logger
	errLog   rate.Sometimes

	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// NewNotifier creates a notifier for root.
//
// Outputs:
//
//	*Notifier - Ready to Start.
//	error     - A *NotifierError if the platform watcher cannot be created.
func NewNotifier(root string, sink Sink, opts NotifierOptions) (*Notifier, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &NotifierError{Root: root, Cause: err}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Notifier{
		root:     root,
		watcher:  watcher,
		sink:     sink,
		excluder: opts.Excluder,
		logger:   logger.With("component", "notifier"),
		errLog:   rate.Sometimes{First: 3, Interval: 30 * time.Second},
		done:     make(chan struct{}),
	}, nil
}

// Start registers the tree and begins forwarding events until ctx is
// cancelled or Stop is called.
//
// Outputs:
//
//	error - A *NotifierError if the root cannot be watched.
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.watching {
		n.mu.Unlock()
		return nil
	}
	n.watching = true
	n.mu.Unlock()

	info, err := os.Stat(n.root)
	if err == nil && !info.IsDir() {
		err = fmt.Errorf("not a directory")
	}
	if err == nil {
		err = n.addRecursive(n.root, false)
	}
	if err != nil {
		n.Stop()
		return &NotifierError{Root: n.root, Cause: err}
	}

	go n.processEvents(ctx)
	return nil
}

// Stop stops the notifier. Safe to call more than once.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.done)
		n.watcher.Close()

		n.mu.Lock()
		n.watching = false
		n.mu.Unlock()
	})
}

// IsWatching reports whether the notifier is active.
func (n *Notifier) IsWatching() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.watching
}

// WatchList returns the registered directories.
func (n *Notifier) WatchList() []string {
	return n.watcher.WatchList()
}

// addRecursive registers dir and every non-excluded directory below it.
// With emit set, files already present are reported as created; they may
// have landed before the directory was registered.
func (n *Notifier) addRecursive(dir string, emit bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if path != n.root && n.excluded(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if emit && n.sink != nil {
				n.sink(Change{Path: path, Op: OpCreate}, time.Now())
			}
			return nil
		}
		return n.watcher.Add(path)
	})
}

func (n *Notifier) excluded(path string) bool {
	if n.excluder == nil {
		return false
	}
	rel, err := filepath.Rel(n.root, path)
	if err != nil {
		return false
	}
	return n.excluder.Excluded(filepath.ToSlash(rel))
}

// processEvents converts fsnotify events to changes.
func (n *Notifier) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			n.Stop()
			return
		case <-n.done:
			return
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.handleEvent(event)
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.errLog.Do(func() {
				n.logger.Warn("watch error", slog.String("error", err.Error()))
			})
		}
	}
}

func (n *Notifier) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || n.excluded(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := n.addRecursive(event.Name, true); err != nil {
				n.errLog.Do(func() {
					n.logger.Warn("watch new directory",
						slog.String("path", event.Name),
						slog.String("error", err.Error()))
				})
			}
			return
		}
	}

	if n.sink != nil {
		n.sink(Change{Path: event.Name, Op: convertOp(event.Op)}, time.Now())
	}
}

// convertOp converts fsnotify.Op to Op.
func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}
