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
	"sync"
	"time"

	"github.com/AleutianAI/swiftdeps/services/depgraph/scan"
)

// Debouncer defaults.
const (
	DefaultWindow       = 3 * time.Second
	DefaultPollInterval = time.Second
)

// ErrInvalidOptions is returned by NewDebouncer for unusable options.
var ErrInvalidOptions = errors.New("invalid debouncer options")

// State is the debouncer's state.
type State int

const (
	// StateIdle means no relevant change is waiting.
	StateIdle State = iota

	// StatePending means at least one relevant change is waiting for the
	// window to elapse.
	StatePending
)

// String returns "idle" or "pending".
func (s State) String() string {
	if s == StatePending {
		return "pending"
	}
	return "idle"
}

// Options configures a Debouncer.
type Options struct {
	// Window is the quiet period required after the last change before the
	// debouncer fires. Default: 3s.
	Window time.Duration

	// PollInterval is how often Run checks the window. Must not exceed
	// Window. Default: 1s.
	PollInterval time.Duration

	// Extensions are the file extensions worth reacting to.
	// Default: [".swift"].
	Extensions []string
}

// DefaultOptions returns the default debouncer options.
func DefaultOptions() Options {
	return Options{
		Window:       DefaultWindow,
		PollInterval: DefaultPollInterval,
		Extensions:   []string{scan.DefaultExtension},
	}
}

// Handler receives each batch the debouncer releases.
type Handler func(ctx context.Context, batch Batch)

// Debouncer collects changes until input has been quiet for a full window.
//
// Description:
//
//	Observe moves Idle to Pending, or keeps Pending and moves lastChangeAt
//	forward. Check fires once now - lastChangeAt >= Window, returning the
//	collected changes and moving back to Idle. Under a steady stream of
//	changes nothing fires; after the last change a batch is released within
//	Window + PollInterval.
//
// Thread Safety:
//
//	Observe, Check, State and Pending are safe for concurrent use and hold
//	one mutex only for bookkeeping. Run invokes the handler with the mutex
//	released, from a single goroutine, so batches never overlap.
type Debouncer struct {
	opts Options

	mu           sync.Mutex
	state        State
	lastChangeAt time.Time
	changes      []Change

	// now is the clock used by Run.
	now func() time.Time
}

// NewDebouncer validates opts and creates an idle Debouncer. Zero fields take
// their defaults.
func NewDebouncer(opts Options) (*Debouncer, error) {
	defaults := DefaultOptions()
	if opts.Window == 0 {
		opts.Window = defaults.Window
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = defaults.Extensions
	}

	switch {
	case opts.Window < 0:
		return nil, fmt.Errorf("%w: window %s must be positive", ErrInvalidOptions, opts.Window)
	case opts.PollInterval < 0:
		return nil, fmt.Errorf("%w: poll interval %s must be positive", ErrInvalidOptions, opts.PollInterval)
	case opts.PollInterval > opts.Window:
		return nil, fmt.Errorf("%w: poll interval %s exceeds window %s",
			ErrInvalidOptions, opts.PollInterval, opts.Window)
	}

	return &Debouncer{opts: opts, state: StateIdle, now: time.Now}, nil
}

// Options returns the effective options.
func (d *Debouncer) Options() Options {
	return d.opts
}

// Observe records a change seen at now. Changes to files without a watched
// extension are ignored. Reports whether the change was recorded.
func (d *Debouncer) Observe(c Change, now time.Time) bool {
	if !scan.HasExtension(c.Path, d.opts.Extensions) {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StatePending
	d.lastChangeAt = now
	d.changes = append(d.changes, c)
	return true
}

// Check fires if the window has elapsed since the last change.
//
// Outputs:
//
//	Batch - The deduplicated changes, when fired.
//	bool  - True if the debouncer fired and is now Idle.
func (d *Debouncer) Check(now time.Time) (Batch, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StatePending || now.Sub(d.lastChangeAt) < d.opts.Window {
		return Batch{}, false
	}

	batch := Batch{Changes: dedupe(d.changes), FiredAt: now}
	d.state = StateIdle
	d.changes = nil
	d.lastChangeAt = time.Time{}
	return batch, true
}

// State returns the current state.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pending returns how many distinct paths are waiting.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateIdle {
		return 0
	}
	seen := make(map[string]struct{}, len(d.changes))
	for _, c := range d.changes {
		seen[c.Path] = struct{}{}
	}
	return len(seen)
}

// Run checks the window every PollInterval and calls handler for each batch
// until ctx is cancelled. A handler already running when ctx is cancelled
// completes; changes still pending are dropped.
func (d *Debouncer) Run(ctx context.Context, handler Handler) {
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if batch, ok := d.Check(d.now()); ok {
				handler(ctx, batch)
			}
		}
	}
}
