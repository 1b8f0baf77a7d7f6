// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache remembers the record produced for a given file content so
// unchanged files are not re-parsed.
//
// Entries are keyed by the SHA-256 of the file content, the classifier
// version and the structure source name. A change to any of them is a miss.
// The hot tier is an in-process LRU; the optional warm tier is BadgerDB and
// survives restarts.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/AleutianAI/swiftdeps/services/depgraph/deps"
	"github.com/AleutianAI/swiftdeps/services/depgraph/storage/badger"
)

// DefaultHotSize is the default number of records held in memory.
const DefaultHotSize = 4096

// keyPrefix namespaces record entries in the warm store.
const keyPrefix = "rec/"

// Key identifies a cached record.
type Key struct {
	ContentHash [sha256.Size]byte
	Version     string
	Source      string
}

// NewKey builds the key for content classified by a classifier version with
// trees from source.
func NewKey(content []byte, version, source string) Key {
	return Key{ContentHash: sha256.Sum256(content), Version: version, Source: source}
}

// String renders the storage key.
func (k Key) String() string {
	return keyPrefix + k.Source + "/" + k.Version + "/" + hex.EncodeToString(k.ContentHash[:])
}

// Config configures a Cache.
type Config struct {
	// HotSize is the LRU capacity. Default: 4096.
	HotSize int

	// Dir is the BadgerDB directory for the warm tier. Empty disables the
	// warm tier unless InMemory is set.
	Dir string

	// InMemory backs the warm tier with an in-memory BadgerDB. Used by tests.
	InMemory bool

	// Logger receives warm tier errors. Nil uses slog.Default().
	Logger *slog.Logger
}

// Stats counts lookups.
type Stats struct {
	HotHits  uint64
	WarmHits uint64
	Misses   uint64
}

// Cache is a two-tier record cache.
//
// Thread Safety: Safe for concurrent use.
type Cache struct {
	hot    *lru.Cache[string, *deps.Record]
	warm   *badger.DB
	logger *slog.Logger

	hotHits  atomic.Uint64
	warmHits atomic.Uint64
	misses   atomic.Uint64
}

// Open creates a cache.
//
// Outputs:
//
//	*Cache - The cache. Call Close when done.
//	error  - Non-nil if the LRU or the warm store cannot be created.
func Open(cfg Config) (*Cache, error) {
	size := cfg.HotSize
	if size <= 0 {
		size = DefaultHotSize
	}
	hot, err := lru.New[string, *deps.Record](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{hot: hot, logger: logger.With("component", "cache")}

	switch {
	case cfg.InMemory:
		c.warm, err = badger.OpenDB(badger.InMemoryConfig())
	case cfg.Dir != "":
		bcfg := badger.DefaultConfig()
		bcfg.Path = cfg.Dir
		bcfg.Logger = logger
		c.warm, err = badger.OpenDB(bcfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open warm cache: %w", err)
	}
	return c, nil
}

// Get returns the cached record for key. The record carries no file id;
// callers attach one with WithFileID.
func (c *Cache) Get(ctx context.Context, key Key) (*deps.Record, bool) {
	k := key.String()
	if rec, ok := c.hot.Get(k); ok {
		c.hotHits.Add(1)
		return rec, true
	}

	if c.warm != nil {
		data, err := c.warm.Get(ctx, []byte(k))
		switch {
		case err == nil:
			rec := new(deps.Record)
			if err := json.Unmarshal(data, rec); err != nil {
				c.logger.Warn("discarding unreadable cache entry",
					slog.String("key", k), slog.String("error", err.Error()))
				break
			}
			c.hot.Add(k, rec)
			c.warmHits.Add(1)
			return rec, true
		case !errors.Is(err, badger.ErrNotFound):
			c.logger.Warn("warm cache lookup failed",
				slog.String("key", k), slog.String("error", err.Error()))
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Put stores rec under key in both tiers. A warm tier failure is returned
// but the hot tier is always updated.
func (c *Cache) Put(ctx context.Context, key Key, rec *deps.Record) error {
	if rec == nil {
		return nil
	}
	rec = rec.WithFileID("")
	k := key.String()
	c.hot.Add(k, rec)

	if c.warm == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := c.warm.Put(ctx, []byte(k), data); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

// Stats returns lookup counters since Open.
func (c *Cache) Stats() Stats {
	return Stats{
		HotHits:  c.hotHits.Load(),
		WarmHits: c.warmHits.Load(),
		Misses:   c.misses.Load(),
	}
}

// Len returns the number of records in the hot tier.
func (c *Cache) Len() int {
	return c.hot.Len()
}

// Purge empties the hot tier. The warm tier is kept.
func (c *Cache) Purge() {
	c.hot.Purge()
}

// Close releases the warm store.
func (c *Cache) Close() error {
	if c.warm == nil {
		return nil
	}
	return c.warm.Close()
}
