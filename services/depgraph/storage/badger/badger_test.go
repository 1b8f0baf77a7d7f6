// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDB_InMemoryPutGet(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	assert.True(t, db.InMemory())
	assert.Equal(t, "", db.Path())

	require.NoError(t, db.Put(ctx, []byte("rec/a"), []byte("value")))
	got, err := db.Get(ctx, []byte("rec/a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	_, err = db.Get(ctx, []byte("rec/missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenDB_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := OpenDB(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Put(context.Background(), []byte("k"), []byte("v")))
	require.NoError(t, db.Close())

	db, err = OpenDB(cfg)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, dir, db.Path())

	got, err := db.Get(context.Background(), []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestOpenDB_RequiresPath(t *testing.T) {
	_, err := OpenDB(Config{})
	assert.Error(t, err)
}

func TestDB_CloseIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	db, err := OpenDB(cfg)
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
}

func TestDB_WithTxnRollsBackOnError(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	boom := errors.New("boom")
	err = db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = db.Get(ctx, []byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDB_CancelledContext(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, db.Put(ctx, []byte("k"), []byte("v")), context.Canceled)
	_, err = db.Get(ctx, []byte("k"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDB_CountPrefix(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	for _, k := range []string{"rec/a", "rec/b", "meta/x"} {
		require.NoError(t, db.Put(ctx, []byte(k), []byte("1")))
	}

	n, err := db.CountPrefix(ctx, []byte("rec/"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewGCRunner_Validation(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	_, err = NewGCRunner(nil, time.Minute, 0.5, nil)
	assert.Error(t, err)
	_, err = NewGCRunner(db.DB, 0, 0.5, nil)
	assert.Error(t, err)
	_, err = NewGCRunner(db.DB, time.Minute, 1.5, nil)
	assert.Error(t, err)

	runner, err := NewGCRunner(db.DB, time.Hour, 0.5, nil)
	require.NoError(t, err)
	runner.Start()
	runner.Stop()
	runner.Stop()
}
