// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerkv wraps a Badger database with a context-aware
// transaction API, the same shape the routing cache store builds on
// top of dgraph-io/badger/v4.
package badgerkv

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Config selects how the underlying Badger instance is opened.
type Config struct {
	// Dir is the directory Badger persists to. Ignored when InMemory
	// is true.
	Dir string
	// InMemory opens a volatile, disk-free instance, used by tests.
	InMemory bool
	// Logger silences Badger's own logging when nil.
	Logger badger.Logger
}

// DefaultConfig returns a disk-backed configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir}
}

// InMemoryConfig returns a configuration for a throwaway, in-memory
// database, used across the test suite.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// DB is a thin handle around a single Badger instance.
type DB struct {
	bdb *badger.DB
}

// OpenDB opens (creating if necessary) the database described by cfg.
func OpenDB(cfg Config) (*DB, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerkv: open: %w", err)
	}
	return &DB{bdb: bdb}, nil
}

// Close releases the underlying Badger resources.
func (d *DB) Close() error {
	if err := d.bdb.Close(); err != nil {
		return fmt.Errorf("badgerkv: close: %w", err)
	}
	return nil
}

// WithReadTxn runs fn inside a read-only Badger transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.bdb.View(fn)
}

// WithWriteTxn runs fn inside a read-write Badger transaction,
// committing on success and discarding on error or panic.
func (d *DB) WithWriteTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.bdb.Update(fn)
}

// RunValueGC runs one pass of Badger's value-log garbage collection.
// Badger returns ErrNoRewrite when there is nothing to reclaim, and
// ErrGCInMemoryMode for an in-memory database, which has no value log
// to reclaim; neither is an error condition for callers and both are
// translated to nil.
func (d *DB) RunValueGC(discardRatio float64) error {
	err := d.bdb.RunValueLogGC(discardRatio)
	if err != nil && err != badger.ErrNoRewrite && err != badger.ErrGCInMemoryMode {
		return fmt.Errorf("badgerkv: value gc: %w", err)
	}
	return nil
}
