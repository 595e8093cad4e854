// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metastore is Keva's Metadata Store: the main key/value
// table plus its two TTL secondary indexes (active-idle and
// trash-age), multiplexed into one Badger database the way the
// routing cache multiplexes logical tables under a single key prefix.
package metastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"

	"github.com/ik1ne/keva-sub000/badgerkv"
	"github.com/ik1ne/keva-sub000/model"
	"github.com/ik1ne/keva-sub000/ttlindex"
)

const (
	mainPrefix    = "main/"
	activeTTLPrefix = "ttl/active/"
	trashTTLPrefix  = "ttl/trash/"
)

// ErrNotFound is returned when a key has no stored record.
var ErrNotFound = errors.New("keva: key not found")

// Store is the Metadata Store: one Badger database multiplexed into a
// main table and two TTL indexes.
type Store struct {
	db         *badgerkv.DB
	activeTTL  *ttlindex.Index
	trashTTL   *ttlindex.Index
	tracer     trace.Tracer

	txnTotal    *prometheus.CounterVec
	txnDuration prometheus.Histogram
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithTracer attaches an OpenTelemetry tracer used to span every
// write transaction. The zero value (no tracer) disables tracing.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// Open opens the Badger database at cfg and returns a ready Store.
func Open(cfg badgerkv.Config, reg prometheus.Registerer, opts ...Option) (*Store, error) {
	db, err := badgerkv.OpenDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("metastore: open: %w", err)
	}
	s := &Store{
		db:        db,
		activeTTL: ttlindex.New(activeTTLPrefix),
		trashTTL:  ttlindex.New(trashTTLPrefix),
		txnTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "keva",
			Subsystem: "metastore",
			Name:      "transactions_total",
		}, []string{"op", "result"}),
		txnDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "keva",
			Subsystem: "metastore",
			Name:      "transaction_duration_seconds",
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func mainKey(key string) []byte {
	return append([]byte(mainPrefix), []byte(key)...)
}

func (s *Store) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.txnTotal.WithLabelValues(op, result).Inc()
	s.txnDuration.Observe(time.Since(start).Seconds())
}

func (s *Store) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

// Get returns the stored value for key. errors.Is(err, ErrNotFound)
// reports a missing record.
func (s *Store) Get(ctx context.Context, key string) (v model.Value, err error) {
	start := time.Now()
	defer func() { s.observe("get", start, err) }()

	err = s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, getErr := txn.Get(mainKey(key))
		if getErr != nil {
			if getErr == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return getErr
		}
		return item.Value(func(val []byte) error {
			decoded, decodeErr := model.DecodeValue(val)
			if decodeErr != nil {
				return decodeErr
			}
			v = decoded
			return nil
		})
	})
	return v, err
}

// Put writes v for key inside a single Badger transaction, observing
// the write-ordering the TTL indexes require: the old record's TTL
// anchor is removed before the new one is inserted and before the
// main record is overwritten, so a reader never observes a TTL entry
// pointing at a stale or absent main record.
func (s *Store) Put(ctx context.Context, key string, v model.Value) (err error) {
	start := time.Now()
	defer func() { s.observe("put", start, err) }()

	ctx, span := s.startSpan(ctx, "metastore.Put")
	defer span.End()

	return s.db.WithWriteTxn(ctx, func(txn *badger.Txn) error {
		if old, getErr := s.getForUpdate(txn, key); getErr == nil {
			if removeErr := s.removeTTLAnchor(txn, key, old); removeErr != nil {
				return removeErr
			}
		} else if getErr != ErrNotFound {
			return getErr
		}

		if err := s.insertTTLAnchor(txn, key, v); err != nil {
			return err
		}

		encoded, err := model.EncodeValue(v)
		if err != nil {
			return err
		}
		return txn.Set(mainKey(key), encoded)
	})
}

// Delete removes key's main record and its TTL anchor in the same
// transaction.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete", start, err) }()

	ctx, span := s.startSpan(ctx, "metastore.Delete")
	defer span.End()

	return s.db.WithWriteTxn(ctx, func(txn *badger.Txn) error {
		old, getErr := s.getForUpdate(txn, key)
		if getErr != nil {
			if getErr == ErrNotFound {
				return nil
			}
			return getErr
		}
		if err := s.removeTTLAnchor(txn, key, old); err != nil {
			return err
		}
		return txn.Delete(mainKey(key))
	})
}

func (s *Store) getForUpdate(txn *badger.Txn, key string) (model.Value, error) {
	item, err := txn.Get(mainKey(key))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return model.Value{}, ErrNotFound
		}
		return model.Value{}, err
	}
	var v model.Value
	err = item.Value(func(val []byte) error {
		decoded, decodeErr := model.DecodeValue(val)
		if decodeErr != nil {
			return decodeErr
		}
		v = decoded
		return nil
	})
	return v, err
}

func (s *Store) removeTTLAnchor(txn *badger.Txn, key string, v model.Value) error {
	switch v.State {
	case model.StateActive:
		_, err := s.activeTTL.Remove(txn, ttlindex.Entry{Timestamp: v.LastAccessed, Key: key})
		return err
	case model.StateTrash:
		_, err := s.trashTTL.Remove(txn, ttlindex.Entry{Timestamp: v.TrashedAt, Key: key})
		return err
	default:
		return nil
	}
}

func (s *Store) insertTTLAnchor(txn *badger.Txn, key string, v model.Value) error {
	switch v.State {
	case model.StateActive:
		return s.activeTTL.Insert(txn, ttlindex.Entry{Timestamp: v.LastAccessed, Key: key})
	case model.StateTrash:
		return s.trashTTL.Insert(txn, ttlindex.Entry{Timestamp: v.TrashedAt, Key: key})
	default:
		return nil
	}
}

// ActiveKeys returns every key currently stored as active.
func (s *Store) ActiveKeys(ctx context.Context) (keys []string, err error) {
	err = s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var scanErr error
		keys, scanErr = s.activeTTL.AllKeys(txn)
		return scanErr
	})
	return keys, err
}

// TrashedKeys returns every key currently stored as trashed.
func (s *Store) TrashedKeys(ctx context.Context) (keys []string, err error) {
	err = s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var scanErr error
		keys, scanErr = s.trashTTL.AllKeys(txn)
		return scanErr
	})
	return keys, err
}

// ListActive returns active keys beginning with prefix, in the
// active TTL index's order (oldest last access first).
func (s *Store) ListActive(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.ActiveKeys(ctx)
	if err != nil {
		return nil, err
	}
	return filterPrefix(keys, prefix), nil
}

// ListTrashed returns trashed keys beginning with prefix, in the
// trash TTL index's order (earliest trashed first).
func (s *Store) ListTrashed(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.TrashedKeys(ctx)
	if err != nil {
		return nil, err
	}
	return filterPrefix(keys, prefix), nil
}

func filterPrefix(keys []string, prefix string) []string {
	if prefix == "" {
		return keys
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// ExpiredActiveKeys returns active keys idle for at least trashTTL
// since their last access, via a single bounded range scan.
func (s *Store) ExpiredActiveKeys(ctx context.Context, now time.Time, trashTTL time.Duration) (keys []string, err error) {
	err = s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var scanErr error
		keys, scanErr = s.activeTTL.ExpiredKeys(txn, now, trashTTL)
		return scanErr
	})
	return keys, err
}

// ExpiredTrashKeys returns trashed keys trashed at least purgeTTL
// ago, via a single bounded range scan.
func (s *Store) ExpiredTrashKeys(ctx context.Context, now time.Time, purgeTTL time.Duration) (keys []string, err error) {
	err = s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var scanErr error
		keys, scanErr = s.trashTTL.ExpiredKeys(txn, now, purgeTTL)
		return scanErr
	})
	return keys, err
}
