// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ttlindex implements a time-ordered secondary index over a
// Badger transaction: (timestamp, key) pairs whose on-disk byte order
// matches chronological order, so expiry sweeps are a single bounded
// range scan instead of a full-table scan.
package ttlindex

import (
	"encoding/binary"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Entry is one (timestamp, key) pair tracked by an Index.
type Entry struct {
	Timestamp time.Time
	Key       string
}

// Index is a TTL secondary index keyed under a caller-chosen prefix,
// so several independent indexes (e.g. one per lifecycle state) can
// share one Badger database.
type Index struct {
	prefix []byte
}

// New returns an Index whose entries live under the given prefix.
// Distinct indexes sharing a database must use distinct prefixes.
func New(prefix string) *Index {
	return &Index{prefix: []byte(prefix)}
}

// encode lays out prefix + 8-byte BE seconds + 4-byte BE nanos + key
// bytes, so lexicographic byte order equals chronological order for
// any two entries sharing a prefix.
func (idx *Index) encode(e Entry) []byte {
	buf := make([]byte, len(idx.prefix)+12+len(e.Key))
	n := copy(buf, idx.prefix)
	binary.BigEndian.PutUint64(buf[n:], uint64(e.Timestamp.Unix()))
	n += 8
	binary.BigEndian.PutUint32(buf[n:], uint32(e.Timestamp.Nanosecond()))
	n += 4
	copy(buf[n:], e.Key)
	return buf
}

// sentinelUpperBound returns the smallest encoded key strictly
// greater than every entry timestamped before cutoff, using an empty
// key as the sentinel suffix — the technique the original TTL table
// uses to bound a single range scan instead of scanning the whole
// table and filtering.
func (idx *Index) sentinelUpperBound(cutoff time.Time) []byte {
	return idx.encode(Entry{Timestamp: cutoff})
}

// Insert records e. Re-inserting an existing entry is a no-op write,
// matching Badger's overwrite-on-Set semantics.
func (idx *Index) Insert(txn *badger.Txn, e Entry) error {
	return txn.Set(idx.encode(e), nil)
}

// Remove deletes e if present and reports whether it existed. Callers
// use the boolean to distinguish "removed the old TTL anchor" from
// "there was nothing to remove" when reconciling state transitions.
func (idx *Index) Remove(txn *badger.Txn, e Entry) (bool, error) {
	key := idx.encode(e)
	if _, err := txn.Get(key); err != nil {
		if err == badger.ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	if err := txn.Delete(key); err != nil {
		return false, err
	}
	return true, nil
}

// ExpiredKeys returns every key whose timestamp is at or before
// now.Add(-ttl), via a single bounded range scan that stops at the
// first entry after the cutoff. If ttl is longer than the time
// elapsed since the Unix epoch, no entry can have expired and an
// empty slice is returned without touching the index.
func (idx *Index) ExpiredKeys(txn *badger.Txn, now time.Time, ttl time.Duration) ([]string, error) {
	sinceEpoch := now.Sub(time.Unix(0, 0))
	if ttl > sinceEpoch {
		return nil, nil
	}
	cutoff := now.Add(-ttl)
	// Bounding at one nanosecond past the cutoff includes entries
	// timestamped exactly at the cutoff.
	upper := idx.sentinelUpperBound(cutoff.Add(time.Nanosecond))

	opts := badger.DefaultIteratorOptions
	opts.Prefix = idx.prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys []string
	for it.Seek(idx.prefix); it.ValidForPrefix(idx.prefix); it.Next() {
		k := it.Item().KeyCopy(nil)
		if bytesGreaterOrEqual(k, upper) {
			break
		}
		keys = append(keys, string(k[len(idx.prefix)+12:]))
	}
	return keys, nil
}

// AllKeys returns every key currently tracked by the index,
// regardless of timestamp.
func (idx *Index) AllKeys(txn *badger.Txn) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = idx.prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys []string
	for it.Seek(idx.prefix); it.ValidForPrefix(idx.prefix); it.Next() {
		k := it.Item().KeyCopy(nil)
		keys = append(keys, string(k[len(idx.prefix)+12:]))
	}
	return keys, nil
}

func bytesGreaterOrEqual(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return len(a) >= len(b)
}
