// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerkv

import (
	"context"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func TestWithWriteTxn_ThenWithReadTxn_RoundTrip(t *testing.T) {
	db := openTestDB(t)

	err := db.WithWriteTxn(context.Background(), func(txn *badger.Txn) error {
		return txn.Set([]byte("key"), []byte("value"))
	})
	require.NoError(t, err)

	var got []byte
	err = db.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("key"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			got = append([]byte(nil), val...)
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, "value", string(got))
}

func TestWithWriteTxn_RespectsCanceledContext(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.WithWriteTxn(ctx, func(txn *badger.Txn) error {
		t.Fatal("fn must not run with a canceled context")
		return nil
	})
	require.Error(t, err)
}

func TestRunValueGC_NoErrorWhenNothingToReclaim(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RunValueGC(0.5))
}
