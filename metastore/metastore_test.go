// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metastore

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ik1ne/keva-sub000/badgerkv"
	"github.com/ik1ne/keva-sub000/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(badgerkv.InMemoryConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func activeValue(now time.Time, text string) model.Value {
	return model.Value{
		CreatedAt:    now,
		UpdatedAt:    now,
		State:        model.StateActive,
		LastAccessed: now,
		Clip: model.ClipData{
			Kind: model.ClipText,
			Text: model.TextContent{Inline: true, Text: text},
		},
	}
}

func TestStore_PutThenGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Put(ctx, "key1", activeValue(now, "hello")))

	got, err := s.Get(ctx, "key1")
	require.NoError(t, err)
	require.Equal(t, "hello", got.Clip.Text.Text)
}

func TestStore_Get_MissingKeyReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Put_TracksActiveTTLAnchor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Put(ctx, "key1", activeValue(now, "hello")))

	keys, err := s.ActiveKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"key1"}, keys)
}

func TestStore_Put_TransitionMovesTTLAnchorBetweenIndexes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Put(ctx, "key1", activeValue(now, "hello")))

	trashed := activeValue(now, "hello")
	trashed.State = model.StateTrash
	trashed.TrashedAt = now
	require.NoError(t, s.Put(ctx, "key1", trashed))

	activeKeys, err := s.ActiveKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, activeKeys)

	trashedKeys, err := s.TrashedKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"key1"}, trashedKeys)
}

func TestStore_Delete_RemovesMainRecordAndTTLAnchor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Put(ctx, "key1", activeValue(now, "hello")))
	require.NoError(t, s.Delete(ctx, "key1"))

	_, err := s.Get(ctx, "key1")
	require.ErrorIs(t, err, ErrNotFound)

	keys, err := s.ActiveKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestStore_ExpiredActiveKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	idle := activeValue(now.Add(-48*time.Hour), "idle")
	fresh := activeValue(now, "fresh")
	require.NoError(t, s.Put(ctx, "idle-key", idle))
	require.NoError(t, s.Put(ctx, "fresh-key", fresh))

	expired, err := s.ExpiredActiveKeys(ctx, now, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"idle-key"}, expired)
}

func TestStore_ListActive_FiltersByPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Put(ctx, "snippets.go", activeValue(now, "a")))
	require.NoError(t, s.Put(ctx, "snippets.py", activeValue(now, "b")))
	require.NoError(t, s.Put(ctx, "notes.txt", activeValue(now, "c")))

	got, err := s.ListActive(ctx, "snippets")
	require.NoError(t, err)
	sort.Strings(got)
	require.Equal(t, []string{"snippets.go", "snippets.py"}, got)
}
