// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.Tick()
		if e.IsDone() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("engine did not finish query within deadline")
}

func TestEngine_SetQuery_FindsMatchingActiveKeys(t *testing.T) {
	e := NewEngine([]string{"alpha.go", "beta.go", "gamma.txt"}, nil, DefaultConfig(), nil)
	e.SetQuery("alp")
	waitDone(t, e)

	results := e.ActiveResults()
	require.Contains(t, results, "alpha.go")
	require.NotContains(t, results, "gamma.txt")
}

func TestEngine_TrashThenRestore(t *testing.T) {
	notified := make(chan struct{}, 16)
	notify := func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	}
	e := NewEngine([]string{"notes.md"}, nil, DefaultConfig(), notify)
	require.True(t, e.HasActive("notes.md"))

	e.Trash("notes.md")
	require.False(t, e.HasActive("notes.md"))
	require.True(t, e.HasTrashed("notes.md"))

	e.Restore("notes.md")
	require.True(t, e.HasActive("notes.md"))
	require.False(t, e.HasTrashed("notes.md"))
}

func TestEngine_Remove_DropsFromBothBuckets(t *testing.T) {
	e := NewEngine([]string{"key-a"}, nil, DefaultConfig(), nil)
	e.Trash("key-a")
	e.Remove("key-a")
	require.False(t, e.HasKey("key-a"))
}

func TestEngine_Rename_PreservesBucket(t *testing.T) {
	e := NewEngine(nil, []string{"old-name"}, DefaultConfig(), nil)
	e.Rename("old-name", "new-name")
	require.True(t, e.HasTrashed("new-name"))
	require.False(t, e.HasTrashed("old-name"))
}

func TestEngine_ReinsertRevivesTombstone(t *testing.T) {
	e := NewEngine([]string{"revive-me"}, nil, DefaultConfig(), nil)
	e.Trash("revive-me")
	require.False(t, e.HasActive("revive-me"))
	e.AddActive("revive-me")
	require.True(t, e.HasActive("revive-me"))
}

func TestIndex_MaintenanceCompact_ClearsPendingDeletions(t *testing.T) {
	idx := newIndex([]string{"a", "b", "c"}, 1, 10, nil)
	idx.remove("a")
	idx.remove("b")
	require.Equal(t, 2, idx.pendingDeletions)

	idx.rebuildIfNeeded()
	require.Equal(t, 0, idx.pendingDeletions)
	require.Equal(t, []string{"c"}, idx.keys)
}

func TestEngine_EmptyQueryMatchesEverything(t *testing.T) {
	e := NewEngine([]string{"one", "two", "three"}, nil, DefaultConfig(), nil)
	e.SetQuery("")
	waitDone(t, e)
	require.Len(t, e.ActiveResults(), 3)
}
