// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package keva

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ik1ne/keva-sub000/model"
)

// epoch anchors every deterministic test below to a fixed instant so
// that ages and TTL boundaries never depend on the wall clock.
var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func openTestCore(t *testing.T) *Core {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	core, err := Open(cfg, WithMetricsRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, core.Close()) })
	return core
}

func TestCore_UpsertTextThenGet(t *testing.T) {
	core := openTestCore(t)
	ctx := context.Background()
	key := MustKeyForTest(t, "snippet-1")

	require.NoError(t, core.UpsertText(ctx, key, "hello world", epoch))

	clip, err := core.Get(ctx, key, epoch.Add(1000*time.Second))
	require.NoError(t, err)
	require.Equal(t, "hello world", clip.Text)
	require.Equal(t, model.StateActive, clip.State)
}

func TestCore_Get_MissingKey(t *testing.T) {
	core := openTestCore(t)
	key := MustKeyForTest(t, "missing")

	_, err := core.Get(context.Background(), key, epoch)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCore_TrashThenRestore(t *testing.T) {
	core := openTestCore(t)
	ctx := context.Background()
	key := MustKeyForTest(t, "snippet-1")
	require.NoError(t, core.UpsertText(ctx, key, "content", epoch))

	require.NoError(t, core.Trash(ctx, key, epoch.Add(time.Minute)))
	err := core.UpsertText(ctx, key, "should fail", epoch.Add(2*time.Minute))
	require.ErrorIs(t, err, ErrKeyIsTrashed)

	require.NoError(t, core.Restore(ctx, key, epoch.Add(3*time.Minute)))
	clip, err := core.Get(ctx, key, epoch.Add(4*time.Minute))
	require.NoError(t, err)
	require.Equal(t, model.StateActive, clip.State)
}

func TestCore_Trash_AlreadyTrashed(t *testing.T) {
	core := openTestCore(t)
	ctx := context.Background()
	key := MustKeyForTest(t, "snippet-1")
	require.NoError(t, core.UpsertText(ctx, key, "content", epoch))
	require.NoError(t, core.Trash(ctx, key, epoch.Add(time.Minute)))

	err := core.Trash(ctx, key, epoch.Add(2*time.Minute))
	require.ErrorIs(t, err, ErrAlreadyTrashed)
}

func TestCore_Purge_RequiresTrashedFirst(t *testing.T) {
	core := openTestCore(t)
	ctx := context.Background()
	key := MustKeyForTest(t, "snippet-1")
	require.NoError(t, core.UpsertText(ctx, key, "content", epoch))

	err := core.Purge(ctx, key)
	require.ErrorIs(t, err, ErrNotTrashed)

	require.NoError(t, core.Trash(ctx, key, epoch.Add(time.Minute)))
	require.NoError(t, core.Purge(ctx, key))

	_, err = core.Get(ctx, key, epoch.Add(2*time.Minute))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCore_AddFiles_RejectsOnTextClip(t *testing.T) {
	core := openTestCore(t)
	ctx := context.Background()
	key := MustKeyForTest(t, "snippet-1")
	require.NoError(t, core.UpsertText(ctx, key, "content", epoch))

	err := core.AddFiles(ctx, key, []string{"/nonexistent/doesnotmatter"}, epoch.Add(time.Minute))
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestCore_AddFilesThenRemoveFileAt(t *testing.T) {
	core := openTestCore(t)
	ctx := context.Background()
	key := MustKeyForTest(t, "attachments")

	srcPath := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("payload"), 0o644))

	require.NoError(t, core.AddFiles(ctx, key, []string{srcPath}, epoch))
	clip, err := core.Get(ctx, key, epoch.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, clip.FileNames)

	require.NoError(t, core.RemoveFileAt(ctx, key, 0, epoch.Add(2*time.Minute)))
	clip, err = core.Get(ctx, key, epoch.Add(3*time.Minute))
	require.NoError(t, err)
	require.Empty(t, clip.FileNames)
}

// TestCore_AddFiles_RemovingOneSharedAttachmentKeepsTheOther exercises
// the §8 scenario where two different filenames attached to the same
// key share identical content: removing one must not take the other's
// backing blob with it.
func TestCore_AddFiles_RemovingOneSharedAttachmentKeepsTheOther(t *testing.T) {
	core := openTestCore(t)
	ctx := context.Background()
	key := MustKeyForTest(t, "shared-content")

	pathA := filepath.Join(t.TempDir(), "a.txt")
	pathB := filepath.Join(t.TempDir(), "b.txt")
	require.NoError(t, os.WriteFile(pathA, []byte("identical payload"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("identical payload"), 0o644))

	require.NoError(t, core.AddFiles(ctx, key, []string{pathA, pathB}, epoch))

	require.NoError(t, core.RemoveFileAt(ctx, key, 0, epoch.Add(time.Minute)))

	clip, err := core.Get(ctx, key, epoch.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, []string{"b.txt"}, clip.FileNames)

	path, err := core.AttachmentPath(ctx, key, 0)
	require.NoError(t, err)
	require.FileExists(t, path)
}

func TestCore_Rename_MovesRecordAndRejectsCollision(t *testing.T) {
	core := openTestCore(t)
	ctx := context.Background()
	src := MustKeyForTest(t, "old-name")
	dst := MustKeyForTest(t, "new-name")
	require.NoError(t, core.UpsertText(ctx, src, "content", epoch))
	require.NoError(t, core.UpsertText(ctx, dst, "other content", epoch))

	err := core.Rename(ctx, src, dst, false, epoch.Add(time.Minute))
	require.ErrorIs(t, err, ErrDestinationExists)

	require.NoError(t, core.Rename(ctx, src, dst, true, epoch.Add(2*time.Minute)))
	_, err = core.Get(ctx, src, epoch.Add(3*time.Minute))
	require.ErrorIs(t, err, ErrNotFound)

	clip, err := core.Get(ctx, dst, epoch.Add(4*time.Minute))
	require.NoError(t, err)
	require.Equal(t, "content", clip.Text)
}

func TestCore_Maintenance_TrashesIdleAndPurgesOld(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.TrashTTL = time.Hour
	cfg.PurgeTTL = time.Hour
	core, err := Open(cfg, WithMetricsRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, core.Close()) })

	ctx := context.Background()
	idleKey := MustKeyForTest(t, "idle")
	require.NoError(t, core.UpsertText(ctx, idleKey, "idle content", epoch))

	now := epoch.Add(2 * time.Hour)
	result, err := core.Maintenance(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, result.TrashedCount)

	clip, err := core.Get(ctx, idleKey, now)
	require.NoError(t, err)
	require.Equal(t, model.StateTrash, clip.State)

	later := now.Add(2 * time.Hour)
	result, err = core.Maintenance(ctx, later)
	require.NoError(t, err)
	require.Equal(t, 1, result.PurgedCount)

	_, err = core.Get(ctx, idleKey, later)
	require.ErrorIs(t, err, ErrNotFound)
}

// TestCore_Maintenance_TrashTTLBoundary pins the exact instant a Trash
// sweep fires: idle for precisely trashTTL trashes the clip, idle for
// one nanosecond less does not.
func TestCore_Maintenance_TrashTTLBoundary(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.TrashTTL = time.Hour
	cfg.PurgeTTL = time.Hour
	core, err := Open(cfg, WithMetricsRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, core.Close()) })

	ctx := context.Background()
	key := MustKeyForTest(t, "boundary")
	require.NoError(t, core.UpsertText(ctx, key, "content", epoch))

	justUnder := epoch.Add(cfg.TrashTTL - time.Nanosecond)
	result, err := core.Maintenance(ctx, justUnder)
	require.NoError(t, err)
	require.Equal(t, 0, result.TrashedCount)

	atBoundary := epoch.Add(cfg.TrashTTL)
	result, err = core.Maintenance(ctx, atBoundary)
	require.NoError(t, err)
	require.Equal(t, 1, result.TrashedCount)
}

// MustKeyForTest is a thin wrapper over NewKey for table-free tests.
func MustKeyForTest(t *testing.T, s string) Key {
	t.Helper()
	k, err := NewKey(s)
	require.NoError(t, err)
	return k
}
