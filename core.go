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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/ik1ne/keva-sub000/badgerkv"
	"github.com/ik1ne/keva-sub000/blobstore"
	"github.com/ik1ne/keva-sub000/metastore"
	"github.com/ik1ne/keva-sub000/model"
)

// Key is a validated clip identifier. See model.NewKey for the
// constraints it enforces.
type Key = model.Key

// NewKey validates s and returns the corresponding Key.
func NewKey(s string) (Key, error) { return model.NewKey(s) }

// SearchNotifier is the subset of search.Engine's mutation API that
// Core drives on every lifecycle transition. Declared as an interface
// so tests can substitute a recording double instead of a real
// search.Engine.
type SearchNotifier interface {
	AddActive(key string)
	Trash(key string)
	Restore(key string)
	Remove(key string)
	Rename(old, new string)
}

// Clip is the public, read-only view of a stored key, with blob
// references already resolved to the shape a caller needs.
type Clip struct {
	Key          Key
	State        model.LifecycleState
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastAccessed time.Time
	TrashedAt    time.Time
	Kind         model.ClipKind
	Text         string
	FileNames    []string
}

// MaintenanceResult reports what a Maintenance run did.
type MaintenanceResult struct {
	RunID         string
	TrashedCount  int
	PurgedCount   int
	OrphanedBlobs int
}

// Core is the Lifecycle Coordinator: the single entry point that owns
// the Metadata Store and the Blob Filesystem and keeps them
// consistent with each other and with an optionally attached search
// index. Core is not safe for concurrent use from multiple
// goroutines without external synchronization — the host owns all
// threading, matching the single-threaded core spec.md describes.
type Core struct {
	cfg               Config
	meta              *metastore.Store
	blobs             *blobstore.Store
	search            SearchNotifier
	log               *slog.Logger
	tracer            trace.Tracer
	metricsRegisterer prometheus.Registerer
}

// Option configures a Core at construction time.
type Option func(*Core)

// WithLogger attaches a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Core) { c.log = l }
}

// WithTracer attaches an OpenTelemetry tracer used to span write
// transactions and maintenance sweeps. Defaults to a no-op tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Core) { c.tracer = t }
}

// WithSearchEngine attaches a search index that Core keeps in sync on
// every lifecycle transition. Without one, Core still functions —
// search is purely an optimization layered on top of the Metadata
// Store's own key listings.
func WithSearchEngine(s SearchNotifier) Option {
	return func(c *Core) { c.search = s }
}

// WithMetricsRegisterer attaches the Prometheus registry Core's
// internal counters and histograms register into. Defaults to the
// global default registerer.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *Core) { c.metricsRegisterer = reg }
}

// Open validates cfg, creates BasePath's directory layout if needed,
// and opens the Metadata Store and Blob Filesystem beneath it.
func Open(cfg Config, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Core{cfg: cfg, log: slog.Default(), tracer: trace.NewNoopTracerProvider().Tracer("keva")}
	for _, opt := range opts {
		opt(c)
	}
	reg := c.metricsRegisterer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	meta, err := metastore.Open(badgerkv.DefaultConfig(cfg.dbPath()), reg, metastore.WithTracer(c.tracer))
	if err != nil {
		return nil, fmt.Errorf("keva: open metadata store: %w", err)
	}
	blobs, err := blobstore.New(cfg.blobsBasePath(), cfg.InlineThresholdBytes, reg)
	if err != nil {
		meta.Close()
		return nil, fmt.Errorf("keva: open blob filesystem: %w", err)
	}

	c.meta = meta
	c.blobs = blobs
	return c, nil
}

// Close releases the Metadata Store's resources. The blob filesystem
// holds no open handles and needs no explicit close.
func (c *Core) Close() error { return c.meta.Close() }

func (c *Core) notifySearch(fn func(SearchNotifier)) {
	if c.search != nil {
		fn(c.search)
	}
}

// Get returns the current record for key along with its effective
// lifecycle state as of now, without mutating storage. A key whose
// effective state has aged into Purge is reported as ErrNotFound even
// if a maintenance sweep has not yet made that durable.
func (c *Core) Get(ctx context.Context, key Key, now time.Time) (Clip, error) {
	v, err := c.meta.Get(ctx, key.String())
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			return Clip{}, ErrNotFound
		}
		return Clip{}, err
	}

	eff := v.EffectiveState(now, c.cfg.TrashTTL, c.cfg.PurgeTTL)
	if model.IsEffectivelyPurged(eff) {
		return Clip{}, ErrNotFound
	}
	clip := clipFromValue(key, v)
	if model.IsEffectivelyTrash(eff) {
		clip.State = model.StateTrash
	}
	return clip, nil
}

func clipFromValue(key Key, v model.Value) Clip {
	clip := Clip{
		Key:          key,
		State:        v.State,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
		LastAccessed: v.LastAccessed,
		TrashedAt:    v.TrashedAt,
		Kind:         v.Clip.Kind,
	}
	switch v.Clip.Kind {
	case model.ClipText:
		clip.Text = v.Clip.Text.Text
	case model.ClipFiles:
		for _, f := range v.Clip.Files {
			clip.FileNames = append(clip.FileNames, f.Name)
		}
	}
	return clip
}

// UpsertText creates key as a new Active text clip, or overwrites an
// existing Active clip's text. Calling it on a Trash key returns
// ErrKeyIsTrashed; restore first.
func (c *Core) UpsertText(ctx context.Context, key Key, text string, now time.Time) error {
	existing, existed, err := c.currentValue(ctx, key)
	if err != nil {
		return err
	}
	if existed && existing.State == model.StateTrash {
		return ErrKeyIsTrashed
	}
	if existed && existing.Clip.Kind == model.ClipFiles {
		if err := c.removeClipBlobs(key, existing.Clip); err != nil {
			return err
		}
	}

	tc, err := c.blobs.StoreText(key.Hash(), text)
	if err != nil {
		return fmt.Errorf("keva: store text: %w", err)
	}

	v := model.Value{
		CreatedAt:    now,
		UpdatedAt:    now,
		State:        model.StateActive,
		LastAccessed: now,
		Clip:         model.ClipData{Kind: model.ClipText, Text: tc},
	}
	if existed {
		v.CreatedAt = existing.CreatedAt
	}
	if err := c.meta.Put(ctx, key.String(), v); err != nil {
		return err
	}
	c.notifySearch(func(s SearchNotifier) { s.AddActive(key.String()) })
	return nil
}

// AddFiles creates key as a new Active file clip, or appends to an
// existing Active file clip's attachment list, reading each path's
// contents from the local filesystem.
func (c *Core) AddFiles(ctx context.Context, key Key, paths []string, now time.Time) error {
	existing, existed, err := c.currentValue(ctx, key)
	if err != nil {
		return err
	}
	if existed && existing.State == model.StateTrash {
		return ErrKeyIsTrashed
	}
	if existed && existing.Clip.Kind == model.ClipText {
		return ErrTypeMismatch
	}

	entries := existing.Clip.Files
	for _, p := range paths {
		entry, err := c.blobs.StoreFile(key.Hash(), baseName(p), p)
		if err != nil {
			return fmt.Errorf("keva: store file %s: %w", p, err)
		}
		entries = append(entries, entry)
	}

	v := model.Value{
		CreatedAt:    now,
		UpdatedAt:    now,
		State:        model.StateActive,
		LastAccessed: now,
		Clip:         model.ClipData{Kind: model.ClipFiles, Files: entries},
	}
	if existed {
		v.CreatedAt = existing.CreatedAt
	}
	if err := c.meta.Put(ctx, key.String(), v); err != nil {
		return err
	}
	c.notifySearch(func(s SearchNotifier) { s.AddActive(key.String()) })
	return nil
}

// RemoveFileAt removes the attachment at index from key's file list.
// The underlying blob is only deleted from disk when no other
// attachment of this key still references the same content under the
// same name; otherwise the physical file survives for the remaining
// entry.
func (c *Core) RemoveFileAt(ctx context.Context, key Key, index int, now time.Time) error {
	v, existed, err := c.currentValue(ctx, key)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	if v.State == model.StateTrash {
		return ErrKeyIsTrashed
	}
	if v.Clip.Kind != model.ClipFiles {
		return ErrTypeMismatch
	}
	if index < 0 || index >= len(v.Clip.Files) {
		return ErrAttachmentNotFound
	}

	removed := v.Clip.Files[index]
	remaining := append(append([]model.FileEntry{}, v.Clip.Files[:index]...), v.Clip.Files[index+1:]...)
	if !removed.Inline && !fileStillReferenced(remaining, removed) {
		if err := c.blobs.RemoveFile(key.Hash(), removed); err != nil {
			return err
		}
	}
	v.Clip.Files = remaining
	v.UpdatedAt = now
	return c.meta.Put(ctx, key.String(), v)
}

// fileStillReferenced reports whether entries still contains an entry
// backed by the same physical blob as removed (same content hash and
// name, since the blob filesystem files a blob-backed attachment at
// <content hash>/<name>).
func fileStillReferenced(entries []model.FileEntry, removed model.FileEntry) bool {
	for _, e := range entries {
		if !e.Inline && e.ContentHash == removed.ContentHash && e.Name == removed.Name {
			return true
		}
	}
	return false
}

// Touch refreshes key's last-accessed time without otherwise
// mutating it, keeping an Active clip from idling into Trash.
func (c *Core) Touch(ctx context.Context, key Key, now time.Time) error {
	v, existed, err := c.currentValue(ctx, key)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	if v.State == model.StateTrash {
		return ErrKeyIsTrashed
	}
	v.LastAccessed = now
	return c.meta.Put(ctx, key.String(), v)
}

// Trash moves an Active key into the Trash state.
func (c *Core) Trash(ctx context.Context, key Key, now time.Time) error {
	v, existed, err := c.currentValue(ctx, key)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	if v.State == model.StateTrash {
		return ErrAlreadyTrashed
	}
	v.State = model.StateTrash
	v.TrashedAt = now
	v.UpdatedAt = now
	if err := c.meta.Put(ctx, key.String(), v); err != nil {
		return err
	}
	c.notifySearch(func(s SearchNotifier) { s.Trash(key.String()) })
	return nil
}

// Restore moves a Trash key back into the Active state.
func (c *Core) Restore(ctx context.Context, key Key, now time.Time) error {
	v, existed, err := c.currentValue(ctx, key)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	if v.State != model.StateTrash {
		return ErrNotTrashed
	}
	v.State = model.StateActive
	v.LastAccessed = now
	v.TrashedAt = time.Time{}
	v.UpdatedAt = now
	if err := c.meta.Put(ctx, key.String(), v); err != nil {
		return err
	}
	c.notifySearch(func(s SearchNotifier) { s.Restore(key.String()) })
	return nil
}

// Purge permanently deletes a Trash key and every blob it references.
// Purge refuses to act on an Active key: trash it first.
func (c *Core) Purge(ctx context.Context, key Key) error {
	v, existed, err := c.currentValue(ctx, key)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	if v.State != model.StateTrash {
		return ErrNotTrashed
	}
	if err := c.removeClipBlobs(key, v.Clip); err != nil {
		return err
	}
	if err := c.blobs.RemoveAll(key.Hash()); err != nil {
		return err
	}
	if err := c.meta.Delete(ctx, key.String()); err != nil {
		return err
	}
	c.notifySearch(func(s SearchNotifier) { s.Remove(key.String()) })
	return nil
}

func (c *Core) removeClipBlobs(key Key, clip model.ClipData) error {
	switch clip.Kind {
	case model.ClipText:
		return c.blobs.RemoveText(key.Hash(), clip.Text)
	case model.ClipFiles:
		for _, f := range clip.Files {
			if err := c.blobs.RemoveFile(key.Hash(), f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rename moves a key's record (and its blob directory) from src to
// dst. When overwrite is false, an existing dst record is rejected
// with ErrDestinationExists before any other check.
func (c *Core) Rename(ctx context.Context, src, dst Key, overwrite bool, now time.Time) error {
	if _, dstExists, err := c.currentValue(ctx, dst); err != nil {
		return err
	} else if dstExists && !overwrite {
		return ErrDestinationExists
	}

	v, existed, err := c.currentValue(ctx, src)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}

	if dstExisting, dstExists, err := c.currentValue(ctx, dst); err != nil {
		return err
	} else if dstExists && overwrite {
		if err := c.removeClipBlobs(dst, dstExisting.Clip); err != nil {
			return err
		}
		if err := c.blobs.RemoveAll(dst.Hash()); err != nil {
			return err
		}
	}

	if err := c.relocateBlobs(src, dst, &v.Clip); err != nil {
		return err
	}
	v.UpdatedAt = now
	if err := c.meta.Put(ctx, dst.String(), v); err != nil {
		return err
	}
	if err := c.meta.Delete(ctx, src.String()); err != nil {
		return err
	}
	c.notifySearch(func(s SearchNotifier) { s.Rename(src.String(), dst.String()) })
	return nil
}

// relocateBlobs moves every blob-backed payload referenced by clip
// from src's key-hash directory to dst's, since blobs are addressed
// by key hash.
func (c *Core) relocateBlobs(src, dst Key, clip *model.ClipData) error {
	switch clip.Kind {
	case model.ClipText:
		if clip.Text.Inline {
			return nil
		}
		return c.blobs.RehomeText(src.Hash(), dst.Hash())
	case model.ClipFiles:
		for i := range clip.Files {
			if clip.Files[i].Inline {
				continue
			}
			if err := c.blobs.RehomeFile(src.Hash(), dst.Hash(), clip.Files[i].ContentHash); err != nil {
				return err
			}
		}
	}
	return nil
}

// ActiveKeys returns every Active key.
func (c *Core) ActiveKeys(ctx context.Context) ([]Key, error) {
	raw, err := c.meta.ActiveKeys(ctx)
	if err != nil {
		return nil, err
	}
	return toKeys(raw), nil
}

// TrashedKeys returns every Trash key.
func (c *Core) TrashedKeys(ctx context.Context) ([]Key, error) {
	raw, err := c.meta.TrashedKeys(ctx)
	if err != nil {
		return nil, err
	}
	return toKeys(raw), nil
}

// ListActive returns Active keys whose text starts with prefix.
func (c *Core) ListActive(ctx context.Context, prefix string) ([]Key, error) {
	raw, err := c.meta.ListActive(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return toKeys(raw), nil
}

// ListTrashed returns Trash keys whose text starts with prefix.
func (c *Core) ListTrashed(ctx context.Context, prefix string) ([]Key, error) {
	raw, err := c.meta.ListTrashed(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return toKeys(raw), nil
}

func toKeys(raw []string) []Key {
	keys := make([]Key, 0, len(raw))
	for _, r := range raw {
		if k, err := model.NewKey(r); err == nil {
			keys = append(keys, k)
		}
	}
	return keys
}

// ContentPath returns a real filesystem path to key's text content,
// materializing it into the inline cache on demand if it is stored
// inline. It returns ErrTypeMismatch for a file clip.
func (c *Core) ContentPath(ctx context.Context, key Key) (string, error) {
	v, existed, err := c.currentValue(ctx, key)
	if err != nil {
		return "", err
	}
	if !existed {
		return "", ErrNotFound
	}
	if v.Clip.Kind != model.ClipText {
		return "", ErrTypeMismatch
	}
	return c.blobs.EnsureTextPath(key.Hash(), v.Clip.Text)
}

// AttachmentPath returns a real filesystem path to the attachment at
// index in key's file list, materializing it on demand if inline.
func (c *Core) AttachmentPath(ctx context.Context, key Key, index int) (string, error) {
	v, existed, err := c.currentValue(ctx, key)
	if err != nil {
		return "", err
	}
	if !existed {
		return "", ErrNotFound
	}
	if v.Clip.Kind != model.ClipFiles {
		return "", ErrTypeMismatch
	}
	if index < 0 || index >= len(v.Clip.Files) {
		return "", ErrAttachmentNotFound
	}
	return c.blobs.EnsureFilePath(key.Hash(), v.Clip.Files[index])
}

// currentValue fetches key's stored record and reports whether it
// exists, translating ErrNotFound into (zero, false, nil) so callers
// can branch once instead of wrapping every call in errors.Is.
func (c *Core) currentValue(ctx context.Context, key Key) (model.Value, bool, error) {
	v, err := c.meta.Get(ctx, key.String())
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			return model.Value{}, false, nil
		}
		return model.Value{}, false, err
	}
	return v, true, nil
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

// Maintenance runs one full sweep: idle Active clips age into Trash,
// aged Trash clips are purged, orphaned blob directories are
// reclaimed, and the attached search index is compacted. The core is
// not itself a concurrent system, so the three passes run one after
// another in a fixed order rather than fanning out.
func (c *Core) Maintenance(ctx context.Context, now time.Time) (MaintenanceResult, error) {
	result := MaintenanceResult{RunID: uuid.NewString()}
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "keva.Maintenance")
		defer span.End()
	}
	c.log.Info("maintenance run starting", slog.String("run_id", result.RunID))

	trashed, err := c.sweepActiveToTrash(ctx, now)
	result.TrashedCount = trashed
	if err != nil {
		return result, fmt.Errorf("keva: maintenance: %w", err)
	}

	purged, err := c.sweepTrashToPurge(ctx, now)
	result.PurgedCount = purged
	if err != nil {
		return result, fmt.Errorf("keva: maintenance: %w", err)
	}

	orphaned, err := c.reclaimOrphanBlobs(ctx)
	result.OrphanedBlobs = orphaned
	if err != nil {
		return result, fmt.Errorf("keva: maintenance: %w", err)
	}

	if c.search != nil {
		if compactor, ok := c.search.(interface{ MaintenanceCompact() }); ok {
			compactor.MaintenanceCompact()
		}
	}

	c.log.Info("maintenance run finished",
		slog.String("run_id", result.RunID),
		slog.Int("trashed", result.TrashedCount),
		slog.Int("purged", result.PurgedCount),
		slog.Int("orphaned_blobs", result.OrphanedBlobs),
	)
	return result, nil
}

func (c *Core) sweepActiveToTrash(ctx context.Context, now time.Time) (int, error) {
	keys, err := c.meta.ExpiredActiveKeys(ctx, now, c.cfg.TrashTTL)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, raw := range keys {
		key, err := model.NewKey(raw)
		if err != nil {
			continue
		}
		v, existed, err := c.currentValue(ctx, key)
		if err != nil {
			return count, err
		}
		if !existed || v.State != model.StateActive {
			continue
		}
		v.State = model.StateTrash
		v.TrashedAt = now
		v.UpdatedAt = now
		if err := c.meta.Put(ctx, raw, v); err != nil {
			return count, err
		}
		c.notifySearch(func(s SearchNotifier) { s.Trash(raw) })
		count++
	}
	return count, nil
}

func (c *Core) sweepTrashToPurge(ctx context.Context, now time.Time) (int, error) {
	keys, err := c.meta.ExpiredTrashKeys(ctx, now, c.cfg.PurgeTTL)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, raw := range keys {
		key, err := model.NewKey(raw)
		if err != nil {
			continue
		}
		v, existed, err := c.currentValue(ctx, key)
		if err != nil {
			return count, err
		}
		if !existed || v.State != model.StateTrash {
			continue
		}
		if err := c.removeClipBlobs(key, v.Clip); err != nil {
			return count, err
		}
		if err := c.blobs.RemoveAll(key.Hash()); err != nil {
			return count, err
		}
		if err := c.meta.Delete(ctx, raw); err != nil {
			return count, err
		}
		c.notifySearch(func(s SearchNotifier) { s.Remove(raw) })
		count++
	}
	return count, nil
}

func (c *Core) reclaimOrphanBlobs(ctx context.Context) (int, error) {
	dirs, err := c.blobs.ListKeyHashDirectories()
	if err != nil {
		return 0, err
	}
	live := make(map[string]bool)
	active, err := c.meta.ActiveKeys(ctx)
	if err != nil {
		return 0, err
	}
	trashed, err := c.meta.TrashedKeys(ctx)
	if err != nil {
		return 0, err
	}
	for _, raw := range active {
		if k, err := model.NewKey(raw); err == nil {
			live[k.Hash()] = true
		}
	}
	for _, raw := range trashed {
		if k, err := model.NewKey(raw); err == nil {
			live[k.Hash()] = true
		}
	}

	count := 0
	for _, dir := range dirs {
		if live[dir] {
			continue
		}
		if err := c.blobs.RemoveAll(dir); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
