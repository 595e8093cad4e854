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

// Config tunes an Engine's two lifecycle buckets.
type Config struct {
	// RebuildThreshold is how many pending tombstones a bucket
	// tolerates before compacting them away.
	RebuildThreshold int
	// ActiveResultLimit bounds how many active matches a query keeps.
	ActiveResultLimit int
	// TrashedResultLimit bounds how many trashed matches a query keeps.
	TrashedResultLimit int
}

// DefaultConfig returns reasonable defaults for an interactive
// clipboard-sized corpus.
func DefaultConfig() Config {
	return Config{
		RebuildThreshold:   64,
		ActiveResultLimit:  200,
		TrashedResultLimit: 200,
	}
}

// Engine is Keva's fuzzy search surface: two independent indexes, one
// per lifecycle bucket, kept consistent with the Metadata Store by
// the Lifecycle Coordinator calling the mutation methods below on
// every state transition.
type Engine struct {
	active *index
	trash  *index
}

// NewEngine builds an Engine seeded with the currently active and
// trashed keys. notify is invoked (possibly from a background
// goroutine) whenever a query's visible results may have changed; the
// host is expected to call Tick soon after to collect them.
func NewEngine(activeKeys, trashedKeys []string, cfg Config, notify func()) *Engine {
	return &Engine{
		active: newIndex(activeKeys, cfg.RebuildThreshold, cfg.ActiveResultLimit, notify),
		trash:  newIndex(trashedKeys, cfg.RebuildThreshold, cfg.TrashedResultLimit, notify),
	}
}

// AddActive inserts key into the active bucket, removing it from
// trash first in case it was previously trashed.
func (e *Engine) AddActive(key string) {
	e.trash.remove(key)
	e.active.insert(key)
}

// Trash moves key from the active bucket to the trash bucket.
func (e *Engine) Trash(key string) {
	e.active.remove(key)
	e.trash.insert(key)
}

// Restore moves key from the trash bucket back to the active bucket.
func (e *Engine) Restore(key string) {
	e.trash.remove(key)
	e.active.insert(key)
}

// Remove drops key from both buckets entirely, used on purge.
func (e *Engine) Remove(key string) {
	e.active.remove(key)
	e.trash.remove(key)
}

// Rename moves oldKey to newKey within whichever bucket oldKey
// currently occupies.
func (e *Engine) Rename(oldKey, newKey string) {
	if e.active.isPresent(oldKey) {
		e.active.remove(oldKey)
		e.active.insert(newKey)
		return
	}
	if e.trash.isPresent(oldKey) {
		e.trash.remove(oldKey)
		e.trash.insert(newKey)
	}
}

// SetQuery starts a fresh match against pattern in both buckets.
func (e *Engine) SetQuery(pattern string) {
	e.active.setPattern(pattern)
	e.trash.setPattern(pattern)
}

// Tick reports whether either bucket's visible results may have
// changed since the last call. It never blocks.
func (e *Engine) Tick() bool {
	activeChanged := e.active.tick()
	trashChanged := e.trash.tick()
	return activeChanged || trashChanged
}

// IsDone reports whether both buckets have finished processing the
// current query.
func (e *Engine) IsDone() bool {
	return e.active.isDone() && e.trash.isDone()
}

// ActiveResults returns the current best matches among active keys.
func (e *Engine) ActiveResults() []string { return e.active.snapshotResults() }

// TrashedResults returns the current best matches among trashed keys.
func (e *Engine) TrashedResults() []string { return e.trash.snapshotResults() }

// HasActive reports whether key is present (and not tombstoned) in
// the active bucket.
func (e *Engine) HasActive(key string) bool { return e.active.isPresent(key) }

// HasTrashed reports whether key is present (and not tombstoned) in
// the trash bucket.
func (e *Engine) HasTrashed(key string) bool { return e.trash.isPresent(key) }

// HasKey reports whether key is tracked in either bucket.
func (e *Engine) HasKey(key string) bool { return e.HasActive(key) || e.HasTrashed(key) }

// MaintenanceCompact rebuilds whichever buckets have crossed their
// tombstone threshold, reclaiming the memory held by removed keys.
func (e *Engine) MaintenanceCompact() {
	e.active.rebuildIfNeeded()
	e.trash.rebuildIfNeeded()
}
