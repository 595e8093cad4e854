// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search is Keva's append-only fuzzy matcher. Each lifecycle
// bucket (active, trash) gets its own index; insertions and removals
// never block, removals are recorded as tombstones until a pending
// deletion count crosses a threshold, and the index only cuts a
// rebuild when crossing that threshold.
package search

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sahilm/fuzzy"
)

const defaultBatchSize = 512

type stringSource []string

func (s stringSource) String(i int) string { return s[i] }
func (s stringSource) Len() int            { return len(s) }

// index is a tombstoned fuzzy index over a single lifecycle bucket.
// A background goroutine performs the actual matching so that calls
// from the host's event loop never block; progress is observed
// through tick and isDone, mirroring the matcher-thread contract
// described for Keva's search engine.
type index struct {
	mu sync.Mutex

	keys       []string
	injected   map[string]bool
	tombstones map[string]bool

	pendingDeletions int
	rebuildThreshold int
	resultLimit      int

	notify func()

	pattern string
	results []string

	hasUpdate atomic.Bool
	finished  atomic.Bool
}

func newIndex(initial []string, rebuildThreshold, resultLimit int, notify func()) *index {
	idx := &index{
		injected:         make(map[string]bool),
		tombstones:       make(map[string]bool),
		rebuildThreshold: rebuildThreshold,
		resultLimit:      resultLimit,
		notify:           notify,
	}
	idx.finished.Store(true)
	for _, k := range initial {
		idx.insert(k)
	}
	return idx
}

func (idx *index) isPresent(key string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.injected[key] && !idx.tombstones[key]
}

// insert adds key, or revives it without re-injecting if it was only
// tombstoned.
func (idx *index) insert(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.injected[key] {
		idx.injected[key] = true
		idx.keys = append(idx.keys, key)
		return
	}
	delete(idx.tombstones, key)
}

func (idx *index) remove(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.injected[key] {
		return
	}
	if !idx.tombstones[key] {
		idx.tombstones[key] = true
		idx.pendingDeletions++
	}
}

func (idx *index) rebuildIfNeeded() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.pendingDeletions <= idx.rebuildThreshold {
		return
	}
	idx.rebuildLocked()
}

func (idx *index) rebuildLocked() {
	surviving := make([]string, 0, len(idx.keys))
	for _, k := range idx.keys {
		if !idx.tombstones[k] {
			surviving = append(surviving, k)
		}
	}
	idx.keys = surviving
	idx.injected = make(map[string]bool, len(surviving))
	for _, k := range surviving {
		idx.injected[k] = true
	}
	idx.tombstones = make(map[string]bool)
	idx.pendingDeletions = 0
}

// setPattern starts a fresh background scan for pattern, reusing the
// previous scan's results as the candidate set when pattern extends
// it — a narrower pattern can only shrink a finished match set, never
// grow it, so rescanning everything would be wasted work.
func (idx *index) setPattern(pattern string) {
	idx.mu.Lock()
	prevPattern := idx.pattern
	prevResults := append([]string(nil), idx.results...)
	prevFinished := idx.finished.Load()

	var candidates []string
	if prevFinished && prevPattern != "" && strings.HasPrefix(pattern, prevPattern) {
		candidates = prevResults
	} else {
		candidates = append([]string(nil), idx.keys...)
	}
	tombstones := make(map[string]bool, len(idx.tombstones))
	for k := range idx.tombstones {
		tombstones[k] = true
	}
	idx.pattern = pattern
	idx.results = nil
	idx.mu.Unlock()

	idx.hasUpdate.Store(false)
	idx.finished.Store(false)

	go idx.scan(pattern, candidates, tombstones)
}

func (idx *index) scan(pattern string, candidates []string, tombstones map[string]bool) {
	var merged []fuzzy.Match
	for start := 0; start < len(candidates); start += defaultBatchSize {
		end := start + defaultBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := stringSource(candidates[start:end])
		if pattern == "" {
			// fuzzy.Find matches nothing for an empty pattern; an empty
			// query matches every candidate instead.
			for i, s := range batch {
				merged = append(merged, fuzzy.Match{Str: s, Index: i})
			}
		} else {
			merged = append(merged, fuzzy.Find(pattern, batch)...)
		}
		sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })

		visible := make([]string, 0, len(merged))
		for _, m := range merged {
			if tombstones[m.Str] {
				continue
			}
			visible = append(visible, m.Str)
			if len(visible) >= idx.resultLimit {
				break
			}
		}

		idx.mu.Lock()
		idx.results = visible
		idx.mu.Unlock()
		idx.hasUpdate.Store(true)
		if idx.notify != nil {
			idx.notify()
		}

		if len(visible) >= idx.resultLimit {
			idx.finished.Store(true)
			return
		}
	}
	idx.finished.Store(true)
}

// tick reports whether results may have changed since the previous
// call, clearing the flag as it reads it.
func (idx *index) tick() bool {
	return idx.hasUpdate.Swap(false)
}

func (idx *index) isDone() bool {
	return idx.finished.Load()
}

func (idx *index) snapshotResults() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]string, 0, len(idx.results))
	for _, r := range idx.results {
		if !idx.tombstones[r] {
			out = append(out, r)
		}
	}
	return out
}
