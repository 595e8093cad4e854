// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "time"

// LifecycleState is the stored lifecycle marker for a Value. The
// effective state seen by callers is computed from this plus the
// configured TTLs at read time; see the keva package's Core.Get.
type LifecycleState int

const (
	// StateActive is the initial and default state for every clip.
	StateActive LifecycleState = iota
	// StateTrash marks a clip as trashed, pending either restore or
	// automatic purge once PurgeTTL elapses.
	StateTrash
)

func (s LifecycleState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateTrash:
		return "trash"
	default:
		return "unknown"
	}
}

// ClipKind discriminates the two closed shapes a clip's payload can
// take. Encoded explicitly so the gob wire format never depends on
// which concrete Go type was registered.
type ClipKind int

const (
	// ClipText is a single string payload (inline or blob-backed).
	ClipText ClipKind = iota
	// ClipFiles is an ordered list of file attachments.
	ClipFiles
)

func (k ClipKind) String() string {
	switch k {
	case ClipText:
		return "text"
	case ClipFiles:
		return "files"
	default:
		return "unknown"
	}
}

// TextContent is the payload of a ClipText clip. When Inline is true
// Text holds the literal content; when false the content lives in the
// blob filesystem at the key's fixed text blob path and Text is empty.
// The blob store leaves ContentHash empty in both cases.
type TextContent struct {
	Inline      bool
	Text        string
	ContentHash string
	SizeBytes   int64
}

// FileEntry describes a single file attachment. Small files are
// Inline (Bytes holds the content); larger ones are blob-backed and
// addressed by ContentHash.
type FileEntry struct {
	Name        string
	Inline      bool
	Bytes       []byte
	ContentHash string
	SizeBytes   int64
}

// ClipData is the tagged union of a clip's content. Exactly one of
// Text or Files is meaningful, selected by Kind.
type ClipData struct {
	Kind  ClipKind
	Text  TextContent
	Files []FileEntry
}

// Value is the full stored record for a single key. Active clips
// track LastAccessed so that long-idle clips can age out to Trash;
// trashed clips track TrashedAt so they can age out to Purge. Only
// the field matching the current State is meaningful.
type Value struct {
	CreatedAt    time.Time
	UpdatedAt    time.Time
	State        LifecycleState
	LastAccessed time.Time // meaningful only when State == StateActive
	TrashedAt    time.Time // meaningful only when State == StateTrash
	Clip         ClipData
}

// stateEffectivelyTrash and stateEffectivelyPurged are internal
// sentinels distinct from the two stored states; neither is ever
// persisted.
const (
	stateEffectivelyTrash  LifecycleState = -1
	stateEffectivelyPurged LifecycleState = -2
)

// EffectiveState computes the lifecycle state visible to callers at
// time now, without mutating the stored value:
//
//   - an Active clip idle for at least trashTTL since LastAccessed is
//     effectively Trash;
//   - a Trash clip older than purgeTTL since TrashedAt is effectively
//     Purged (callers observe it as not-found).
//
// A maintenance sweep later makes these transitions durable; until it
// runs, reads still see the correct state.
func (v Value) EffectiveState(now time.Time, trashTTL, purgeTTL time.Duration) LifecycleState {
	switch v.State {
	case StateActive:
		if !v.LastAccessed.IsZero() && now.Sub(v.LastAccessed) >= trashTTL {
			return stateEffectivelyTrash
		}
		return StateActive
	case StateTrash:
		if !v.TrashedAt.IsZero() && now.Sub(v.TrashedAt) >= purgeTTL {
			return stateEffectivelyPurged
		}
		return StateTrash
	default:
		return v.State
	}
}

// IsEffectivelyPurged reports whether EffectiveState returned the
// purged sentinel.
func IsEffectivelyPurged(s LifecycleState) bool { return s == stateEffectivelyPurged }

// IsEffectivelyTrash reports whether EffectiveState returned the
// idle-active-gone-to-trash sentinel.
func IsEffectivelyTrash(s LifecycleState) bool { return s == stateEffectivelyTrash }
