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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeValue_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	v := Value{
		CreatedAt: now,
		UpdatedAt: now,
		State:     StateActive,
		Clip: ClipData{
			Kind: ClipText,
			Text: TextContent{Inline: true, Text: "hello world", SizeBytes: 11},
		},
	}

	encoded, err := EncodeValue(v)
	require.NoError(t, err)
	require.Equal(t, valueVersionV1, encoded[0])

	decoded, err := DecodeValue(encoded)
	require.NoError(t, err)
	require.Equal(t, v.State, decoded.State)
	require.Equal(t, v.Clip.Text.Text, decoded.Clip.Text.Text)
	require.True(t, v.CreatedAt.Equal(decoded.CreatedAt))
}

func TestEncodeDecodeValue_RoundTripFiles(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	v := Value{
		CreatedAt: now,
		UpdatedAt: now,
		State:     StateTrash,
		TrashedAt: now,
		Clip: ClipData{
			Kind: ClipFiles,
			Files: []FileEntry{
				{Name: "a.txt", Inline: true, Bytes: []byte("hi")},
				{Name: "b.bin", Inline: false, ContentHash: "deadbeef", SizeBytes: 4096},
			},
		},
	}

	encoded, err := EncodeValue(v)
	require.NoError(t, err)

	decoded, err := DecodeValue(encoded)
	require.NoError(t, err)
	require.Equal(t, StateTrash, decoded.State)
	require.Len(t, decoded.Clip.Files, 2)
	require.Equal(t, "b.bin", decoded.Clip.Files[1].Name)
	require.Equal(t, "deadbeef", decoded.Clip.Files[1].ContentHash)
}

func TestDecodeValue_RejectsEmpty(t *testing.T) {
	_, err := DecodeValue(nil)
	require.ErrorIs(t, err, ErrCorruptValue)
}

func TestDecodeValue_RejectsUnknownVersion(t *testing.T) {
	_, err := DecodeValue([]byte{0xff, 0x00})
	require.ErrorIs(t, err, ErrCorruptValue)
}

func TestDecodeValue_RejectsTruncatedPayload(t *testing.T) {
	encoded, err := EncodeValue(Value{})
	require.NoError(t, err)
	_, err = DecodeValue(encoded[:len(encoded)-2])
	require.ErrorIs(t, err, ErrCorruptValue)
}

func TestValue_EffectiveState(t *testing.T) {
	now := time.Now()
	trashTTL := 24 * time.Hour
	purgeTTL := 24 * time.Hour

	active := Value{State: StateActive, LastAccessed: now}
	require.Equal(t, StateActive, active.EffectiveState(now, trashTTL, purgeTTL))

	idleActive := Value{State: StateActive, LastAccessed: now.Add(-48 * time.Hour)}
	require.True(t, IsEffectivelyTrash(idleActive.EffectiveState(now, trashTTL, purgeTTL)))

	freshTrash := Value{State: StateTrash, TrashedAt: now.Add(-time.Hour)}
	require.Equal(t, StateTrash, freshTrash.EffectiveState(now, trashTTL, purgeTTL))

	stalePurge := Value{State: StateTrash, TrashedAt: now.Add(-48 * time.Hour)}
	require.True(t, IsEffectivelyPurged(stalePurge.EffectiveState(now, trashTTL, purgeTTL)))
}
