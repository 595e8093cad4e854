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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewKey_RejectsEmpty(t *testing.T) {
	_, err := NewKey("")
	require.ErrorIs(t, err, ErrEmptyKey)
}

func TestNewKey_RejectsTooLong(t *testing.T) {
	_, err := NewKey(strings.Repeat("a", MaxKeyBytes+1))
	require.ErrorIs(t, err, ErrKeyTooLong)
}

func TestNewKey_RejectsControlBytes(t *testing.T) {
	for _, s := range []string{"a\x00b", "a\nb", "a\x7fb"} {
		_, err := NewKey(s)
		require.ErrorIsf(t, err, ErrKeyHasControlByte, "input %q", s)
	}
}

func TestNewKey_RejectsPathSeparators(t *testing.T) {
	for _, s := range []string{"a/b", "a\\b"} {
		_, err := NewKey(s)
		require.ErrorIsf(t, err, ErrKeyHasControlByte, "input %q", s)
	}
}

func TestNewKey_AcceptsOrdinaryText(t *testing.T) {
	k, err := NewKey("snippets.go-template")
	require.NoError(t, err)
	require.Equal(t, "snippets.go-template", k.String())
}

func TestKey_HashIsDeterministicAndDistinct(t *testing.T) {
	a := MustKey("alpha")
	b := MustKey("beta")
	require.Len(t, a.Hash(), 64)
	require.Equal(t, a.Hash(), MustKey("alpha").Hash())
	require.NotEqual(t, a.Hash(), b.Hash())
}

func TestKey_Less(t *testing.T) {
	require.True(t, MustKey("a").Less(MustKey("b")))
	require.False(t, MustKey("b").Less(MustKey("a")))
}

func TestKey_HasPrefix(t *testing.T) {
	require.True(t, MustKey("snippets.go").HasPrefix("snippets"))
}
