// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model holds the data types shared by every Keva component:
// the validated Key, the versioned Value and its nested clip payloads.
package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// MaxKeyBytes bounds the UTF-8 byte length of a Key.
const MaxKeyBytes = 256

var (
	// ErrEmptyKey is returned when constructing a Key from an empty string.
	ErrEmptyKey = errors.New("keva: key must not be empty")
	// ErrKeyTooLong is returned when a key exceeds MaxKeyBytes.
	ErrKeyTooLong = errors.New("keva: key exceeds maximum length")
	// ErrKeyHasControlByte is returned when a key contains an ASCII
	// control character or a platform path separator.
	ErrKeyHasControlByte = errors.New("keva: key contains a control byte or path separator")
)

// Key identifies a single clip. It is immutable once constructed and
// the only way to obtain one is through NewKey, which enforces every
// invariant a stored key must satisfy.
type Key struct {
	raw string
}

// NewKey validates s and returns the corresponding Key.
func NewKey(s string) (Key, error) {
	if s == "" {
		return Key{}, ErrEmptyKey
	}
	if len(s) > MaxKeyBytes {
		return Key{}, fmt.Errorf("%w: %d bytes", ErrKeyTooLong, len(s))
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return Key{}, fmt.Errorf("%w: 0x%02x", ErrKeyHasControlByte, r)
		}
		if r == '/' || r == '\\' {
			return Key{}, fmt.Errorf("%w: %q", ErrKeyHasControlByte, r)
		}
	}
	return Key{raw: s}, nil
}

// MustKey panics if s is not a valid key. Intended for tests and
// compile-time-known constants, never for user-supplied input.
func MustKey(s string) Key {
	k, err := NewKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns the key's underlying text.
func (k Key) String() string { return k.raw }

// IsZero reports whether k is the zero Key (never produced by NewKey).
func (k Key) IsZero() bool { return k.raw == "" }

// Bytes returns the UTF-8 encoding of the key, used for ordering and
// for constructing prefixed storage keys.
func (k Key) Bytes() []byte { return []byte(k.raw) }

// Hash returns the lowercase hex-encoded BLAKE3 digest of the key,
// used as the on-disk directory name for the key's blobs.
func (k Key) Hash() string {
	sum := blake3.Sum256(k.Bytes())
	return hex.EncodeToString(sum[:])
}

// HasPrefix reports whether the key's text starts with prefix.
func (k Key) HasPrefix(prefix string) bool {
	return strings.HasPrefix(k.raw, prefix)
}

// Less reports whether k sorts strictly before other in the
// lexicographic byte order the Metadata Store uses for range scans.
func (k Key) Less(other Key) bool { return k.raw < other.raw }
