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
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
)

// valueVersionV1 is the only encoding version Keva currently writes.
// A future incompatible change to Value's shape bumps this and adds
// a case to DecodeValue; existing records keep decoding under their
// original version.
const valueVersionV1 byte = 1

// ErrCorruptValue is returned by DecodeValue when the leading version
// byte is missing, unrecognized, or the payload fails to decode.
var ErrCorruptValue = errors.New("keva: corrupt value record")

// EncodeValue serializes v as a version byte followed by its gob
// encoding. The version byte lets future releases change the payload
// shape without breaking records written by older ones.
func EncodeValue(v Value) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(valueVersionV1)
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("keva: encode value: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return Value{}, fmt.Errorf("%w: empty record", ErrCorruptValue)
	}
	version, payload := data[0], data[1:]
	switch version {
	case valueVersionV1:
		var v Value
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&v); err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrCorruptValue, err)
		}
		return v, nil
	default:
		return Value{}, fmt.Errorf("%w: unknown version %d", ErrCorruptValue, version)
	}
}
