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
	"errors"

	"github.com/ik1ne/keva-sub000/blobstore"
	"github.com/ik1ne/keva-sub000/metastore"
	"github.com/ik1ne/keva-sub000/model"
)

var (
	// ErrNotFound is returned when a key has no active or trashed
	// record. It is also what an effectively-purged key reports: the
	// spec draws no durability distinction between "never existed"
	// and "purged", since a maintenance sweep may not have run yet.
	ErrNotFound = metastore.ErrNotFound

	// ErrAlreadyTrashed is returned by Trash when the key is already
	// in the Trash state.
	ErrAlreadyTrashed = errors.New("keva: key is already trashed")
	// ErrKeyIsTrashed is returned by operations that require an
	// Active key (UpsertText, AddFiles, RemoveFileAt, Touch) when the
	// key is currently trashed.
	ErrKeyIsTrashed = errors.New("keva: key is trashed")
	// ErrNotTrashed is returned by Restore and Purge when the key is
	// not currently in the Trash state.
	ErrNotTrashed = errors.New("keva: key is not trashed")
	// ErrDestinationExists is returned by Rename when overwrite is
	// false and the destination key already has a record.
	ErrDestinationExists = errors.New("keva: destination key already exists")
	// ErrTypeMismatch is returned when an operation expects a
	// different ClipKind than the key currently holds (e.g. AddFiles
	// against a text clip).
	ErrTypeMismatch = errors.New("keva: clip kind mismatch")
	// ErrAttachmentNotFound is returned when an attachment index is
	// out of range for the key's file list.
	ErrAttachmentNotFound = errors.New("keva: attachment not found")
	// ErrCorrupt wraps model.ErrCorruptValue at the Core boundary.
	ErrCorrupt = model.ErrCorruptValue
	// ErrBlobNotFound wraps blobstore.ErrBlobNotFound at the Core
	// boundary.
	ErrBlobNotFound = blobstore.ErrBlobNotFound
)
