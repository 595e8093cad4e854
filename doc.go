// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package keva is the persistence core of a local clipboard and
// snippet manager: a single-threaded, embedded library that owns a
// Metadata Store, a content-addressed blob filesystem, and an
// append-only fuzzy search index behind one Core type. The host
// process owns all threading, OS clipboard polling, and UI; Core only
// reacts to calls made on it.
package keva
