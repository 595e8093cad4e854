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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	dbDirName = "keva.db"

	// DefaultTrashTTL is how long an active clip may sit untouched
	// before it idles into Trash.
	DefaultTrashTTL = 30 * 24 * time.Hour
	// DefaultPurgeTTL is how long a trashed clip survives before it is
	// permanently purged.
	DefaultPurgeTTL = 7 * 24 * time.Hour
	// DefaultInlineThresholdBytes is the largest payload size kept
	// inline in the Metadata Store rather than written to the blob
	// filesystem.
	DefaultInlineThresholdBytes int64 = 1 << 20 // 1 MiB
)

// Config describes where Core stores its data and how its lifecycle
// timers behave. Env: KEVA_BASE_PATH, KEVA_TRASH_TTL, KEVA_PURGE_TTL,
// KEVA_INLINE_THRESHOLD_BYTES (see LoadConfigFromEnv).
type Config struct {
	// BasePath is the directory Core owns entirely: it holds the
	// metadata database, the blob tree, and the inline cache.
	// Env: KEVA_BASE_PATH (required, no default).
	BasePath string `validate:"required"`
	// TrashTTL is how long an Active clip may go unaccessed before it
	// is treated as Trash. Env: KEVA_TRASH_TTL (default: 720h).
	TrashTTL time.Duration `validate:"gt=0"`
	// PurgeTTL is how long a Trash clip survives before it is purged.
	// Env: KEVA_PURGE_TTL (default: 168h).
	PurgeTTL time.Duration `validate:"gt=0"`
	// InlineThresholdBytes is the largest payload kept inline in the
	// Metadata Store. Env: KEVA_INLINE_THRESHOLD_BYTES (default:
	// 1048576).
	InlineThresholdBytes int64 `validate:"gte=0"`
}

// DefaultConfig returns a Config rooted at basePath with the default
// TTLs and inline threshold.
func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:             basePath,
		TrashTTL:             DefaultTrashTTL,
		PurgeTTL:             DefaultPurgeTTL,
		InlineThresholdBytes: DefaultInlineThresholdBytes,
	}
}

// LoadConfigFromEnv builds a Config from the environment, filling in
// defaults for anything unset. KEVA_BASE_PATH is required.
func LoadConfigFromEnv() (Config, error) {
	base := os.Getenv("KEVA_BASE_PATH")
	if base == "" {
		return Config{}, fmt.Errorf("keva: KEVA_BASE_PATH is required")
	}
	cfg := DefaultConfig(base)

	if v := os.Getenv("KEVA_TRASH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("keva: KEVA_TRASH_TTL: %w", err)
		}
		cfg.TrashTTL = d
	}
	if v := os.Getenv("KEVA_PURGE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("keva: KEVA_PURGE_TTL: %w", err)
		}
		cfg.PurgeTTL = d
	}
	if v := os.Getenv("KEVA_INLINE_THRESHOLD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("keva: KEVA_INLINE_THRESHOLD_BYTES: %w", err)
		}
		cfg.InlineThresholdBytes = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports whether cfg's fields satisfy their constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("keva: invalid config: %w", err)
	}
	return nil
}

func (c Config) dbPath() string       { return filepath.Join(c.BasePath, dbDirName) }
func (c Config) blobsBasePath() string { return c.BasePath }
