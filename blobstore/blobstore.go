// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package blobstore is Keva's content-addressed blob filesystem.
// Small payloads are kept inline in the Metadata Store; payloads above
// the configured threshold are written to disk under the key's
// directory: text at a fixed text.txt, file attachments under a
// BLAKE3-derived content-hash directory.
// Filesystem layout and directory-hygiene primitives (os, path/filepath,
// io) have no third-party substitute in the reference pack — every
// example repo that touches local files does so the same way.
package blobstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zeebo/blake3"

	"github.com/ik1ne/keva-sub000/model"
)

const (
	blobsDirName       = "blobs"
	inlineCacheDirName = "inline-cache"

	// textBlobName is the fixed filename a blob-backed text payload is
	// stored under. A key holds at most one text payload, so naming it
	// by a fixed name avoids hashing the text just to name its file.
	textBlobName = "text.txt"
)

var (
	// ErrBlobNotFound is returned when a referenced content hash has
	// no corresponding file on disk.
	ErrBlobNotFound = errors.New("keva: blob not found")
	// ErrSourceIsDirectory is returned when StoreFile is pointed at a
	// directory instead of a regular file.
	ErrSourceIsDirectory = errors.New("keva: source path is a directory")
)

// Store manages the on-disk blob tree rooted at a base path.
type Store struct {
	blobsPath       string
	inlineCachePath string
	inlineThreshold int64

	bytesWritten prometheus.Counter
	blobsRemoved prometheus.Counter
}

// New returns a Store rooted at basePath. inlineThresholdBytes is the
// largest payload size kept inline by callers; the store itself only
// decides inline-vs-blob when asked via StoreFile/StoreText.
func New(basePath string, inlineThresholdBytes int64, reg prometheus.Registerer) (*Store, error) {
	s := &Store{
		blobsPath:       filepath.Join(basePath, blobsDirName),
		inlineCachePath: filepath.Join(basePath, inlineCacheDirName),
		inlineThreshold: inlineThresholdBytes,
		bytesWritten: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "keva",
			Subsystem: "blobstore",
			Name:      "bytes_written_total",
		}),
		blobsRemoved: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "keva",
			Subsystem: "blobstore",
			Name:      "blobs_removed_total",
		}),
	}
	if err := os.MkdirAll(s.blobsPath, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create blobs dir: %w", err)
	}
	if err := os.MkdirAll(s.inlineCachePath, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create inline-cache dir: %w", err)
	}
	return s, nil
}

func contentHash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// keyDir is the key-hash directory a key's blobs live under:
// blobs/<key_hash>/.
func (s *Store) keyDir(keyHash string) string {
	return filepath.Join(s.blobsPath, keyHash)
}

// textBlobPath is the fixed location of a key's blob-backed text
// payload: blobs/<key_hash>/text.txt.
func (s *Store) textBlobPath(keyHash string) string {
	return filepath.Join(s.keyDir(keyHash), textBlobName)
}

// fileBlobDir is the content-hash directory a file attachment's
// physical copy lives under: blobs/<key_hash>/<content_hash>/. Two
// attachments with different names but identical content share this
// directory but not a file within it.
func (s *Store) fileBlobDir(keyHash, hash string) string {
	return filepath.Join(s.keyDir(keyHash), hash)
}

// fileBlobPath is a file attachment's physical location:
// blobs/<key_hash>/<content_hash>/<name>.
func (s *Store) fileBlobPath(keyHash, hash, name string) string {
	return filepath.Join(s.fileBlobDir(keyHash, hash), name)
}

// StoreText persists text under keyHash, inlining it when it fits
// under the configured threshold and otherwise writing it to the
// fixed blob path for keyHash's text.
func (s *Store) StoreText(keyHash, text string) (model.TextContent, error) {
	size := int64(len(text))
	if size <= s.inlineThreshold {
		return model.TextContent{Inline: true, Text: text, SizeBytes: size}, nil
	}
	if err := os.MkdirAll(s.keyDir(keyHash), 0o755); err != nil {
		return model.TextContent{}, fmt.Errorf("blobstore: mkdir %s: %w", s.keyDir(keyHash), err)
	}
	path := s.textBlobPath(keyHash)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return model.TextContent{}, fmt.Errorf("blobstore: write %s: %w", path, err)
	}
	s.bytesWritten.Add(float64(size))
	return model.TextContent{Inline: false, SizeBytes: size}, nil
}

// StoreFile reads sourcePath and persists its content under keyHash,
// inlining it when it fits under the configured threshold and
// otherwise writing it to blobs/<key_hash>/<content_hash>/<name>.
func (s *Store) StoreFile(keyHash, name, sourcePath string) (model.FileEntry, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return model.FileEntry{}, fmt.Errorf("blobstore: stat %s: %w", sourcePath, err)
	}
	if info.IsDir() {
		return model.FileEntry{}, fmt.Errorf("%w: %s", ErrSourceIsDirectory, sourcePath)
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return model.FileEntry{}, fmt.Errorf("blobstore: read %s: %w", sourcePath, err)
	}

	size := int64(len(data))
	if size <= s.inlineThreshold {
		return model.FileEntry{Name: name, Inline: true, Bytes: data, SizeBytes: size}, nil
	}

	hash := contentHash(data)
	dir := s.fileBlobDir(keyHash, hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.FileEntry{}, fmt.Errorf("blobstore: mkdir %s: %w", dir, err)
	}
	path := s.fileBlobPath(keyHash, hash, name)
	if _, err := os.Stat(path); err == nil {
		// Same content under the same name already on disk for this key.
		return model.FileEntry{Name: name, Inline: false, ContentHash: hash, SizeBytes: size}, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return model.FileEntry{}, fmt.Errorf("blobstore: write %s: %w", path, err)
	}
	s.bytesWritten.Add(float64(size))
	return model.FileEntry{Name: name, Inline: false, ContentHash: hash, SizeBytes: size}, nil
}

// RemoveText removes the blob backing text, if any, and prunes any
// directories left empty by the removal.
func (s *Store) RemoveText(keyHash string, text model.TextContent) error {
	if text.Inline {
		return nil
	}
	path := s.textBlobPath(keyHash)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("blobstore: remove %s: %w", path, err)
	}
	s.blobsRemoved.Inc()
	removeDirIfEmpty(s.keyDir(keyHash), s.blobsPath)
	return nil
}

// RemoveFile removes the physical file backing entry, if any, and
// prunes any directories (the content-hash directory, then the
// key-hash directory) left empty by the removal. Callers are
// responsible for first checking whether another attachment of the
// same key still references this same (content hash, name) pair.
func (s *Store) RemoveFile(keyHash string, entry model.FileEntry) error {
	if entry.Inline {
		return nil
	}
	path := s.fileBlobPath(keyHash, entry.ContentHash, entry.Name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("blobstore: remove %s: %w", path, err)
	}
	s.blobsRemoved.Inc()
	removeDirIfEmpty(s.fileBlobDir(keyHash, entry.ContentHash), s.blobsPath)
	return nil
}

// RehomeText moves a key's blob-backed text payload from srcKeyHash's
// directory to dstKeyHash's, used by a key rename. A no-op if srcKeyHash
// equals dstKeyHash, or if the destination already has a text blob
// (e.g. a previous rehome already ran for this pair).
func (s *Store) RehomeText(srcKeyHash, dstKeyHash string) error {
	if srcKeyHash == dstKeyHash {
		return nil
	}
	srcPath := s.textBlobPath(srcKeyHash)
	dstPath := s.textBlobPath(dstKeyHash)
	if _, err := os.Stat(srcPath); os.IsNotExist(err) {
		return nil
	}
	if _, err := os.Stat(dstPath); err == nil {
		removeDirIfEmpty(s.keyDir(srcKeyHash), s.blobsPath)
		return nil
	}
	if err := os.MkdirAll(s.keyDir(dstKeyHash), 0o755); err != nil {
		return fmt.Errorf("blobstore: mkdir %s: %w", s.keyDir(dstKeyHash), err)
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return fmt.Errorf("blobstore: rehome %s -> %s: %w", srcPath, dstPath, err)
	}
	removeDirIfEmpty(s.keyDir(srcKeyHash), s.blobsPath)
	return nil
}

// RehomeFile moves the whole content-hash directory for hash from
// srcKeyHash to dstKeyHash, used by a key rename. Moving the directory
// (rather than a single file) keeps every differently-named attachment
// sharing that content together. A no-op once already moved, which
// happens when two of a key's attachments share the same content hash
// and each triggers its own RehomeFile call.
func (s *Store) RehomeFile(srcKeyHash, dstKeyHash, hash string) error {
	if srcKeyHash == dstKeyHash {
		return nil
	}
	srcDir := s.fileBlobDir(srcKeyHash, hash)
	dstDir := s.fileBlobDir(dstKeyHash, hash)
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		return nil
	}
	if _, err := os.Stat(dstDir); err == nil {
		if err := os.RemoveAll(srcDir); err != nil {
			return fmt.Errorf("blobstore: remove superseded %s: %w", srcDir, err)
		}
		removeDirIfEmpty(s.keyDir(srcKeyHash), s.blobsPath)
		return nil
	}
	if err := os.MkdirAll(s.keyDir(dstKeyHash), 0o755); err != nil {
		return fmt.Errorf("blobstore: mkdir %s: %w", s.keyDir(dstKeyHash), err)
	}
	if err := os.Rename(srcDir, dstDir); err != nil {
		return fmt.Errorf("blobstore: rehome %s -> %s: %w", srcDir, dstDir, err)
	}
	removeDirIfEmpty(s.keyDir(srcKeyHash), s.blobsPath)
	return nil
}

// RemoveAll deletes every blob stored under keyHash, used when a key
// is purged or fully overwritten. It also clears any materialized
// inline-cache entry for the key.
func (s *Store) RemoveAll(keyHash string) error {
	dir := s.keyDir(keyHash)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("blobstore: remove all %s: %w", dir, err)
	}
	cacheDir := filepath.Join(s.inlineCachePath, keyHash)
	if err := os.RemoveAll(cacheDir); err != nil {
		return fmt.Errorf("blobstore: remove cache %s: %w", cacheDir, err)
	}
	return nil
}

// EnsureFilePath returns a real filesystem path to entry's bytes,
// suitable for handing to an external program. Blob-backed entries
// already live at such a path; inline entries are materialized into
// the inline cache on demand. Materializing a new entry first clears
// every other key's cached files, bounding the cache's disk usage to
// roughly one key's worth of attachments at a time.
func (s *Store) EnsureFilePath(keyHash string, entry model.FileEntry) (string, error) {
	if !entry.Inline {
		path := s.fileBlobPath(keyHash, entry.ContentHash, entry.Name)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrBlobNotFound, entry.ContentHash)
		}
		return path, nil
	}

	if err := s.cleanupCache(keyHash); err != nil {
		return "", err
	}
	dir := filepath.Join(s.inlineCachePath, keyHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("blobstore: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, entry.Name)
	if err := os.WriteFile(path, entry.Bytes, 0o644); err != nil {
		return "", fmt.Errorf("blobstore: write cache file %s: %w", path, err)
	}
	return path, nil
}

// EnsureTextPath is EnsureFilePath's counterpart for a clip's text
// content, materializing inline text into the cache as "content.txt".
func (s *Store) EnsureTextPath(keyHash string, text model.TextContent) (string, error) {
	if !text.Inline {
		path := s.textBlobPath(keyHash)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrBlobNotFound, text.ContentHash)
		}
		return path, nil
	}

	if err := s.cleanupCache(keyHash); err != nil {
		return "", err
	}
	dir := filepath.Join(s.inlineCachePath, keyHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("blobstore: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "content.txt")
	if err := os.WriteFile(path, []byte(text.Text), 0o644); err != nil {
		return "", fmt.Errorf("blobstore: write cache file %s: %w", path, err)
	}
	return path, nil
}

// cleanupCache removes every inline-cache subdirectory except the one
// belonging to keepKeyHash.
func (s *Store) cleanupCache(keepKeyHash string) error {
	entries, err := os.ReadDir(s.inlineCachePath)
	if err != nil {
		return fmt.Errorf("blobstore: read inline cache dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == keepKeyHash {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.inlineCachePath, e.Name())); err != nil {
			return fmt.Errorf("blobstore: clear cache entry %s: %w", e.Name(), err)
		}
	}
	return nil
}

// ListKeyHashDirectories lists every key-hash directory currently
// present under the blob tree, used by maintenance to reconcile
// orphaned blobs against the Metadata Store's live key set.
func (s *Store) ListKeyHashDirectories() ([]string, error) {
	entries, err := os.ReadDir(s.blobsPath)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read blobs dir: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

// removeDirIfEmpty removes dir and any now-empty ancestors, stopping
// at (and never removing) stopAt.
func removeDirIfEmpty(dir, stopAt string) {
	for {
		if dir == stopAt || dir == "." || dir == string(filepath.Separator) {
			return
		}
		f, err := os.Open(dir)
		if err != nil {
			return
		}
		_, err = f.Readdirnames(1)
		f.Close()
		if err != io.EOF {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
