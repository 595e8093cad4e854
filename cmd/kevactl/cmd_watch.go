// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	keva "github.com/ik1ne/keva-sub000"
)

func withSignalCancel() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

var watchDirCmd = &cobra.Command{
	Use:   "watch-dir <dir>",
	Short: "Watch a directory and attach every file dropped into it to a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		key, err := keva.NewKey(filepath.Base(filepath.Clean(dir)))
		if err != nil {
			return fmt.Errorf("watch-dir: derive key from %s: %w", dir, err)
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("watch-dir: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch-dir: %w", err)
		}

		ctx, cancel := withSignalCancel()
		defer cancel()

		slog.Info("watching directory for dropped files", "dir", dir, "key", key.String())
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				if err := core.AddFiles(ctx, key, []string{ev.Name}, time.Now()); err != nil {
					slog.Warn("failed to attach dropped file", "path", ev.Name, "error", err)
				} else {
					slog.Info("attached dropped file", "path", ev.Name, "key", key.String())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				slog.Warn("watcher error", "error", err)
			}
		}
	},
}

var watchClipPollFlag time.Duration

var watchClipCmd = &cobra.Command{
	Use:   "watch-clip <key>",
	Short: "Poll the OS clipboard and mirror new content into a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := requireKey(args[0])
		ctx, cancel := withSignalCancel()
		defer cancel()

		ticker := time.NewTicker(watchClipPollFlag)
		defer ticker.Stop()

		var last string
		slog.Info("watching clipboard", "key", key.String(), "interval", watchClipPollFlag)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				text, err := clipboard.ReadAll()
				if err != nil {
					if errors.Is(err, clipboard.ErrUnsupported) {
						return fmt.Errorf("watch-clip: %w", err)
					}
					slog.Warn("failed to read clipboard", "error", err)
					continue
				}
				if text == "" || text == last {
					continue
				}
				last = text
				if err := core.UpsertText(ctx, key, text, time.Now()); err != nil {
					slog.Warn("failed to mirror clipboard content", "error", err)
					continue
				}
				slog.Info("mirrored clipboard content", "key", key.String(), "bytes", len(text))
			}
		}
	},
}

func init() {
	watchClipCmd.Flags().DurationVar(&watchClipPollFlag, "interval", 500*time.Millisecond, "clipboard poll interval")
}
