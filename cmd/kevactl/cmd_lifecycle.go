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
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var trashCmd = &cobra.Command{
	Use:   "trash <key>",
	Short: "Move a key into the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := requireKey(args[0])
		if err := core.Trash(cmdContext(), key, time.Now()); err != nil {
			return fmt.Errorf("trash %s: %w", key, err)
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <key>",
	Short: "Move a trashed key back to active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := requireKey(args[0])
		if err := core.Restore(cmdContext(), key, time.Now()); err != nil {
			return fmt.Errorf("restore %s: %w", key, err)
		}
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge <key>",
	Short: "Permanently delete a trashed key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := requireKey(args[0])
		if err := core.Purge(cmdContext(), key); err != nil {
			return fmt.Errorf("purge %s: %w", key, err)
		}
		return nil
	},
}

var renameOverwriteFlag bool

var renameCmd = &cobra.Command{
	Use:   "rename <src> <dst>",
	Short: "Rename a key, optionally overwriting the destination",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := requireKey(args[0])
		dst := requireKey(args[1])
		if err := core.Rename(cmdContext(), src, dst, renameOverwriteFlag, time.Now()); err != nil {
			return fmt.Errorf("rename %s -> %s: %w", src, dst, err)
		}
		return nil
	},
}

func init() {
	renameCmd.Flags().BoolVar(&renameOverwriteFlag, "force", false, "overwrite the destination key if it already exists")
}
