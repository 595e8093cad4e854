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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	keva "github.com/ik1ne/keva-sub000"
)

var setCmd = &cobra.Command{
	Use:   "set <key> <text...>",
	Short: "Create or overwrite an active text clip",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := requireKey(args[0])
		text := strings.Join(args[1:], " ")
		if err := core.UpsertText(cmdContext(), key, text, time.Now()); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a clip's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := requireKey(args[0])
		now := time.Now()
		clip, err := core.Get(cmdContext(), key, now)
		if err != nil {
			if errors.Is(err, keva.ErrNotFound) {
				return fmt.Errorf("no such key: %s", key)
			}
			return err
		}
		if err := core.Touch(cmdContext(), key, now); err != nil && !errors.Is(err, keva.ErrKeyIsTrashed) {
			return err
		}
		printClip(clip)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Trash a key (alias for 'trash')",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := requireKey(args[0])
		if err := core.Trash(cmdContext(), key, time.Now()); err != nil {
			return fmt.Errorf("rm %s: %w", key, err)
		}
		return nil
	},
}
