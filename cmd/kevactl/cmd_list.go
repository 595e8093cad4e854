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

	keva "github.com/ik1ne/keva-sub000"
	"github.com/ik1ne/keva-sub000/search"
)

var listTrashFlag bool

var listCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List keys, optionally filtered by prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		var (
			keys []keva.Key
			err  error
		)
		if listTrashFlag {
			keys, err = core.ListTrashed(cmdContext(), prefix)
		} else {
			keys, err = core.ListActive(cmdContext(), prefix)
		}
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(styled(keyStyle, k.String()))
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search key names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext()
		active, err := core.ActiveKeys(ctx)
		if err != nil {
			return err
		}
		trashed, err := core.TrashedKeys(ctx)
		if err != nil {
			return err
		}
		activeStrs := make([]string, len(active))
		for i, k := range active {
			activeStrs[i] = k.String()
		}
		trashedStrs := make([]string, len(trashed))
		for i, k := range trashed {
			trashedStrs[i] = k.String()
		}

		changed := make(chan struct{}, 1)
		engine := search.NewEngine(activeStrs, trashedStrs, search.DefaultConfig(), func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		engine.SetQuery(args[0])

		deadline := time.After(2 * time.Second)
	waitLoop:
		for !engine.IsDone() {
			select {
			case <-changed:
			case <-deadline:
				break waitLoop
			}
		}
		for _, k := range engine.ActiveResults() {
			fmt.Println(styled(keyStyle, k))
		}
		for _, k := range engine.TrashedResults() {
			fmt.Println(styled(dimStyle, k))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listTrashFlag, "trash", false, "list trashed keys instead of active ones")
}
