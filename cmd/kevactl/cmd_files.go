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
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var addFilesCmd = &cobra.Command{
	Use:   "add-files <key> <path...>",
	Short: "Attach one or more files to a key",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := requireKey(args[0])
		if err := core.AddFiles(cmdContext(), key, args[1:], time.Now()); err != nil {
			return fmt.Errorf("add-files %s: %w", key, err)
		}
		return nil
	},
}

var rmFileAtFlag int

var rmFileCmd = &cobra.Command{
	Use:   "rm-file <key>",
	Short: "Remove one attachment from a file clip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := requireKey(args[0])
		if err := core.RemoveFileAt(cmdContext(), key, rmFileAtFlag, time.Now()); err != nil {
			return fmt.Errorf("rm-file %s: %w", key, err)
		}
		return nil
	},
}

var catOpenFlag bool

var catCmd = &cobra.Command{
	Use:   "cat <key> [attachment-index]",
	Short: "Print the real filesystem path to a clip's content",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := requireKey(args[0])
		var (
			path string
			err  error
		)
		if len(args) == 2 {
			idx, perr := strconv.Atoi(args[1])
			if perr != nil {
				return fmt.Errorf("attachment index must be an integer: %w", perr)
			}
			path, err = core.AttachmentPath(cmdContext(), key, idx)
		} else {
			path, err = core.ContentPath(cmdContext(), key)
		}
		if err != nil {
			return fmt.Errorf("cat %s: %w", key, err)
		}
		fmt.Println(path)
		if catOpenFlag {
			return openInDefaultApp(path)
		}
		return nil
	},
}

func openInDefaultApp(path string) error {
	var args []string
	switch runtime.GOOS {
	case "darwin":
		args = []string{"open", path}
	case "windows":
		args = []string{"cmd", "/c", "start", "", path}
	default:
		args = []string{"xdg-open", path}
	}
	return exec.Command(args[0], args[1:]...).Start()
}

func init() {
	rmFileCmd.Flags().IntVar(&rmFileAtFlag, "index", 0, "index of the attachment to remove")
	catCmd.Flags().BoolVar(&catOpenFlag, "open", false, "open the materialized path with the OS default application")
}
