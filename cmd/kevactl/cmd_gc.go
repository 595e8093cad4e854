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

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Run one maintenance sweep: idle-to-trash, trash-to-purge, orphan blob reclamation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := core.Maintenance(cmdContext(), time.Now())
		if err != nil {
			return fmt.Errorf("gc: %w", err)
		}
		fmt.Printf("run %s: trashed=%d purged=%d orphaned_blobs=%d\n",
			result.RunID, result.TrashedCount, result.PurgedCount, result.OrphanedBlobs)
		return nil
	},
}
