// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package cli

import (
	"github.com/RobotecAI/rosbag2/writer"

	"github.com/spf13/cobra"
)

func mergeCmd() *cobra.Command {
	var tempDir string

	cmd := &cobra.Command{
		Use:   "merge <dest> <bag> [<bag>...]",
		Short: "Merge several bags into one",
		Long: "Merge combines bags that share a storage backend and compression\n" +
			"configuration and do not overlap in time into a single bag at dest.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writer.Merge(args[0], writer.Options{
				TempDir: tempDir,
				Logger:  newLogger(),
			}, args[1:]...)
		},
	}
	cmd.Flags().StringVar(&tempDir, "temp-dir", "",
		"directory for staging the merged bag (system default if empty)")
	return cmd
}
