// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package cli

import (
	"io"
	"time"

	"github.com/RobotecAI/rosbag2/compress"
	"github.com/RobotecAI/rosbag2/reader"
	_ "github.com/RobotecAI/rosbag2/storage/streamfile"
	"github.com/RobotecAI/rosbag2/writer"

	"github.com/spf13/cobra"
)

func convertCmd() *cobra.Command {
	var (
		mode    = compress.ModeFlag(compress.ModeNone)
		format  compress.FormatFlag
		storage string
		maxSize int64
		maxDur  time.Duration
		tempDir string
	)

	cmd := &cobra.Command{
		Use:   "convert <bag> <dest>",
		Short: "Rewrite a bag with a different storage or compression configuration",
		Long: "Convert reads every message of the source bag and records it into a\n" +
			"new bag at dest, applying the requested compression and split bounds.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			r, err := reader.Open(args[0], reader.Options{
				TempDir: tempDir,
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			defer r.Close()

			w, err := writer.Open(args[1], writer.Options{
				Storage:           storage,
				CompressionMode:   mode.Value(),
				CompressionFormat: string(format),
				MaxSplitSize:      maxSize,
				MaxSplitDuration:  maxDur,
				TempDir:           tempDir,
				RosDistro:         r.Metadata().RosDistro,
				Logger:            logger,
			})
			if err != nil {
				return err
			}

			for _, ti := range r.Metadata().Topics {
				if err := w.CreateTopic(ti.Topic); err != nil {
					_ = w.Close()
					return err
				}
			}

			for {
				msg, err := r.ReadNext()
				if err == io.EOF {
					break
				}
				if err != nil {
					_ = w.Close()
					return err
				}
				if err := w.Write(msg); err != nil {
					_ = w.Close()
					return err
				}
			}
			return w.Close()
		},
	}

	cmd.Flags().Var(&mode, "compression-mode",
		"compression granularity for the new bag (none, file or message)")
	cmd.Flags().Var(&format, "compression-format",
		"compression codec for the new bag (required unless the mode is none)")
	cmd.Flags().StringVar(&storage, "storage", "",
		"storage backend identifier for the new bag (default backend if empty)")
	cmd.Flags().Int64Var(&maxSize, "max-split-size", 0,
		"split the new bag once a file reaches this many bytes (0 disables)")
	cmd.Flags().DurationVar(&maxDur, "max-split-duration", 0,
		"split the new bag once a file covers this much time (0 disables)")
	cmd.Flags().StringVar(&tempDir, "temp-dir", "",
		"directory for staging the new bag (system default if empty)")
	return cmd
}
