// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/RobotecAI/rosbag2/bag"

	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <bag>",
		Short: "Summarize a bag's metadata descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := bag.LoadMetadata(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bag:          %s\n", args[0])
			fmt.Fprintf(out, "Recording:    %s\n", md.RecordingID)
			fmt.Fprintf(out, "Written by:   %s\n", md.WriterVersion)
			fmt.Fprintf(out, "Storage:      %s\n", md.StorageIdentifier)
			if md.CompressionMode != "" && md.CompressionMode != "none" {
				fmt.Fprintf(out, "Compression:  %s (%s)\n", md.CompressionFormat, md.CompressionMode)
			}
			fmt.Fprintf(out, "Start:        %s\n", md.StartTime())
			fmt.Fprintf(out, "Duration:     %s\n", md.Duration())
			fmt.Fprintf(out, "Messages:     %d\n", md.MessageCount)
			fmt.Fprintf(out, "Size:         %d bytes in %d file(s)\n", md.SizeBytes, len(md.Files))

			fmt.Fprintf(out, "Topics:\n")
			for _, ti := range md.Topics {
				fmt.Fprintf(out, "  %-30s %8d msgs  (%s, %s)\n",
					ti.Topic.Name, ti.MessageCount, ti.Topic.Type, ti.Topic.SerializationFormat)
			}
			return nil
		},
	}
}
