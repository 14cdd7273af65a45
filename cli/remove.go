// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package cli

import (
	"github.com/RobotecAI/rosbag2/bag"

	"github.com/spf13/cobra"
)

func removeCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "remove <bag>",
		Short: "Delete a bag and all of its splits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Refuse to delete directories that aren't bags unless forced.
			if !force {
				if err := bag.Validate(args[0]); err != nil {
					return err
				}
			}
			return bag.Delete(args[0])
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false,
		"delete even if the directory does not validate as a bag")
	return cmd
}
