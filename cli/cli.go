// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package cli implements the rosbag2 command-line tool.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/RobotecAI/rosbag2/support/logging"

	"github.com/spf13/cobra"
)

var verbose bool

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rosbag2",
		Short:         "Record, inspect and replay bags of serialized messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	root.AddCommand(
		convertCmd(),
		infoCmd(),
		mergeCmd(),
		playCmd(),
		removeCmd(),
	)
	return root
}

// Main is the main entry point.
func Main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rosbag2: %s\n", err)
		os.Exit(1)
	}
}

// newLogger builds the tool's logger, honoring the --verbose flag.
func newLogger() logging.L {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return &slogAdapter{l: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// slogAdapter adapts a slog.Logger to the logging.L interface the recording
// pipeline consumes.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
func (a *slogAdapter) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a *slogAdapter) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a *slogAdapter) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }

func (a *slogAdapter) Errorf(format string, args ...interface{}) {
	a.l.Error(fmt.Sprintf(format, args...))
}
func (a *slogAdapter) Warnf(format string, args ...interface{}) {
	a.l.Warn(fmt.Sprintf(format, args...))
}
func (a *slogAdapter) Infof(format string, args ...interface{}) {
	a.l.Info(fmt.Sprintf(format, args...))
}
func (a *slogAdapter) Debugf(format string, args ...interface{}) {
	a.l.Debug(fmt.Sprintf(format, args...))
}
