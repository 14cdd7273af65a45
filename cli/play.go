// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/RobotecAI/rosbag2/bag"
	"github.com/RobotecAI/rosbag2/pubsub"
	"github.com/RobotecAI/rosbag2/queue"
	"github.com/RobotecAI/rosbag2/reader"
	"github.com/RobotecAI/rosbag2/replay"
	_ "github.com/RobotecAI/rosbag2/storage/streamfile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func playCmd() *cobra.Command {
	var (
		topics      []string
		rate        float64
		loop        bool
		fast        bool
		print       bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "play <bag>",
		Short: "Replay a bag onto an in-process bus",
		Long: "Play publishes the bag's messages on their recorded schedule. With\n" +
			"--print, each published message is summarized on stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				replay.RegisterMonitoring(reg)
				queue.RegisterMonitoring(reg)

				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				go func() {
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						logger.Errorf("Metrics server failed: %s", err)
					}
				}()
			}

			r, err := reader.Open(args[0], reader.Options{
				Topics: topics,
				Logger: logger,
			})
			if err != nil {
				return err
			}

			bus := pubsub.NewMemBus()
			if print {
				out := cmd.OutOrStdout()
				for _, ti := range r.Metadata().Topics {
					_, err := bus.Subscribe(ti.Topic.Name, func(msg *bag.SerializedMessage) {
						fmt.Fprintf(out, "%s  %-30s %6d bytes\n",
							msg.Timestamp.Format(time.RFC3339Nano), msg.Topic, len(msg.Data))
					})
					if err != nil {
						_ = r.Close()
						return err
					}
				}
			}

			p := replay.Player{
				Publisher:        bus,
				Logger:           logger,
				Rate:             rate,
				Loop:             loop,
				AsFastAsPossible: fast,
			}
			p.Play(cmd.Context(), r)
			p.Wait()
			p.Stop()
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&topics, "topics", nil,
		"replay only these topics (default: all)")
	cmd.Flags().Float64Var(&rate, "rate", 1.0,
		"playback rate multiplier")
	cmd.Flags().BoolVar(&loop, "loop", false,
		"restart playback when the bag is exhausted")
	cmd.Flags().BoolVar(&fast, "as-fast-as-possible", false,
		"ignore the recorded schedule and publish back-to-back")
	cmd.Flags().BoolVar(&print, "print", true,
		"print a summary line for each published message")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address while playing")
	return cmd
}
