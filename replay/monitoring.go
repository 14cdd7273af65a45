// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package replay

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	recorderRecordingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rosbag2_recorder_recording",
		Help: "Count of active recorders recording.",
	})

	recorderErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rosbag2_recorder_errors",
		Help: "Count of general recorder errors encountered.",
	}, []string{"type"})

	recorderMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rosbag2_recorder_messages",
		Help: "Count of recorded messages.",
	})

	playerPlayingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rosbag2_player_playing",
		Help: "Count of active players replaying messages.",
	})

	playerPausedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rosbag2_player_paused",
		Help: "Incremented when the player is paused, decremented on resume.",
	})

	playerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rosbag2_player_error_count",
		Help: "Count of player errors encountered during playback.",
	})

	playerDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rosbag2_player_dropped_count",
		Help: "Count of dropped messages due to latency.",
	})

	playerCyclesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rosbag2_player_cycles",
		Help: "Count of discrete replay cycles in the current playback.",
	})

	playerSentBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rosbag2_player_sent_bytes",
		Help: "Count of payload bytes published by the player.",
	})

	playerSentMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rosbag2_player_sent_messages",
		Help: "Count of messages published by the player.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		// Recorder
		recorderRecordingGauge,
		recorderErrors,
		recorderMessages,

		// Player
		playerPlayingGauge,
		playerPausedGauge,
		playerErrors,
		playerDropped,
		playerCyclesGauge,
		playerSentBytes,
		playerSentMessages,
	)
}
