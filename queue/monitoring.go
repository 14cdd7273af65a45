// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	queueDroppedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rosbag2_queue_dropped_messages",
		Help: "Count of messages dropped because the queue was full.",
	})

	queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rosbag2_queue_depth",
		Help: "Current number of messages buffered in the queue.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		queueDroppedMessages,
		queueDepthGauge,
	)
}
