// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package replay implements the live halves of the system: the Recorder,
// which subscribes to middleware topics and streams their messages into a
// bag, and the Player, which publishes a bag's messages back to the
// middleware on their recorded schedule.
package replay

import (
	"sync"
	"time"

	"github.com/RobotecAI/rosbag2/bag"
	"github.com/RobotecAI/rosbag2/pubsub"
	"github.com/RobotecAI/rosbag2/queue"
	"github.com/RobotecAI/rosbag2/support/logging"
	"github.com/RobotecAI/rosbag2/writer"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// RecorderStatus is a snapshot of the current recorder status.
type RecorderStatus struct {
	Path     string
	Error    error
	Messages int64
	Bytes    int64
	Duration time.Duration
	Queued   int
}

// RecorderOptions configures a recording session.
type RecorderOptions struct {
	// Topics is the set of topics to record. If empty, every topic the bus
	// advertises at Start time is recorded.
	Topics []string

	// QueueSize bounds the message queue between the subscription callbacks
	// and the disk writer. Zero means unbounded.
	QueueSize int

	// QueuePolicy selects what happens when the queue is full.
	QueuePolicy queue.FullPolicy

	// Clock stamps each received message with its reception time. If nil,
	// the system clock is used.
	Clock pubsub.Clock

	// Logger is the logger instance to use. If nil, no logging will be
	// performed.
	Logger logging.L
}

// A Recorder subscribes to middleware topics and streams their messages into
// a bag through a bounded queue.
//
// The subscription callbacks only timestamp and enqueue; a single drain
// goroutine owns the bag writer, so message order in the bag is the queue's
// arrival order.
type Recorder struct {
	mu sync.Mutex
	// w is the currently-active bag writer.
	w *writer.Writer
	// q buffers messages between subscription callbacks and the drain
	// goroutine.
	q *queue.Queue
	// subs are the live subscriptions, detached on Stop.
	subs []pubsub.Subscription
	// drainErr is the first error the drain goroutine hit.
	drainErr error
	// stopping blocks a second concurrent Stop.
	stopping bool

	eg     *errgroup.Group
	clock  pubsub.Clock
	logger logging.L
}

// Start begins recording from bus into w.
//
// Start takes ownership of w and closes it on Stop. The recording continues
// until the Stop method is called.
func (r *Recorder) Start(bus pubsub.Subscriber, w *writer.Writer, opts RecorderOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w != nil {
		panic("already started")
	}

	r.w = w
	r.clock = opts.Clock
	if r.clock == nil {
		r.clock = pubsub.SystemClock{}
	}
	r.logger = logging.Must(opts.Logger)
	r.q = queue.New(opts.QueueSize, opts.QueuePolicy, r.logger)

	topics := opts.Topics
	if len(topics) == 0 {
		topics = bus.Topics()
	}
	for _, topic := range topics {
		if t, ok := bus.TopicInfo(topic); ok {
			if err := w.CreateTopic(t); err != nil {
				r.abortLocked()
				return err
			}
		}

		sub, err := bus.Subscribe(topic, r.receive)
		if err != nil {
			r.abortLocked()
			return errors.Wrapf(err, "subscribing to %q", topic)
		}
		r.subs = append(r.subs, sub)
	}

	r.eg = &errgroup.Group{}
	r.eg.Go(r.drain)

	recorderRecordingGauge.Inc()
	return nil
}

// receive is the subscription callback. It stamps the reception time and
// hands the message to the queue; it never touches the writer.
func (r *Recorder) receive(msg *bag.SerializedMessage) {
	recorderMessages.Inc()

	stamped := *msg
	stamped.Timestamp = r.clock.Now()
	if err := r.q.Push(&stamped); err != nil {
		// Stop has closed the queue; late deliveries are expected and
		// harmless.
		r.logger.Debugf("Discarding late message on %q: %s", msg.Topic, err)
	}
}

// drain pops queued messages and writes them to the bag until the queue is
// closed and empty.
//
// A write failure poisons the session: the queue keeps absorbing (and
// discarding) messages so callbacks never block on a dead writer.
func (r *Recorder) drain() error {
	var sessionErr error
	for {
		msg, ok := r.q.Pop()
		if !ok {
			return sessionErr
		}
		if sessionErr != nil {
			// Poisoned; discard so callbacks never block on a dead writer.
			continue
		}

		if err := r.w.Write(msg); err != nil {
			recorderErrors.WithLabelValues("write").Inc()
			r.logger.Errorf("Failed to write message on %q: %s", msg.Topic, err)

			r.mu.Lock()
			if r.drainErr == nil {
				r.drainErr = err
			}
			r.mu.Unlock()
			sessionErr = err
		}
	}
}

// Stop stops the Recorder, draining the queue, finalizing the bag, and
// releasing its resources.
//
// Stop returns the first error of the session: a write failure from the
// drain goroutine, or the writer's Close error.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.w == nil || r.stopping {
		r.mu.Unlock()
		return nil
	}
	r.stopping = true

	// Detach from the bus first so no new messages arrive, then let the
	// drain goroutine flush what is queued.
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	r.q.Close()
	egErr := r.eg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.w.Close()
	r.w = nil

	if err == nil {
		err = egErr
	}
	if err == nil {
		err = r.drainErr
	}
	r.drainErr = nil
	r.stopping = false

	recorderRecordingGauge.Dec()
	return err
}

// Status returns a snapshot of the current Recorder status.
//
// If the Recorder is not currently recording, Status will return nil.
func (r *Recorder) Status() *RecorderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return nil
	}

	md := r.w.Metadata()
	return &RecorderStatus{
		Path:     r.w.Path(),
		Error:    r.drainErr,
		Messages: md.MessageCount,
		Bytes:    md.SizeBytes,
		Duration: md.Duration(),
		Queued:   r.q.Len(),
	}
}

// abortLocked unwinds a partially-started session.
func (r *Recorder) abortLocked() {
	for _, sub := range r.subs {
		sub.Unsubscribe()
	}
	r.subs = nil
	r.q.Close()
	_ = r.w.Close()
	r.w = nil
}
