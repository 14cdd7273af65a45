// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package queue implements the bounded FIFO buffering serialized messages
// between the middleware subscription callbacks and the disk-writing drain
// goroutine.
//
// The queue's lock/condition discipline is the only synchronization point
// between those contexts; no other state is shared between subscription
// callbacks and the sequential writer.
package queue

import (
	"sync"

	"github.com/RobotecAI/rosbag2/bag"
	"github.com/RobotecAI/rosbag2/support/logging"

	"github.com/pkg/errors"
)

// FullPolicy selects what Push does when the queue is at capacity.
//
// The policy is fixed at construction; it is never decided per call.
type FullPolicy int

const (
	// Block makes Push wait until space frees, applying back-pressure on
	// the middleware callback.
	Block FullPolicy = iota

	// DropNewest makes Push discard the incoming message with a warning.
	DropNewest

	// DropOldest makes Push evict the oldest queued message with a warning
	// to admit the incoming one.
	DropOldest
)

func (p FullPolicy) String() string {
	switch p {
	case Block:
		return "block"
	case DropNewest:
		return "drop-newest"
	case DropOldest:
		return "drop-oldest"
	default:
		return "unknown"
	}
}

// Queue is a bounded, thread-safe FIFO of serialized messages.
//
// Pop order equals Push order globally across all topics, not just per topic:
// the sequential writer relies on arrival order approximating timestamp
// order.
//
// A Queue is scoped to one recording session; construct it alongside the
// recorder and Close it when recording stops.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	entries []*bag.SerializedMessage
	max     int
	policy  FullPolicy
	closed  bool

	logger logging.L
}

// New creates a Queue holding at most max messages. A max of zero means
// unbounded.
func New(max int, policy FullPolicy, logger logging.L) *Queue {
	q := Queue{
		max:    max,
		policy: policy,
		logger: logging.Must(logger),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return &q
}

// Len returns the number of messages currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Push appends msg to the queue, transferring ownership.
//
// When the queue is full, Push behaves per the configured FullPolicy. Pushing
// to a closed queue returns an error wrapping bag.ErrQueueClosed; a message
// dropped by policy is warned and counted, never an error.
func (q *Queue) Push(msg *bag.SerializedMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.Wrapf(bag.ErrQueueClosed, "dropping message on %q", msg.Topic)
	}

	if q.max > 0 && len(q.entries) >= q.max {
		switch q.policy {
		case Block:
			for len(q.entries) >= q.max && !q.closed {
				q.notFull.Wait()
			}
			if q.closed {
				return errors.Wrapf(bag.ErrQueueClosed, "dropping message on %q", msg.Topic)
			}

		case DropNewest:
			q.logger.Warnf("Queue is full (%d); dropping incoming message on %q.", q.max, msg.Topic)
			queueDroppedMessages.Inc()
			return nil

		case DropOldest:
			dropped := q.entries[0]
			q.entries[0] = nil
			q.entries = q.entries[1:]
			q.logger.Warnf("Queue is full (%d); evicting oldest message on %q.", q.max, dropped.Topic)
			queueDroppedMessages.Inc()
		}
	}

	q.entries = append(q.entries, msg)
	queueDepthGauge.Set(float64(len(q.entries)))
	q.notEmpty.Signal()
	return nil
}

// Pop removes and returns the oldest queued message, blocking until one is
// available or the queue is closed.
//
// After Close, Pop keeps draining remaining entries; once the queue is both
// closed and empty, it returns ok == false.
func (q *Queue) Pop() (msg *bag.SerializedMessage, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.entries) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.entries) == 0 {
		return nil, false
	}

	msg = q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	queueDepthGauge.Set(float64(len(q.entries)))
	q.notFull.Signal()
	return msg, true
}

// Close signals that no further messages will be pushed. Blocked Push calls
// return bag.ErrQueueClosed; blocked Pop calls drain remaining entries and
// then return ok == false.
//
// Closing is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
