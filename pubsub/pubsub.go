// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package pubsub defines the middleware contract the recorder and player
// operate against: topic discovery, subscription, and publication of
// serialized messages, deliberately ignorant of payload contents.
package pubsub

import (
	"time"

	"github.com/RobotecAI/rosbag2/bag"
)

// Handler receives messages delivered to a subscription.
//
// Handlers are invoked from the bus's delivery context and must not block for
// long; the recorder hands messages straight to its queue.
type Handler func(msg *bag.SerializedMessage)

// Subscription is a live subscription handle.
type Subscription interface {
	// Unsubscribe detaches the handler. No deliveries occur after
	// Unsubscribe returns.
	Unsubscribe()
}

// Subscriber is the message-consuming half of a bus.
type Subscriber interface {
	// Subscribe attaches h to the named topic.
	Subscribe(topic string, h Handler) (Subscription, error)

	// TopicInfo returns the advertised metadata for the named topic, or
	// ok == false if the topic is unknown.
	TopicInfo(topic string) (t bag.TopicMetadata, ok bool)

	// Topics returns the names of all currently-advertised topics.
	Topics() []string
}

// Publisher is the message-producing half of a bus.
type Publisher interface {
	// DeclareTopic advertises a topic with its metadata ahead of
	// publication. Declaring an already-known topic is a no-op.
	DeclareTopic(t bag.TopicMetadata) error

	// Publish delivers msg to the subscribers of its topic.
	Publish(msg *bag.SerializedMessage) error
}

// Bus is a full middleware connection.
type Bus interface {
	Subscriber
	Publisher
}

// Clock supplies reception timestamps for recorded messages.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
