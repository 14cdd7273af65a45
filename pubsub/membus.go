// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pubsub

import (
	"sync"

	"github.com/RobotecAI/rosbag2/bag"

	"github.com/pkg/errors"
)

// MemBus is an in-process Bus.
//
// Delivery is synchronous: Publish invokes each matching handler before
// returning. MemBus is safe for concurrent use.
type MemBus struct {
	mu     sync.RWMutex
	topics map[string]bag.TopicMetadata
	subs   map[string][]*memSubscription
}

// NewMemBus creates an empty in-process bus.
func NewMemBus() *MemBus {
	return &MemBus{
		topics: make(map[string]bag.TopicMetadata),
		subs:   make(map[string][]*memSubscription),
	}
}

type memSubscription struct {
	bus   *MemBus
	topic string
	h     Handler
}

func (s *memSubscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.subs[s.topic]
	for i, sub := range subs {
		if sub == s {
			s.bus.subs[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// Subscribe implements Subscriber.
func (b *MemBus) Subscribe(topic string, h Handler) (Subscription, error) {
	if h == nil {
		return nil, errors.New("nil handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &memSubscription{bus: b, topic: topic, h: h}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub, nil
}

// TopicInfo implements Subscriber.
func (b *MemBus) TopicInfo(topic string) (bag.TopicMetadata, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.topics[topic]
	return t, ok
}

// Topics implements Subscriber.
func (b *MemBus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	return names
}

// DeclareTopic implements Publisher.
func (b *MemBus) DeclareTopic(t bag.TopicMetadata) error {
	if t.Name == "" {
		return errors.New("topic has no name")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.topics[t.Name]; !ok {
		b.topics[t.Name] = t
	}
	return nil
}

// Publish implements Publisher.
//
// Publishing to an undeclared topic declares it implicitly, mirroring how
// live middleware advertises a topic on first publication.
func (b *MemBus) Publish(msg *bag.SerializedMessage) error {
	if msg.Topic == "" {
		return errors.New("message has no topic")
	}

	b.mu.RLock()
	_, known := b.topics[msg.Topic]
	subs := append([]*memSubscription(nil), b.subs[msg.Topic]...)
	b.mu.RUnlock()

	if !known {
		_ = b.DeclareTopic(bag.TopicMetadata{
			Name:                msg.Topic,
			SerializationFormat: msg.SerializationFormat,
		})
	}

	for _, sub := range subs {
		sub.h(msg)
	}
	return nil
}
