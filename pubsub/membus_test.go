// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package pubsub

import (
	"testing"
	"time"

	"github.com/RobotecAI/rosbag2/bag"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("MemBus", func() {
	It("delivers published messages to matching subscribers", func() {
		bus := NewMemBus()

		var gotA, gotB []*bag.SerializedMessage
		subA, err := bus.Subscribe("/a", func(msg *bag.SerializedMessage) {
			gotA = append(gotA, msg)
		})
		Expect(err).ToNot(HaveOccurred())
		_, err = bus.Subscribe("/b", func(msg *bag.SerializedMessage) {
			gotB = append(gotB, msg)
		})
		Expect(err).ToNot(HaveOccurred())

		Expect(bus.Publish(&bag.SerializedMessage{Topic: "/a", Data: []byte("x")})).To(Succeed())
		Expect(bus.Publish(&bag.SerializedMessage{Topic: "/b", Data: []byte("y")})).To(Succeed())
		Expect(bus.Publish(&bag.SerializedMessage{Topic: "/a", Data: []byte("z")})).To(Succeed())

		Expect(gotA).To(HaveLen(2))
		Expect(gotB).To(HaveLen(1))

		// Detached subscribers receive nothing further.
		subA.Unsubscribe()
		Expect(bus.Publish(&bag.SerializedMessage{Topic: "/a"})).To(Succeed())
		Expect(gotA).To(HaveLen(2))
	})

	It("advertises declared topics", func() {
		bus := NewMemBus()

		Expect(bus.DeclareTopic(bag.TopicMetadata{
			Name:                "/camera/image",
			Type:                "sensor_msgs/msg/Image",
			SerializationFormat: "cdr",
		})).To(Succeed())

		t, ok := bus.TopicInfo("/camera/image")
		Expect(ok).To(BeTrue())
		Expect(t.Type).To(Equal("sensor_msgs/msg/Image"))

		_, ok = bus.TopicInfo("/absent")
		Expect(ok).To(BeFalse())

		Expect(bus.Topics()).To(ConsistOf("/camera/image"))
	})

	It("implicitly declares a topic on first publication", func() {
		bus := NewMemBus()

		Expect(bus.Publish(&bag.SerializedMessage{
			Topic:               "/imu",
			SerializationFormat: "cdr",
			Timestamp:           time.Unix(1, 0),
		})).To(Succeed())

		t, ok := bus.TopicInfo("/imu")
		Expect(ok).To(BeTrue())
		Expect(t.SerializationFormat).To(Equal("cdr"))
	})

	It("rejects invalid input", func() {
		bus := NewMemBus()
		Expect(bus.DeclareTopic(bag.TopicMetadata{})).ToNot(Succeed())
		Expect(bus.Publish(&bag.SerializedMessage{})).ToNot(Succeed())

		_, err := bus.Subscribe("/a", nil)
		Expect(err).To(HaveOccurred())
	})
})

func TestPubSub(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Testing pubsub")
}
