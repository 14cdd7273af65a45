// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package bag defines the core data model for recorded message streams: the
// type-erased serialized message, per-topic metadata, and the bag-level
// metadata descriptor that stitches one or more split files into a single
// logical recording.
package bag

import (
	"time"
)

// SerializedMessage is a single type-erased message captured from the
// messaging middleware.
//
// The payload bytes are opaque to the recording pipeline; interpreting them
// requires the topic's serialization format and is strictly the caller's
// concern.
//
// A SerializedMessage has exactly one owner at any time. Ownership transfers
// from the subscription callback to the queue to the writer; it must never be
// retained or mutated after it has been handed off.
type SerializedMessage struct {
	// Topic is the name of the topic this message was received on.
	Topic string

	// SerializationFormat identifies the byte encoding of Data.
	SerializationFormat string

	// Data is the opaque serialized payload.
	Data []byte

	// Timestamp is the receive time assigned by the recorder, with
	// nanosecond resolution.
	Timestamp time.Time
}

// Size returns the payload size of the message in bytes.
func (m *SerializedMessage) Size() int64 { return int64(len(m.Data)) }

// TopicMetadata describes one distinct recorded topic.
//
// An instance is created on the first observed message (or on explicit
// registration) and is read-only afterward.
type TopicMetadata struct {
	// Name is the topic name, e.g. "/camera/image_raw".
	Name string `yaml:"name"`

	// Type identifies the message type published on the topic.
	Type string `yaml:"type"`

	// SerializationFormat identifies the byte encoding used on the topic.
	SerializationFormat string `yaml:"serialization_format"`

	// OfferedQoS is an opaque description of the quality-of-service offered
	// by the topic's publishers, recorded for faithful re-publication.
	OfferedQoS string `yaml:"offered_qos_profiles,omitempty"`
}
