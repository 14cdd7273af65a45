// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package storage defines the pluggable storage contract for persisting
// serialized messages to one bag split file, and the registry through which
// backends are selected by identifier at runtime.
package storage

import (
	"github.com/RobotecAI/rosbag2/bag"
)

// Writer is a write handle on a single bag split.
//
// A Writer is owned exclusively by one goroutine; it is not safe for
// concurrent use. All mutation is confined to the file(s) under the path the
// Writer was opened with.
type Writer interface {
	// CreateTopic registers a topic with the split before (or instead of)
	// its first message. Registering an already-known topic is a no-op.
	CreateTopic(t bag.TopicMetadata) error

	// WriteMessage appends a message to the split. Messages must be written
	// in non-decreasing timestamp order per topic; the backend persists them
	// in exactly the order received.
	//
	// A returned error wraps bag.ErrStorageWrite and is fatal for the
	// current split.
	WriteMessage(msg *bag.SerializedMessage) error

	// Info returns the split-local statistics (message count, time bounds)
	// accumulated so far. The Path and SizeBytes fields are left to the
	// caller, which knows the final on-disk location.
	Info() bag.FileInformation

	// Size returns the number of bytes written to the split so far,
	// including data still sitting in write buffers. The sequential writer
	// evaluates its rollover condition against this.
	Size() int64

	// Close flushes and seals the split file.
	Close() error
}

// Reader is a read handle on a single bag split.
//
// A Reader is owned exclusively by one goroutine; it is not safe for
// concurrent use.
type Reader interface {
	// ReadNext returns the next message in the backend's stored order.
	// It returns io.EOF at the end of the split.
	//
	// Any other error wraps bag.ErrStorageRead.
	ReadNext() (*bag.SerializedMessage, error)

	// Topics returns the topics observed in the split so far. The full set
	// is only known once the split has been read to the end.
	Topics() []bag.TopicMetadata

	// Close releases the handle.
	Close() error
}

// Plugin is a storage backend factory.
//
// Backends are interchangeable: anything implementing Plugin can be selected
// by its identifier string, which is persisted in the bag metadata so a
// reader can pick the matching backend without trial-and-error.
type Plugin interface {
	// Identifier returns the backend's stable identifier tag.
	Identifier() string

	// FileExtension returns the suffix used for split files written by this
	// backend, including the leading dot.
	FileExtension() string

	// NewWriter opens a new split file at path for appending. A failure
	// (invalid path, unwritable location) wraps bag.ErrStorageOpen.
	NewWriter(path string) (Writer, error)

	// NewReader opens an existing split file at path. A failure (missing
	// file, unrecognized format) wraps bag.ErrStorageOpen.
	NewReader(path string) (Reader, error)
}
