// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"github.com/pkg/errors"
)

// Sentinel errors classifying the failure modes of the recording pipeline.
//
// Errors returned by this module wrap one of these sentinels with contextual
// detail; use errors.Cause (or errors.Is) to classify.
var (
	// ErrStorageOpen is returned when a storage backend cannot open a split
	// file: the path is invalid, unwritable, or not a recognized format.
	ErrStorageOpen = errors.New("could not open storage")

	// ErrStorageWrite is returned on an I/O failure while appending a
	// message. It is fatal for the current split.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrStorageRead is returned on an I/O or corruption failure while
	// reading a split.
	ErrStorageRead = errors.New("storage read failed")

	// ErrCompression is returned when a compression codec fails: corrupt
	// input or an unsupported format.
	ErrCompression = errors.New("compression failed")

	// ErrUnsupportedStorage is returned when a bag declares a storage
	// identifier with no registered backend.
	ErrUnsupportedStorage = errors.New("unsupported storage identifier")

	// ErrQueueClosed is returned when pushing to a closed message queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrBagNotFound is returned when the bag directory does not exist.
	ErrBagNotFound = errors.New("bag not found")

	// ErrMetadataCorrupt is returned when the bag's metadata descriptor
	// cannot be parsed or declares an incompatible version. This is always
	// fatal; no partial-bag inference is attempted.
	ErrMetadataCorrupt = errors.New("bag metadata is corrupt")

	// ErrWriterClosed is returned when writing to, or re-closing, a writer
	// that has already been closed.
	ErrWriterClosed = errors.New("writer is closed")
)
