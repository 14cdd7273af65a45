// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package compress defines the pluggable compression contract applied to
// sealed split files (file granularity) or to individual serialized messages
// (message granularity), and the registry through which codecs are selected
// by format string at runtime.
package compress

import (
	"sort"
	"sync"

	"github.com/RobotecAI/rosbag2/bag"

	"github.com/pkg/errors"
)

// Mode selects the granularity at which compression is applied.
type Mode string

const (
	// ModeNone disables compression.
	ModeNone Mode = "none"
	// ModeFile compresses each sealed split file as a whole.
	ModeFile Mode = "file"
	// ModeMessage compresses each message payload before it is written.
	ModeMessage Mode = "message"
)

// ParseMode parses a compression mode string. The empty string parses as
// ModeNone.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeNone:
		return ModeNone, nil
	case ModeFile:
		return ModeFile, nil
	case ModeMessage:
		return ModeMessage, nil
	default:
		return "", errors.Errorf("unknown compression mode: %q", s)
	}
}

// Codec is a compression codec.
//
// Compression is a pure transform: it must not reorder or drop data, and
// decompressing a compressed artifact reproduces the exact original bytes.
// All failures wrap bag.ErrCompression.
type Codec interface {
	// Format returns the codec's stable format identifier.
	Format() string

	// CompressFile compresses the file at path as a whole, producing a
	// sibling file with the codec's extension appended and removing the
	// original. It returns the compressed file's path.
	CompressFile(path string) (string, error)

	// DecompressFile reverses CompressFile, producing a sibling file with
	// the codec's extension stripped. The compressed input is left in
	// place. It returns the decompressed file's path.
	DecompressFile(path string) (string, error)

	// CompressMessage returns a copy of msg whose payload bytes are
	// compressed. Topic and timestamp are unchanged.
	CompressMessage(msg *bag.SerializedMessage) (*bag.SerializedMessage, error)

	// DecompressMessage reverses CompressMessage.
	DecompressMessage(msg *bag.SerializedMessage) (*bag.SerializedMessage, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Codec{}
)

// Register registers a codec under its format identifier.
//
// Registering two codecs with the same format panics; this is a programming
// error.
func Register(c Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()

	format := c.Format()
	if _, ok := registry[format]; ok {
		panic(errors.Errorf("compression codec %q registered twice", format))
	}
	registry[format] = c
}

// Lookup returns the codec registered under format.
//
// If no codec matches, Lookup returns an error wrapping bag.ErrCompression.
func Lookup(format string) (Codec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	c, ok := registry[format]
	if !ok {
		return nil, errors.Wrapf(bag.ErrCompression, "unsupported codec %q (available: %v)",
			format, formatsLocked())
	}
	return c, nil
}

// Formats returns the format identifiers of all registered codecs, sorted.
func Formats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return formatsLocked()
}

func formatsLocked() []string {
	formats := make([]string, 0, len(registry))
	for format := range registry {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}
