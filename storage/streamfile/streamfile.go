// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package streamfile implements the default storage backend: an append-only
// binary stream of records.
//
// A split file consists of a fixed header followed by a sequence of records.
// Each record is a kind byte followed by a packed record body:
//
//   - A topic record declares a topic (name, type, serialization format,
//     QoS) and implicitly assigns it the next topic index. Topic records are
//     interleaved with message records; a topic is declared before its first
//     message.
//   - A message record references its topic by index and carries the receive
//     timestamp, an xxhash64 checksum of the payload, and the payload bytes.
//
// The stored record order is exactly the write order, which the sequential
// writer guarantees is non-decreasing in timestamp per topic.
package streamfile

import (
	"github.com/RobotecAI/rosbag2/storage"
)

const (
	// StorageIdentifier is the identifier this backend registers under.
	StorageIdentifier = "streamfile"

	// FileExtension is the suffix used for split files.
	FileExtension = ".stream"

	// formatVersion is the stream format version written into the file
	// header. Files with a different version are rejected.
	formatVersion = 1
)

// fileMagic opens every split file.
var fileMagic = [4]byte{'R', 'B', 'A', 'G'}

// Record kinds.
const (
	recordKindTopic   = 0x01
	recordKindMessage = 0x02
)

// fileHeader is the fixed header at the start of every split file.
type fileHeader struct {
	Magic   [4]byte
	Version uint8
}

// topicRecord declares a topic within the stream. The topic is assigned the
// next sequential topic index, counted from zero in declaration order.
type topicRecord struct {
	NameLen   uint16 `struc:"uint16,sizeof=Name"`
	Name      string
	TypeLen   uint16 `struc:"uint16,sizeof=Type"`
	Type      string
	FormatLen uint16 `struc:"uint16,sizeof=Format"`
	Format    string
	QoSLen    uint16 `struc:"uint16,sizeof=QoS"`
	QoS       string
}

// messageRecord is one serialized message within the stream.
type messageRecord struct {
	TopicIndex  uint32
	TimestampNs int64
	Checksum    uint64
	DataLen     uint32 `struc:"uint32,sizeof=Data"`
	Data        []byte
}

// plugin implements storage.Plugin for the streamfile format.
type plugin struct{}

func (plugin) Identifier() string    { return StorageIdentifier }
func (plugin) FileExtension() string { return FileExtension }

func (plugin) NewWriter(path string) (storage.Writer, error) { return newWriter(path) }
func (plugin) NewReader(path string) (storage.Reader, error) { return newReader(path) }

func init() {
	storage.Register(plugin{})
}
