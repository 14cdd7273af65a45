// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// MetadataFileName is the name of the bag's metadata descriptor, stored
	// alongside the split files in the bag directory.
	MetadataFileName = "metadata.yaml"

	// metadataVersion is the descriptor version written by this library.
	// Descriptors with a greater version are rejected on load.
	metadataVersion = 1

	// WriterVersion tags every written bag for forward-compatibility checks.
	WriterVersion = "rosbag2-go/0.1.0"
)

// FileInformation describes one split file belonging to a bag.
type FileInformation struct {
	// Path is the split file path, relative to the bag directory.
	Path string `yaml:"path"`

	// StartTimeNs and DurationNs are the split's time bounds. They exactly
	// match the minimum and maximum receive timestamps of the messages the
	// split contains.
	StartTimeNs int64 `yaml:"start_time_ns"`
	DurationNs  int64 `yaml:"duration_ns"`

	// MessageCount is the number of messages stored in the split.
	MessageCount int64 `yaml:"message_count"`

	// SizeBytes is the on-disk size of the split file.
	SizeBytes int64 `yaml:"size_bytes"`
}

// StartTime returns the timestamp of the earliest message in the split.
func (fi *FileInformation) StartTime() time.Time { return time.Unix(0, fi.StartTimeNs) }

// EndTime returns the timestamp of the latest message in the split.
func (fi *FileInformation) EndTime() time.Time {
	return time.Unix(0, fi.StartTimeNs+fi.DurationNs)
}

// Duration returns the time span covered by the split.
func (fi *FileInformation) Duration() time.Duration {
	return time.Duration(fi.DurationNs)
}

// TopicInformation pairs a recorded topic with its bag-wide message count.
type TopicInformation struct {
	Topic        TopicMetadata `yaml:"topic_metadata"`
	MessageCount int64         `yaml:"message_count"`
}

// Metadata is the logical-bag descriptor, serialized to a human-readable YAML
// sidecar (MetadataFileName) in the bag directory.
//
// It is mutated incrementally by the sequential writer as splits close,
// finalized on recording stop, and consumed read-only by the sequential
// reader to plan split traversal.
type Metadata struct {
	Version int `yaml:"version"`

	// RecordingID uniquely identifies this recording session.
	RecordingID string `yaml:"recording_id"`

	// WriterVersion and RosDistro tag the software that produced the bag.
	WriterVersion string `yaml:"writer_version"`
	RosDistro     string `yaml:"ros_distro,omitempty"`

	// StorageIdentifier names the storage backend that wrote the splits, so
	// a reader can pick the matching backend without trial-and-error.
	StorageIdentifier string `yaml:"storage_identifier"`

	// CompressionMode is one of "none", "file" or "message".
	// CompressionFormat names the codec when the mode is not "none".
	CompressionMode   string `yaml:"compression_mode"`
	CompressionFormat string `yaml:"compression_format,omitempty"`

	// Files lists every split belonging to the bag, in write order.
	Files []FileInformation `yaml:"files"`

	// Topics lists every recorded topic with its message count.
	Topics []TopicInformation `yaml:"topics_with_message_count"`

	// Aggregate statistics over all splits.
	StartTimeNs  int64 `yaml:"start_time_ns"`
	DurationNs   int64 `yaml:"duration_ns"`
	MessageCount int64 `yaml:"message_count"`
	SizeBytes    int64 `yaml:"bag_size_bytes"`
}

// StartTime returns the timestamp of the earliest message in the bag.
func (md *Metadata) StartTime() time.Time { return time.Unix(0, md.StartTimeNs) }

// Duration returns the time span covered by the bag.
func (md *Metadata) Duration() time.Duration { return time.Duration(md.DurationNs) }

// RelativeFilePaths returns the split file paths, in order.
func (md *Metadata) RelativeFilePaths() []string {
	paths := make([]string, len(md.Files))
	for i := range md.Files {
		paths[i] = md.Files[i].Path
	}
	return paths
}

// TopicCount returns the recorded message count for the named topic, or zero
// if the topic is not part of the bag.
func (md *Metadata) TopicCount(name string) int64 {
	for i := range md.Topics {
		if md.Topics[i].Topic.Name == name {
			return md.Topics[i].MessageCount
		}
	}
	return 0
}

// LoadMetadata loads and validates the metadata descriptor from the bag
// directory at path.
//
// A missing descriptor yields ErrBagNotFound; an unparseable descriptor or
// one written by a newer library version yields ErrMetadataCorrupt.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(path, MetadataFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrBagNotFound, "no %s in %q", MetadataFileName, path)
		}
		return nil, errors.Wrap(err, "reading metadata descriptor")
	}

	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, errors.Wrapf(ErrMetadataCorrupt, "parsing %s: %v", MetadataFileName, err)
	}

	if md.Version > metadataVersion {
		return nil, errors.Wrapf(ErrMetadataCorrupt,
			"descriptor version %d is newer than supported version %d (written by %q)",
			md.Version, metadataVersion, md.WriterVersion)
	}
	if md.StorageIdentifier == "" {
		return nil, errors.Wrap(ErrMetadataCorrupt, "descriptor has no storage identifier")
	}

	return &md, nil
}

// Write serializes the descriptor to MetadataFileName inside dir.
func (md *Metadata) Write(dir string) error {
	md.Version = metadataVersion

	data, err := yaml.Marshal(md)
	if err != nil {
		return errors.Wrap(err, "marshaling metadata descriptor")
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFileName), data, 0644); err != nil {
		return errors.Wrap(err, "writing metadata descriptor")
	}
	return nil
}
