// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package writer implements the sequential bag writer: it owns the active
// split, applies the configured compression, rolls over to a new split when a
// size or duration bound is reached, and aggregates the bag metadata
// descriptor.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RobotecAI/rosbag2/bag"
	"github.com/RobotecAI/rosbag2/compress"
	"github.com/RobotecAI/rosbag2/storage"
	"github.com/RobotecAI/rosbag2/support/logging"
	"github.com/RobotecAI/rosbag2/support/stagingdir"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultStorage is the storage identifier used when Options.Storage is
// empty. The backend must still be linked into the binary (blank import of
// storage/streamfile).
const DefaultStorage = "streamfile"

// Options configures a sequential Writer.
//
// The zero value records uncompressed, unbounded splits with the default
// storage backend.
type Options struct {
	// Storage is the storage backend identifier. Empty selects
	// DefaultStorage.
	Storage string

	// CompressionMode selects no compression, whole-file compression of
	// sealed splits, or per-message payload compression.
	// CompressionFormat names the codec; it is required unless the mode is
	// ModeNone.
	CompressionMode   compress.Mode
	CompressionFormat string

	// MaxSplitSize triggers a rollover once the active split reaches this
	// many bytes. Zero disables the size bound.
	MaxSplitSize int64

	// MaxSplitDuration triggers a rollover once the active split covers
	// this much time. Zero disables the duration bound.
	MaxSplitDuration time.Duration

	// TempDir is the directory used to stage the bag while recording. The
	// system default is used when empty.
	TempDir string

	// RosDistro tags the written metadata for compatibility checks.
	RosDistro string

	// Logger is the logger instance to use. If nil, no logging will be
	// performed.
	Logger logging.L
}

// Writer writes one logical bag: a sequence of splits plus a metadata
// descriptor, built in a staging directory and atomically committed to its
// destination on Close.
//
// Exactly one goroutine may call Write at a time. Close may be called from
// another goroutine once writing has ceased.
type Writer struct {
	opts   Options
	logger logging.L

	plugin storage.Plugin
	codec  compress.Codec

	mu sync.Mutex

	stagingDir *stagingdir.D
	destPath   string
	baseName   string

	// split is the active split, or nil once closed.
	split     storage.Writer
	splitPath string
	splitSeq  int

	md          bag.Metadata
	topicCounts map[string]*bag.TopicInformation
	topicOrder  []string

	closed bool
	failed bool
}

// Open creates the bag's first split and returns a Writer in the open state.
//
// dest is the bag directory to create on Close; its base name becomes the
// split file base name.
func Open(dest string, opts Options) (*Writer, error) {
	storageID := opts.Storage
	if storageID == "" {
		storageID = DefaultStorage
	}
	plugin, err := storage.Lookup(storageID)
	if err != nil {
		return nil, err
	}

	mode := opts.CompressionMode
	if mode == "" {
		mode = compress.ModeNone
	}
	var codec compress.Codec
	if mode != compress.ModeNone {
		if codec, err = compress.Lookup(opts.CompressionFormat); err != nil {
			return nil, err
		}
	}

	staging, err := stagingdir.New(opts.TempDir, filepath.Base(dest))
	if err != nil {
		return nil, errors.Wrap(err, "creating staging directory")
	}
	defer func() {
		// Cleanup if we failed to complete our creation.
		if staging != nil {
			_ = staging.Destroy()
		}
	}()

	w := Writer{
		opts:        opts,
		logger:      logging.Must(opts.Logger),
		plugin:      plugin,
		codec:       codec,
		destPath:    dest,
		baseName:    filepath.Base(dest),
		topicCounts: make(map[string]*bag.TopicInformation),
		md: bag.Metadata{
			RecordingID:       uuid.NewString(),
			WriterVersion:     bag.WriterVersion,
			RosDistro:         opts.RosDistro,
			StorageIdentifier: plugin.Identifier(),
			CompressionMode:   string(mode),
			CompressionFormat: opts.CompressionFormat,
		},
	}
	w.opts.CompressionMode = mode
	w.stagingDir = staging

	if err := w.openSplit(); err != nil {
		w.stagingDir = nil
		return nil, err
	}

	staging = nil // Don't destroy, owned by w.
	return &w, nil
}

// Path returns the destination path of the bag being written.
func (w *Writer) Path() string { return w.destPath }

// Metadata returns a snapshot of the bag metadata accumulated so far.
func (w *Writer) Metadata() bag.Metadata {
	w.mu.Lock()
	defer w.mu.Unlock()

	md := w.md
	md.Files = append([]bag.FileInformation(nil), w.md.Files...)
	md.Topics = w.topicSnapshotLocked()
	if w.split != nil {
		// Fold the active split's running statistics in as if it were
		// sealed now.
		fi := w.split.Info()
		if fi.MessageCount > 0 {
			fi.SizeBytes = w.split.Size()
			md.Files = append(md.Files, fi)
		}
	}
	aggregateMetadata(&md)
	return md
}

// CreateTopic registers a topic with the bag ahead of its first message.
func (w *Writer) CreateTopic(t bag.TopicMetadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.Wrap(bag.ErrWriterClosed, "creating topic")
	}

	w.observeTopicLocked(t)
	return w.split.CreateTopic(t)
}

// Write appends msg to the bag, applying per-message compression when
// configured, and rolls the active split over if a configured bound has been
// reached.
//
// Storage and compression errors are fatal for the recording session: the
// Writer refuses further writes and the caller should Close.
func (w *Writer) Write(msg *bag.SerializedMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.closed:
		return errors.Wrap(bag.ErrWriterClosed, "writing message")
	case w.failed:
		return errors.Wrap(bag.ErrStorageWrite, "writer is in a failed state")
	}

	w.observeTopicLocked(bag.TopicMetadata{
		Name:                msg.Topic,
		SerializationFormat: msg.SerializationFormat,
	})

	if w.opts.CompressionMode == compress.ModeMessage {
		compressed, err := w.codec.CompressMessage(msg)
		if err != nil {
			w.failed = true
			return err
		}
		msg = compressed
	}

	if err := w.split.WriteMessage(msg); err != nil {
		w.failed = true
		return err
	}
	w.topicCounts[msg.Topic].MessageCount++

	return w.maybeRolloverLocked()
}

// maybeRolloverLocked seals the active split and opens the next one if
// either configured bound has been reached.
func (w *Writer) maybeRolloverLocked() error {
	size := w.split.Size()
	duration := time.Duration(w.split.Info().DurationNs)

	sizeBound := w.opts.MaxSplitSize > 0 && size >= w.opts.MaxSplitSize
	durationBound := w.opts.MaxSplitDuration > 0 && duration >= w.opts.MaxSplitDuration
	if !sizeBound && !durationBound {
		return nil
	}

	w.logger.Infof("Rolling over split #%d (size=%d, duration=%s).", w.splitSeq, size, duration)
	if err := w.sealSplitLocked(); err != nil {
		w.failed = true
		return err
	}
	if err := w.openSplit(); err != nil {
		w.failed = true
		return err
	}
	return nil
}

func (w *Writer) openSplit() error {
	name := fmt.Sprintf("%s_%d%s", w.baseName, w.splitSeq, w.plugin.FileExtension())
	path := w.stagingDir.Path(name)

	split, err := w.plugin.NewWriter(path)
	if err != nil {
		return err
	}
	w.split, w.splitPath = split, path
	w.splitSeq++
	return nil
}

// sealSplitLocked closes the active split, applies whole-file compression
// when configured, and appends the split's descriptor to the bag metadata.
//
// An empty trailing split is deleted rather than recorded.
func (w *Writer) sealSplitLocked() error {
	fi := w.split.Info()
	closeErr := w.split.Close()
	w.split = nil

	if closeErr != nil {
		return closeErr
	}

	if fi.MessageCount == 0 {
		_ = os.Remove(w.splitPath)
		return nil
	}

	path := w.splitPath
	if w.opts.CompressionMode == compress.ModeFile {
		compressed, err := w.codec.CompressFile(path)
		if err != nil {
			return err
		}
		path = compressed
	}

	st, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(bag.ErrStorageWrite, "stat sealed split %q: %v", path, err)
	}

	fi.Path = filepath.Base(path)
	fi.SizeBytes = st.Size()
	w.md.Files = append(w.md.Files, fi)
	return nil
}

// Close seals the active split, finalizes the metadata descriptor, and
// commits the staged bag directory to its destination.
//
// Close must be called exactly once; subsequent calls report
// bag.ErrWriterClosed. Close is best-effort after a failed write: it still
// seals and persists whatever was recorded.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.Wrap(bag.ErrWriterClosed, "already closed")
	}
	w.closed = true

	// Always delete our staging directory. If it's been committed, this
	// will be a no-op.
	defer func() {
		_ = w.stagingDir.Destroy()
	}()

	var firstErr error
	if w.split != nil {
		if err := w.sealSplitLocked(); err != nil {
			w.logger.Errorf("Failed to seal final split: %s", err)
			firstErr = err
		}
	}

	// If nothing was recorded, don't commit an empty bag.
	if len(w.md.Files) == 0 {
		return firstErr
	}

	w.md.Topics = w.topicSnapshotLocked()
	aggregateMetadata(&w.md)

	if err := w.md.Write(w.stagingDir.Root()); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		return firstErr
	}

	if err := w.stagingDir.Commit(w.destPath); err != nil {
		if firstErr == nil {
			firstErr = errors.Wrap(err, "committing staging directory")
		}
	}
	return firstErr
}

// aggregateMetadata recomputes the bag-level statistics from the split
// descriptors.
func aggregateMetadata(md *bag.Metadata) {
	var (
		count int64
		size  int64
		first int64
		last  int64
		seen  bool
	)
	for i := range md.Files {
		fi := &md.Files[i]
		count += fi.MessageCount
		size += fi.SizeBytes
		if fi.MessageCount == 0 {
			continue
		}
		// A start of 0 is a valid timestamp (the Unix epoch), so track
		// whether any split contributed rather than using 0 as "unset".
		if !seen || fi.StartTimeNs < first {
			first = fi.StartTimeNs
		}
		if end := fi.StartTimeNs + fi.DurationNs; !seen || end > last {
			last = end
		}
		seen = true
	}

	md.MessageCount = count
	md.SizeBytes = size
	md.StartTimeNs = first
	md.DurationNs = 0
	if seen {
		md.DurationNs = last - first
	}
}

// observeTopicLocked tracks a topic in registration order, preserving any
// richer metadata registered earlier.
func (w *Writer) observeTopicLocked(t bag.TopicMetadata) {
	if ti, ok := w.topicCounts[t.Name]; ok {
		// Fill in fields learned late, e.g. a message carrying the format
		// after a bare registration.
		if ti.Topic.SerializationFormat == "" {
			ti.Topic.SerializationFormat = t.SerializationFormat
		}
		return
	}
	w.topicCounts[t.Name] = &bag.TopicInformation{Topic: t}
	w.topicOrder = append(w.topicOrder, t.Name)
}

func (w *Writer) topicSnapshotLocked() []bag.TopicInformation {
	topics := make([]bag.TopicInformation, 0, len(w.topicOrder))
	for _, name := range w.topicOrder {
		topics = append(topics, *w.topicCounts[name])
	}
	return topics
}
