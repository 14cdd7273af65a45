// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package streamfile

import (
	"bufio"
	"io"
	"os"
	"time"

	"github.com/RobotecAI/rosbag2/bag"
	"github.com/RobotecAI/rosbag2/support/dataio"

	"github.com/cespare/xxhash/v2"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// Buffer size for split file writes (4MB). Message payloads can be large;
// a big buffer keeps syscall counts down.
const writeBufferSize = 1024 * 1024 * 4

// countingWriter tracks the number of bytes logically written to the split,
// regardless of how many have been flushed to disk yet.
type countingWriter struct {
	dataio.Writer
	n int64
}

func (cw *countingWriter) Write(d []byte) (int, error) {
	amt, err := cw.Writer.Write(d)
	cw.n += int64(amt)
	return amt, err
}

func (cw *countingWriter) WriteByte(c byte) error {
	if err := cw.Writer.WriteByte(c); err != nil {
		return err
	}
	cw.n++
	return nil
}

// writer implements storage.Writer for the streamfile format.
type writer struct {
	fd *os.File
	bw *bufio.Writer
	cw countingWriter

	// topicIndexes maps topic name to its assigned stream index.
	topicIndexes map[string]uint32
	topics       []bag.TopicMetadata

	// Split-local statistics.
	messageCount int64
	firstTime    time.Time
	lastTime     time.Time

	failed bool
}

func newWriter(path string) (*writer, error) {
	fd, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(bag.ErrStorageOpen, "creating split %q: %v", path, err)
	}

	w := writer{
		fd:           fd,
		bw:           bufio.NewWriterSize(fd, writeBufferSize),
		topicIndexes: make(map[string]uint32),
	}
	w.cw.Writer = dataio.MakeWriter(w.bw)

	hdr := fileHeader{Magic: fileMagic, Version: formatVersion}
	if err := struc.Pack(&w.cw, &hdr); err != nil {
		_ = fd.Close()
		return nil, errors.Wrapf(bag.ErrStorageOpen, "writing header to %q: %v", path, err)
	}
	return &w, nil
}

func (w *writer) CreateTopic(t bag.TopicMetadata) error {
	if _, ok := w.topicIndexes[t.Name]; ok {
		return nil
	}
	return w.writeTopicRecord(t)
}

func (w *writer) WriteMessage(msg *bag.SerializedMessage) error {
	if w.failed {
		return errors.Wrap(bag.ErrStorageWrite, "split is in a failed state")
	}

	// Register the topic on first observation if it wasn't created
	// explicitly.
	index, ok := w.topicIndexes[msg.Topic]
	if !ok {
		if err := w.writeTopicRecord(bag.TopicMetadata{
			Name:                msg.Topic,
			SerializationFormat: msg.SerializationFormat,
		}); err != nil {
			return err
		}
		index = w.topicIndexes[msg.Topic]
	}

	rec := messageRecord{
		TopicIndex:  index,
		TimestampNs: msg.Timestamp.UnixNano(),
		Checksum:    xxhash.Sum64(msg.Data),
		Data:        msg.Data,
	}
	if err := w.writeRecord(recordKindMessage, &rec); err != nil {
		return err
	}

	w.messageCount++
	if w.firstTime.IsZero() || msg.Timestamp.Before(w.firstTime) {
		w.firstTime = msg.Timestamp
	}
	if msg.Timestamp.After(w.lastTime) {
		w.lastTime = msg.Timestamp
	}
	return nil
}

func (w *writer) writeTopicRecord(t bag.TopicMetadata) error {
	rec := topicRecord{
		Name:   t.Name,
		Type:   t.Type,
		Format: t.SerializationFormat,
		QoS:    t.OfferedQoS,
	}
	if err := w.writeRecord(recordKindTopic, &rec); err != nil {
		return err
	}

	w.topicIndexes[t.Name] = uint32(len(w.topics))
	w.topics = append(w.topics, t)
	return nil
}

func (w *writer) writeRecord(kind byte, rec interface{}) error {
	if err := w.cw.WriteByte(kind); err != nil {
		return w.writeFailed(err)
	}
	if err := struc.Pack(&w.cw, rec); err != nil {
		return w.writeFailed(err)
	}
	return nil
}

// writeFailed marks the split failed and wraps err. A split that has failed a
// write is never appended to again; the caller must seal and discard it.
func (w *writer) writeFailed(err error) error {
	w.failed = true
	return errors.Wrapf(bag.ErrStorageWrite, "%s: %v", w.fd.Name(), err)
}

func (w *writer) Info() bag.FileInformation {
	fi := bag.FileInformation{
		MessageCount: w.messageCount,
	}
	if !w.firstTime.IsZero() {
		fi.StartTimeNs = w.firstTime.UnixNano()
		fi.DurationNs = w.lastTime.Sub(w.firstTime).Nanoseconds()
	}
	return fi
}

func (w *writer) Size() int64 { return w.cw.n }

func (w *writer) Close() error {
	if w.fd == nil {
		return nil
	}

	flushErr := w.bw.Flush()
	closeErr := w.fd.Close()
	w.fd = nil

	if flushErr != nil {
		return errors.Wrapf(bag.ErrStorageWrite, "flushing split: %v", flushErr)
	}
	if closeErr != nil {
		return errors.Wrapf(bag.ErrStorageWrite, "closing split: %v", closeErr)
	}
	return nil
}

var _ io.Writer = (*countingWriter)(nil)
