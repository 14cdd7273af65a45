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

// reader implements storage.Reader for the streamfile format.
type reader struct {
	fd *os.File
	r  dataio.Reader

	// topics holds every topic declared so far, indexed by stream index.
	topics []bag.TopicMetadata
}

func newReader(path string) (*reader, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(bag.ErrStorageOpen, "opening split %q: %v", path, err)
	}

	r := reader{
		fd: fd,
		r:  bufio.NewReaderSize(fd, writeBufferSize),
	}

	var hdr fileHeader
	if err := struc.Unpack(r.r, &hdr); err != nil {
		_ = fd.Close()
		return nil, errors.Wrapf(bag.ErrStorageOpen, "%q: reading header: %v", path, err)
	}
	if hdr.Magic != fileMagic {
		_ = fd.Close()
		return nil, errors.Wrapf(bag.ErrStorageOpen, "%q is not a streamfile split", path)
	}
	if hdr.Version != formatVersion {
		_ = fd.Close()
		return nil, errors.Wrapf(bag.ErrStorageOpen, "%q: unsupported format version %d",
			path, hdr.Version)
	}

	return &r, nil
}

// ReadNext returns the next message record in stored order, consuming any
// interleaved topic records along the way. It returns io.EOF at the end of
// the split.
func (r *reader) ReadNext() (*bag.SerializedMessage, error) {
	for {
		kind, err := r.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				// Clean end of split: EOF at a record boundary.
				return nil, io.EOF
			}
			return nil, errors.Wrapf(bag.ErrStorageRead, "reading record kind: %v", err)
		}

		switch kind {
		case recordKindTopic:
			var rec topicRecord
			if err := struc.Unpack(r.r, &rec); err != nil {
				return nil, errors.Wrapf(bag.ErrStorageRead, "reading topic record: %v", err)
			}
			r.topics = append(r.topics, bag.TopicMetadata{
				Name:                rec.Name,
				Type:                rec.Type,
				SerializationFormat: rec.Format,
				OfferedQoS:          rec.QoS,
			})

		case recordKindMessage:
			var rec messageRecord
			if err := struc.Unpack(r.r, &rec); err != nil {
				return nil, errors.Wrapf(bag.ErrStorageRead, "reading message record: %v", err)
			}
			if rec.TopicIndex >= uint32(len(r.topics)) {
				return nil, errors.Wrapf(bag.ErrStorageRead,
					"message references undeclared topic index %d", rec.TopicIndex)
			}
			if sum := xxhash.Sum64(rec.Data); sum != rec.Checksum {
				return nil, errors.Wrapf(bag.ErrStorageRead,
					"payload checksum mismatch on %q (want %x, got %x)",
					r.topics[rec.TopicIndex].Name, rec.Checksum, sum)
			}

			t := r.topics[rec.TopicIndex]
			return &bag.SerializedMessage{
				Topic:               t.Name,
				SerializationFormat: t.SerializationFormat,
				Data:                rec.Data,
				Timestamp:           time.Unix(0, rec.TimestampNs),
			}, nil

		default:
			return nil, errors.Wrapf(bag.ErrStorageRead, "unknown record kind 0x%02x", kind)
		}
	}
}

func (r *reader) Topics() []bag.TopicMetadata { return r.topics }

func (r *reader) Close() error {
	if r.fd == nil {
		return nil
	}
	err := r.fd.Close()
	r.fd = nil
	return err
}
