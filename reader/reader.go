// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package reader implements the sequential bag reader: it walks a bag's
// splits in temporal order, reverses the recorded compression, and yields
// messages one at a time with optional topic filtering and time-based
// seeking.
package reader

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/RobotecAI/rosbag2/bag"
	"github.com/RobotecAI/rosbag2/compress"
	"github.com/RobotecAI/rosbag2/storage"
	"github.com/RobotecAI/rosbag2/support/fsutil"
	"github.com/RobotecAI/rosbag2/support/logging"
	"github.com/RobotecAI/rosbag2/support/stagingdir"

	"github.com/pkg/errors"
)

// Options configures a sequential Reader.
type Options struct {
	// Topics is an allow-list of topic names. If empty, all topics are
	// yielded.
	Topics []string

	// TempDir is the directory used to scratch-decompress file-compressed
	// splits. The system default is used when empty.
	TempDir string

	// Logger is the logger instance to use. If nil, no logging will be
	// performed.
	Logger logging.L
}

// Reader reads one logical bag sequentially.
//
// A Reader is owned exclusively by one goroutine; it is not safe for
// concurrent use.
type Reader struct {
	opts   Options
	logger logging.L

	path   string
	md     *bag.Metadata
	plugin storage.Plugin
	codec  compress.Codec
	mode   compress.Mode

	filter map[string]struct{}

	// splits are the bag's split descriptors, sorted by start time. next
	// indexes the first split not yet opened.
	splits []bag.FileInformation
	next   int

	// cur is the open split, or nil between splits. curScratch holds the
	// decompressed copy of a file-compressed split for cleanup when cur is
	// exhausted.
	cur        storage.Reader
	curScratch string

	// pending buffers a message consumed ahead of its turn by Seek.
	pending *bag.SerializedMessage

	scratch *stagingdir.D

	closed bool
}

// Open opens the bag at path for sequential reading.
//
// The bag's metadata descriptor selects the storage backend and compression
// codec; both must be linked into the binary.
func Open(path string, opts Options) (*Reader, error) {
	md, err := bag.LoadMetadata(path)
	if err != nil {
		return nil, err
	}

	plugin, err := storage.Lookup(md.StorageIdentifier)
	if err != nil {
		return nil, err
	}

	mode, err := compress.ParseMode(md.CompressionMode)
	if err != nil {
		return nil, errors.Wrapf(bag.ErrMetadataCorrupt, "%s", err)
	}
	var codec compress.Codec
	if mode != compress.ModeNone {
		if codec, err = compress.Lookup(md.CompressionFormat); err != nil {
			return nil, err
		}
	}

	r := Reader{
		opts:   opts,
		logger: logging.Must(opts.Logger),
		path:   path,
		md:     md,
		plugin: plugin,
		codec:  codec,
		mode:   mode,
		splits: append([]bag.FileInformation(nil), md.Files...),
	}
	sort.Slice(r.splits, func(i, j int) bool {
		return r.splits[i].StartTimeNs < r.splits[j].StartTimeNs
	})

	if len(opts.Topics) > 0 {
		r.filter = make(map[string]struct{}, len(opts.Topics))
		for _, t := range opts.Topics {
			r.filter[t] = struct{}{}
		}
	}

	return &r, nil
}

// Metadata returns the bag's metadata descriptor.
func (r *Reader) Metadata() *bag.Metadata { return r.md }

// ReadNext returns the next message in the bag's stored order, transparently
// crossing split boundaries. It returns io.EOF once the bag is exhausted.
//
// A damaged split is skipped with a warning rather than ending the read;
// storage errors other than a clean end-of-split are only returned when no
// further split can be opened.
func (r *Reader) ReadNext() (*bag.SerializedMessage, error) {
	if r.closed {
		return nil, errors.Wrap(bag.ErrStorageRead, "reader is closed")
	}

	for {
		var msg *bag.SerializedMessage
		if r.pending != nil {
			msg, r.pending = r.pending, nil
		} else {
			if r.cur == nil {
				if err := r.beginNextSplit(); err != nil {
					return nil, err
				}
			}

			var err error
			if msg, err = r.cur.ReadNext(); err != nil {
				if err != io.EOF {
					r.logger.Warnf("Abandoning damaged split: %s", err)
				}
				r.finishSplit()
				continue
			}
		}

		if r.filter != nil {
			if _, ok := r.filter[msg.Topic]; !ok {
				continue
			}
		}

		if r.mode == compress.ModeMessage {
			decompressed, err := r.codec.DecompressMessage(msg)
			if err != nil {
				r.logger.Warnf("Dropping undecompressable message on %q: %s", msg.Topic, err)
				continue
			}
			msg = decompressed
		}
		return msg, nil
	}
}

// Seek positions the reader so the next ReadNext returns the earliest message
// whose timestamp is >= t.
//
// Seeking backwards is allowed; the reader re-opens splits as needed.
func (r *Reader) Seek(t time.Time) error {
	if r.closed {
		return errors.Wrap(bag.ErrStorageRead, "reader is closed")
	}

	r.finishSplit()

	// Restart from the first split whose time range can contain t. Splits
	// are non-overlapping and ordered, so everything ending before t can be
	// skipped wholesale.
	tns := t.UnixNano()
	r.next = 0
	for r.next < len(r.splits) {
		fi := r.splits[r.next]
		if fi.StartTimeNs+fi.DurationNs >= tns {
			break
		}
		r.next++
	}
	if r.next >= len(r.splits) {
		return nil // Next ReadNext reports io.EOF.
	}

	if err := r.beginNextSplit(); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	// Scan within the split up to the first message at or past t.
	for {
		msg, err := r.cur.ReadNext()
		if err != nil {
			if err != io.EOF {
				r.logger.Warnf("Abandoning damaged split during seek: %s", err)
			}
			r.finishSplit()
			return nil
		}
		if !msg.Timestamp.Before(t) {
			r.pending = msg
			return nil
		}
	}
}

// beginNextSplit opens the next split, decompressing it into the scratch
// directory first when the bag is file-compressed.
//
// Splits that cannot be opened are skipped with a warning. io.EOF is returned
// once no split remains.
func (r *Reader) beginNextSplit() error {
	for r.next < len(r.splits) {
		fi := r.splits[r.next]
		r.next++

		path := filepath.Join(r.path, fi.Path)
		scratchPath := ""
		if r.mode == compress.ModeFile {
			decompressed, err := r.scratchDecompress(path, fi.Path)
			if err != nil {
				r.logger.Warnf("Skipping split %q: %s", fi.Path, err)
				continue
			}
			path, scratchPath = decompressed, decompressed
		}

		sr, err := r.plugin.NewReader(path)
		if err != nil {
			r.logger.Warnf("Skipping unreadable split %q: %s", fi.Path, err)
			if scratchPath != "" {
				_ = os.Remove(scratchPath)
			}
			continue
		}

		r.cur, r.curScratch = sr, scratchPath
		return nil
	}
	return io.EOF
}

// finishSplit closes the open split, if any, and removes its scratch copy.
func (r *Reader) finishSplit() {
	r.pending = nil
	if r.cur == nil {
		return
	}
	if err := r.cur.Close(); err != nil {
		r.logger.Warnf("Failed to close split: %s", err)
	}
	r.cur = nil

	if r.curScratch != "" {
		_ = os.Remove(r.curScratch)
		r.curScratch = ""
	}
}

// scratchDecompress clones the compressed split at srcPath into the scratch
// directory and decompresses it there, leaving the bag directory untouched.
func (r *Reader) scratchDecompress(srcPath, name string) (string, error) {
	if r.scratch == nil {
		scratch, err := stagingdir.New(r.opts.TempDir, "decompress")
		if err != nil {
			return "", errors.Wrap(err, "creating scratch directory")
		}
		r.scratch = scratch
	}

	clone := r.scratch.Path(name)
	if err := fsutil.HardLinkOrCopy(srcPath, clone); err != nil {
		return "", errors.Wrapf(err, "cloning split %q", srcPath)
	}

	decompressed, err := r.codec.DecompressFile(clone)
	_ = os.Remove(clone) // Only the decompressed copy is needed.
	return decompressed, err
}

// Close releases the reader and purges its scratch directory.
//
// Closing is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	r.finishSplit()
	if r.scratch != nil {
		return r.scratch.Destroy()
	}
	return nil
}
