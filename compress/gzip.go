// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package compress

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/RobotecAI/rosbag2/bag"

	"github.com/pkg/errors"
)

// GzipFormat is the format identifier of the gzip codec.
const GzipFormat = "gzip"

// gzipCodec compresses with gzip. More CPU intensive than snappy, but also
// more efficient.
type gzipCodec struct{}

func (gzipCodec) Format() string { return GzipFormat }

func (gzipCodec) CompressFile(path string) (string, error) {
	return compressFile(path, ".gz", func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	})
}

func (gzipCodec) DecompressFile(path string) (string, error) {
	return decompressFile(path, ".gz", func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	})
}

func (gzipCodec) CompressMessage(msg *bag.SerializedMessage) (*bag.SerializedMessage, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(msg.Data); err != nil {
		return nil, errors.Wrapf(bag.ErrCompression, "gzip payload on %q: %v", msg.Topic, err)
	}
	if err := gw.Close(); err != nil {
		return nil, errors.Wrapf(bag.ErrCompression, "gzip payload on %q: %v", msg.Topic, err)
	}

	out := *msg
	out.Data = buf.Bytes()
	return &out, nil
}

func (gzipCodec) DecompressMessage(msg *bag.SerializedMessage) (*bag.SerializedMessage, error) {
	gr, err := gzip.NewReader(bytes.NewReader(msg.Data))
	if err != nil {
		return nil, errors.Wrapf(bag.ErrCompression, "gzip payload on %q: %v", msg.Topic, err)
	}
	data, err := io.ReadAll(gr)
	if err != nil {
		return nil, errors.Wrapf(bag.ErrCompression, "gzip payload on %q: %v", msg.Topic, err)
	}
	if err := gr.Close(); err != nil {
		return nil, errors.Wrapf(bag.ErrCompression, "gzip payload on %q: %v", msg.Topic, err)
	}

	out := *msg
	out.Data = data
	return &out, nil
}

func init() {
	Register(gzipCodec{})
}
