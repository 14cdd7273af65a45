// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package compress

import (
	"io"

	"github.com/RobotecAI/rosbag2/bag"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// SnappyFormat is the format identifier of the snappy codec.
const SnappyFormat = "snappy"

// snappyCodec compresses with Google's snappy algorithm: CPU-friendly reads
// and writes with a decent compression ratio. Files use the framed stream
// format; messages use the block format.
type snappyCodec struct{}

func (snappyCodec) Format() string { return SnappyFormat }

func (snappyCodec) CompressFile(path string) (string, error) {
	return compressFile(path, "."+SnappyFormat, func(w io.Writer) io.WriteCloser {
		return snappy.NewBufferedWriter(w)
	})
}

func (snappyCodec) DecompressFile(path string) (string, error) {
	return decompressFile(path, "."+SnappyFormat, func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(snappy.NewReader(r)), nil
	})
}

func (snappyCodec) CompressMessage(msg *bag.SerializedMessage) (*bag.SerializedMessage, error) {
	out := *msg
	out.Data = snappy.Encode(nil, msg.Data)
	return &out, nil
}

func (snappyCodec) DecompressMessage(msg *bag.SerializedMessage) (*bag.SerializedMessage, error) {
	data, err := snappy.Decode(nil, msg.Data)
	if err != nil {
		return nil, errors.Wrapf(bag.ErrCompression, "snappy payload on %q: %v", msg.Topic, err)
	}
	out := *msg
	out.Data = data
	return &out, nil
}

func init() {
	Register(snappyCodec{})
}
