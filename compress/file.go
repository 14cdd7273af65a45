// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package compress

import (
	"io"
	"os"
	"strings"

	"github.com/RobotecAI/rosbag2/bag"

	"github.com/pkg/errors"
)

// compressFile streams the file at path through the codec writer produced by
// wrap, writing path+ext and removing the original on success.
func compressFile(path, ext string, wrap func(io.Writer) io.WriteCloser) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "opening %q: %v", path, err)
	}
	defer func() {
		_ = in.Close()
	}()

	dest := path + ext
	out, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "creating %q: %v", dest, err)
	}
	defer func() {
		if out != nil {
			_ = out.Close()
			_ = os.Remove(dest)
		}
	}()

	cw := wrap(out)
	if _, err := io.Copy(cw, in); err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "compressing %q: %v", path, err)
	}
	if err := cw.Close(); err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "finalizing %q: %v", dest, err)
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "closing %q: %v", dest, err)
	}
	out = nil // Committed; don't delete in defer.

	if err := os.Remove(path); err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "removing uncompressed %q: %v", path, err)
	}
	return dest, nil
}

// decompressFile streams the file at path through the codec reader produced
// by wrap, writing a sibling file with ext stripped. The compressed input is
// left in place.
func decompressFile(path, ext string, wrap func(io.Reader) (io.ReadCloser, error)) (string, error) {
	if !strings.HasSuffix(path, ext) {
		return "", errors.Wrapf(bag.ErrCompression, "%q does not have extension %q", path, ext)
	}

	in, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "opening %q: %v", path, err)
	}
	defer func() {
		_ = in.Close()
	}()

	cr, err := wrap(in)
	if err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "reading %q: %v", path, err)
	}

	dest := strings.TrimSuffix(path, ext)
	out, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "creating %q: %v", dest, err)
	}
	defer func() {
		if out != nil {
			_ = out.Close()
			_ = os.Remove(dest)
		}
	}()

	if _, err := io.Copy(out, cr); err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "decompressing %q: %v", path, err)
	}
	if err := cr.Close(); err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "finalizing %q: %v", path, err)
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrapf(bag.ErrCompression, "closing %q: %v", dest, err)
	}
	out = nil // Committed; don't delete in defer.

	return dest, nil
}
