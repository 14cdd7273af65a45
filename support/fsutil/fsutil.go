// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package fsutil holds small filesystem helpers shared by the bag writer and
// reader.
package fsutil

import (
	"io"
	"os"
)

// HardLinkOrCopy attempts to make dest the same file as src.
//
// Ideally, it will use a hard link. If that fails (cross-device, unsupported
// filesystem), it will fall back to byte-by-byte copying.
func HardLinkOrCopy(src, dest string) error {
	if err := os.Link(src, dest); err == nil {
		return nil
	}
	return CopyFile(src, dest)
}

// CopyFile copies src to dest.
func CopyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if out != nil {
			_ = out.Close()
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	if err := out.Close(); err != nil {
		return err
	}
	out = nil // Don't double-close in defer.
	return nil
}
