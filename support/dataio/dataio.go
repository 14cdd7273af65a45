// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package dataio offers byte-granular reader and writer interfaces and
// adapters for streams that don't natively support them.
//
// The storage record codecs read and write single kind bytes between packed
// records; these adapters let them do that against any underlying stream.
package dataio

import (
	"io"
)

// Reader is a reader that can read both individual bytes and byte sequences.
type Reader interface {
	io.Reader
	io.ByteReader
}

// MakeReader returns a Reader for r, wrapping it if necessary.
func MakeReader(r io.Reader) Reader {
	if dr, ok := r.(Reader); ok {
		return dr
	}
	return &simulatedReader{r}
}

type simulatedReader struct {
	io.Reader
}

func (r *simulatedReader) ReadByte() (byte, error) {
	var d [1]byte
	amt, err := r.Read(d[:])
	if amt == 1 {
		return d[0], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return 0, err
}

// Writer is a writer that can write both individual bytes and byte
// sequences.
type Writer interface {
	io.Writer
	io.ByteWriter
}

// MakeWriter returns a Writer for w, wrapping it if necessary.
func MakeWriter(w io.Writer) Writer {
	if dw, ok := w.(Writer); ok {
		return dw
	}
	return &simulatedWriter{w}
}

type simulatedWriter struct {
	io.Writer
}

func (w *simulatedWriter) WriteByte(c byte) error {
	d := [1]byte{c}
	switch amt, err := w.Write(d[:]); {
	case err != nil:
		return err
	case amt != 1:
		panic("invalid Writer implementation")
	default:
		return nil
	}
}
