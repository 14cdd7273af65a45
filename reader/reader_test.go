// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package reader

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RobotecAI/rosbag2/bag"
	"github.com/RobotecAI/rosbag2/compress"
	_ "github.com/RobotecAI/rosbag2/storage/streamfile"
	"github.com/RobotecAI/rosbag2/writer"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reader", func() {
	var tdir string
	BeforeEach(func() {
		var err error
		tdir, err = os.MkdirTemp("", "reader_test_data")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		if tdir != "" {
			_ = os.RemoveAll(tdir)
			tdir = ""
		}
	})

	base := time.Unix(1500000000, 0)

	// recordBag writes ten alternating /a and /b messages, one per 10ms,
	// and returns the bag path.
	recordBag := func(name string, opts writer.Options) string {
		dest := filepath.Join(tdir, name)
		opts.TempDir = tdir

		w, err := writer.Open(dest, opts)
		Expect(err).ToNot(HaveOccurred())
		for i := 0; i < 10; i++ {
			topic := "/a"
			if i%2 == 1 {
				topic = "/b"
			}
			Expect(w.Write(&bag.SerializedMessage{
				Topic:     topic,
				Data:      []byte{byte(i)},
				Timestamp: base.Add(time.Duration(i) * 10 * time.Millisecond),
			})).To(Succeed())
		}
		Expect(w.Close()).To(Succeed())
		return dest
	}

	readAll := func(r *Reader) []byte {
		var got []byte
		for {
			msg, err := r.ReadNext()
			if err == io.EOF {
				return got
			}
			Expect(err).ToNot(HaveOccurred())
			got = append(got, msg.Data[0])
		}
	}

	It("reports a missing bag", func() {
		_, err := Open(filepath.Join(tdir, "no_such_bag"), Options{})
		Expect(errors.Cause(err)).To(Equal(bag.ErrBagNotFound))
	})

	It("concatenates splits transparently", func() {
		// A tiny size bound forces the bag into several splits.
		path := recordBag("session", writer.Options{MaxSplitSize: 64})

		r, err := Open(path, Options{TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())
		defer r.Close()

		Expect(len(r.Metadata().Files)).To(BeNumerically(">=", 2))
		Expect(readAll(r)).To(Equal([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}))
	})

	It("filters topics with an allow-list", func() {
		path := recordBag("session", writer.Options{})

		r, err := Open(path, Options{Topics: []string{"/b"}, TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())
		defer r.Close()

		Expect(readAll(r)).To(Equal([]byte{1, 3, 5, 7, 9}))
	})

	Describe("Seek", func() {
		It("positions at the earliest message at or after t", func() {
			path := recordBag("session", writer.Options{MaxSplitSize: 64})

			r, err := Open(path, Options{TempDir: tdir})
			Expect(err).ToNot(HaveOccurred())
			defer r.Close()

			// Between messages 4 and 5; the next read is message 5.
			Expect(r.Seek(base.Add(45 * time.Millisecond))).To(Succeed())
			msg, err := r.ReadNext()
			Expect(err).ToNot(HaveOccurred())
			Expect(msg.Data[0]).To(Equal(byte(5)))

			// Seeking is inclusive: an exact timestamp yields that message.
			Expect(r.Seek(base.Add(70 * time.Millisecond))).To(Succeed())
			msg, err = r.ReadNext()
			Expect(err).ToNot(HaveOccurred())
			Expect(msg.Data[0]).To(Equal(byte(7)))
		})

		It("seeks backwards", func() {
			path := recordBag("session", writer.Options{})

			r, err := Open(path, Options{TempDir: tdir})
			Expect(err).ToNot(HaveOccurred())
			defer r.Close()

			_ = readAll(r)

			Expect(r.Seek(base)).To(Succeed())
			Expect(readAll(r)).To(Equal([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}))
		})

		It("yields EOF when t is past the end of the bag", func() {
			path := recordBag("session", writer.Options{})

			r, err := Open(path, Options{TempDir: tdir})
			Expect(err).ToNot(HaveOccurred())
			defer r.Close()

			Expect(r.Seek(base.Add(time.Hour))).To(Succeed())
			_, err = r.ReadNext()
			Expect(err).To(Equal(io.EOF))
		})

		It("combines with a topic filter", func() {
			path := recordBag("session", writer.Options{})

			r, err := Open(path, Options{Topics: []string{"/a"}, TempDir: tdir})
			Expect(err).ToNot(HaveOccurred())
			defer r.Close()

			Expect(r.Seek(base.Add(45 * time.Millisecond))).To(Succeed())
			Expect(readAll(r)).To(Equal([]byte{6, 8}))
		})
	})

	It("reads file-compressed bags via a scratch directory", func() {
		path := recordBag("session", writer.Options{
			CompressionMode:   compress.ModeFile,
			CompressionFormat: "snappy",
			MaxSplitSize:      64,
		})

		r, err := Open(path, Options{TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())

		Expect(readAll(r)).To(Equal([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}))

		// The committed bag directory is untouched: only compressed splits.
		entries, err := os.ReadDir(path)
		Expect(err).ToNot(HaveOccurred())
		for _, e := range entries {
			if e.Name() == bag.MetadataFileName {
				continue
			}
			Expect(e.Name()).To(HaveSuffix(".snappy"))
		}

		Expect(r.Close()).To(Succeed())
	})

	It("decompresses message-compressed bags", func() {
		path := recordBag("session", writer.Options{
			CompressionMode:   compress.ModeMessage,
			CompressionFormat: "gzip",
		})

		r, err := Open(path, Options{TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())
		defer r.Close()

		Expect(readAll(r)).To(Equal([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}))
	})

	It("skips a damaged split and keeps reading", func() {
		path := recordBag("session", writer.Options{MaxSplitSize: 64})

		md, err := bag.LoadMetadata(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(len(md.Files)).To(BeNumerically(">=", 2))

		// Clobber the first split's header.
		Expect(os.WriteFile(filepath.Join(path, md.Files[0].Path),
			[]byte("garbage"), 0644)).To(Succeed())

		r, err := Open(path, Options{TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())
		defer r.Close()

		got := readAll(r)
		Expect(len(got)).To(BeNumerically("<", 10))
		Expect(len(got)).To(BeNumerically(">", 0))
	})

	It("rejects reads after Close", func() {
		path := recordBag("session", writer.Options{})

		r, err := Open(path, Options{TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Close()).To(Succeed())
		Expect(r.Close()).To(Succeed()) // Idempotent.

		_, err = r.ReadNext()
		Expect(errors.Cause(err)).To(Equal(bag.ErrStorageRead))
	})
})

func TestReader(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Testing reader")
}
