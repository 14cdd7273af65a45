// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package writer

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RobotecAI/rosbag2/bag"
	"github.com/RobotecAI/rosbag2/compress"
	"github.com/RobotecAI/rosbag2/reader"
	_ "github.com/RobotecAI/rosbag2/storage/streamfile"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Writer", func() {
	var tdir string
	BeforeEach(func() {
		var err error
		tdir, err = os.MkdirTemp("", "writer_test_data")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		if tdir != "" {
			_ = os.RemoveAll(tdir)
			tdir = ""
		}
	})

	base := time.Unix(1500000000, 0)

	// Five messages across two topics, spanning 250ms.
	record := func(w *Writer) {
		msgs := []*bag.SerializedMessage{
			{Topic: "/a", SerializationFormat: "cdr", Data: []byte("a-0"), Timestamp: base},
			{Topic: "/b", SerializationFormat: "cdr", Data: []byte("b-0"), Timestamp: base.Add(50 * time.Millisecond)},
			{Topic: "/a", SerializationFormat: "cdr", Data: []byte("a-1"), Timestamp: base.Add(100 * time.Millisecond)},
			{Topic: "/b", SerializationFormat: "cdr", Data: []byte("b-1"), Timestamp: base.Add(150 * time.Millisecond)},
			{Topic: "/a", SerializationFormat: "cdr", Data: []byte("a-2"), Timestamp: base.Add(250 * time.Millisecond)},
		}
		for _, msg := range msgs {
			Expect(w.Write(msg)).To(Succeed())
		}
	}

	DescribeTable("records and reads back a bag", func(mode compress.Mode, format string) {
		dest := filepath.Join(tdir, "session")

		w, err := Open(dest, Options{
			CompressionMode:   mode,
			CompressionFormat: format,
			TempDir:           tdir,
		})
		Expect(err).ToNot(HaveOccurred())

		Expect(w.CreateTopic(bag.TopicMetadata{
			Name:                "/a",
			Type:                "std_msgs/msg/String",
			SerializationFormat: "cdr",
		})).To(Succeed())

		record(w)
		Expect(w.Close()).To(Succeed())

		// The staged bag was committed to its destination.
		md, err := bag.LoadMetadata(dest)
		Expect(err).ToNot(HaveOccurred())
		Expect(md.MessageCount).To(Equal(int64(5)))
		Expect(md.Duration()).To(Equal(250 * time.Millisecond))
		Expect(md.TopicCount("/a")).To(Equal(int64(3)))
		Expect(md.TopicCount("/b")).To(Equal(int64(2)))
		Expect(md.CompressionMode).To(Equal(string(mode)))
		Expect(md.RecordingID).ToNot(BeEmpty())

		// Every split named by the descriptor exists on disk.
		for _, rel := range md.RelativeFilePaths() {
			_, err := os.Stat(filepath.Join(dest, rel))
			Expect(err).ToNot(HaveOccurred())
		}

		// Reading the bag back yields the messages in recorded order.
		r, err := reader.Open(dest, reader.Options{TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())
		defer r.Close()

		var got []string
		for {
			msg, err := r.ReadNext()
			if err == io.EOF {
				break
			}
			Expect(err).ToNot(HaveOccurred())
			got = append(got, string(msg.Data))
		}
		Expect(got).To(Equal([]string{"a-0", "b-0", "a-1", "b-1", "a-2"}))
	},
		Entry("uncompressed", compress.ModeNone, ""),
		Entry("file-compressed with snappy", compress.ModeFile, "snappy"),
		Entry("file-compressed with gzip", compress.ModeFile, "gzip"),
		Entry("message-compressed with snappy", compress.ModeMessage, "snappy"),
	)

	It("rolls over to a new split when the size bound is reached", func() {
		dest := filepath.Join(tdir, "session")

		w, err := Open(dest, Options{
			MaxSplitSize: 64, // Tiny; every message trips the bound.
			TempDir:      tdir,
		})
		Expect(err).ToNot(HaveOccurred())

		record(w)
		Expect(w.Close()).To(Succeed())

		md, err := bag.LoadMetadata(dest)
		Expect(err).ToNot(HaveOccurred())
		Expect(len(md.Files)).To(BeNumerically(">=", 2))
		Expect(md.MessageCount).To(Equal(int64(5)))

		// Splits are temporally ordered and non-overlapping.
		for i := 1; i < len(md.Files); i++ {
			prev, cur := md.Files[i-1], md.Files[i]
			Expect(cur.StartTimeNs).To(BeNumerically(">=", prev.StartTimeNs+prev.DurationNs))
		}
	})

	It("aggregates statistics for a bag starting at the Unix epoch", func() {
		dest := filepath.Join(tdir, "session")

		w, err := Open(dest, Options{TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())

		epoch := time.Unix(0, 0)
		for _, off := range []time.Duration{0, 50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond} {
			Expect(w.Write(&bag.SerializedMessage{
				Topic:     "/a",
				Data:      []byte("x"),
				Timestamp: epoch.Add(off),
			})).To(Succeed())
		}
		Expect(w.Close()).To(Succeed())

		md, err := bag.LoadMetadata(dest)
		Expect(err).ToNot(HaveOccurred())
		Expect(md.StartTimeNs).To(Equal(int64(0)))
		Expect(md.Duration()).To(Equal(250 * time.Millisecond))
	})

	It("rolls over when the duration bound is reached", func() {
		dest := filepath.Join(tdir, "session")

		w, err := Open(dest, Options{
			MaxSplitDuration: 100 * time.Millisecond,
			TempDir:          tdir,
		})
		Expect(err).ToNot(HaveOccurred())

		record(w)
		Expect(w.Close()).To(Succeed())

		md, err := bag.LoadMetadata(dest)
		Expect(err).ToNot(HaveOccurred())
		Expect(len(md.Files)).To(BeNumerically(">=", 2))
	})

	It("exposes a running metadata snapshot while recording", func() {
		dest := filepath.Join(tdir, "session")

		w, err := Open(dest, Options{TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())

		record(w)

		md := w.Metadata()
		Expect(md.MessageCount).To(Equal(int64(5)))
		Expect(md.Duration()).To(Equal(250 * time.Millisecond))

		Expect(w.Close()).To(Succeed())
	})

	It("does not commit an empty bag", func() {
		dest := filepath.Join(tdir, "empty")

		w, err := Open(dest, Options{TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())
		Expect(w.Close()).To(Succeed())

		_, err = os.Stat(dest)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("rejects use after Close", func() {
		dest := filepath.Join(tdir, "session")

		w, err := Open(dest, Options{TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())
		record(w)
		Expect(w.Close()).To(Succeed())

		err = w.Write(&bag.SerializedMessage{Topic: "/a", Timestamp: base})
		Expect(errors.Cause(err)).To(Equal(bag.ErrWriterClosed))

		err = w.CreateTopic(bag.TopicMetadata{Name: "/c"})
		Expect(errors.Cause(err)).To(Equal(bag.ErrWriterClosed))

		err = w.Close()
		Expect(errors.Cause(err)).To(Equal(bag.ErrWriterClosed))
	})

	It("fails open for an unknown storage backend", func() {
		_, err := Open(filepath.Join(tdir, "session"), Options{
			Storage: "carrier-pigeon",
			TempDir: tdir,
		})
		Expect(errors.Cause(err)).To(Equal(bag.ErrUnsupportedStorage))
	})

	It("fails open for an unknown compression format", func() {
		_, err := Open(filepath.Join(tdir, "session"), Options{
			CompressionMode:   compress.ModeFile,
			CompressionFormat: "shouting",
			TempDir:           tdir,
		})
		Expect(errors.Cause(err)).To(Equal(bag.ErrCompression))
	})
})

func TestWriter(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Testing writer")
}
