// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package writer

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/RobotecAI/rosbag2/bag"
	"github.com/RobotecAI/rosbag2/compress"
	"github.com/RobotecAI/rosbag2/reader"
	_ "github.com/RobotecAI/rosbag2/storage/streamfile"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Merge", func() {
	var tdir string
	BeforeEach(func() {
		var err error
		tdir, err = os.MkdirTemp("", "merge_test_data")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		if tdir != "" {
			_ = os.RemoveAll(tdir)
			tdir = ""
		}
	})

	// recordBag writes count messages on topic starting at start, one per
	// 10ms.
	recordBag := func(name, topic string, start time.Time, count int, opts Options) string {
		dest := filepath.Join(tdir, name)
		opts.TempDir = tdir

		w, err := Open(dest, opts)
		Expect(err).ToNot(HaveOccurred())
		for i := 0; i < count; i++ {
			Expect(w.Write(&bag.SerializedMessage{
				Topic:     topic,
				Data:      []byte{byte(i)},
				Timestamp: start.Add(time.Duration(i) * 10 * time.Millisecond),
			})).To(Succeed())
		}
		Expect(w.Close()).To(Succeed())
		return dest
	}

	base := time.Unix(1500000000, 0)

	It("merges non-overlapping bags into one", func() {
		first := recordBag("first", "/a", base, 3, Options{})
		second := recordBag("second", "/b", base.Add(time.Minute), 2, Options{})

		dest := filepath.Join(tdir, "merged")
		Expect(Merge(dest, Options{TempDir: tdir}, second, first)).To(Succeed())

		md, err := bag.LoadMetadata(dest)
		Expect(err).ToNot(HaveOccurred())
		Expect(md.MessageCount).To(Equal(int64(5)))
		Expect(md.TopicCount("/a")).To(Equal(int64(3)))
		Expect(md.TopicCount("/b")).To(Equal(int64(2)))
		Expect(md.StartTimeNs).To(Equal(base.UnixNano()))

		// The merged bag reads back in temporal order regardless of the
		// argument order.
		r, err := reader.Open(dest, reader.Options{TempDir: tdir})
		Expect(err).ToNot(HaveOccurred())
		defer r.Close()

		var last time.Time
		n := 0
		for {
			msg, err := r.ReadNext()
			if err == io.EOF {
				break
			}
			Expect(err).ToNot(HaveOccurred())
			Expect(msg.Timestamp.Before(last)).To(BeFalse())
			last = msg.Timestamp
			n++
		}
		Expect(n).To(Equal(5))
	})

	It("merges message counts for a shared topic", func() {
		first := recordBag("first", "/a", base, 3, Options{})
		second := recordBag("second", "/a", base.Add(time.Minute), 2, Options{})

		dest := filepath.Join(tdir, "merged")
		Expect(Merge(dest, Options{TempDir: tdir}, first, second)).To(Succeed())

		md, err := bag.LoadMetadata(dest)
		Expect(err).ToNot(HaveOccurred())
		Expect(md.TopicCount("/a")).To(Equal(int64(5)))
	})

	It("rejects overlapping bags", func() {
		first := recordBag("first", "/a", base, 3, Options{})
		second := recordBag("second", "/b", base.Add(10*time.Millisecond), 2, Options{})

		err := Merge(filepath.Join(tdir, "merged"), Options{TempDir: tdir}, first, second)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("overlap"))
	})

	It("rejects mismatched compression configurations", func() {
		first := recordBag("first", "/a", base, 3, Options{})
		second := recordBag("second", "/b", base.Add(time.Minute), 2, Options{
			CompressionMode:   compress.ModeFile,
			CompressionFormat: "snappy",
		})

		err := Merge(filepath.Join(tdir, "merged"), Options{TempDir: tdir}, first, second)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("compression"))
	})

	It("rejects an empty source list", func() {
		Expect(Merge(filepath.Join(tdir, "merged"), Options{TempDir: tdir})).ToNot(Succeed())
	})
})
