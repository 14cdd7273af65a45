// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Metadata", func() {
	var tdir string
	BeforeEach(func() {
		var err error
		tdir, err = os.MkdirTemp("", "metadata_test_data")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		if tdir != "" {
			_ = os.RemoveAll(tdir)
			tdir = ""
		}
	})

	makeMetadata := func() *Metadata {
		return &Metadata{
			RecordingID:       "f9b2e1d0-0000-4000-8000-000000000000",
			WriterVersion:     WriterVersion,
			StorageIdentifier: "streamfile",
			CompressionMode:   "file",
			CompressionFormat: "snappy",
			Files: []FileInformation{
				{
					Path:         "session_0.stream.snappy",
					StartTimeNs:  1500000000000000000,
					DurationNs:   int64(2 * time.Second),
					MessageCount: 120,
					SizeBytes:    4096,
				},
				{
					Path:         "session_1.stream.snappy",
					StartTimeNs:  1500000002000000000,
					DurationNs:   int64(time.Second),
					MessageCount: 60,
					SizeBytes:    2048,
				},
			},
			Topics: []TopicInformation{
				{Topic: TopicMetadata{Name: "/camera/image", Type: "sensor_msgs/msg/Image", SerializationFormat: "cdr"}, MessageCount: 100},
				{Topic: TopicMetadata{Name: "/imu", SerializationFormat: "cdr"}, MessageCount: 80},
			},
			StartTimeNs:  1500000000000000000,
			DurationNs:   int64(3 * time.Second),
			MessageCount: 180,
			SizeBytes:    6144,
		}
	}

	It("round-trips through the YAML descriptor", func() {
		md := makeMetadata()
		Expect(md.Write(tdir)).To(Succeed())

		// The descriptor is a human-readable sidecar in the bag directory.
		data, err := os.ReadFile(filepath.Join(tdir, MetadataFileName))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("storage_identifier: streamfile"))
		Expect(string(data)).To(ContainSubstring("/camera/image"))

		loaded, err := LoadMetadata(tdir)
		Expect(err).ToNot(HaveOccurred())
		Expect(loaded).To(Equal(md))

		Expect(loaded.StartTime().UnixNano()).To(Equal(md.StartTimeNs))
		Expect(loaded.Duration()).To(Equal(3 * time.Second))
		Expect(loaded.RelativeFilePaths()).To(Equal([]string{
			"session_0.stream.snappy",
			"session_1.stream.snappy",
		}))
		Expect(loaded.TopicCount("/imu")).To(Equal(int64(80)))
		Expect(loaded.TopicCount("/absent")).To(Equal(int64(0)))
	})

	It("reports a missing bag", func() {
		_, err := LoadMetadata(filepath.Join(tdir, "no_such_bag"))
		Expect(errors.Cause(err)).To(Equal(ErrBagNotFound))
	})

	It("rejects an unparseable descriptor", func() {
		Expect(os.WriteFile(filepath.Join(tdir, MetadataFileName),
			[]byte("{{{{ not yaml"), 0644)).To(Succeed())

		_, err := LoadMetadata(tdir)
		Expect(errors.Cause(err)).To(Equal(ErrMetadataCorrupt))
	})

	It("rejects a descriptor from a newer library version", func() {
		Expect(os.WriteFile(filepath.Join(tdir, MetadataFileName),
			[]byte("version: 99\nstorage_identifier: streamfile\n"), 0644)).To(Succeed())

		_, err := LoadMetadata(tdir)
		Expect(errors.Cause(err)).To(Equal(ErrMetadataCorrupt))
	})

	It("rejects a descriptor without a storage identifier", func() {
		Expect(os.WriteFile(filepath.Join(tdir, MetadataFileName),
			[]byte("version: 1\n"), 0644)).To(Succeed())

		_, err := LoadMetadata(tdir)
		Expect(errors.Cause(err)).To(Equal(ErrMetadataCorrupt))
	})

	It("describes split time bounds", func() {
		fi := FileInformation{
			StartTimeNs: 1500000000000000000,
			DurationNs:  int64(2 * time.Second),
		}
		Expect(fi.EndTime().Sub(fi.StartTime())).To(Equal(2 * time.Second))
		Expect(fi.Duration()).To(Equal(2 * time.Second))
	})
})

func TestBag(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Testing bag")
}
