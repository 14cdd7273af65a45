// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package writer

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/RobotecAI/rosbag2/bag"
	"github.com/RobotecAI/rosbag2/support/fsutil"
	"github.com/RobotecAI/rosbag2/support/stagingdir"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Merge merges the bags at the specified paths together to form one bag at
// dest.
//
// The sources must share a storage backend and compression configuration,
// and must not overlap in time: the merged bag preserves the sequential
// reader's invariant that splits are non-overlapping and temporally ordered.
//
// Ideally, the merge is near-instant, using hard links to clone the split
// files.
func Merge(dest string, opts Options, paths ...string) error {
	if len(paths) == 0 {
		return errors.New("no bags to merge")
	}

	type source struct {
		path string
		md   *bag.Metadata
	}
	sources := make([]source, len(paths))
	for i, p := range paths {
		md, err := bag.LoadMetadata(p)
		if err != nil {
			return errors.Wrapf(err, "loading metadata for %q", p)
		}
		sources[i] = source{path: p, md: md}
	}

	// Merge in temporal order.
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].md.StartTimeNs < sources[j].md.StartTimeNs
	})

	base := sources[0].md
	for _, src := range sources[1:] {
		switch {
		case src.md.StorageIdentifier != base.StorageIdentifier:
			return errors.Errorf("bag %q uses storage %q, want %q",
				src.path, src.md.StorageIdentifier, base.StorageIdentifier)
		case src.md.CompressionMode != base.CompressionMode ||
			src.md.CompressionFormat != base.CompressionFormat:
			return errors.Errorf("bag %q uses compression %s/%s, want %s/%s",
				src.path, src.md.CompressionMode, src.md.CompressionFormat,
				base.CompressionMode, base.CompressionFormat)
		}
	}
	for i := 1; i < len(sources); i++ {
		prev, cur := sources[i-1].md, sources[i].md
		if cur.StartTimeNs < prev.StartTimeNs+prev.DurationNs {
			return errors.Errorf("bags %q and %q overlap in time",
				sources[i-1].path, sources[i].path)
		}
	}

	staging, err := stagingdir.New(opts.TempDir, filepath.Base(dest))
	if err != nil {
		return errors.Wrap(err, "creating staging directory")
	}
	defer func() {
		_ = staging.Destroy()
	}()

	merged := bag.Metadata{
		RecordingID:       uuid.NewString(),
		WriterVersion:     bag.WriterVersion,
		RosDistro:         base.RosDistro,
		StorageIdentifier: base.StorageIdentifier,
		CompressionMode:   base.CompressionMode,
		CompressionFormat: base.CompressionFormat,
	}
	topicCounts := map[string]*bag.TopicInformation{}
	var topicOrder []string

	for i, src := range sources {
		for _, fi := range src.md.Files {
			srcPath := filepath.Join(src.path, fi.Path)
			fi.Path = fmt.Sprintf("merged_%d_%s", i, fi.Path)
			if err := fsutil.HardLinkOrCopy(srcPath, staging.Path(fi.Path)); err != nil {
				return errors.Wrapf(err, "could not link %q into merge", srcPath)
			}
			merged.Files = append(merged.Files, fi)
		}

		for _, ti := range src.md.Topics {
			if have, ok := topicCounts[ti.Topic.Name]; ok {
				have.MessageCount += ti.MessageCount
				continue
			}
			entry := ti
			topicCounts[ti.Topic.Name] = &entry
			topicOrder = append(topicOrder, ti.Topic.Name)
		}
	}

	for _, name := range topicOrder {
		merged.Topics = append(merged.Topics, *topicCounts[name])
	}

	aggregateMetadata(&merged)

	if err := merged.Write(staging.Root()); err != nil {
		return errors.Wrap(err, "writing merged metadata")
	}
	if err := staging.Commit(dest); err != nil {
		return errors.Wrap(err, "committing merged bag")
	}
	return nil
}
