// Copyright 2024 The CDC Producer Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package offset

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/types"
	"github.com/pkg/errors"
)

// FileBackend persists a single line "segmentId:position" to disk,
// writing to a temp file in the same directory and renaming over the
// destination so a reader never observes a partial write.
type FileBackend struct {
	path string
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend returns a Backend that persists to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load implements Backend.
func (f *FileBackend) Load() (types.CommitLogPosition, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Zero, nil
		}
		return types.Zero, errors.Wrapf(err, "reading offset file %s", f.path)
	}

	line := strings.TrimSpace(string(data))
	segStr, posStr, ok := strings.Cut(line, ":")
	if !ok {
		return types.Zero, errors.Errorf("malformed offset file %s: %q", f.path, line)
	}

	segmentID, err := strconv.ParseUint(segStr, 10, 64)
	if err != nil {
		return types.Zero, errors.Wrapf(err, "parsing segment id in offset file %s", f.path)
	}
	position, err := strconv.ParseInt(posStr, 10, 32)
	if err != nil {
		return types.Zero, errors.Wrapf(err, "parsing position in offset file %s", f.path)
	}

	return types.CommitLogPosition{SegmentID: segmentID, Position: int32(position)}, nil
}

// Save implements Backend.
func (f *FileBackend) Save(position types.CommitLogPosition) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".offset-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "creating temp offset file in %s", dir)
	}
	tmpPath := tmp.Name()

	if _, err := fmt.Fprintf(tmp, "%d:%d", position.SegmentID, position.Position); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "writing temp offset file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "syncing temp offset file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "closing temp offset file")
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "renaming temp offset file onto %s", f.path)
	}
	return nil
}
