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

// Package commitlog provides filename parsing, ordering, and safe
// relocation for commit-log segment files. It has no
// knowledge of segment contents.
package commitlog

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Suffix identifies which kind of segment file a path names.
type Suffix int

const (
	// SuffixLog is a completed ".log" segment.
	SuffixLog Suffix = iota
	// SuffixCDCIndex is a "_cdc.idx" sidecar tracking the flushed
	// position inside the still-open segment.
	SuffixCDCIndex
	// SuffixUnknown is any other file found in the CDC directory.
	SuffixUnknown
)

var logPattern = regexp.MustCompile(`^CommitLog-\d+-(\d+)\.log$`)
var idxPattern = regexp.MustCompile(`^(\d+)_cdc\.idx$`)

// ExtractSegmentID returns the segment id embedded in filename. It is
// a pure function: the same filename always yields the same id, and
// BuildSegmentFilename(version, ExtractSegmentID(f)) round-trips for
// any filename this package itself produced.
func ExtractSegmentID(filename string) (uint64, error) {
	if m := logPattern.FindStringSubmatch(filename); m != nil {
		return strconv.ParseUint(m[1], 10, 64)
	}
	if m := idxPattern.FindStringSubmatch(filename); m != nil {
		return strconv.ParseUint(m[1], 10, 64)
	}
	return 0, errors.Errorf("filename %q does not match a commit log segment or cdc index", filename)
}

// ClassifySuffix reports which kind of segment file filename names.
func ClassifySuffix(filename string) Suffix {
	switch {
	case logPattern.MatchString(filename):
		return SuffixLog
	case idxPattern.MatchString(filename):
		return SuffixCDCIndex
	default:
		return SuffixUnknown
	}
}

// BuildSegmentFilename constructs the canonical ".log" filename for a
// segment id at the given commit-log version, the inverse of
// ExtractSegmentID for ".log" names.
func BuildSegmentFilename(version int, segmentID uint64) string {
	return "CommitLog-" + strconv.Itoa(version) + "-" + strconv.FormatUint(segmentID, 10) + ".log"
}

// BuildIndexFilename constructs the canonical "_cdc.idx" sidecar name
// for a segment id.
func BuildIndexFilename(segmentID uint64) string {
	return strconv.FormatUint(segmentID, 10) + "_cdc.idx"
}

// Compare orders two segment filenames by their extracted segment id
// ascending, breaking ties so that a ".log" file sorts before the
// "_cdc.idx" sidecar for the same segment id. Filenames that don't
// match either pattern sort after everything else, in lexical order
// amongst themselves.
func Compare(a, b string) int {
	idA, errA := ExtractSegmentID(a)
	idB, errB := ExtractSegmentID(b)

	switch {
	case errA != nil && errB != nil:
		return compareStrings(a, b)
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}

	if idA != idB {
		if idA < idB {
			return -1
		}
		return 1
	}

	sa, sb := ClassifySuffix(a), ClassifySuffix(b)
	if sa == sb {
		return 0
	}
	if sa == SuffixLog {
		return -1
	}
	if sb == SuffixLog {
		return 1
	}
	return compareStrings(a, b)
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ListSorted lists the base names of regular files directly inside dir
// and returns them ordered by Compare.
func ListSorted(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}

	sort.Slice(names, func(i, j int) bool { return Compare(names[i], names[j]) < 0 })
	return names, nil
}

// Move relocates file into targetDir, preferring an atomic rename and
// falling back to copy-then-delete whenever the rename fails, whatever
// the cause (for example source and destination on different devices,
// where os.Rename returns a *LinkError wrapping syscall.EXDEV on Unix).
func Move(file, targetDir string) error {
	dest := filepath.Join(targetDir, filepath.Base(file))

	if err := os.Rename(file, dest); err == nil {
		return nil
	}

	if err := copyFile(file, dest); err != nil {
		return errors.Wrapf(err, "copying %s to %s", file, dest)
	}
	if err := os.Remove(file); err != nil {
		return errors.Wrapf(err, "removing %s after copy", file)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
