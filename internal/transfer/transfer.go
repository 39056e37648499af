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

// Package transfer implements the post-processing step applied to a
// consumed commit-log segment: archive or error on
// completion, and recycle errored segments back into the CDC directory
// so the Detector rediscovers them.
package transfer

import (
	"path/filepath"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/commitlog"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Policy is applied by the Reader once it finishes (or fails) a
// segment. Two implementations exist: Archiving (the default) and
// Deleting, which both satisfy the same contract so the Reader never
// needs to know which is in effect.
type Policy interface {
	// OnSuccessTransfer is called after a segment has been fully read
	// without a non-permissible error.
	OnSuccessTransfer(path string) error
	// OnErrorTransfer is called when a segment fails with a
	// non-permissible parse error.
	OnErrorTransfer(path string) error
	// RecycleErrorCommitLogFiles moves every file in the error folder
	// back into cdcDir, enabling reprocessing on the Detector's next
	// poll.
	RecycleErrorCommitLogFiles(cdcDir string) error
}

// Archiving moves successful segments into archiveDir and failed
// segments into errorDir. This is the default policy.
type Archiving struct {
	ArchiveDir string
	ErrorDir   string
}

var _ Policy = (*Archiving)(nil)

// OnSuccessTransfer implements Policy.
func (a *Archiving) OnSuccessTransfer(path string) error {
	if err := commitlog.Move(path, a.ArchiveDir); err != nil {
		return errors.Wrapf(err, "archiving %s", path)
	}
	log.WithField("path", path).Debug("archived commit log segment")
	return nil
}

// OnErrorTransfer implements Policy.
func (a *Archiving) OnErrorTransfer(path string) error {
	if err := commitlog.Move(path, a.ErrorDir); err != nil {
		return errors.Wrapf(err, "moving %s to error folder", path)
	}
	log.WithField("path", path).Warn("moved commit log segment to error folder")
	return nil
}

// RecycleErrorCommitLogFiles implements Policy.
func (a *Archiving) RecycleErrorCommitLogFiles(cdcDir string) error {
	return recycle(a.ErrorDir, cdcDir)
}

// Deleting removes successful segments outright instead of archiving
// them, but otherwise behaves like Archiving.
type Deleting struct {
	ErrorDir string
	remove   func(path string) error
}

var _ Policy = (*Deleting)(nil)

// NewDeleting returns a Deleting policy that moves failures into
// errorDir and deletes successfully-processed segments.
func NewDeleting(errorDir string, remove func(path string) error) *Deleting {
	return &Deleting{ErrorDir: errorDir, remove: remove}
}

// OnSuccessTransfer implements Policy.
func (d *Deleting) OnSuccessTransfer(path string) error {
	if err := d.remove(path); err != nil {
		return errors.Wrapf(err, "deleting %s", path)
	}
	log.WithField("path", path).Debug("deleted commit log segment")
	return nil
}

// OnErrorTransfer implements Policy.
func (d *Deleting) OnErrorTransfer(path string) error {
	if err := commitlog.Move(path, d.ErrorDir); err != nil {
		return errors.Wrapf(err, "moving %s to error folder", path)
	}
	log.WithField("path", path).Warn("moved commit log segment to error folder")
	return nil
}

// RecycleErrorCommitLogFiles implements Policy.
func (d *Deleting) RecycleErrorCommitLogFiles(cdcDir string) error {
	return recycle(d.ErrorDir, cdcDir)
}

func recycle(errorDir, cdcDir string) error {
	names, err := commitlog.ListSorted(errorDir)
	if err != nil {
		return errors.Wrapf(err, "listing error folder %s", errorDir)
	}
	for _, name := range names {
		src := filepath.Join(errorDir, name)
		if err := commitlog.Move(src, cdcDir); err != nil {
			return errors.Wrapf(err, "recycling %s", src)
		}
		log.WithField("path", src).Info("recycled errored commit log segment")
	}
	return nil
}
