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

// Package detector implements the Commit-Log Detector:
// a backlog scan at startup followed by a steady-state loop that
// submits newly arrived segments to the Reader in commit-log order.
package detector

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/commitlog"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/offset"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/stopper"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/transfer"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/types"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/watcher"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Submitter hands a discovered segment path to the Reader's work
// queue, blocking if the queue is full. Submit must be safe to call
// more than once for the same path: a completed segment disappears
// from the directory once transferred, so it is only ever resubmitted
// while still in flight, and the still-open segment tailed in
// near-real-time mode is resubmitted on every tick by design, with the
// Reader responsible for resuming past whatever it already consumed.
type Submitter interface {
	Submit(ctx context.Context, path string) error
}

// Detector drives backlog discovery and steady-state polling of the
// CDC working directory.
type Detector struct {
	Dir                   string
	NearRealTime          bool
	ErrorReprocessEnabled bool
	PollInterval          time.Duration

	Submitter Submitter
	Transfer  transfer.Policy
	Watcher   *watcher.Watcher
	Offsets   *offset.Store
}

// Run performs the backlog scan and then polls forever until ctx is
// cancelled. It is meant to be started with a stopper.Context's Go.
func (d *Detector) Run(ctx *stopper.Context) error {
	if err := d.backlogScan(ctx, d.Offsets.Load()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Stopping():
			return nil
		default:
		}

		if d.ErrorReprocessEnabled {
			if err := d.Transfer.RecycleErrorCommitLogFiles(d.Dir); err != nil {
				log.WithError(err).Warn("recycling errored segments failed")
			}
		}

		if err := d.pollOnce(ctx); err != nil {
			return err
		}

		d.Watcher.Poll(ctx.Stopping(), func([]watcher.Event) {})
	}
}

// backlogScan lists every segment already present in Dir at startup
// and submits the ones at or after from, ascending. In near-real-time
// mode the newest "_cdc.idx" sidecar is submitted last, since it names
// the segment still being written to and must be processed after every
// completed segment ahead of it.
func (d *Detector) backlogScan(ctx context.Context, from types.CommitLogPosition) error {
	names, err := commitlog.ListSorted(d.Dir)
	if err != nil {
		return errors.Wrap(err, "listing backlog")
	}

	var newestIdx string
	for _, name := range names {
		id, err := commitlog.ExtractSegmentID(name)
		if err != nil {
			continue
		}
		if id < from.SegmentID {
			continue
		}

		switch commitlog.ClassifySuffix(name) {
		case commitlog.SuffixLog:
			if err := d.Submitter.Submit(ctx, filepath.Join(d.Dir, name)); err != nil {
				return err
			}
		case commitlog.SuffixCDCIndex:
			if d.NearRealTime {
				newestIdx = name
			}
		}
	}

	if newestIdx != "" {
		if err := d.Submitter.Submit(ctx, filepath.Join(d.Dir, newestIdx)); err != nil {
			return err
		}
	}
	return nil
}

// pollOnce lists the directory's current contents and submits whatever
// the active mode considers a candidate: completed ".log" segments
// always, and the single open "_cdc.idx" sidecar only in near-real-time
// mode. Segments whose id is behind the durable cursor are not submitted.
func (d *Detector) pollOnce(ctx context.Context) error {
	names, err := commitlog.ListSorted(d.Dir)
	if err != nil {
		return errors.Wrap(err, "polling cdc directory")
	}

	from := d.Offsets.Load()
	for _, name := range names {
		if id, err := commitlog.ExtractSegmentID(name); err != nil || id < from.SegmentID {
			continue
		}
		switch commitlog.ClassifySuffix(name) {
		case commitlog.SuffixLog:
			if err := d.Submitter.Submit(ctx, filepath.Join(d.Dir, name)); err != nil {
				return err
			}
		case commitlog.SuffixCDCIndex:
			if d.NearRealTime {
				if err := d.Submitter.Submit(ctx, filepath.Join(d.Dir, name)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
