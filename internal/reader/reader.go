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

// Package reader implements the Commit-Log Reader: a
// single ordered worker that drains a queue of segment paths submitted
// by the Detector, drives the external parser across each one in turn,
// and applies the Transfer Policy once a segment is done.
package reader

import (
	"context"
	"errors"
	"time"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/metrics"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/parser"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/stopper"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/transfer"
	log "github.com/sirupsen/logrus"
)

// queueDepth bounds how many discovered segments the Detector may get
// ahead of the Reader by, giving natural backpressure on the backlog
// scan without needing an unbounded buffer.
const queueDepth = 64

// Reader drains a single ordered queue of segment paths, handing each
// one to Parser in turn; only one segment is ever in flight.
type Reader struct {
	Parser   parser.Parser
	Callback parser.Callbacks
	Transfer transfer.Policy

	protocolVersion int
	queue           chan string
}

// New returns a ready Reader. protocolVersion is recorded on the Reader
// but not passed to Parser: ParseSegment takes only the segment path,
// and the Descriptors handed to callbacks are built by the Parser.
func New(p parser.Parser, callbacks parser.Callbacks, transferPolicy transfer.Policy, protocolVersion int) *Reader {
	return &Reader{
		Parser:          p,
		Callback:        callbacks,
		Transfer:        transferPolicy,
		protocolVersion: protocolVersion,
		queue:           make(chan string, queueDepth),
	}
}

// Submit implements detector.Submitter: it enqueues path, blocking if
// the queue is full, or returning ctx.Err() if ctx is cancelled first.
func (r *Reader) Submit(ctx context.Context, path string) error {
	select {
	case r.queue <- path:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes queued segments one at a time until ctx is stopped; it
// returns as soon as Stopping fires, leaving any still-queued paths
// unprocessed. It is meant to be started with a stopper.Context's Go.
func (r *Reader) Run(ctx *stopper.Context) error {
	for {
		select {
		case path := <-r.queue:
			if err := r.processOne(ctx, path); err != nil {
				return err
			}
		case <-ctx.Stopping():
			return nil
		}
	}
}

func (r *Reader) processOne(ctx context.Context, path string) error {
	start := time.Now()
	log.WithField("path", path).Debug("reading commit log segment")

	err := r.Parser.ParseSegment(ctx, path, r.Callback)
	metrics.SegmentProcessDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return r.Transfer.OnSuccessTransfer(path)

	case isPermissible(err):
		log.WithError(err).WithField("path", path).Warn("permissible parse error, continuing")
		return r.Transfer.OnSuccessTransfer(path)

	default:
		log.WithError(err).WithField("path", path).Error("non-permissible parse error")
		if transferErr := r.Transfer.OnErrorTransfer(path); transferErr != nil {
			log.WithError(transferErr).WithField("path", path).Error("failed to move segment to error folder")
		}
		return nil
	}
}

func isPermissible(err error) bool {
	var permissible *parser.PermissibleError
	return errors.As(err, &permissible)
}
