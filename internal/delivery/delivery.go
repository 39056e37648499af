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

// Package delivery implements the Delivery Loop: a
// blocking send with infinite retry on a fixed cooldown, deliberately
// simple so that backpressure on the bus naturally slows ingestion
// instead of requiring a separate flow-control mechanism.
package delivery

import (
	"context"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/metadata"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/metrics"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/offset"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// retryCooldown is the fixed sleep between failed publish attempts.
const retryCooldown = 10 * time.Second

// Publisher is the narrow capability Loop needs from the Outbound
// Publisher: a blocking send that returns once durably accepted by the
// bus, or an error.
type Publisher interface {
	Publish(ctx context.Context, mutation types.Mutation[metadata.Table]) (pulsar.MessageID, error)
}

// Loop is the extractor.Sender implementation that actually reaches
// the bus: it retries a failed send forever, on a fixed cooldown,
// before advancing the offset store.
type Loop struct {
	Publisher Publisher
	Offsets   *offset.Store
	Stopping  <-chan struct{}
}

// Send implements extractor.Sender. It asserts the mutation's position
// strictly advances the durable cursor (a violation indicates a bug
// upstream, since the Extractor already filters stale entries), blocks
// until the publish succeeds, and marks the offset store only after a
// confirmed send.
func (l *Loop) Send(ctx context.Context, mutation types.Mutation[metadata.Table]) error {
	current := l.Offsets.Load()
	if !current.Less(mutation.Position) {
		return errors.Errorf("mutation position %s does not strictly advance offset cursor %s", mutation.Position, current)
	}

	start := time.Now()
	topic := mutation.Metadata.Keyspace() + "." + mutation.Metadata.Name()

	for attempt := 0; ; attempt++ {
		_, err := l.Publisher.Publish(ctx, mutation)
		if err == nil {
			break
		}

		metrics.SentErrors.Inc()
		log.WithError(err).WithFields(log.Fields{
			"topic":   topic,
			"attempt": attempt,
		}).Warn("publish failed, retrying after cooldown")

		select {
		case <-time.After(retryCooldown):
		case <-l.Stopping:
			if err := ctx.Err(); err != nil {
				return err
			}
			return errors.New("stopped before the mutation was published")
		}
	}

	if err := l.Offsets.Mark(mutation.Position); err != nil {
		return err
	}

	metrics.SentMutations.Inc()
	metrics.SendDuration.WithLabelValues(mutation.Metadata.Keyspace(), mutation.Metadata.Name()).Observe(time.Since(start).Seconds())
	return nil
}
