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

package publisher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/metadata"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/types"
	"github.com/hamba/avro/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// KeyEncoding selects how a row's primary key is rendered as the
// Pulsar message key.
type KeyEncoding int

const (
	// KeyEncodingNative renders the key using the bus client's native
	// AVRO binary encoding of the derived key schema. This is the
	// default: it keeps the key machine-readable and schema-checked.
	KeyEncodingNative KeyEncoding = iota
	// KeyEncodingGeneric renders the key as a JSON object instead,
	// trading schema enforcement for a key any consumer can read
	// without an AVRO library.
	KeyEncodingGeneric
)

// TopicName returns the per-table topic name:
// "<prefix><keyspace>.<table>".
func TopicName(prefix string, table metadata.Table) string {
	return fmt.Sprintf("%s%s.%s", prefix, table.Keyspace(), table.Name())
}

// entry caches everything needed to publish to one table's topic.
type entry struct {
	producer  pulsar.Producer
	keySchema avro.Schema
}

// Publisher owns one Pulsar client and a lazily populated, per-table
// producer cache: create-once, reused for the life of the process.
type Publisher struct {
	client      pulsar.Client
	topicPrefix string
	keyEncoding KeyEncoding

	mu      sync.Mutex
	entries map[string]*entry
}

// New dials the bus and returns a ready Publisher. The caller owns the
// returned Publisher's lifetime and must call Close on shutdown.
func New(options pulsar.ClientOptions, topicPrefix string, keyEncoding KeyEncoding) (*Publisher, error) {
	client, err := pulsar.NewClient(options)
	if err != nil {
		return nil, errors.Wrap(err, "creating pulsar client")
	}
	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		keyEncoding: keyEncoding,
		entries:     make(map[string]*entry),
	}, nil
}

// Close releases every cached producer and the underlying client.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, e := range p.entries {
		e.producer.Close()
		delete(p.entries, topic)
	}
	p.client.Close()
}

func (p *Publisher) entryFor(table metadata.Table) (*entry, error) {
	topic := TopicName(p.topicPrefix, table)

	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[topic]; ok {
		return e, nil
	}

	keySchema, err := KeySchema(table)
	if err != nil {
		return nil, err
	}

	// Producer configuration: block rather than drop
	// under backpressure, hash by key so all versions of a row land on
	// the same partition, and batch aggressively since the Delivery
	// Loop is already serializing sends per table.
	producer, err := p.client.CreateProducer(pulsar.ProducerOptions{
		Topic:                   topic,
		SendTimeout:             15 * time.Second,
		HashingScheme:           pulsar.Murmur3_32Hash,
		BlockIfQueueFull:        true,
		BatchingMaxPublishDelay: time.Millisecond,
		BatcherBuilderType:      pulsar.KeyBasedBatchBuilder,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating producer for topic %s", topic)
	}

	e := &entry{producer: producer, keySchema: keySchema}
	p.entries[topic] = e
	return e, nil
}

// Publish sends mutation to its table's topic, blocking until the bus
// client's send completes (or times out and is retried by the caller).
// It never constructs a new producer after the first call for a given
// table: the cache is permanent for the process lifetime.
func (p *Publisher) Publish(ctx context.Context, mutation types.Mutation[metadata.Table]) (pulsar.MessageID, error) {
	e, err := p.entryFor(mutation.Metadata)
	if err != nil {
		return nil, err
	}

	key, err := p.encodeKey(e.keySchema, mutation)
	if err != nil {
		return nil, errors.Wrap(err, "encoding message key")
	}

	value := types.MutationValue{
		Digest:    mutation.Digest,
		NodeID:    mutation.Source.NodeUUID,
		Operation: mutation.Operation.String(),
	}
	payload, err := avro.Marshal(ValueSchema(), value)
	if err != nil {
		return nil, errors.Wrap(err, "encoding mutation value")
	}

	msg := &pulsar.ProducerMessage{
		Key:         key,
		Payload:     payload,
		EventTime:   microsToTime(mutation.TSMicros),
		OrderingKey: key,
	}

	id, err := e.producer.Send(ctx, msg)
	if err != nil {
		log.WithError(err).WithField("topic", TopicName(p.topicPrefix, mutation.Metadata)).Warn("publish attempt failed")
		return nil, err
	}
	return id, nil
}

func (p *Publisher) encodeKey(keySchema avro.Schema, mutation types.Mutation[metadata.Table]) (string, error) {
	if p.keyEncoding == KeyEncodingGeneric {
		return genericKey(mutation), nil
	}

	fields := make(map[string]interface{}, mutation.Data.Len())
	for _, name := range mutation.Data.Names() {
		cell, _ := mutation.Data.Get(name)
		fields[name] = cell.Value
	}

	encoded, err := avro.Marshal(keySchema, fields)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func genericKey(mutation types.Mutation[metadata.Table]) string {
	var b []byte
	b = append(b, '{')
	for i, name := range mutation.Data.Names() {
		if i > 0 {
			b = append(b, ',')
		}
		cell, _ := mutation.Data.Get(name)
		b = append(b, '"')
		b = append(b, name...)
		b = append(b, `":"`...)
		b = append(b, fmt.Sprint(cell.Value)...)
		b = append(b, '"')
	}
	b = append(b, '}')
	return string(b)
}

func microsToTime(micros int64) time.Time {
	if micros <= 0 {
		return time.Time{}
	}
	return time.UnixMicro(micros)
}
