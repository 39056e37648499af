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

package publisher_test

import (
	"testing"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/metadata"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/publisher"
	"github.com/hamba/avro/v2"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	keyspace, name string
	cols           []metadata.Column
}

func (f *fakeTable) Keyspace() string                     { return f.keyspace }
func (f *fakeTable) Name() string                         { return f.name }
func (f *fakeTable) PrimaryKeyColumns() []metadata.Column { return f.cols }
func (f *fakeTable) IsCounter() bool                      { return false }
func (f *fakeTable) IsMaterializedView() bool             { return false }
func (f *fakeTable) IsSecondaryIndex() bool               { return false }

func TestKeySchemaPartitionNonNullClusteringNullable(t *testing.T) {
	table := &fakeTable{
		keyspace: "ks", name: "events",
		cols: []metadata.Column{
			{Name: "tenant", CQL: "text", Kind: metadata.ColumnPartitionKey},
			{Name: "seq", CQL: "bigint", Kind: metadata.ColumnClusteringKey},
		},
	}

	schema, err := publisher.KeySchema(table)
	require.NoError(t, err)
	require.Contains(t, schema.String(), `"tenant"`)
	require.Contains(t, schema.String(), `"seq"`)

	rec, ok := schema.(*avro.RecordSchema)
	require.True(t, ok)
	require.Len(t, rec.Fields(), 2)
	require.Equal(t, avro.String, rec.Fields()[0].Type().Type())
	union, ok := rec.Fields()[1].Type().(*avro.UnionSchema)
	require.True(t, ok)
	require.True(t, union.Nullable())
}

func TestKeySchemaRejectsUnsupportedType(t *testing.T) {
	table := &fakeTable{
		keyspace: "ks", name: "events",
		cols: []metadata.Column{
			{Name: "c", CQL: "counter", Kind: metadata.ColumnPartitionKey},
		},
	}

	_, err := publisher.KeySchema(table)
	require.Error(t, err)
}

func TestTopicName(t *testing.T) {
	table := &fakeTable{keyspace: "ks", name: "events"}
	require.Equal(t, "prefix-ks.events", publisher.TopicName("prefix-", table))
}

func TestValueSchemaIsSharedAndValid(t *testing.T) {
	s1 := publisher.ValueSchema()
	s2 := publisher.ValueSchema()
	require.Equal(t, s1.String(), s2.String())
}
