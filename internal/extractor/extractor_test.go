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

package extractor_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/extractor"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/metadata"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/offset"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/parser"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/types"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	keyspace, name string
	cols           []metadata.Column
	counter        bool
	mv             bool
	index          bool
}

func (f *fakeTable) Keyspace() string                    { return f.keyspace }
func (f *fakeTable) Name() string                        { return f.name }
func (f *fakeTable) PrimaryKeyColumns() []metadata.Column { return f.cols }
func (f *fakeTable) IsCounter() bool                     { return f.counter }
func (f *fakeTable) IsMaterializedView() bool            { return f.mv }
func (f *fakeTable) IsSecondaryIndex() bool              { return f.index }

type fakeSerializer struct {
	bytes []byte
}

func (f fakeSerializer) SerializeMutation(int) ([]byte, error) { return f.bytes, nil }

type fakeBackend struct {
	saved types.CommitLogPosition
}

func (b *fakeBackend) Load() (types.CommitLogPosition, error) { return b.saved, nil }
func (b *fakeBackend) Save(p types.CommitLogPosition) error    { b.saved = p; return nil }

type recordingSender struct {
	sent []types.Mutation[metadata.Table]
}

func (r *recordingSender) Send(_ context.Context, m types.Mutation[metadata.Table]) error {
	r.sent = append(r.sent, m)
	return nil
}

func newStore(t *testing.T) *offset.Store {
	t.Helper()
	s, err := offset.Open(&fakeBackend{})
	require.NoError(t, err)
	return s
}

func TestClassifyPartitionTypePriorityOrder(t *testing.T) {
	// A table flagged as both a materialized view and a secondary index
	// classifies as a materialized view: MV is checked first.
	table := &fakeTable{mv: true, index: true}
	pu := parser.PartitionUpdate{Metadata: table}
	require.Equal(t, extractor.PartitionUnsupportedMaterializedView, extractor.ClassifyPartitionType(pu))

	counterTable := &fakeTable{counter: true, mv: true}
	pu2 := parser.PartitionUpdate{Metadata: counterTable}
	require.Equal(t, extractor.PartitionUnsupportedCounter, extractor.ClassifyPartitionType(pu2))
}

func TestClassifyPartitionTypeDeletionAndModification(t *testing.T) {
	plain := &fakeTable{}
	del := parser.PartitionUpdate{Metadata: plain, IsPartitionDeletion: true}
	require.Equal(t, extractor.PartitionKeyRowDeletion, extractor.ClassifyPartitionType(del))

	mod := parser.PartitionUpdate{Metadata: plain}
	require.Equal(t, extractor.PartitionRowLevelModification, extractor.ClassifyPartitionType(mod))
}

func TestClassifyRowTypeDeletionBeforeLiveness(t *testing.T) {
	u := parser.Unfiltered{Row: parser.Row{
		Deletion:               parser.RowDeletion{MarkedForDeleteAt: 100},
		PrimaryKeyLivenessInfo: parser.LivenessInfo{Timestamp: 200},
	}}
	require.Equal(t, extractor.RowDelete, extractor.ClassifyRowType(u))
}

func TestClassifyRowTypeInsertVsUpdate(t *testing.T) {
	insert := parser.Unfiltered{Row: parser.Row{
		Deletion:               parser.RowDeletion{MarkedForDeleteAt: parser.NoTimestamp},
		PrimaryKeyLivenessInfo: parser.LivenessInfo{Timestamp: 42},
	}}
	require.Equal(t, extractor.RowInsert, extractor.ClassifyRowType(insert))

	update := parser.Unfiltered{Row: parser.Row{
		Deletion:               parser.RowDeletion{MarkedForDeleteAt: parser.NoTimestamp},
		PrimaryKeyLivenessInfo: parser.LivenessInfo{Timestamp: parser.NoTimestamp},
	}}
	require.Equal(t, extractor.RowUpdate, extractor.ClassifyRowType(update))
}

func TestClassifyRowTypeRangeTombstone(t *testing.T) {
	u := parser.Unfiltered{IsRangeTombstoneMarker: true}
	require.Equal(t, extractor.RowRangeTombstone, extractor.ClassifyRowType(u))
}

func encodeSingleInt(v int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(v))
	return buf
}

func encodeComposite(components [][]byte) []byte {
	return encodeCompositeRaw(components, false, 0x00)
}

// encodeCompositeRaw builds a composite partition-key buffer, optionally
// prefixed with the 0xFFFF static marker, and with the given
// end-of-component marker byte written after every component (0x00 for
// a well-formed key, non-zero to simulate a malformed/query-bound one).
func encodeCompositeRaw(components [][]byte, staticPrefix bool, marker byte) []byte {
	var out []byte
	if staticPrefix {
		out = append(out, 0xFF, 0xFF)
	}
	for _, c := range components {
		lb := make([]byte, 2)
		binary.BigEndian.PutUint16(lb, uint16(len(c)))
		out = append(out, lb...)
		out = append(out, c...)
		out = append(out, marker)
	}
	return out
}

func TestOnMutationSingleColumnPartitionDeletion(t *testing.T) {
	table := &fakeTable{
		keyspace: "ks", name: "t",
		cols: []metadata.Column{{Name: "id", CQL: "int", Kind: metadata.ColumnPartitionKey}},
	}
	pu := parser.PartitionUpdate{
		Metadata:                   table,
		PartitionKeyBytes:          encodeSingleInt(7),
		IsPartitionDeletion:        true,
		PartitionDeletionTimestamp: 555,
	}
	mutation := parser.Mutation{
		PartitionUpdates: []parser.PartitionUpdate{pu},
		Serializer:       fakeSerializer{bytes: []byte("wire-bytes")},
	}

	sender := &recordingSender{}
	ex := &extractor.Extractor{
		Offsets: newStore(t),
		Source:  types.SourceInfo{ClusterName: "c1", NodeUUID: "n1"},
		Sender:  sender,
	}

	err := ex.OnMutation(context.Background(), mutation, parser.EntryLocation(100), parser.Descriptor{FileName: "CommitLog-7-3.log"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	got := sender.sent[0]
	require.Equal(t, types.OperationDelete, got.Operation)
	require.Equal(t, int64(555), got.TSMicros)
	cell, ok := got.Data.Get("id")
	require.True(t, ok)
	require.Equal(t, int32(7), cell.Value)
}

func TestOnMutationCompositePartitionKeyAndClustering(t *testing.T) {
	table := &fakeTable{
		keyspace: "ks", name: "t",
		cols: []metadata.Column{
			{Name: "tenant", CQL: "text", Kind: metadata.ColumnPartitionKey},
			{Name: "shard", CQL: "int", Kind: metadata.ColumnPartitionKey},
			{Name: "seq", CQL: "bigint", Kind: metadata.ColumnClusteringKey},
		},
	}
	keyBytes := encodeComposite([][]byte{[]byte("acme"), encodeSingleInt(3)})
	pu := parser.PartitionUpdate{
		Metadata:          table,
		PartitionKeyBytes: keyBytes,
		Unfiltereds: []parser.Unfiltered{
			{Row: parser.Row{
				Deletion:               parser.RowDeletion{MarkedForDeleteAt: parser.NoTimestamp},
				PrimaryKeyLivenessInfo: parser.LivenessInfo{Timestamp: 999},
				MaxTimestamp:           999,
				ClusteringValues:       []any{int64(42)},
			}},
		},
	}
	mutation := parser.Mutation{
		PartitionUpdates: []parser.PartitionUpdate{pu},
		Serializer:       fakeSerializer{bytes: []byte("wire-bytes")},
	}

	sender := &recordingSender{}
	ex := &extractor.Extractor{
		Offsets: newStore(t),
		Source:  types.SourceInfo{ClusterName: "c1", NodeUUID: "n1"},
		Sender:  sender,
	}

	err := ex.OnMutation(context.Background(), mutation, parser.EntryLocation(10), parser.Descriptor{FileName: "CommitLog-1-1.log"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	got := sender.sent[0]
	require.Equal(t, types.OperationInsert, got.Operation)

	tenant, ok := got.Data.Get("tenant")
	require.True(t, ok)
	require.Equal(t, "acme", tenant.Value)

	shard, ok := got.Data.Get("shard")
	require.True(t, ok)
	require.Equal(t, int32(3), shard.Value)

	seq, ok := got.Data.Get("seq")
	require.True(t, ok)
	require.Equal(t, int64(42), seq.Value)
	require.Equal(t, types.ColumnTypeClustering, seq.Type)
}

func TestOnMutationCompositePartitionKeyWithStaticPrefix(t *testing.T) {
	table := &fakeTable{
		keyspace: "ks", name: "t",
		cols: []metadata.Column{
			{Name: "tenant", CQL: "text", Kind: metadata.ColumnPartitionKey},
			{Name: "shard", CQL: "int", Kind: metadata.ColumnPartitionKey},
		},
	}
	keyBytes := encodeCompositeRaw([][]byte{[]byte("acme"), encodeSingleInt(3)}, true, 0x00)
	pu := parser.PartitionUpdate{
		Metadata:                   table,
		PartitionKeyBytes:          keyBytes,
		IsPartitionDeletion:        true,
		PartitionDeletionTimestamp: 1,
	}
	mutation := parser.Mutation{
		PartitionUpdates: []parser.PartitionUpdate{pu},
		Serializer:       fakeSerializer{bytes: []byte("x")},
	}

	sender := &recordingSender{}
	ex := &extractor.Extractor{
		Offsets: newStore(t),
		Sender:  sender,
	}

	err := ex.OnMutation(context.Background(), mutation, parser.EntryLocation(1), parser.Descriptor{FileName: "CommitLog-1-1.log"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	got := sender.sent[0]
	tenant, ok := got.Data.Get("tenant")
	require.True(t, ok)
	require.Equal(t, "acme", tenant.Value)
	shard, ok := got.Data.Get("shard")
	require.True(t, ok)
	require.Equal(t, int32(3), shard.Value)
}

func TestOnMutationCompositePartitionKeyNonZeroMarkerDropped(t *testing.T) {
	table := &fakeTable{
		keyspace: "ks", name: "t",
		cols: []metadata.Column{
			{Name: "tenant", CQL: "text", Kind: metadata.ColumnPartitionKey},
			{Name: "shard", CQL: "int", Kind: metadata.ColumnPartitionKey},
		},
	}
	keyBytes := encodeCompositeRaw([][]byte{[]byte("acme"), encodeSingleInt(3)}, false, 0x01)
	pu := parser.PartitionUpdate{
		Metadata:                   table,
		PartitionKeyBytes:          keyBytes,
		IsPartitionDeletion:        true,
		PartitionDeletionTimestamp: 1,
	}
	mutation := parser.Mutation{
		PartitionUpdates: []parser.PartitionUpdate{pu},
		Serializer:       fakeSerializer{bytes: []byte("x")},
	}

	sender := &recordingSender{}
	ex := &extractor.Extractor{
		Offsets: newStore(t),
		Sender:  sender,
	}

	err := ex.OnMutation(context.Background(), mutation, parser.EntryLocation(1), parser.Descriptor{FileName: "CommitLog-1-1.log"})
	require.NoError(t, err)
	require.Empty(t, sender.sent)
}

func TestOnMutationUnsupportedPartitionDropped(t *testing.T) {
	table := &fakeTable{counter: true, cols: []metadata.Column{
		{Name: "id", CQL: "int", Kind: metadata.ColumnPartitionKey},
	}}
	pu := parser.PartitionUpdate{Metadata: table, PartitionKeyBytes: encodeSingleInt(1)}
	mutation := parser.Mutation{
		PartitionUpdates: []parser.PartitionUpdate{pu},
		Serializer:       fakeSerializer{bytes: []byte("x")},
	}

	sender := &recordingSender{}
	ex := &extractor.Extractor{
		Offsets: newStore(t),
		Sender:  sender,
	}

	err := ex.OnMutation(context.Background(), mutation, parser.EntryLocation(1), parser.Descriptor{FileName: "CommitLog-1-1.log"})
	require.NoError(t, err)
	require.Empty(t, sender.sent)
}

func TestOnMutationSkipsAlreadyPublishedPosition(t *testing.T) {
	backend := &fakeBackend{saved: types.CommitLogPosition{SegmentID: 1, Position: 500}}
	store, err := offset.Open(backend)
	require.NoError(t, err)

	table := &fakeTable{cols: []metadata.Column{{Name: "id", CQL: "int", Kind: metadata.ColumnPartitionKey}}}
	pu := parser.PartitionUpdate{Metadata: table, PartitionKeyBytes: encodeSingleInt(1), IsPartitionDeletion: true}
	mutation := parser.Mutation{
		PartitionUpdates: []parser.PartitionUpdate{pu},
		Serializer:       fakeSerializer{bytes: []byte("x")},
	}

	sender := &recordingSender{}
	ex := &extractor.Extractor{Offsets: store, Sender: sender}

	err = ex.OnMutation(context.Background(), mutation, parser.EntryLocation(50), parser.Descriptor{FileName: "CommitLog-1-1.log"})
	require.NoError(t, err)
	require.Empty(t, sender.sent)
}
