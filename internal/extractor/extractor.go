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

// Package extractor implements the Mutation Extractor:
// it classifies each parsed partition update, decodes the composite
// partition key, builds the primary-key-only RowData for each row-level
// change, and hands the result to a Sender for publication.
package extractor

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/commitlog"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/cqltype"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/metadata"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/metrics"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/offset"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/parser"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/types"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// skippable reports whether err is a dropped-mutation condition (bad
// partition key encoding or an unsupported column type), as opposed to
// a fatal segment error.
func skippable(err error) bool {
	if _, ok := types.IsPartitionKeyDecodeError(err); ok {
		return true
	}
	var unsupported *types.UnsupportedColumnTypeError
	return errors.As(err, &unsupported)
}

// PartitionType classifies a PartitionUpdate for the purposes of
// deciding whether, and how, it should be published.
//
// The classification order below is intentionally literal: a
// materialized view or secondary index backing table is recognized
// before a partition deletion is, even though the source database
// could in principle report both conditions on the same metadata
// handle. Reordering these checks changes which counter absorbs a
// dual-flagged table, so the order is preserved exactly as specified.
type PartitionType int

const (
	// PartitionUnsupportedCounter is a counter table; counters have no
	// well-defined row identity for this system's purposes.
	PartitionUnsupportedCounter PartitionType = iota
	// PartitionUnsupportedMaterializedView backs a materialized view.
	PartitionUnsupportedMaterializedView
	// PartitionUnsupportedSecondaryIndex backs a secondary index.
	PartitionUnsupportedSecondaryIndex
	// PartitionKeyRowDeletion is a whole-partition tombstone.
	PartitionKeyRowDeletion
	// PartitionRowLevelModification carries one or more row-level changes.
	PartitionRowLevelModification
)

// ClassifyPartitionType applies the priority order described above.
func ClassifyPartitionType(pu parser.PartitionUpdate) PartitionType {
	switch {
	case pu.Metadata.IsCounter():
		return PartitionUnsupportedCounter
	case pu.Metadata.IsMaterializedView():
		return PartitionUnsupportedMaterializedView
	case pu.Metadata.IsSecondaryIndex():
		return PartitionUnsupportedSecondaryIndex
	case pu.IsPartitionDeletion:
		return PartitionKeyRowDeletion
	default:
		return PartitionRowLevelModification
	}
}

// supported reports whether a PartitionType results in published
// mutations at all.
func supported(t PartitionType) bool {
	return t == PartitionKeyRowDeletion || t == PartitionRowLevelModification
}

func droppedReason(t PartitionType) string {
	switch t {
	case PartitionUnsupportedCounter:
		return "counter"
	case PartitionUnsupportedMaterializedView:
		return "materialized_view"
	case PartitionUnsupportedSecondaryIndex:
		return "secondary_index"
	default:
		return "unknown"
	}
}

// RowType classifies one Unfiltered entry within a row-level partition
// update.
type RowType int

const (
	// RowUnknown is any Unfiltered this system does not recognize.
	RowUnknown RowType = iota
	// RowRangeTombstone marks a clustering-range deletion; priority order
	// explicitly leaves range tombstones unsupported.
	RowRangeTombstone
	// RowInsert is a row with its own liveness timestamp set.
	RowInsert
	// RowUpdate is a row modification with no liveness timestamp of its own.
	RowUpdate
	// RowDelete is a row-level tombstone.
	RowDelete
)

// ClassifyRowType applies the row-level priority order: a row deletion
// is recognized before liveness is consulted, since a deleted row's
// liveness info is meaningless.
func ClassifyRowType(u parser.Unfiltered) RowType {
	if u.IsRangeTombstoneMarker {
		return RowRangeTombstone
	}
	if u.Row.Deletion.MarkedForDeleteAt != parser.NoTimestamp {
		return RowDelete
	}
	if u.Row.PrimaryKeyLivenessInfo.Timestamp != parser.NoTimestamp {
		return RowInsert
	}
	return RowUpdate
}

func (t RowType) operation() types.Operation {
	switch t {
	case RowDelete:
		return types.OperationDelete
	case RowInsert:
		return types.OperationInsert
	default:
		return types.OperationUpdate
	}
}

// Sender is the destination for extracted mutations; the Delivery Loop
// (internal/delivery) is the production implementation.
type Sender interface {
	Send(ctx context.Context, mutation types.Mutation[metadata.Table]) error
}

// Extractor implements parser.Callbacks, turning each parsed Mutation
// into zero or more types.Mutation values handed to a Sender.
type Extractor struct {
	Offsets         *offset.Store
	Source          types.SourceInfo
	Sender          Sender
	ProtocolVersion int
}

var _ parser.Callbacks = (*Extractor)(nil)

// OnMutation implements parser.Callbacks.
func (e *Extractor) OnMutation(ctx context.Context, mutation parser.Mutation, location parser.EntryLocation, descriptor parser.Descriptor) error {
	segmentID, err := commitlog.ExtractSegmentID(descriptor.FileName)
	if err != nil {
		return &parser.NonPermissibleError{Cause: errors.Wrapf(err, "extracting segment id from %s", descriptor.FileName)}
	}
	entryPosition := types.CommitLogPosition{SegmentID: segmentID, Position: int32(location)}

	// The Reader may hand us entries at or before the durable cursor
	// after a restart, since the last segment is always reprocessed from
	// its start; skip anything already published.
	if entryPosition.Compare(e.Offsets.Load()) <= 0 {
		return nil
	}

	var digest string
	var digestComputed bool

	for _, pu := range mutation.PartitionUpdates {
		ptype := ClassifyPartitionType(pu)
		if !supported(ptype) {
			metrics.DroppedUnsupportedPartition.WithLabelValues(droppedReason(ptype)).Inc()
			continue
		}

		if !digestComputed {
			raw, err := mutation.Serializer.SerializeMutation(e.ProtocolVersion)
			if err != nil {
				return &parser.NonPermissibleError{Cause: errors.Wrap(err, "serializing mutation for digest")}
			}
			digest = md5Hex(raw)
			digestComputed = true
		}

		switch ptype {
		case PartitionKeyRowDeletion:
			if err := e.emitPartitionDeletion(ctx, pu, entryPosition, digest); err != nil {
				return err
			}
		case PartitionRowLevelModification:
			if err := e.emitRowLevelChanges(ctx, pu, entryPosition, digest); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Extractor) emitPartitionDeletion(ctx context.Context, pu parser.PartitionUpdate, position types.CommitLogPosition, digest string) error {
	data, err := decodePartitionKeyOnly(pu)
	if err != nil {
		if skippable(err) {
			metrics.SkippedMutations.Inc()
			log.WithError(err).WithField("table", pu.Metadata.Name()).Warn("dropping mutation with undecodable or unsupported primary key")
			return nil
		}
		return err
	}

	m := types.Mutation[metadata.Table]{
		Position:  position,
		Source:    e.Source,
		Data:      data,
		TSMicros:  pu.PartitionDeletionTimestamp,
		Digest:    digest,
		Operation: types.OperationDelete,
		Metadata:  pu.Metadata,
	}
	return e.Sender.Send(ctx, m)
}

func (e *Extractor) emitRowLevelChanges(ctx context.Context, pu parser.PartitionUpdate, position types.CommitLogPosition, digest string) error {
	for _, u := range pu.Unfiltereds {
		rowType := ClassifyRowType(u)
		if rowType == RowRangeTombstone || rowType == RowUnknown {
			continue
		}

		data, err := decodeRow(pu, u.Row)
		if err != nil {
			if skippable(err) {
				metrics.SkippedMutations.Inc()
				log.WithError(err).WithField("table", pu.Metadata.Name()).Warn("dropping mutation with undecodable or unsupported primary key")
				continue
			}
			return err
		}

		tsMicros := u.Row.MaxTimestamp
		if rowType == RowDelete {
			tsMicros = u.Row.Deletion.MarkedForDeleteAt
		}

		m := types.Mutation[metadata.Table]{
			Position:  position,
			Source:    e.Source,
			Data:      data,
			TSMicros:  tsMicros,
			Digest:    digest,
			Operation: rowType.operation(),
			Metadata:  pu.Metadata,
		}
		if err := e.Sender.Send(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// decodePartitionKeyOnly builds a RowData with only partition columns,
// for whole-partition deletions.
func decodePartitionKeyOnly(pu parser.PartitionUpdate) (*types.RowData, error) {
	values, err := decodeCompositePartitionKey(pu.Metadata, pu.PartitionKeyBytes)
	if err != nil {
		return nil, err
	}

	data := types.NewRowData()
	for _, col := range pu.Metadata.PrimaryKeyColumns() {
		if col.Kind != metadata.ColumnPartitionKey {
			continue
		}
		data.Append(types.CellData{
			Name:  col.Name,
			Value: values[col.Name],
			Type:  types.ColumnTypePartition,
		})
	}
	return data, nil
}

// decodeRow builds a RowData with partition and clustering columns for
// one row-level change.
func decodeRow(pu parser.PartitionUpdate, row parser.Row) (*types.RowData, error) {
	partitionValues, err := decodeCompositePartitionKey(pu.Metadata, pu.PartitionKeyBytes)
	if err != nil {
		return nil, err
	}

	data := types.NewRowData()
	clusteringIdx := 0
	for _, col := range pu.Metadata.PrimaryKeyColumns() {
		if col.Kind == metadata.ColumnClusteringKey {
			if _, ok := cqltype.Parse(col.CQL); !ok {
				return nil, &types.UnsupportedColumnTypeError{Table: pu.Metadata.Name(), Column: col.Name, CQL: col.CQL}
			}
		}

		switch col.Kind {
		case metadata.ColumnPartitionKey:
			data.Append(types.CellData{
				Name:  col.Name,
				Value: partitionValues[col.Name],
				Type:  types.ColumnTypePartition,
			})
		case metadata.ColumnClusteringKey:
			var v any
			if clusteringIdx < len(row.ClusteringValues) {
				v = row.ClusteringValues[clusteringIdx]
			}
			clusteringIdx++
			data.Append(types.CellData{
				Name:  col.Name,
				Value: v,
				Type:  types.ColumnTypeClustering,
			})
		}
	}
	return data, nil
}

// staticCompositePrefix marks a composite partition key encoded with a
// leading static-column marker, which must be stripped before the
// component loop starts.
const staticCompositePrefix = 0xFFFF

// decodeCompositePartitionKey decodes the optionally static-prefixed,
// length-prefixed composite buffer into a name-to-value map over
// table's partition-key columns, in declaration order.
//
// Wire layout, after stripping an optional 2-byte 0xFFFF "static"
// prefix, repeated once per partition-key component:
//
//	2 bytes  component length (big-endian uint16)
//	N bytes  component value
//	1 byte   end-of-component marker (0x00 on a well-formed key; a
//	         non-zero marker means the remainder is a malformed or
//	         query-bound encoding, and decoding stops there)
//
// A single-column partition key is encoded as the bare value with no
// prefix, length prefix, or marker at all, which this function detects
// by comparing the column count to 1.
func decodeCompositePartitionKey(table metadata.Table, raw []byte) (map[string]any, error) {
	cols := make([]metadata.Column, 0, 4)
	for _, c := range table.PrimaryKeyColumns() {
		if c.Kind == metadata.ColumnPartitionKey {
			cols = append(cols, c)
		}
	}

	values := make(map[string]any, len(cols))

	if len(cols) == 1 {
		kind, ok := cqltype.Parse(cols[0].CQL)
		if !ok {
			return nil, &types.UnsupportedColumnTypeError{Table: table.Name(), Column: cols[0].Name, CQL: cols[0].CQL}
		}
		v, err := cqltype.DecodeBytes(kind, raw)
		if err != nil {
			return nil, &types.PartitionKeyDecodeError{Table: table.Name(), Reason: err.Error()}
		}
		values[cols[0].Name] = v
		return values, nil
	}

	pos := 0
	if len(raw) >= 2 && binary.BigEndian.Uint16(raw[0:2]) == staticCompositePrefix {
		pos = 2
	}

	for _, col := range cols {
		if pos+2 > len(raw) {
			return nil, &types.PartitionKeyDecodeError{Table: table.Name(), Reason: "truncated component length"}
		}
		length := int(binary.BigEndian.Uint16(raw[pos : pos+2]))
		pos += 2

		if pos+length > len(raw) {
			return nil, &types.PartitionKeyDecodeError{Table: table.Name(), Reason: "truncated component value"}
		}
		component := raw[pos : pos+length]
		pos += length

		if pos >= len(raw) {
			return nil, &types.PartitionKeyDecodeError{Table: table.Name(), Reason: "missing end-of-component marker"}
		}
		marker := raw[pos]
		pos++
		if marker != 0 {
			return nil, &types.PartitionKeyDecodeError{Table: table.Name(), Reason: "malformed or query-bound encoding: non-zero end-of-component marker"}
		}

		kind, ok := cqltype.Parse(col.CQL)
		if !ok {
			return nil, &types.UnsupportedColumnTypeError{Table: table.Name(), Column: col.Name, CQL: col.CQL}
		}
		v, err := cqltype.DecodeBytes(kind, component)
		if err != nil {
			return nil, &types.PartitionKeyDecodeError{Table: table.Name(), Reason: err.Error()}
		}
		values[col.Name] = v
	}
	return values, nil
}
