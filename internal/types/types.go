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

// Package types contains the data model and small capability
// interfaces shared across the commit-log ingestion pipeline, the
// mutation extractor, and the outbound publisher. Keeping these in one
// package makes it easy to compose the pipeline without import cycles.
package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// CommitLogPosition is a totally ordered pair identifying a byte offset
// within a numbered commit-log segment. All mutations at or before this
// position in this segment are considered durably published once it
// has been recorded in the offset store.
type CommitLogPosition struct {
	SegmentID uint64
	Position  int32
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater
// than b, comparing SegmentID first and then Position.
func (a CommitLogPosition) Compare(b CommitLogPosition) int {
	switch {
	case a.SegmentID < b.SegmentID:
		return -1
	case a.SegmentID > b.SegmentID:
		return 1
	case a.Position < b.Position:
		return -1
	case a.Position > b.Position:
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts before b.
func (a CommitLogPosition) Less(b CommitLogPosition) bool { return a.Compare(b) < 0 }

// String implements fmt.Stringer as "segmentId:position", the format
// used by the file-backed offset store.
func (a CommitLogPosition) String() string {
	return fmt.Sprintf("%d:%d", a.SegmentID, a.Position)
}

// Zero is the smallest possible CommitLogPosition.
var Zero = CommitLogPosition{}

// ColumnType classifies a CellData's role in the table's primary key.
type ColumnType int

// The extractor only ever populates PARTITION and CLUSTERING cells;
// REGULAR is declared for completeness since the wire format never
// carries it.
const (
	ColumnTypePartition ColumnType = iota
	ColumnTypeClustering
	ColumnTypeRegular
)

func (c ColumnType) String() string {
	switch c {
	case ColumnTypePartition:
		return "PARTITION"
	case ColumnTypeClustering:
		return "CLUSTERING"
	case ColumnTypeRegular:
		return "REGULAR"
	default:
		return "UNKNOWN"
	}
}

// CellData is one column value decoded from a mutation's primary key.
// DeletionTimestamp is non-nil only for cells carrying their own
// per-cell tombstone, which does not occur for the PARTITION/CLUSTERING
// cells this system populates, but is retained here so the shape
// matches what the source database's row model actually carries.
type CellData struct {
	Name              string
	Value             any
	DeletionTimestamp *int64
	Type              ColumnType
}

// RowData is an ordered mapping from column name to CellData. Order
// matches the table's primary-key column order: partition columns
// first, then clustering columns.
type RowData struct {
	names []string
	cells map[string]CellData
}

// NewRowData returns an empty RowData ready for Append.
func NewRowData() *RowData {
	return &RowData{cells: make(map[string]CellData)}
}

// Append adds a cell, preserving insertion order. Appending a name that
// already exists replaces its value but not its position.
func (r *RowData) Append(cell CellData) {
	if _, ok := r.cells[cell.Name]; !ok {
		r.names = append(r.names, cell.Name)
	}
	r.cells[cell.Name] = cell
}

// Names returns the column names in primary-key order.
func (r *RowData) Names() []string {
	return r.names
}

// Get returns the cell for the given column name.
func (r *RowData) Get(name string) (CellData, bool) {
	c, ok := r.cells[name]
	return c, ok
}

// Len returns the number of cells.
func (r *RowData) Len() int { return len(r.names) }

// SourceInfo identifies the database cluster and node that produced a
// Mutation. It is immutable for the lifetime of the process.
type SourceInfo struct {
	ClusterName string
	NodeUUID    string
}

// Operation is the kind of change a Mutation represents on the wire.
type Operation int

const (
	// OperationInsert is emitted when a row's liveness timestamp is set.
	OperationInsert Operation = iota
	// OperationUpdate is emitted for a row modification with no liveness
	// timestamp of its own.
	OperationUpdate
	// OperationDelete is emitted for a row or partition deletion.
	OperationDelete
)

func (o Operation) String() string {
	switch o {
	case OperationInsert:
		return "INSERT"
	case OperationUpdate:
		return "UPDATE"
	case OperationDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Mutation is the in-memory record built by the extractor for exactly
// one supported row-level change. M is the opaque per-table metadata
// handle threaded through unchanged from the Reader callback so the
// Publisher can derive a schema without re-querying the database.
type Mutation[M any] struct {
	Position  CommitLogPosition
	Source    SourceInfo
	Data      *RowData
	TSMicros  int64
	Digest    string
	Operation Operation
	Metadata  M
}

// MutationValue is the wire payload published to the bus. It never
// carries column values: consumers re-read the source of truth using
// the routing metadata (the topic and the key) and use Digest to
// detect repeated delivery of the same source mutation.
type MutationValue struct {
	Digest    string `avro:"md5Digest"`
	NodeID    string `avro:"nodeId"`
	Operation string `avro:"operation"`
}

// PartitionKeyDecodeError is returned when a composite partition-key
// buffer cannot be decoded because it does not match the encoding
// described by the commit-log reader. It carries enough context for a caller to
// log the failing segment without needing a type switch.
type PartitionKeyDecodeError struct {
	Table  string
	Reason string
}

func (e *PartitionKeyDecodeError) Error() string {
	return fmt.Sprintf("partition key decode error for table %s: %s", e.Table, e.Reason)
}

// IsPartitionKeyDecodeError reports whether err is, or wraps, a
// *PartitionKeyDecodeError.
func IsPartitionKeyDecodeError(err error) (*PartitionKeyDecodeError, bool) {
	var target *PartitionKeyDecodeError
	ok := errors.As(err, &target)
	return target, ok
}

// UnsupportedColumnTypeError is returned when a primary-key column's
// CQL type falls outside the supported mapping table. The whole
// mutation is dropped and counted as skipped; it is never a fatal
// segment error.
type UnsupportedColumnTypeError struct {
	Table  string
	Column string
	CQL    string
}

func (e *UnsupportedColumnTypeError) Error() string {
	return fmt.Sprintf("unsupported primary key type %q for %s.%s", e.CQL, e.Table, e.Column)
}
