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

// Package parser declares the callback contract between the Reader
// (internal/reader) and the external commit-log reader library that
// actually parses segment framing. That library's internals are out of
// scope for this system; this package only pins down the
// shape of the values it must hand back.
package parser

import (
	"context"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/metadata"
)

// Descriptor identifies the segment a callback fired for.
type Descriptor struct {
	FileName        string
	ProtocolVersion int
}

// EntryLocation is the byte offset of a mutation within its segment.
type EntryLocation int64

// RowDeletion describes a row-level tombstone.
type RowDeletion struct {
	MarkedForDeleteAt int64 // NoTimestamp sentinel when absent
}

// NoTimestamp is the sentinel value meaning "no liveness/deletion
// timestamp present," matching the source database's convention.
const NoTimestamp int64 = -1 << 63

// LivenessInfo carries a row's own liveness timestamp, used to tell
// INSERT from UPDATE.
type LivenessInfo struct {
	Timestamp int64 // NoTimestamp when absent
}

// Row is one row-level Unfiltered entry inside a partition update.
type Row struct {
	Deletion               RowDeletion
	PrimaryKeyLivenessInfo LivenessInfo
	MaxTimestamp           int64 // the row's own max cell timestamp

	// ClusteringValues holds the row's clustering column values, already
	// decoded to native Go types by the external parser. Only the
	// partition key's wire form is specified here; the
	// clustering key has no documented on-disk format to replicate.
	ClusteringValues []any
}

// Unfiltered is either a Row or a range-tombstone marker, as surfaced
// by the parser's row iterator.
type Unfiltered struct {
	IsRangeTombstoneMarker bool
	Row                    Row // valid only if !IsRangeTombstoneMarker
}

// PartitionUpdate is the portion of a Mutation targeting one partition.
type PartitionUpdate struct {
	Metadata metadata.Table

	PartitionKeyBytes          []byte
	IsPartitionDeletion        bool
	PartitionDeletionTimestamp int64 // NoTimestamp when IsPartitionDeletion is false
	MaxTimestamp               int64

	Unfiltereds []Unfiltered
}

// Mutation is one segment entry as surfaced by the external parser: an
// atomic change potentially touching multiple partitions. Serializer
// renders the full wire form of this same mutation, used to compute
// the digest attached to every types.Mutation it produces.
type Mutation struct {
	PartitionUpdates []PartitionUpdate
	Serializer       metadata.MutationSerializer
}

// Callbacks is bound by the Reader to the Extractor for one segment.
type Callbacks interface {
	// OnMutation is invoked once per parsed Mutation, with its byte
	// location in the segment and the segment's descriptor.
	OnMutation(ctx context.Context, mutation Mutation, location EntryLocation, descriptor Descriptor) error
}

// PermissibleError wraps a recoverable parse error: the Reader logs it
// and continues the segment.
type PermissibleError struct {
	Cause error
}

func (e *PermissibleError) Error() string { return "permissible parse error: " + e.Cause.Error() }
func (e *PermissibleError) Unwrap() error { return e.Cause }

// NonPermissibleError wraps a fatal parse error: the Reader does not
// skip past it, and the segment is handed to the Transfer Policy's
// error path.
type NonPermissibleError struct {
	Cause error
}

func (e *NonPermissibleError) Error() string {
	return "non-permissible parse error: " + e.Cause.Error()
}
func (e *NonPermissibleError) Unwrap() error { return e.Cause }

// Parser drives an external commit-log segment parser against one
// segment, invoking callbacks for each mutation it decodes.
type Parser interface {
	// ParseSegment parses path fully, invoking callbacks for each
	// mutation. It returns a *PermissibleError or *NonPermissibleError
	// to report a parse failure; any other error is a Parser-internal
	// failure unrelated to segment contents.
	ParseSegment(ctx context.Context, path string, callbacks Callbacks) error
}
