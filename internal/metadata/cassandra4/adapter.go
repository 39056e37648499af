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

// Package cassandra4 adapts the 4.x-era commit-log reader library's
// table-metadata handle (TableMetadata) onto metadata.Table. The 4.x
// driver represents views and indexes as separate top-level metadata
// kinds rather than booleans on the same struct, so this adapter's
// shape differs slightly from cassandra3's.
package cassandra4

import "github.com/cassandra-cdc/cdc-pulsar-producer/internal/metadata"

// Kind distinguishes how the 4.x driver classifies a TableMetadata.
type Kind int

// Table kinds recognized by the 4.x driver.
const (
	KindRegular Kind = iota
	KindCounter
	KindView
	KindIndex
)

// TableMetadata is the narrow view of the 4.x driver's table-metadata
// handle that this adapter depends on.
type TableMetadata struct {
	Keyspace string
	Table    string
	Kind     Kind
	Columns  []Column
}

// Column mirrors the 4.x driver's per-column descriptor, which already
// tags clustering order alongside the CQL type.
type Column struct {
	Name        string
	CQLType     string
	IsPartition bool
	IsClustered bool
}

// Adapter implements metadata.Table and metadata.MutationSerializer
// over a *TableMetadata and the mutation bytes the reader library
// hands back for the current entry.
type Adapter struct {
	meta       *TableMetadata
	serializer func(protocolVersion int) ([]byte, error)
}

var (
	_ metadata.Table              = (*Adapter)(nil)
	_ metadata.MutationSerializer = (*Adapter)(nil)
)

// New wraps meta. serialize is typically bound to the reader library's
// per-entry serializer at the current protocol version.
func New(meta *TableMetadata, serialize func(protocolVersion int) ([]byte, error)) *Adapter {
	return &Adapter{meta: meta, serializer: serialize}
}

// Keyspace implements metadata.Table.
func (a *Adapter) Keyspace() string { return a.meta.Keyspace }

// Name implements metadata.Table.
func (a *Adapter) Name() string { return a.meta.Table }

// PrimaryKeyColumns implements metadata.Table. Partition columns are
// emitted first, then clustering columns, each in declaration order as
// carried by the driver's own column slice.
func (a *Adapter) PrimaryKeyColumns() []metadata.Column {
	var partition, clustering []metadata.Column
	for _, c := range a.meta.Columns {
		switch {
		case c.IsPartition:
			partition = append(partition, metadata.Column{Name: c.Name, CQL: c.CQLType, Kind: metadata.ColumnPartitionKey})
		case c.IsClustered:
			clustering = append(clustering, metadata.Column{Name: c.Name, CQL: c.CQLType, Kind: metadata.ColumnClusteringKey})
		}
	}
	return append(partition, clustering...)
}

// IsCounter implements metadata.Table.
func (a *Adapter) IsCounter() bool { return a.meta.Kind == KindCounter }

// IsMaterializedView implements metadata.Table.
func (a *Adapter) IsMaterializedView() bool { return a.meta.Kind == KindView }

// IsSecondaryIndex implements metadata.Table.
func (a *Adapter) IsSecondaryIndex() bool { return a.meta.Kind == KindIndex }

// SerializeMutation implements metadata.MutationSerializer.
func (a *Adapter) SerializeMutation(protocolVersion int) ([]byte, error) {
	return a.serializer(protocolVersion)
}
