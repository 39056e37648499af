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

// Package cassandra3 adapts the 3.x-era commit-log reader library's
// table-metadata handle (CFMetaData) onto metadata.Table. The reader
// library itself is an external collaborator; this
// package only narrows its surface.
package cassandra3

import "github.com/cassandra-cdc/cdc-pulsar-producer/internal/metadata"

// CFMetaData is the narrow view of the 3.x driver's column-family
// metadata handle that this adapter depends on. The real type carries
// a great deal more (compaction strategy, compression params, etc.)
// that the CDC producer has no use for.
type CFMetaData struct {
	KeyspaceName  string
	CFName        string
	PartitionKey  []ColumnDefinition
	ClusteringKey []ColumnDefinition
	IsCounter     bool
	IsView        bool
	IsIndex       bool
}

// ColumnDefinition mirrors the 3.x driver's per-column descriptor.
type ColumnDefinition struct {
	Name    string
	CQLType string
}

// Adapter implements metadata.Table and metadata.MutationSerializer
// over a *CFMetaData and the mutation bytes the reader library hands
// back for the current entry.
type Adapter struct {
	meta       *CFMetaData
	serializer func(protocolVersion int) ([]byte, error)
}

var (
	_ metadata.Table              = (*Adapter)(nil)
	_ metadata.MutationSerializer = (*Adapter)(nil)
)

// New wraps meta. serialize is called lazily by SerializeMutation and
// is typically bound to the reader library's per-entry serializer.
func New(meta *CFMetaData, serialize func(protocolVersion int) ([]byte, error)) *Adapter {
	return &Adapter{meta: meta, serializer: serialize}
}

// Keyspace implements metadata.Table.
func (a *Adapter) Keyspace() string { return a.meta.KeyspaceName }

// Name implements metadata.Table.
func (a *Adapter) Name() string { return a.meta.CFName }

// PrimaryKeyColumns implements metadata.Table.
func (a *Adapter) PrimaryKeyColumns() []metadata.Column {
	cols := make([]metadata.Column, 0, len(a.meta.PartitionKey)+len(a.meta.ClusteringKey))
	for _, c := range a.meta.PartitionKey {
		cols = append(cols, metadata.Column{Name: c.Name, CQL: c.CQLType, Kind: metadata.ColumnPartitionKey})
	}
	for _, c := range a.meta.ClusteringKey {
		cols = append(cols, metadata.Column{Name: c.Name, CQL: c.CQLType, Kind: metadata.ColumnClusteringKey})
	}
	return cols
}

// IsCounter implements metadata.Table.
func (a *Adapter) IsCounter() bool { return a.meta.IsCounter }

// IsMaterializedView implements metadata.Table.
func (a *Adapter) IsMaterializedView() bool { return a.meta.IsView }

// IsSecondaryIndex implements metadata.Table.
func (a *Adapter) IsSecondaryIndex() bool { return a.meta.IsIndex }

// SerializeMutation implements metadata.MutationSerializer.
func (a *Adapter) SerializeMutation(protocolVersion int) ([]byte, error) {
	return a.serializer(protocolVersion)
}
