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

// Package publisher implements the Outbound Publisher:
// per-table Pulsar producer caching, AVRO key-schema derivation over
// primary-key columns, and message composition.
package publisher

import (
	"encoding/json"
	"fmt"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/cqltype"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/metadata"
	"github.com/hamba/avro/v2"
	"github.com/pkg/errors"
)

// avroField is one field of a derived record schema, shaped for direct
// JSON marshaling into the form hamba/avro expects.
type avroField struct {
	Name string      `json:"name"`
	Type interface{} `json:"type"`
}

type avroRecord struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	Fields []avroField `json:"fields"`
}

// KeySchema derives the AVRO record schema for a table's key, over its
// primary-key columns only: partition columns are
// non-null, clustering columns are nullable (a ["null", T] union),
// since a partition deletion carries no clustering values.
func KeySchema(table metadata.Table) (avro.Schema, error) {
	fields := make([]avroField, 0, len(table.PrimaryKeyColumns()))

	for _, col := range table.PrimaryKeyColumns() {
		kind, ok := cqltype.Parse(col.CQL)
		if !ok {
			return nil, errors.Errorf("unsupported CQL type %q for column %s.%s.%s", col.CQL, table.Keyspace(), table.Name(), col.Name)
		}

		fieldType, err := avroFieldType(kind, col.Kind == metadata.ColumnClusteringKey)
		if err != nil {
			return nil, err
		}
		fields = append(fields, avroField{Name: col.Name, Type: fieldType})
	}

	record := avroRecord{
		Type:   "record",
		Name:   recordName(table),
		Fields: fields,
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling derived key schema")
	}

	schema, err := avro.Parse(string(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing derived key schema for %s.%s", table.Keyspace(), table.Name())
	}
	return schema, nil
}

func recordName(table metadata.Table) string {
	return fmt.Sprintf("%s_%s_key", sanitize(table.Keyspace()), sanitize(table.Name()))
}

func sanitize(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

func avroFieldType(kind cqltype.Kind, nullable bool) (interface{}, error) {
	base, ok := cqltype.AvroType(kind)
	if !ok {
		return nil, errors.Errorf("no AVRO mapping for CQL kind %d", kind)
	}

	var primitive interface{} = base
	if logical, ok := cqltype.LogicalType(kind); ok {
		primitive = map[string]interface{}{
			"type":        base,
			"logicalType": logical,
		}
	}

	if !nullable {
		return primitive, nil
	}
	return []interface{}{"null", primitive}, nil
}

// valueSchemaJSON is the fixed AVRO schema for types.MutationValue; it
// never varies by table, so it is parsed once.
const valueSchemaJSON = `{
	"type": "record",
	"name": "MutationValue",
	"fields": [
		{"name": "md5Digest", "type": "string"},
		{"name": "nodeId", "type": "string"},
		{"name": "operation", "type": "string"}
	]
}`

var valueSchema = avro.MustParse(valueSchemaJSON)

// ValueSchema returns the shared AVRO schema for the mutation value
// envelope.
func ValueSchema() avro.Schema { return valueSchema }
