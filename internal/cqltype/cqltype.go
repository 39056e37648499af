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

// Package cqltype is the single source of truth for the CQL
// primary-key type mapping table. It is shared by the
// extractor (decoding raw partition-key bytes) and the publisher
// (deriving AVRO schemas and encoding values), so the two never drift.
package cqltype

import (
	"encoding/binary"
	"math"
	"net"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Kind enumerates the CQL primary-key types this system understands.
// Any column whose type is not one of these causes the whole mutation
// to be dropped.
type Kind int

const (
	Text Kind = iota
	Boolean
	Blob
	TinyInt
	SmallInt
	Int
	BigInt
	Float
	Double
	Timestamp
	Date
	Time
	UUID
	TimeUUID
	Inet
)

var byName = map[string]Kind{
	"text":    Text,
	"varchar": Text,
	"ascii":   Text,
	"boolean": Boolean,
	"blob":    Blob,
	"tinyint": TinyInt,
	"smallint": SmallInt,
	"int":      Int,
	"bigint":   BigInt,
	"float":    Float,
	"double":   Double,
	"timestamp": Timestamp,
	"date":     Date,
	"time":     Time,
	"uuid":     UUID,
	"timeuuid": TimeUUID,
	"inet":     Inet,
}

// Parse returns the Kind for a CQL type name (case-sensitive, matching
// the names the commit-log reader library reports), and false if the
// name falls outside the supported set.
func Parse(cqlName string) (Kind, bool) {
	k, ok := byName[cqlName]
	return k, ok
}

// dateEpochOffset is the INT_MIN offset the source database adds to a
// "days since epoch" value so that it can be stored as an unsigned
// 32-bit quantity; decoding requires subtracting it back out.
const dateEpochOffset = int64(1) << 31

// DecodeBytes converts a raw, network-byte-order wire value into a Go
// native value for the given Kind. It is used for partition-key
// columns, whose values arrive as raw buffers; all
// other columns in this system arrive pre-decoded from the row
// iterator and are validated with Parse alone.
func DecodeBytes(kind Kind, raw []byte) (any, error) {
	switch kind {
	case Text:
		return string(raw), nil
	case Boolean:
		if len(raw) < 1 {
			return nil, errors.New("boolean value too short")
		}
		return raw[0] != 0, nil
	case Blob:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	case TinyInt:
		if len(raw) < 1 {
			return nil, errors.New("tinyint value too short")
		}
		return int32(int8(raw[0])), nil
	case SmallInt:
		if len(raw) < 2 {
			return nil, errors.New("smallint value too short")
		}
		return int32(int16(binary.BigEndian.Uint16(raw))), nil
	case Int:
		if len(raw) < 4 {
			return nil, errors.New("int value too short")
		}
		return int32(binary.BigEndian.Uint32(raw)), nil
	case BigInt, Timestamp:
		if len(raw) < 8 {
			return nil, errors.New("bigint/timestamp value too short")
		}
		return int64(binary.BigEndian.Uint64(raw)), nil
	case Float:
		if len(raw) < 4 {
			return nil, errors.New("float value too short")
		}
		return math.Float32frombits(binary.BigEndian.Uint32(raw)), nil
	case Double:
		if len(raw) < 8 {
			return nil, errors.New("double value too short")
		}
		return math.Float64frombits(binary.BigEndian.Uint64(raw)), nil
	case Date:
		if len(raw) < 4 {
			return nil, errors.New("date value too short")
		}
		unsignedDays := int64(binary.BigEndian.Uint32(raw))
		return int32(unsignedDays - dateEpochOffset), nil
	case Time:
		if len(raw) < 8 {
			return nil, errors.New("time value too short")
		}
		nanos := int64(binary.BigEndian.Uint64(raw))
		return int32(nanos / 1_000_000), nil
	case UUID, TimeUUID:
		if len(raw) != 16 {
			return nil, errors.New("uuid value must be 16 bytes")
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return nil, errors.Wrap(err, "decoding uuid")
		}
		return id.String(), nil
	case Inet:
		ip := net.IP(raw)
		if ip == nil {
			return nil, errors.New("invalid inet value")
		}
		return ip.String(), nil
	default:
		return nil, errors.Errorf("unsupported CQL kind %d", kind)
	}
}

// AvroType returns the AVRO primitive type name used when deriving a
// table's key/value schema for this CQL kind. Date
// and Time use AVRO's logical-type annotations over their base
// primitive, which is the caller's responsibility to attach.
func AvroType(kind Kind) (string, bool) {
	switch kind {
	case Text, UUID, TimeUUID, Inet:
		return "string", true
	case Boolean:
		return "boolean", true
	case Blob:
		return "bytes", true
	case TinyInt, SmallInt, Int, Date, Time:
		return "int", true
	case BigInt, Timestamp:
		return "long", true
	case Float:
		return "float", true
	case Double:
		return "double", true
	default:
		return "", false
	}
}

// LogicalType returns the AVRO logical-type annotation for kinds that
// need one (date, time-millis, timestamp-millis), and false otherwise.
func LogicalType(kind Kind) (string, bool) {
	switch kind {
	case Date:
		return "date", true
	case Time:
		return "time-millis", true
	case Timestamp:
		return "timestamp-millis", true
	default:
		return "", false
	}
}
