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

package cqltype_test

import (
	"encoding/binary"
	"testing"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/cqltype"
	"github.com/stretchr/testify/require"
)

func TestParseKnownAndUnknown(t *testing.T) {
	k, ok := cqltype.Parse("bigint")
	require.True(t, ok)
	require.Equal(t, cqltype.BigInt, k)

	_, ok = cqltype.Parse("counter")
	require.False(t, ok)
}

func TestDecodeBytesInt(t *testing.T) {
	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, 42)
	v, err := cqltype.DecodeBytes(cqltype.Int, raw)
	require.NoError(t, err)
	require.Equal(t, int32(42), v)
}

func TestDecodeBytesText(t *testing.T) {
	v, err := cqltype.DecodeBytes(cqltype.Text, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestDecodeBytesUUID(t *testing.T) {
	raw := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x05, 0x06,
		0x07, 0x08,
		0x09, 0x0a,
		0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
	}
	v, err := cqltype.DecodeBytes(cqltype.UUID, raw)
	require.NoError(t, err)
	require.Equal(t, "01020304-0506-0708-090a-0b0c0d0e0f10", v)
}

func TestDecodeBytesTooShort(t *testing.T) {
	_, err := cqltype.DecodeBytes(cqltype.BigInt, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestAvroTypeAndLogicalType(t *testing.T) {
	at, ok := cqltype.AvroType(cqltype.Date)
	require.True(t, ok)
	require.Equal(t, "int", at)

	lt, ok := cqltype.LogicalType(cqltype.Date)
	require.True(t, ok)
	require.Equal(t, "date", lt)

	_, ok = cqltype.LogicalType(cqltype.Text)
	require.False(t, ok)
}
