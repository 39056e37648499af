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

package offset_test

import (
	"path/filepath"
	"testing"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/offset"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/types"
	"github.com/stretchr/testify/require"
)

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offset")
	backend := offset.NewFileBackend(path)

	initial, err := backend.Load()
	require.NoError(t, err)
	require.Equal(t, types.Zero, initial)

	want := types.CommitLogPosition{SegmentID: 42, Position: 100}
	require.NoError(t, backend.Save(want))

	got, err := backend.Load()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestStoreMarkIsMonotonic(t *testing.T) {
	backend := offset.NewFileBackend(filepath.Join(t.TempDir(), "offset"))
	store, err := offset.Open(backend)
	require.NoError(t, err)

	require.Equal(t, types.Zero, store.Load())

	require.NoError(t, store.Mark(types.CommitLogPosition{SegmentID: 7, Position: 50}))
	require.Equal(t, types.CommitLogPosition{SegmentID: 7, Position: 50}, store.Load())

	// Marking an earlier position is a no-op.
	require.NoError(t, store.Mark(types.CommitLogPosition{SegmentID: 7, Position: 10}))
	require.Equal(t, types.CommitLogPosition{SegmentID: 7, Position: 50}, store.Load())

	// Marking a later position advances, and is observed by a fresh
	// Store opened against the same backend.
	require.NoError(t, store.Mark(types.CommitLogPosition{SegmentID: 8, Position: 0}))
	require.Equal(t, types.CommitLogPosition{SegmentID: 8, Position: 0}, store.Load())

	reopened, err := offset.Open(backend)
	require.NoError(t, err)
	require.Equal(t, types.CommitLogPosition{SegmentID: 8, Position: 0}, reopened.Load())
}

func TestStoreLoadOrdering(t *testing.T) {
	store, err := offset.Open(offset.NewFileBackend(filepath.Join(t.TempDir(), "offset")))
	require.NoError(t, err)

	p1 := store.Load()
	require.NoError(t, store.Mark(types.CommitLogPosition{SegmentID: 1, Position: 1}))
	p2 := store.Load()

	require.True(t, p1.Compare(p2) <= 0)
}
