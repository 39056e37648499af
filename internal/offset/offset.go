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

// Package offset implements the durable, monotonic (segmentId,
// position) cursor. The Store type is safe
// for concurrent use: many readers (the Reader's skip filter, the
// Delivery Loop's fail-fast assertion) and a single advancer (the
// Delivery Loop, after a confirmed publish).
package offset

import (
	"sync"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/types"
)

// Backend durably persists a single CommitLogPosition. Implementations
// must guarantee that once Save returns, a subsequent process start
// observes at least that value from Load.
type Backend interface {
	// Load returns the last durably saved position, or types.Zero if
	// none has ever been saved.
	Load() (types.CommitLogPosition, error)
	// Save durably persists position. It is only ever called with a
	// position greater than the last one Save was called with.
	Save(position types.CommitLogPosition) error
}

// Store is the in-memory, concurrency-safe view of the cursor, backed
// by a Backend for durability.
type Store struct {
	backend Backend

	mu      sync.RWMutex
	current types.CommitLogPosition
}

// Open loads the initial position from backend and returns a ready
// Store.
func Open(backend Backend) (*Store, error) {
	current, err := backend.Load()
	if err != nil {
		return nil, err
	}
	return &Store{backend: backend, current: current}, nil
}

// Load returns the current cursor. Safe to call concurrently with Mark.
func (s *Store) Load() types.CommitLogPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Mark advances the cursor to max(current, position) and, if it
// actually advanced, durably persists the new value before returning.
// Mark is a no-op (and returns nil) if position does not advance the
// cursor, matching the "monotonically non-decreasing" invariant in
// at-least-once delivery even under duplicate or out-of-order calls.
func (s *Store) Mark(position types.CommitLogPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current.Less(position) {
		return nil
	}
	if err := s.backend.Save(position); err != nil {
		return err
	}
	s.current = position
	return nil
}
