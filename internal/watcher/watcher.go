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

// Package watcher implements the debounced, poll-cadenced directory
// watcher. fsnotify supplies the underlying,
// best-effort OS events; this package's contribution is debouncing
// duplicate events for the same path within a single poll window and
// handing the caller a plain Event kind instead of fsnotify's op bits.
package watcher

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// EventKind is the debounced event kind reported to a Handler.
type EventKind int

const (
	// EventCreate reports a new file appearing in the watched directory.
	EventCreate EventKind = iota
	// EventModify reports an existing file's contents changing.
	EventModify
)

// Event is one debounced filesystem notification.
type Event struct {
	Path string
	Kind EventKind
}

// Handler is invoked with the debounced events collected during one
// poll window.
type Handler func(events []Event)

// Watcher polls dir at a fixed interval, debouncing duplicate
// create/write notifications for the same path within each window.
// Filesystem notifications are inherently best-effort; callers must
// independently rescan the directory rather than rely on Watcher alone.
type Watcher struct {
	dir      string
	interval time.Duration
	fsw      *fsnotify.Watcher
}

// New creates a Watcher over dir, polling at interval.
func New(dir string, interval time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watching %s", dir)
	}
	return &Watcher{dir: dir, interval: interval, fsw: fsw}, nil
}

// Close releases the underlying OS watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Poll blocks for up to interval, collecting and debouncing fsnotify
// events, then invokes handler with whatever was collected; handler is
// not called for a window that collected no events. Poll returns when the interval elapses or stopping is closed,
// whichever comes first.
func (w *Watcher) Poll(stopping <-chan struct{}, handler Handler) {
	deadline := time.NewTimer(w.interval)
	defer deadline.Stop()

	seen := make(map[string]EventKind)
	order := make([]string, 0, 4)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				w.flush(seen, order, handler)
				return
			}
			kind, ok := classify(ev.Op)
			if !ok {
				continue
			}
			if _, exists := seen[ev.Name]; !exists {
				order = append(order, ev.Name)
			}
			// A later Write after a Create in the same window still
			// reports as the Create that matters to the Detector: a
			// brand new file.
			if existing, exists := seen[ev.Name]; !exists || existing != EventCreate {
				seen[ev.Name] = kind
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.flush(seen, order, handler)
				return
			}
			log.WithError(err).Warn("filesystem watcher error")

		case <-deadline.C:
			w.flush(seen, order, handler)
			return

		case <-stopping:
			w.flush(seen, order, handler)
			return
		}
	}
}

func (w *Watcher) flush(seen map[string]EventKind, order []string, handler Handler) {
	if len(order) == 0 {
		return
	}
	events := make([]Event, 0, len(order))
	for _, path := range order {
		events = append(events, Event{Path: path, Kind: seen[path]})
	}
	handler(events)
}

func classify(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return EventCreate, true
	case op&fsnotify.Write != 0:
		return EventModify, true
	default:
		return 0, false
	}
}
