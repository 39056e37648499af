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

// Package metrics declares the process-wide counters the pipeline
// emits plus a handful of operational histograms, following the layout
// of a single metrics.go file per concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TableLabels is shared by every per-table metric so dashboards can
// group by keyspace/table consistently.
var TableLabels = []string{"keyspace", "table"}

// LatencyBuckets is shared by every duration histogram.
var LatencyBuckets = prometheus.ExponentialBuckets(0.001, 2, 16)

var (
	// SentMutations counts mutations successfully published.
	SentMutations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sent_mutations_total",
		Help: "the number of mutations successfully published to the bus",
	})
	// SentErrors counts send failures observed by the delivery loop,
	// including ones that were subsequently retried to success.
	SentErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sent_errors_total",
		Help: "the number of times a publish attempt failed before succeeding or being retried",
	})
	// SkippedMutations counts mutations dropped because of an
	// unsupported primary-key column type.
	SkippedMutations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skipped_mutations_total",
		Help: "the number of mutations dropped due to an unsupported primary key column type",
	})

	// SegmentProcessDuration tracks how long the Reader spends on one
	// segment, start to finish.
	SegmentProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "segment_process_duration_seconds",
		Help:    "the length of time the reader spent processing one commit log segment",
		Buckets: LatencyBuckets,
	})

	// SendDuration tracks the latency of a single blocking publish,
	// including retries.
	SendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "publish_duration_seconds",
		Help:    "the length of time it took to durably publish one mutation, including retries",
		Buckets: LatencyBuckets,
	}, TableLabels)

	// DroppedUnsupportedPartition counts partition updates dropped because
	// the partition type is not in the supported set (counter, MV, index).
	// A partition deletion on a table with clustering columns is not
	// dropped: it is published as a partition-key deletion.
	DroppedUnsupportedPartition = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dropped_unsupported_partition_total",
		Help: "the number of partition updates dropped due to an unsupported partition type",
	}, []string{"reason"})
)
