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

package main

import (
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/parser"
	"github.com/pkg/errors"
)

// newExternalParser constructs the commit-log reader library binding
// that drives internal/parser.Parser. Its internals are intentionally
// out of scope: deployments wire in whichever Cassandra commit-log
// parsing library matches their source cluster's major version, using
// internal/metadata/cassandra3 or internal/metadata/cassandra4 to
// adapt that library's table-metadata handle onto metadata.Table.
func newExternalParser() (parser.Parser, error) {
	return nil, errors.New("no commit log reader library bound; see newExternalParser")
}
