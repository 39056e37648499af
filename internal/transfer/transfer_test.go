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

package transfer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/transfer"
	"github.com/stretchr/testify/require"
)

func setupDirs(t *testing.T) (cdc, archive, errDir string) {
	t.Helper()
	root := t.TempDir()
	cdc = filepath.Join(root, "cdc")
	archive = filepath.Join(root, "archives")
	errDir = filepath.Join(root, "errors")
	for _, d := range []string{cdc, archive, errDir} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return cdc, archive, errDir
}

func TestArchivingOnSuccessTransfer(t *testing.T) {
	cdc, archive, errDir := setupDirs(t)
	segment := filepath.Join(cdc, "CommitLog-7-1.log")
	require.NoError(t, os.WriteFile(segment, []byte("x"), 0o644))

	policy := &transfer.Archiving{ArchiveDir: archive, ErrorDir: errDir}
	require.NoError(t, policy.OnSuccessTransfer(segment))

	_, err := os.Stat(filepath.Join(archive, "CommitLog-7-1.log"))
	require.NoError(t, err)
}

func TestArchivingOnErrorTransfer(t *testing.T) {
	cdc, archive, errDir := setupDirs(t)
	segment := filepath.Join(cdc, "CommitLog-7-1.log")
	require.NoError(t, os.WriteFile(segment, []byte("x"), 0o644))

	policy := &transfer.Archiving{ArchiveDir: archive, ErrorDir: errDir}
	require.NoError(t, policy.OnErrorTransfer(segment))

	_, err := os.Stat(filepath.Join(errDir, "CommitLog-7-1.log"))
	require.NoError(t, err)
}

func TestRecycleErrorCommitLogFiles(t *testing.T) {
	cdc, archive, errDir := setupDirs(t)
	failed := filepath.Join(errDir, "CommitLog-7-1.log")
	require.NoError(t, os.WriteFile(failed, []byte("x"), 0o644))

	policy := &transfer.Archiving{ArchiveDir: archive, ErrorDir: errDir}
	require.NoError(t, policy.RecycleErrorCommitLogFiles(cdc))

	_, err := os.Stat(filepath.Join(cdc, "CommitLog-7-1.log"))
	require.NoError(t, err)
	_, err = os.Stat(failed)
	require.True(t, os.IsNotExist(err))
}

func TestDeletingOnSuccessTransfer(t *testing.T) {
	cdc, _, errDir := setupDirs(t)
	segment := filepath.Join(cdc, "CommitLog-7-1.log")
	require.NoError(t, os.WriteFile(segment, []byte("x"), 0o644))

	policy := transfer.NewDeleting(errDir, os.Remove)
	require.NoError(t, policy.OnSuccessTransfer(segment))

	_, err := os.Stat(segment)
	require.True(t, os.IsNotExist(err))
}
