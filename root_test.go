// Copyright 2020-2021 Dolthub, Inc.
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

package rdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/rdf/column"
)

func TestSetParallelAndParallel(t *testing.T) {
	defer SetParallel(false, 1)

	SetParallel(true, 8)
	enabled, workers := Parallel()
	require.True(t, enabled)
	require.Equal(t, 8, workers)

	SetParallel(false, 0)
	enabled, workers = Parallel()
	require.False(t, enabled)
	require.Equal(t, 1, workers, "a non-positive worker count floors to 1")
}

func TestNewRootAppliesParallelFlag(t *testing.T) {
	defer SetParallel(false, 1)
	SetParallel(true, 4)

	src, err := column.NewMemSource("t", []string{"A"}, map[string][]column.Value{
		"A": {int64(1), int64(2)},
	})
	require.NoError(t, err)

	r, err := NewRoot(src)
	require.NoError(t, err)
	require.NotNil(t, r)

	// Four requested workers split the two-row source into two
	// partitions, so the callable also runs on slot 1.
	seen := make([]bool, 4)
	h, err := r.BookForEachSlot(func(slot int, a int64) error {
		seen[slot] = true
		return nil
	}, "A")
	require.NoError(t, err)
	_, err = h.Observe()
	require.NoError(t, err)
	require.Equal(t, []bool{true, true, false, false}, seen)
}

func TestLoadConfig(t *testing.T) {
	defer SetParallel(false, 1)

	dir := t.TempDir()
	path := filepath.Join(dir, "rdf.toml")
	require.NoError(t, os.WriteFile(path, []byte("[engine]\nparallel = true\nworkers = 6\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.True(t, cfg.Engine.Parallel)
	require.Equal(t, 6, cfg.Engine.Workers)

	enabled, workers := Parallel()
	require.True(t, enabled)
	require.Equal(t, 6, workers)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
