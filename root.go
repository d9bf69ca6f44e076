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

// Package rdf is the user-facing booking surface: construct a Root
// over a column.Source, book derived columns, filters, and actions on
// it (and on the nodes those return), then observe a result.Handle.
// Everything under plan, column, rowexec, aggregation, and result is
// implementation; most callers only need this package and column, for
// the Source contract their own reader implements.
package rdf

import (
	"os"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/dolthub/rdf/column"
	"github.com/dolthub/rdf/plan"
)

const parallelEnvFlag = "RDF_PARALLEL"

// parallelEnabled and requestedWorkers back the process-wide "implicit
// parallelism" flag (§6): NewRoot reads them once, when it builds a
// Root; a later change does not affect a Root that already exists.
// RDF_PARALLEL in the environment seeds the initial value,
// mirroring the teacher's GMS_EXPERIMENTAL env-flag convention.
var (
	parallelEnabled  atomic.Bool
	requestedWorkers atomic.Int64
)

func init() {
	parallelEnabled.Store(os.Getenv(parallelEnvFlag) != "")
	requestedWorkers.Store(1)
}

// SetParallel sets the process-wide parallel-mode flag and requested
// worker count. NewRoot reads the flag when it builds a Root, so a call
// affects only Roots built after it; an existing Root keeps its worker
// count unless Root.SetWorkers changes it.
func SetParallel(enabled bool, workers int) {
	parallelEnabled.Store(enabled)
	if workers < 1 {
		workers = 1
	}
	requestedWorkers.Store(int64(workers))
}

// Parallel reports the current process-wide parallel-mode flag and
// requested worker count.
func Parallel() (enabled bool, workers int) {
	return parallelEnabled.Load(), int(requestedWorkers.Load())
}

// Config is the decoded shape of an optional TOML config file backing
// SetParallel, for processes that want the flag sourced from a file
// instead of set programmatically.
type Config struct {
	Engine struct {
		Parallel bool `toml:"parallel"`
		Workers  int  `toml:"workers"`
	} `toml:"engine"`
}

// LoadConfig decodes path as TOML into a Config and, if engine.parallel
// is set, applies it via SetParallel. Returns the decoded Config either
// way so callers can inspect it without re-reading the file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "rdf: load config %q", path)
	}
	if cfg.Engine.Parallel {
		SetParallel(true, cfg.Engine.Workers)
	}
	return cfg, nil
}

// Root is the pipeline graph's entry point: the booked nodes, the
// default column list, and the run-once state machine. See package
// plan for the full booking surface (embedded: BookDerived, BookFilter,
// BookCount, and friends).
type Root = plan.Root

// NewRoot builds a Root over source, applying the process-wide
// parallel-mode flag's requested worker count as the default (override
// with Root.SetWorkers before the first pass). defaultColumns, if
// given, backs every booking call that omits an explicit input list.
func NewRoot(source column.Source, defaultColumns ...string) (*Root, error) {
	r, err := plan.NewRoot(source, defaultColumns...)
	if err != nil {
		return nil, err
	}
	if enabled, workers := Parallel(); enabled {
		r.SetWorkers(workers)
	}
	return r, nil
}
