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

// Package result holds the future-like reference an observer uses to
// pull an action's finalised value out of the pipeline graph. A Handle
// never drives a pass itself; it defers to whatever Readiness the
// owning root wired it to, so this package stays free of any
// dependency on the graph that produced the value.
package result

import (
	"fmt"

	"github.com/spf13/cast"
)

// Readiness is the root-side hook a Handle calls through. Trigger runs
// the owning root's pass if one has not yet completed (a no-op if it
// has); Ready and Value report the outcome after Trigger returns.
type Readiness interface {
	Ready() bool
	Value() (interface{}, error)
	Trigger() error
}

// Handle is a one-time reference to a booked action's finalised
// result. The first Observe call (on any Handle for that action)
// drives the root's pass; every later call, on any handle, returns the
// cached value without re-running anything.
type Handle struct {
	r Readiness
}

// New wraps r in a Handle.
func New(r Readiness) *Handle { return &Handle{r: r} }

// Observe returns the action's finalised value, driving a pass first
// if none has completed yet.
func (h *Handle) Observe() (interface{}, error) {
	if !h.r.Ready() {
		if err := h.r.Trigger(); err != nil {
			return nil, err
		}
	}
	return h.r.Value()
}

// Int64 observes the result and coerces it to int64.
func (h *Handle) Int64() (int64, error) {
	v, err := h.Observe()
	if err != nil {
		return 0, err
	}
	return cast.ToInt64E(v)
}

// Float64 observes the result and coerces it to float64.
func (h *Handle) Float64() (float64, error) {
	v, err := h.Observe()
	if err != nil {
		return 0, err
	}
	return cast.ToFloat64E(v)
}

// Slice observes the result and coerces it to []interface{}, the
// shape Take/AsSlice/Display publish.
func (h *Handle) Slice() ([]interface{}, error) {
	v, err := h.Observe()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	s, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("result: cannot cast %T to []interface{}", v)
	}
	return s, nil
}
