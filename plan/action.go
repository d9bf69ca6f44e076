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

package plan

import (
	"github.com/dolthub/rdf/aggregation"
	"github.com/dolthub/rdf/column"
)

// actionNode is the terminal of one chain of the pipeline graph: it
// gathers its ancestor filter/derived-column chain's verdict and
// values for each row, and folds accepted rows into its wrapped
// aggregation.Action. It also implements result.Readiness, so a
// result.Handle can drive the owning root's pass and read back this
// node's finalised value without the result package knowing anything
// about the graph.
type actionNode struct {
	root   *Root
	parent Node
	action aggregation.Action
	inputs []string

	ready bool
	value interface{}
	err   error
}

// AllocateSlots forwards to the wrapped action.
func (a *actionNode) AllocateSlots(n int) { a.action.AllocateSlots(n) }

// Run evaluates this action's ancestor chain for (slot, row) and, if
// accepted, gathers its input values and folds them into the action's
// slot-local state.
func (a *actionNode) Run(slot int, row int64, cur column.Cursor) error {
	ok, err := a.parent.passes(slot, row, cur)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	vals := make([]interface{}, len(a.inputs))
	for i, name := range a.inputs {
		v, err := a.parent.resolve(slot, row, cur, name)
		if err != nil {
			return err
		}
		vals[i] = v
	}
	return a.action.Accumulate(slot, vals)
}

// Ready implements result.Readiness.
func (a *actionNode) Ready() bool { return a.ready }

// Value implements result.Readiness.
func (a *actionNode) Value() (interface{}, error) { return a.value, a.err }

// Trigger implements result.Readiness by driving the owning root's
// pass, shared across every action booked on it.
func (a *actionNode) Trigger() error { return a.root.run() }
