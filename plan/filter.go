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
	"github.com/pkg/errors"

	"github.com/dolthub/rdf/column"
	"github.com/dolthub/rdf/internal/rcall"
	"github.com/dolthub/rdf/rdferrors"
)

// FilterNode gates the rows visible to its descendants. Evaluation is
// short-circuit and cached: an ancestor rejection is recorded without
// ever invoking this node's own callable, and a rejection by this
// node's own callable only increments its own accept/reject counters
// when the callable actually ran.
type FilterNode struct {
	chain

	name   string // "" for an anonymous filter, excluded from Report
	fn     interface{}
	inputs []string
	parent Node
	// paramKinds is the type witness captured at booking time (rcall's
	// ParamKinds over fn), aligned with inputs. Used to name the column
	// and its kinds on a type mismatch, rather than a bare reflect.Type.
	paramKinds []column.Kind

	lastRow    []int64
	lastResult []bool
	accept     []int64
	reject     []int64
}

// Name returns the filter's report name, or "" if anonymous.
func (f *FilterNode) Name() string { return f.name }

func (f *FilterNode) resolve(slot int, row int64, cur column.Cursor, name string) (column.Value, error) {
	return f.parent.resolve(slot, row, cur, name)
}

func (f *FilterNode) hasColumn(name string) bool {
	return f.parent.hasColumn(name)
}

func (f *FilterNode) passes(slot int, row int64, cur column.Cursor) (bool, error) {
	if f.lastRow[slot] == row {
		return f.lastResult[slot], nil
	}

	ok, err := f.parent.passes(slot, row, cur)
	if err != nil {
		return false, err
	}
	if !ok {
		f.lastRow[slot] = row
		f.lastResult[slot] = false
		return false, nil
	}

	args := make([]interface{}, len(f.inputs))
	for i, name := range f.inputs {
		v, err := f.parent.resolve(slot, row, cur, name)
		if err != nil {
			return false, err
		}
		if i < len(f.paramKinds) {
			want := f.paramKinds[i]
			got := column.KindOf(v)
			if want != column.KindOther && got != column.KindOther && got != want {
				return false, errors.Wrapf(rdferrors.ErrTypeMismatch, "filter %q: column %q has kind %s, want %s", f.name, name, got, want)
			}
		}
		args[i] = v
	}
	out, err := rcall.Call(f.fn, f.inputs, args)
	if err != nil {
		return false, err
	}
	result, ok := out.(bool)
	if !ok {
		return false, errors.Wrapf(rdferrors.ErrTypeMismatch, "filter: callable returned %T, want bool", out)
	}

	f.lastRow[slot] = row
	f.lastResult[slot] = result
	if f.name != "" {
		if result {
			f.accept[slot]++
		} else {
			f.reject[slot]++
		}
	}
	return result, nil
}

// AllocateSlots sizes this filter's per-slot cache and counters.
func (f *FilterNode) AllocateSlots(n int) {
	f.lastRow = make([]int64, n)
	for i := range f.lastRow {
		f.lastRow[i] = -1
	}
	f.lastResult = make([]bool, n)
	f.accept = make([]int64, n)
	f.reject = make([]int64, n)
}

// Run is a no-op: a filter's result is produced lazily, via passes,
// the first time a descendant consults it for the current row.
func (f *FilterNode) Run(slot int, row int64, cur column.Cursor) error { return nil }
