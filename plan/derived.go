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

// DerivedNode computes a typed value from named inputs, cached per row
// per slot so any number of descendants consuming it still evaluate
// the callable exactly once per (row, slot).
type DerivedNode struct {
	chain

	name     string
	fn       interface{}
	inputs   []string
	withSlot bool
	// paramKinds is the type witness captured at booking time (rcall's
	// ParamKinds over fn, with the leading slot parameter dropped for a
	// withSlot callable), aligned with inputs. Used to name the column
	// and its kinds on a type mismatch, rather than a bare reflect.Type.
	paramKinds []column.Kind

	isAlias bool
	aliasOf string

	parent Node

	lastRow []int64
	lastVal []column.Value
}

// Name returns the column name this node publishes.
func (d *DerivedNode) Name() string { return d.name }

func (d *DerivedNode) resolve(slot int, row int64, cur column.Cursor, name string) (column.Value, error) {
	if name == d.name {
		return d.valueAt(slot, row, cur)
	}
	return d.parent.resolve(slot, row, cur, name)
}

func (d *DerivedNode) passes(slot int, row int64, cur column.Cursor) (bool, error) {
	return d.parent.passes(slot, row, cur)
}

func (d *DerivedNode) hasColumn(name string) bool {
	return name == d.name || d.parent.hasColumn(name)
}

func (d *DerivedNode) valueAt(slot int, row int64, cur column.Cursor) (column.Value, error) {
	if d.lastRow[slot] == row {
		return d.lastVal[slot], nil
	}
	v, err := d.evaluate(slot, row, cur)
	if err != nil {
		return nil, err
	}
	d.lastRow[slot] = row
	d.lastVal[slot] = v
	return v, nil
}

func (d *DerivedNode) evaluate(slot int, row int64, cur column.Cursor) (column.Value, error) {
	if d.isAlias {
		return d.parent.resolve(slot, row, cur, d.aliasOf)
	}
	args := make([]interface{}, 0, len(d.inputs)+1)
	names := make([]string, 0, len(d.inputs)+1)
	if d.withSlot {
		args = append(args, slot)
		names = append(names, "")
	}
	for i, name := range d.inputs {
		v, err := d.parent.resolve(slot, row, cur, name)
		if err != nil {
			return nil, err
		}
		if i < len(d.paramKinds) {
			want := d.paramKinds[i]
			got := column.KindOf(v)
			if want != column.KindOther && got != column.KindOther && got != want {
				return nil, errors.Wrapf(rdferrors.ErrTypeMismatch, "derived %q: column %q has kind %s, want %s", d.name, name, got, want)
			}
		}
		args = append(args, v)
		names = append(names, name)
	}
	return rcall.Call(d.fn, names, args)
}

// AllocateSlots sizes this node's per-slot cache. Called once per pass
// via the executor's Runnable dispatch; DerivedNode takes no action
// per row of its own (Run is a no-op), so this is the only hook it
// needs from rowexec.
func (d *DerivedNode) AllocateSlots(n int) {
	d.lastRow = make([]int64, n)
	for i := range d.lastRow {
		d.lastRow[i] = -1
	}
	d.lastVal = make([]column.Value, n)
}

// Run is a no-op: a DerivedNode's value is produced lazily, the first
// time a descendant resolves its name for the current row, not eagerly
// for every row the executor visits.
func (d *DerivedNode) Run(slot int, row int64, cur column.Cursor) error { return nil }
