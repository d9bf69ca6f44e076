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
	"github.com/dolthub/rdf/internal/rcall"
	"github.com/dolthub/rdf/result"
)

// chain is embedded by Root, DerivedNode, and FilterNode and gives each
// of them the full booking surface relative to its own position in the
// graph: calling BookFilter on a DerivedNode attaches the new filter as
// that node's child, not the root's.
type chain struct {
	root *Root
	self Node
}

// BookDerived books a derived column computing fn's result from named
// inputs (or, if inputs is empty, the root's default column list). name
// must not collide with a persistent or previously booked column.
func (c *chain) BookDerived(name string, fn interface{}, inputs ...string) (*DerivedNode, error) {
	return c.root.newDerived(c.self, name, fn, inputs, false)
}

// BookDerivedSlot is BookDerived for a callable whose first parameter
// is the stable worker slot index, letting it use slot-local scratch
// state without synchronisation.
func (c *chain) BookDerivedSlot(name string, fn interface{}, inputs ...string) (*DerivedNode, error) {
	return c.root.newDerived(c.self, name, fn, inputs, true)
}

// BookAlias books a zero-cost derived column that republishes an
// existing column under a new name.
func (c *chain) BookAlias(name, of string) (*DerivedNode, error) {
	return c.root.newAlias(c.self, name, of)
}

// BookFilter books an anonymous predicate over named inputs.
func (c *chain) BookFilter(fn interface{}, inputs ...string) (*FilterNode, error) {
	return c.root.newFilter(c.self, "", fn, inputs)
}

// BookNamedFilter books a predicate tracked in the root's cutflow
// report under name, in booking order.
func (c *chain) BookNamedFilter(name string, fn interface{}, inputs ...string) (*FilterNode, error) {
	return c.root.newFilter(c.self, name, fn, inputs)
}

// BookCount books a row-count action; it takes no input columns.
func (c *chain) BookCount() (*result.Handle, error) {
	return c.root.bookAction(c.self, &aggregation.Count{}, nil, 0)
}

// BookSum books a numeric sum over one column.
func (c *chain) BookSum(inputs ...string) (*result.Handle, error) {
	return c.root.bookAction(c.self, &aggregation.Sum{}, inputs, 1)
}

// BookMin books a numeric minimum over one column.
func (c *chain) BookMin(inputs ...string) (*result.Handle, error) {
	return c.root.bookAction(c.self, aggregation.NewMin(), inputs, 1)
}

// BookMax books a numeric maximum over one column.
func (c *chain) BookMax(inputs ...string) (*result.Handle, error) {
	return c.root.bookAction(c.self, aggregation.NewMax(), inputs, 1)
}

// BookMean books a numeric mean over one column.
func (c *chain) BookMean(inputs ...string) (*result.Handle, error) {
	return c.root.bookAction(c.self, &aggregation.Mean{}, inputs, 1)
}

// BookTake books a buffer of every accepted row's value for one
// column, slot-index ordered.
func (c *chain) BookTake(inputs ...string) (*result.Handle, error) {
	return c.root.bookAction(c.self, aggregation.NewTake(), inputs, 1)
}

// BookAsSlice is BookTake under the name callers reach for when they
// want a plain Go slice rather than an internal buffer type; the
// published shape is identical.
func (c *chain) BookAsSlice(inputs ...string) (*result.Handle, error) {
	return c.root.bookAction(c.self, aggregation.NewTake(), inputs, 1)
}

// BookDisplay books a take-like action capped to the first limit
// accepted values, for REPL-style inspection.
func (c *chain) BookDisplay(limit int, inputs ...string) (*result.Handle, error) {
	return c.root.bookAction(c.self, aggregation.NewBounded(limit), inputs, 1)
}

// BookReduce books a user left-fold, seeded by init, over one column.
func (c *chain) BookReduce(fn interface{}, init interface{}, inputs ...string) (*result.Handle, error) {
	return c.root.bookAction(c.self, aggregation.NewReduce(fn, init), inputs, 1)
}

// BookHistogram books a histogram fill over one numeric column.
// newHist is called once per worker slot to produce that slot's
// accumulator.
func (c *chain) BookHistogram(newHist func() aggregation.Histogram, inputs ...string) (*result.Handle, error) {
	return c.root.bookAction(c.self, aggregation.NewHistogramFill(newHist), inputs, 1)
}

// BookForEach books a per-row side-effecting callable. Thread safety
// across concurrent slots is the caller's responsibility; use
// BookForEachSlot if that matters.
func (c *chain) BookForEach(fn interface{}, inputs ...string) (*result.Handle, error) {
	arity, err := rcall.Arity(fn)
	if err != nil {
		return nil, err
	}
	return c.root.bookAction(c.self, aggregation.NewForEach(fn), inputs, arity)
}

// BookForEachSlot books a per-row side-effecting callable whose first
// parameter receives the stable slot index.
func (c *chain) BookForEachSlot(fn interface{}, inputs ...string) (*result.Handle, error) {
	arity, err := rcall.Arity(fn)
	if err != nil {
		return nil, err
	}
	return c.root.bookAction(c.self, aggregation.NewForEachSlot(fn), inputs, arity-1)
}
