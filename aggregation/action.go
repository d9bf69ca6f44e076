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

// Package aggregation implements the action kinds a pipeline can
// terminate in: count, sum, min, max, mean, take, reduce, histogram
// fill, and the two per-row callback forms. Every action owns a vector
// of per-slot accumulators and knows how to merge them; it knows
// nothing about the graph of filters and derived columns feeding it —
// that wiring lives in the plan package.
package aggregation

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/dolthub/rdf/internal/rcall"
	"github.com/dolthub/rdf/rdferrors"
)

// Action accumulates per-slot state over the rows that reach it and
// produces one published result from that state.
type Action interface {
	// AllocateSlots is called once per pass, before any row is seen,
	// with the number of worker slots the pass will use.
	AllocateSlots(n int)
	// Accumulate folds one row's gathered input values into the given
	// slot's state. Called at most once per (row, slot).
	Accumulate(slot int, vals []interface{}) error
	// Finalize merges every slot's state into the published result.
	// Called once, single-threaded, after every worker has joined.
	Finalize() (interface{}, error)
}

// Count tallies accepted rows; it takes no input columns (an empty
// inputs list is valid when booking it).
type Count struct {
	counts []int64
}

func (c *Count) AllocateSlots(n int) { c.counts = make([]int64, n) }

func (c *Count) Accumulate(slot int, vals []interface{}) error {
	c.counts[slot]++
	return nil
}

func (c *Count) Finalize() (interface{}, error) {
	var total int64
	for _, n := range c.counts {
		total += n
	}
	return total, nil
}

// Sum accumulates a running numeric total of its single input column.
type Sum struct {
	sums []float64
}

func (s *Sum) AllocateSlots(n int) { s.sums = make([]float64, n) }

func (s *Sum) Accumulate(slot int, vals []interface{}) error {
	v, err := cast.ToFloat64E(vals[0])
	if err != nil {
		return errors.Wrap(rdferrors.ErrTypeMismatch, err.Error())
	}
	s.sums[slot] += v
	return nil
}

func (s *Sum) Finalize() (interface{}, error) {
	var total float64
	for _, v := range s.sums {
		total += v
	}
	return total, nil
}

// extremum implements both Min and Max over a single numeric column.
type extremum struct {
	less func(a, b float64) bool
	vals []float64
	set  []bool
}

// NewMin returns a Min action.
func NewMin() Action { return &extremum{less: func(a, b float64) bool { return a < b }} }

// NewMax returns a Max action.
func NewMax() Action { return &extremum{less: func(a, b float64) bool { return a > b }} }

func (e *extremum) AllocateSlots(n int) {
	e.vals = make([]float64, n)
	e.set = make([]bool, n)
}

func (e *extremum) Accumulate(slot int, vals []interface{}) error {
	v, err := cast.ToFloat64E(vals[0])
	if err != nil {
		return errors.Wrap(rdferrors.ErrTypeMismatch, err.Error())
	}
	if !e.set[slot] || e.less(v, e.vals[slot]) {
		e.vals[slot] = v
		e.set[slot] = true
	}
	return nil
}

func (e *extremum) Finalize() (interface{}, error) {
	var best float64
	found := false
	for slot, ok := range e.set {
		if !ok {
			continue
		}
		if !found || e.less(e.vals[slot], best) {
			best = e.vals[slot]
			found = true
		}
	}
	if !found {
		return nil, rdferrors.ErrEmptyInput
	}
	return best, nil
}

// Mean accumulates a (sum, count) pair per slot and publishes their
// component-wise-summed ratio.
type Mean struct {
	sums   []float64
	counts []int64
}

func (m *Mean) AllocateSlots(n int) {
	m.sums = make([]float64, n)
	m.counts = make([]int64, n)
}

func (m *Mean) Accumulate(slot int, vals []interface{}) error {
	v, err := cast.ToFloat64E(vals[0])
	if err != nil {
		return errors.Wrap(rdferrors.ErrTypeMismatch, err.Error())
	}
	m.sums[slot] += v
	m.counts[slot]++
	return nil
}

func (m *Mean) Finalize() (interface{}, error) {
	var sum float64
	var count int64
	for i := range m.sums {
		sum += m.sums[i]
		count += m.counts[i]
	}
	if count == 0 {
		return nil, rdferrors.ErrEmptyInput
	}
	return sum / float64(count), nil
}

// Take buffers every accepted row's single input value, in arrival
// order within a slot. The published slice is ordered by slot index,
// not original row order: concatenating in slot-index order is a
// documented property, not a defect.
type Take struct {
	mu      sync.Mutex
	buffers [][]interface{}
	limit   int // 0 means unbounded
}

// NewTake returns an unbounded take action.
func NewTake() *Take { return &Take{} }

// NewBounded returns a take action that stops appending to a slot once
// that slot alone has collected limit values (used by Display; the
// overall published result is also capped to limit after merge).
func NewBounded(limit int) *Take { return &Take{limit: limit} }

func (t *Take) AllocateSlots(n int) { t.buffers = make([][]interface{}, n) }

func (t *Take) Accumulate(slot int, vals []interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit > 0 && len(t.buffers[slot]) >= t.limit {
		return nil
	}
	t.buffers[slot] = append(t.buffers[slot], vals[0])
	return nil
}

func (t *Take) Finalize() (interface{}, error) {
	var out []interface{}
	for _, b := range t.buffers {
		out = append(out, b...)
	}
	if t.limit > 0 && len(out) > t.limit {
		out = out[:t.limit]
	}
	return out, nil
}

// Reduce left-folds its single input column with a user callable,
// seeded by init. Merging slots is also defined in terms of the same
// callable, applied to the per-slot accumulators in slot-index order.
type Reduce struct {
	fn   interface{}
	init interface{}
	accs []interface{}
}

// NewReduce returns a Reduce action. fn must have the two-argument
// shape func(acc, next T) T (or (T, error)).
func NewReduce(fn interface{}, init interface{}) *Reduce {
	return &Reduce{fn: fn, init: init}
}

func (r *Reduce) AllocateSlots(n int) {
	r.accs = make([]interface{}, n)
	for i := range r.accs {
		r.accs[i] = r.init
	}
}

func (r *Reduce) Accumulate(slot int, vals []interface{}) error {
	out, err := rcall.Call(r.fn, nil, []interface{}{r.accs[slot], vals[0]})
	if err != nil {
		return err
	}
	r.accs[slot] = out
	return nil
}

func (r *Reduce) Finalize() (interface{}, error) {
	if len(r.accs) == 0 {
		return r.init, nil
	}
	acc := r.accs[0]
	for i := 1; i < len(r.accs); i++ {
		out, err := rcall.Call(r.fn, nil, []interface{}{acc, r.accs[i]})
		if err != nil {
			return nil, err
		}
		acc = out
	}
	return acc, nil
}

// Histogram is the external collaborator the specification names only
// by the interface it must expose: an in-place fill and an in-place,
// pairwise merge. No concrete histogram ships in this module.
type Histogram interface {
	// Fill records one observation.
	Fill(v float64)
	// Add merges other into the receiver, in place.
	Add(other Histogram)
}

// HistogramFill fills a caller-supplied Histogram per slot (via
// newHist, called once per slot) and publishes their pairwise merge.
type HistogramFill struct {
	newHist func() Histogram
	hists   []Histogram
}

// NewHistogramFill returns a histogram-fill action. newHist must
// return a fresh, zero-valued Histogram each call; it is called once
// per worker slot.
func NewHistogramFill(newHist func() Histogram) *HistogramFill {
	return &HistogramFill{newHist: newHist}
}

func (h *HistogramFill) AllocateSlots(n int) {
	h.hists = make([]Histogram, n)
	for i := range h.hists {
		h.hists[i] = h.newHist()
	}
}

func (h *HistogramFill) Accumulate(slot int, vals []interface{}) error {
	v, err := cast.ToFloat64E(vals[0])
	if err != nil {
		return errors.Wrap(rdferrors.ErrTypeMismatch, err.Error())
	}
	h.hists[slot].Fill(v)
	return nil
}

func (h *HistogramFill) Finalize() (interface{}, error) {
	if len(h.hists) == 0 {
		return h.newHist(), nil
	}
	merged := h.hists[0]
	for i := 1; i < len(h.hists); i++ {
		merged.Add(h.hists[i])
	}
	return merged, nil
}

// ForEach invokes a user callable once per accepted row, for its
// side effects only. Thread safety across concurrent slots is the
// caller's responsibility; rdf provides no synchronization here.
type ForEach struct {
	fn interface{}
}

// NewForEach returns a ForEach action.
func NewForEach(fn interface{}) *ForEach { return &ForEach{fn: fn} }

func (f *ForEach) AllocateSlots(n int) {}

func (f *ForEach) Accumulate(slot int, vals []interface{}) error {
	_, err := rcall.Call(f.fn, nil, vals)
	return err
}

func (f *ForEach) Finalize() (interface{}, error) { return struct{}{}, nil }

// ForEachSlot is the supported mechanism for per-worker side effects:
// fn's first argument is the stable slot index, letting the caller
// route output to slot-local, non-shared state.
type ForEachSlot struct {
	fn interface{}
}

// NewForEachSlot returns a ForEachSlot action. fn must accept the slot
// index as its first argument.
func NewForEachSlot(fn interface{}) *ForEachSlot { return &ForEachSlot{fn: fn} }

func (f *ForEachSlot) AllocateSlots(n int) {}

func (f *ForEachSlot) Accumulate(slot int, vals []interface{}) error {
	args := make([]interface{}, 0, len(vals)+1)
	args = append(args, slot)
	args = append(args, vals...)
	_, err := rcall.Call(f.fn, nil, args)
	return err
}

func (f *ForEachSlot) Finalize() (interface{}, error) { return struct{}{}, nil }
