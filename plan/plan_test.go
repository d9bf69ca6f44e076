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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/rdf/aggregation"
	"github.com/dolthub/rdf/column"
	"github.com/dolthub/rdf/rdferrors"
)

func intCol(vs ...int64) []column.Value {
	out := make([]column.Value, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// S1: Source with column A=[1,2,3,4,5]; pipeline = filter(A>2).count -> 3.
func TestScenarioFilterCount(t *testing.T) {
	src, err := column.NewMemSource("s1", []string{"A"}, map[string][]column.Value{
		"A": intCol(1, 2, 3, 4, 5),
	})
	require.NoError(t, err)

	root, err := NewRoot(src)
	require.NoError(t, err)

	f, err := root.BookFilter(func(a int64) bool { return a > 2 }, "A")
	require.NoError(t, err)
	h, err := f.BookCount()
	require.NoError(t, err)

	got, err := h.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(3), got)
}

// S2: A=[1,2,3,4,5], B=[5,4,3,2,1]; derived C=A+B, filter(C==6).take(A) ->
// {1,2,3,4,5} (every row satisfies), slot-index-merged order.
func TestScenarioDerivedFilterTake(t *testing.T) {
	src, err := column.NewMemSource("s2", []string{"A", "B"}, map[string][]column.Value{
		"A": intCol(1, 2, 3, 4, 5),
		"B": intCol(5, 4, 3, 2, 1),
	})
	require.NoError(t, err)

	root, err := NewRoot(src)
	require.NoError(t, err)

	c, err := root.BookDerived("C", func(a, b int64) int64 { return a + b }, "A", "B")
	require.NoError(t, err)
	f, err := c.BookFilter(func(v int64) bool { return v == 6 }, "C")
	require.NoError(t, err)
	h, err := f.BookTake("A")
	require.NoError(t, err)

	got, err := h.Slice()
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(1), int64(2), int64(3), int64(4), int64(5)}, got)
}

// S3: A=[1,2,3]; named filter "gt1": A>1, named filter "lt3": A<3; count
// downstream of both -> 1; report prints gt1 then lt3 in booking order
// with exact pass/all/percentage formatting.
func TestScenarioNamedFilterCutflow(t *testing.T) {
	src, err := column.NewMemSource("s3", []string{"A"}, map[string][]column.Value{
		"A": intCol(1, 2, 3),
	})
	require.NoError(t, err)

	root, err := NewRoot(src)
	require.NoError(t, err)

	gt1, err := root.BookNamedFilter("gt1", func(a int64) bool { return a > 1 }, "A")
	require.NoError(t, err)
	lt3, err := gt1.BookNamedFilter("lt3", func(a int64) bool { return a < 3 }, "A")
	require.NoError(t, err)
	h, err := lt3.BookCount()
	require.NoError(t, err)

	count, err := h.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	report, err := root.Report()
	require.NoError(t, err)
	require.Equal(t, "gt1: pass=2 all=3 -- 66.667 %\nlt3: pass=1 all=2 -- 50.000 %\n", report)

	report2, err := root.Report()
	require.NoError(t, err)
	require.Equal(t, report, report2, "report must be idempotent")
}

type fakeHist struct{ vals []float64 }

func newFakeHist() aggregation.Histogram { return &fakeHist{} }

func (h *fakeHist) Fill(v float64) { h.vals = append(h.vals, v) }
func (h *fakeHist) Add(other aggregation.Histogram) {
	o := other.(*fakeHist)
	h.vals = append(h.vals, o.vals...)
}

// S4: two actions h1 = histogram(A | A>10), h2 = histogram(A); observing
// h1 then h2 runs the pass once; h2 has every row, h1 has the subset.
func TestScenarioTwoActionsSharePass(t *testing.T) {
	src, err := column.NewMemSource("s4", []string{"A"}, map[string][]column.Value{
		"A": intCol(1, 20, 3, 40, 5),
	})
	require.NoError(t, err)

	root, err := NewRoot(src)
	require.NoError(t, err)

	over10, err := root.BookFilter(func(a int64) bool { return a > 10 }, "A")
	require.NoError(t, err)
	h1Handle, err := over10.BookHistogram(newFakeHist, "A")
	require.NoError(t, err)
	h2Handle, err := root.BookHistogram(newFakeHist, "A")
	require.NoError(t, err)

	v1, err := h1Handle.Observe()
	require.NoError(t, err)
	v2, err := h2Handle.Observe()
	require.NoError(t, err)

	h1 := v1.(*fakeHist)
	h2 := v2.(*fakeHist)
	require.ElementsMatch(t, []float64{20, 40}, h1.vals)
	require.ElementsMatch(t, []float64{1, 20, 3, 40, 5}, h2.vals)
}

// S5: derived D from a callable that throws on a given row; observation
// raises user-callable-failure; the root remains not-ready; observing
// again re-runs and raises again.
func TestScenarioUserCallableFailureRetries(t *testing.T) {
	src, err := column.NewMemSource("s5", []string{"A"}, map[string][]column.Value{
		"A": intCol(1, 2, 3, 4, 5),
	})
	require.NoError(t, err)

	root, err := NewRoot(src)
	require.NoError(t, err)

	var calls int
	d, err := root.BookDerived("D", func(a int64) int64 {
		calls++
		if a == 3 {
			panic("boom")
		}
		return a * 2
	}, "A")
	require.NoError(t, err)
	h, err := d.BookSum("D")
	require.NoError(t, err)

	_, err1 := h.Observe()
	require.Error(t, err1)

	_, err2 := h.Observe()
	require.Error(t, err2)
	require.Greater(t, calls, 3, "a failed pass must be retried from scratch, not resumed")
}

// S6: parallel mode with 4 workers over a large row count and
// action = sum-reduce(A, 0); result equals the single-threaded sum;
// per-slot accept counts sum to the row count for an always-true filter.
func TestScenarioParallelSumReduce(t *testing.T) {
	const rows = 1_000_000
	vals := make([]int64, rows)
	var want int64
	for i := range vals {
		vals[i] = int64(i)
		want += int64(i)
	}
	src, err := column.NewMemSource("s6", []string{"A"}, map[string][]column.Value{
		"A": intCol(vals...),
	})
	require.NoError(t, err)

	root, err := NewRoot(src)
	require.NoError(t, err)
	root.SetWorkers(4)

	always, err := root.BookNamedFilter("always", func(a int64) bool { return true }, "A")
	require.NoError(t, err)
	h, err := always.BookReduce(func(acc, v int64) int64 { return acc + v }, int64(0), "A")
	require.NoError(t, err)

	got, err := h.Int64()
	require.NoError(t, err)
	require.Equal(t, want, got)

	rowsReport, err := root.Cutflow()
	require.NoError(t, err)
	require.Len(t, rowsReport, 1)
	require.Equal(t, int64(rows), rowsReport[0].Pass)
	require.Equal(t, int64(rows), rowsReport[0].All)
}

func newScenarioSource(t *testing.T) *column.MemSource {
	t.Helper()
	src, err := column.NewMemSource("books", []string{"A", "B"}, map[string][]column.Value{
		"A": intCol(1, 2, 3, 4, 5),
		"B": intCol(5, 4, 3, 2, 1),
	})
	require.NoError(t, err)
	return src
}

// BookDerived booking a name that collides with a persistent source
// column raises ErrDuplicateName.
func TestBookDerivedDuplicateNameCollidesWithSourceColumn(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	_, err = root.BookDerived("A", func(b int64) int64 { return b }, "B")
	require.Error(t, err)
	require.True(t, errors.Is(err, rdferrors.ErrDuplicateName))
}

// Booking two distinct derived columns under the same name, even with
// different functions and inputs, raises ErrDuplicateName on the
// second.
func TestBookDerivedDuplicateNameCollidesWithSiblingDerived(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	_, err = root.BookDerived("C", func(a int64) int64 { return a }, "A")
	require.NoError(t, err)

	_, err = root.BookDerived("C", func(b int64) int64 { return b * 2 }, "B")
	require.Error(t, err)
	require.True(t, errors.Is(err, rdferrors.ErrDuplicateName))
}

// Re-booking the same name, function, and inputs as an already-booked
// sibling returns the cached node rather than erroring: a differently
// named sibling computing the same thing must not evict it from the
// dedup cache and cause a spurious duplicate-name error.
func TestBookDerivedIdempotentRebookingSurvivesSiblingWithSameComputation(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	fn := func(a int64) int64 { return a * 10 }

	x1, err := root.BookDerived("X", fn, "A")
	require.NoError(t, err)

	_, err = root.BookDerived("Y", fn, "A")
	require.NoError(t, err)

	x2, err := root.BookDerived("X", fn, "A")
	require.NoError(t, err)
	require.Same(t, x1, x2, "re-booking X must return the same node, not error")
}

// An explicit input list whose length disagrees with the callable's
// declared arity raises ErrArityMismatch at booking time, before any
// row is ever seen.
func TestBookDerivedArityMismatchAtBooking(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	_, err = root.BookDerived("C", func(a, b int64) int64 { return a + b }, "A")
	require.Error(t, err)
	require.True(t, errors.Is(err, rdferrors.ErrArityMismatch))
}

func TestBookFilterArityMismatchAtBooking(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	_, err = root.BookFilter(func(a, b int64) bool { return a < b }, "A", "B", "A")
	require.Error(t, err)
	require.True(t, errors.Is(err, rdferrors.ErrArityMismatch))
}

func TestBookActionArityMismatchAtBooking(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	_, err = root.BookSum("A", "B")
	require.Error(t, err)
	require.True(t, errors.Is(err, rdferrors.ErrArityMismatch))
}

// Referencing a column name that resolves to neither a persistent nor
// a booked ancestor column raises ErrUnknownColumn, with a "did you
// mean" suggestion naming the closest known column.
func TestBookDerivedUnknownColumn(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	_, err = root.BookDerived("C", func(z int64) int64 { return z }, "Z")
	require.Error(t, err)
	require.True(t, errors.Is(err, rdferrors.ErrUnknownColumn))
}

func TestBookFilterUnknownColumnSuggestsClosestName(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	_, err = root.BookFilter(func(a int64) bool { return a > 0 }, "a")
	require.Error(t, err)
	require.True(t, errors.Is(err, rdferrors.ErrUnknownColumn))
	require.Contains(t, err.Error(), "maybe you mean")
	require.Contains(t, err.Error(), "A")
}

func TestBookActionUnknownColumn(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	_, err = root.BookSum("Z")
	require.Error(t, err)
	require.True(t, errors.Is(err, rdferrors.ErrUnknownColumn))
}

// Booking after a pass has already completed successfully raises
// ErrRootFrozen, across every booking surface: derived columns,
// filters, and actions.
func TestBookingAfterSuccessfulPassIsRootFrozen(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	h, err := root.BookSum("A")
	require.NoError(t, err)
	_, err = h.Observe()
	require.NoError(t, err)

	_, err = root.BookDerived("C", func(a int64) int64 { return a }, "A")
	require.True(t, errors.Is(err, rdferrors.ErrRootFrozen))

	_, err = root.BookFilter(func(a int64) bool { return true }, "A")
	require.True(t, errors.Is(err, rdferrors.ErrRootFrozen))

	_, err = root.BookCount()
	require.True(t, errors.Is(err, rdferrors.ErrRootFrozen))
}

// BookAlias republishes an existing column under a new name with no
// transformation.
func TestBookAlias(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	alias, err := root.BookAlias("A2", "A")
	require.NoError(t, err)
	h, err := alias.BookAsSlice("A2")
	require.NoError(t, err)

	got, err := h.Slice()
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(1), int64(2), int64(3), int64(4), int64(5)}, got)
}

// BookAlias referencing an unknown source column raises
// ErrUnknownColumn at booking time.
func TestBookAliasUnknownColumn(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	_, err = root.BookAlias("A2", "Z")
	require.Error(t, err)
	require.True(t, errors.Is(err, rdferrors.ErrUnknownColumn))
}

// BookDisplay caps its published slice to the given limit, regardless
// of how many rows are actually accepted.
func TestBookDisplay(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	h, err := root.BookDisplay(2, "A")
	require.NoError(t, err)

	got, err := h.Slice()
	require.NoError(t, err)
	require.Len(t, got, 2)
}

// BookAsSlice publishes every accepted row's value as a plain
// []interface{}, identical in shape to BookTake.
func TestBookAsSlice(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	h, err := root.BookAsSlice("A")
	require.NoError(t, err)

	got, err := h.Slice()
	require.NoError(t, err)
	require.ElementsMatch(t, []interface{}{int64(1), int64(2), int64(3), int64(4), int64(5)}, got)
}

// BookDerivedSlot gives the callable the stable worker slot index as
// its leading argument, not backed by any column. A single-worker pass
// always runs on slot 0.
func TestBookDerivedSlot(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	d, err := root.BookDerivedSlot("SlotPlusA", func(slot int, a int64) int64 {
		return int64(slot) + a
	}, "A")
	require.NoError(t, err)
	h, err := d.BookAsSlice("SlotPlusA")
	require.NoError(t, err)

	got, err := h.Slice()
	require.NoError(t, err)
	require.ElementsMatch(t, []interface{}{int64(1), int64(2), int64(3), int64(4), int64(5)}, got)
}

// BookForEach invokes its callable once per accepted row for side
// effects. Thread safety is the caller's concern, so a single worker
// pass is enough to exercise it deterministically.
func TestBookForEach(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	var seen []int64
	h, err := root.BookForEach(func(a int64) error {
		seen = append(seen, a)
		return nil
	}, "A")
	require.NoError(t, err)

	_, err = h.Observe()
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, seen)
}

// BookForEachSlot passes the stable slot index as the callable's first
// argument; a single-worker pass always runs on slot 0.
func TestBookForEachSlot(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	var slots []int
	h, err := root.BookForEachSlot(func(slot int, a int64) error {
		slots = append(slots, slot)
		return nil
	}, "A")
	require.NoError(t, err)

	_, err = h.Observe()
	require.NoError(t, err)
	require.Len(t, slots, 5)
	for _, s := range slots {
		require.Equal(t, 0, s, "single-worker pass always runs on slot 0")
	}
}

// BookMin and BookMax publish the extreme value over an accepted
// column.
func TestBookMinBookMax(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	min, err := root.BookMin("A")
	require.NoError(t, err)
	max, err := root.BookMax("A")
	require.NoError(t, err)

	gotMin, err := min.Float64()
	require.NoError(t, err)
	require.Equal(t, float64(1), gotMin)

	gotMax, err := max.Float64()
	require.NoError(t, err)
	require.Equal(t, float64(5), gotMax)
}

// BookMean publishes the arithmetic mean over an accepted column.
func TestBookMean(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	h, err := root.BookMean("A")
	require.NoError(t, err)

	got, err := h.Float64()
	require.NoError(t, err)
	require.Equal(t, float64(3), got)
}

// BookMin over a pipeline that accepts zero rows raises ErrEmptyInput.
func TestBookMinEmptyInput(t *testing.T) {
	root, err := NewRoot(newScenarioSource(t))
	require.NoError(t, err)

	none, err := root.BookFilter(func(a int64) bool { return false }, "A")
	require.NoError(t, err)
	h, err := none.BookMin("A")
	require.NoError(t, err)

	_, err = h.Observe()
	require.Error(t, err)
	require.True(t, errors.Is(err, rdferrors.ErrEmptyInput))
}
