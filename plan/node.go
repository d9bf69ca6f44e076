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

// Package plan ties the column, rowexec, aggregation, and result
// packages into the booked pipeline graph: a root rooted on a
// column.Source, with derived-column and filter nodes chained off it
// or off each other, terminated by action nodes. Booking is a pure
// graph-construction step; nothing runs until a result.Handle is
// observed.
package plan

import "github.com/dolthub/rdf/column"

// Node is the internal graph-walking contract every bookable position
// in the pipeline implements: Root, DerivedNode, and FilterNode. A
// node's "ancestors" are found by walking parent references upward;
// resolve and passes both do that walk, recursively, rather than
// maintaining a flattened view.
type Node interface {
	// resolve returns name's value at (slot, row), searching this node
	// first (if it produces a column under that name) and then its
	// ancestors. cur is the slot's cursor, for persistent-column access
	// at the root.
	resolve(slot int, row int64, cur column.Cursor, name string) (column.Value, error)
	// passes reports whether row is accepted by every filter between
	// this node and the root, inclusive of this node if it is itself a
	// filter.
	passes(slot int, row int64, cur column.Cursor) (bool, error)
	// hasColumn reports whether name resolves to a persistent column or
	// a booked derived-column ancestor, without needing row data. Used
	// at booking time to validate input lists eagerly.
	hasColumn(name string) bool
}

// state is the root's booking/running/ready state machine (§4.7).
type state int

const (
	stateBooking state = iota
	stateRunning
	stateReady
)

// dedupKey identifies a previously booked child for common-subexpression
// sharing: an identical (fn, inputs) pair booked again on the same
// parent, under the same requested name, returns the existing node
// instead of erroring or duplicating work. name is the name the caller
// asked for ("" for an anonymous derived column or filter), not any
// generated name — two different requested names over the same
// computation must never share a cache slot, or the second booking
// would evict the first and a later idempotent re-booking of the first
// would find the second's node under its key and wrongly fall through
// to a duplicate-name error.
type dedupKey struct {
	parent Node
	hash   uint64
	name   string
}
