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

// Package column declares the external contracts the pipeline graph
// consumes: the on-disk columnar source, its row cursors, and the
// typed-value vocabulary the rest of the engine is built on. Nothing in
// this package knows about derived columns, filters, or actions; it is
// the boundary named, not implemented, by the specification.
package column

import "reflect"

// Kind buckets a column's underlying Go type into the small set of
// shapes the dispatch engine reasons about. Bucketing (rather than
// comparing concrete reflect.Type values) lets an int32 source column
// feed a derived column declared over int64, the way on-disk columnar
// formats routinely mix integer widths.
type Kind int

const (
	// KindInvalid marks a value the resolver could not classify, or the
	// absence of a declared kind (e.g. a variadic/ForEach callable that
	// places no constraint on its inputs).
	KindInvalid Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	// KindOther covers everything else (structs, slices, interfaces);
	// the type-mismatch check does not compare two KindOther values, so
	// higher-kinded columns opt out of bucket checking entirely.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindOther:
		return "other"
	default:
		return "invalid"
	}
}

// KindOf buckets the runtime type of v.
func KindOf(v interface{}) Kind {
	if v == nil {
		return KindInvalid
	}
	return KindFromReflect(reflect.TypeOf(v).Kind())
}

// KindFromReflect buckets a reflect.Kind the same way KindOf buckets a
// value, so a callable's declared parameter type can be compared
// against a resolved value without allocating one.
func KindFromReflect(k reflect.Kind) Kind {
	switch k {
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt64
	case reflect.Float32, reflect.Float64:
		return KindFloat64
	case reflect.String:
		return KindString
	default:
		return KindOther
	}
}

// Value is a single typed column value for one row. It is deliberately
// an alias for interface{}: the engine is type-erased at this layer,
// and casts back to a concrete type at the node that declared it.
type Value = interface{}

// Info describes one persistent column exposed by a Source.
type Info struct {
	Name string
	Kind Kind
}

// Source is the on-disk columnar reader the pipeline graph is rooted
// on. It is consumed, not implemented, by this module: production
// callers bind it to whatever storage format they read (columnar
// files, an in-memory table, a network-backed reader). A Source must
// be safe to open multiple independent Cursors/partitions over
// concurrently; no two Cursors returned by the same Source share
// mutable state.
type Source interface {
	// Name identifies the source, for logging.
	Name() string
	// Columns lists every persistent column this source exposes.
	Columns() []Info
	// NewCursor returns a single cursor over every row, in order, for
	// the single-threaded execution path.
	NewCursor() (Cursor, error)
	// Partition returns n cursors, each bound to a contiguous, disjoint
	// row range, for the parallel execution path. The ranges' union
	// must cover every row exactly once. Implementations that cannot
	// honor n exactly may return fewer cursors than requested (e.g. a
	// source with fewer rows than workers); callers must size their
	// slot count to len(cursors), not n.
	Partition(n int) ([]Cursor, error)
}

// Cursor iterates the rows a Source (or one of its partitions) yields.
// A Cursor is used by exactly one goroutine at a time.
type Cursor interface {
	// Next advances to the next row and reports whether one exists.
	Next() bool
	// Row returns the global row index of the current row (stable
	// across partitions; not reset to zero at a partition boundary).
	Row() int64
	// Column returns the current row's value for the named persistent
	// column.
	Column(name string) (Value, error)
	// Close releases any resources held by the cursor.
	Close() error
}
