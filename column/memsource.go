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

package column

import "fmt"

// MemSource is a slice-backed Source, the in-memory equivalent of a
// materialised on-disk dataset. It exists so the engine and its tests
// do not depend on any particular columnar file format; production
// callers bind Source to their own reader instead.
type MemSource struct {
	name    string
	order   []string
	columns map[string][]Value
	kinds   map[string]Kind
	rows    int
}

// NewMemSource builds a MemSource from columns, a map of column name to
// its per-row values. Every column must have the same length; that
// length becomes the source's row count. order fixes Columns()'s
// iteration order (MemSource does not sort names).
func NewMemSource(name string, order []string, columns map[string][]Value) (*MemSource, error) {
	rows := -1
	for _, n := range order {
		col, ok := columns[n]
		if !ok {
			return nil, fmt.Errorf("column: memsource %q: column %q not provided", name, n)
		}
		if rows == -1 {
			rows = len(col)
		} else if len(col) != rows {
			return nil, fmt.Errorf("column: memsource %q: column %q has %d rows, want %d", name, n, len(col), rows)
		}
	}
	if rows == -1 {
		rows = 0
	}
	kinds := make(map[string]Kind, len(order))
	for _, n := range order {
		kinds[n] = inferKind(columns[n])
	}
	return &MemSource{name: name, order: order, columns: columns, kinds: kinds, rows: rows}, nil
}

func inferKind(col []Value) Kind {
	for _, v := range col {
		if v != nil {
			return KindOf(v)
		}
	}
	return KindInvalid
}

func (s *MemSource) Name() string { return s.name }

func (s *MemSource) Columns() []Info {
	infos := make([]Info, len(s.order))
	for i, n := range s.order {
		infos[i] = Info{Name: n, Kind: s.kinds[n]}
	}
	return infos
}

func (s *MemSource) NewCursor() (Cursor, error) {
	return &memCursor{src: s, pos: -1, lo: 0, hi: s.rows}, nil
}

func (s *MemSource) Partition(n int) ([]Cursor, error) {
	if n <= 0 {
		n = 1
	}
	if n > s.rows {
		n = s.rows
	}
	if n == 0 {
		return []Cursor{&memCursor{src: s, pos: -1, lo: 0, hi: 0}}, nil
	}
	base := s.rows / n
	rem := s.rows % n
	cursors := make([]Cursor, 0, n)
	lo := 0
	for i := 0; i < n; i++ {
		width := base
		if i < rem {
			width++
		}
		hi := lo + width
		cursors = append(cursors, &memCursor{src: s, pos: lo - 1, lo: lo, hi: hi})
		lo = hi
	}
	return cursors, nil
}

type memCursor struct {
	src      *MemSource
	pos      int
	lo, hi   int
}

func (c *memCursor) Next() bool {
	if c.pos+1 >= c.hi {
		return false
	}
	c.pos++
	return true
}

func (c *memCursor) Row() int64 { return int64(c.pos) }

func (c *memCursor) Column(name string) (Value, error) {
	col, ok := c.src.columns[name]
	if !ok {
		return nil, fmt.Errorf("column: unknown persistent column %q", name)
	}
	return col[c.pos], nil
}

func (c *memCursor) Close() error { return nil }
