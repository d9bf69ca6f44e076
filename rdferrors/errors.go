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

// Package rdferrors declares the sentinel error kinds raised by the
// booking and dispatch engine. Call sites wrap a sentinel with
// github.com/pkg/errors so the original sentinel is still recoverable
// through errors.Cause, while the wrapped message carries the
// column/node identifying the failure.
package rdferrors

import "github.com/pkg/errors"

var (
	// ErrDuplicateName is raised when a booked derived-column name
	// collides with a persistent source column or a previously booked
	// derived column elsewhere in the graph.
	ErrDuplicateName = errors.New("rdf: duplicate column name")

	// ErrArityMismatch is raised when an explicit input list's length
	// disagrees with a callable's declared arity and no default column
	// list can resolve the difference.
	ErrArityMismatch = errors.New("rdf: arity mismatch")

	// ErrUnknownColumn is raised when a referenced column name resolves
	// to neither a persistent source column nor a booked ancestor.
	ErrUnknownColumn = errors.New("rdf: unknown column")

	// ErrTypeMismatch is raised when a declared input type differs from
	// the actual column type at first access during a pass.
	ErrTypeMismatch = errors.New("rdf: type mismatch")

	// ErrEmptyInput is raised by min/max/mean when the pipeline feeding
	// them accepted zero rows.
	ErrEmptyInput = errors.New("rdf: empty input")

	// ErrRootFrozen is raised when booking is attempted after a pass has
	// already completed successfully.
	ErrRootFrozen = errors.New("rdf: root frozen")

	// ErrUserCallableFailure wraps a panic or error value raised by a
	// user-supplied derived column, filter, or reduce callable.
	ErrUserCallableFailure = errors.New("rdf: user callable failure")
)
