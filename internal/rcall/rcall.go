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

// Package rcall invokes arbitrary user-supplied callables through
// reflection so that derived columns, filters, and reduce functions can
// be booked with their own concrete Go signature instead of a single
// boxed func(...) interface{} shape. It is the type-erasure boundary
// the design calls for: callers capture a type witness at booking time
// (ParamKinds, OutKind), compare it against each resolved column's kind
// before every call, and rcall itself does the positional conversion
// and invocation at evaluation time, naming the offending column on any
// type mismatch that slips through.
package rcall

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/dolthub/rdf/column"
	"github.com/dolthub/rdf/rdferrors"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Arity returns the number of positional arguments fn expects. fn must
// be a function value; any other kind is an arity-mismatch-flavored
// programming error reported immediately so it surfaces at booking
// time rather than first evaluation.
func Arity(fn interface{}) (int, error) {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return 0, errors.Wrap(rdferrors.ErrArityMismatch, "rcall: callable is not a function")
	}
	return t.NumIn(), nil
}

// ParamKinds returns the reflect.Kind of each positional parameter of
// fn, in order.
func ParamKinds(fn interface{}) []reflect.Kind {
	t := reflect.TypeOf(fn)
	kinds := make([]reflect.Kind, t.NumIn())
	for i := range kinds {
		kinds[i] = t.In(i).Kind()
	}
	return kinds
}

// OutKind returns the reflect.Kind of fn's first declared return value.
func OutKind(fn interface{}) reflect.Kind {
	t := reflect.TypeOf(fn)
	if t.NumOut() == 0 {
		return reflect.Invalid
	}
	return t.Out(0).Kind()
}

// Call invokes fn with args bound positionally, converting each
// argument to fn's declared parameter type where a direct conversion
// exists. names identifies each positional argument's source column
// (the same length and order as args; an entry may be "" for a
// synthetic, non-column argument such as a slot index), so a
// type-mismatch error names the offending column and its expected and
// actual column.Kind rather than just a bare reflect.Type. fn must
// return either a single value or a (value, error) pair; a non-nil
// trailing error, or a recovered panic, is reported as
// rdferrors.ErrUserCallableFailure.
func Call(fn interface{}, names []string, args []interface{}) (out interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrapf(rdferrors.ErrUserCallableFailure, "callable panicked: %v", p)
		}
	}()

	v := reflect.ValueOf(fn)
	t := v.Type()
	if len(args) != t.NumIn() {
		return nil, errors.Wrapf(rdferrors.ErrArityMismatch, "rcall: callable wants %d arguments, got %d", t.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		want := t.In(i)
		if a == nil {
			in[i] = reflect.Zero(want)
			continue
		}
		av := reflect.ValueOf(a)
		switch {
		case av.Type().AssignableTo(want):
			in[i] = av
		case av.Type().ConvertibleTo(want) && isNumericKind(av.Kind()) && isNumericKind(want.Kind()):
			in[i] = av.Convert(want)
		default:
			name := "?"
			if i < len(names) && names[i] != "" {
				name = names[i]
			}
			return nil, errors.Wrapf(rdferrors.ErrTypeMismatch, "rcall: column %q has kind %s, want %s", name, column.KindOf(a), column.KindFromReflect(want.Kind()))
		}
	}

	results := v.Call(in)
	switch len(results) {
	case 1:
		// A sole return value that is itself an error (func(...) error,
		// the common side-effecting-callback shape) is treated as the
		// error return, not as the published value.
		if t.Out(0).Implements(errorType) {
			if errVal, _ := results[0].Interface().(error); errVal != nil {
				return nil, errors.Wrapf(rdferrors.ErrUserCallableFailure, "callable returned error: %v", errVal)
			}
			return nil, nil
		}
		return results[0].Interface(), nil
	case 2:
		res := results[0].Interface()
		errVal := results[1].Interface()
		if errVal != nil {
			causeErr, _ := errVal.(error)
			return res, errors.Wrapf(rdferrors.ErrUserCallableFailure, "callable returned error: %v", causeErr)
		}
		return res, nil
	default:
		return nil, errors.New("rcall: callable must return (T) or (T, error)")
	}
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
