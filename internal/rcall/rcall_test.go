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

package rcall

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArity(t *testing.T) {
	n, err := Arity(func(a, b int64) bool { return a < b })
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = Arity(42)
	require.Error(t, err)
}

func TestCallSingleReturn(t *testing.T) {
	out, err := Call(func(a, b int64) int64 { return a + b }, nil, []interface{}{int64(1), int64(2)})
	require.NoError(t, err)
	require.Equal(t, int64(3), out)
}

func TestCallValueAndError(t *testing.T) {
	out, err := Call(func(a int64) (int64, error) { return a * 2, nil }, nil, []interface{}{int64(3)})
	require.NoError(t, err)
	require.Equal(t, int64(6), out)

	_, err = Call(func(a int64) (int64, error) { return 0, errors.New("bad") }, nil, []interface{}{int64(3)})
	require.Error(t, err)
}

func TestCallErrorOnlyReturn(t *testing.T) {
	called := false
	_, err := Call(func(a int64) error { called = true; return nil }, nil, []interface{}{int64(1)})
	require.NoError(t, err)
	require.True(t, called)

	_, err = Call(func(a int64) error { return errors.New("nope") }, nil, []interface{}{int64(1)})
	require.Error(t, err)
}

func TestCallPanicRecovered(t *testing.T) {
	_, err := Call(func(a int64) int64 { panic("boom") }, nil, []interface{}{int64(1)})
	require.Error(t, err)
}

func TestCallConvertsNumericWidths(t *testing.T) {
	out, err := Call(func(a int64) int64 { return a }, nil, []interface{}{int32(5)})
	require.NoError(t, err)
	require.Equal(t, int64(5), out)
}

func TestCallArgumentTypeMismatch(t *testing.T) {
	_, err := Call(func(a int64) int64 { return a }, nil, []interface{}{"nope"})
	require.Error(t, err)
}

func TestCallArgumentTypeMismatchNamesColumn(t *testing.T) {
	_, err := Call(func(a int64) int64 { return a }, []string{"A"}, []interface{}{"nope"})
	require.Error(t, err)
	require.Contains(t, err.Error(), `"A"`)
	require.Contains(t, err.Error(), "string")
	require.Contains(t, err.Error(), "int64")
}

func TestCallArityMismatch(t *testing.T) {
	_, err := Call(func(a int64) int64 { return a }, nil, []interface{}{int64(1), int64(2)})
	require.Error(t, err)
}

func TestParamKindsAndOutKind(t *testing.T) {
	fn := func(a int64, b string) bool { return false }
	require.Equal(t, []reflect.Kind{reflect.Int64, reflect.String}, ParamKinds(fn))
	require.Equal(t, reflect.Bool, OutKind(fn))
}
