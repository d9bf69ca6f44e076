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
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/mitchellh/hashstructure"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"

	"github.com/dolthub/rdf/aggregation"
	"github.com/dolthub/rdf/column"
	"github.com/dolthub/rdf/internal/rcall"
	"github.com/dolthub/rdf/internal/similartext"
	"github.com/dolthub/rdf/rdferrors"
	"github.com/dolthub/rdf/result"
	"github.com/dolthub/rdf/rowexec"
)

// Root owns the source identity, every booked node, the default
// column list, and the run-once state machine. It is the entry point
// of the booking surface (embedded via chain) and the only thing a
// caller observes a pass through.
type Root struct {
	chain

	source         column.Source
	sourceColumns  map[string]column.Info
	defaultColumns []string

	derivedByName map[string]*DerivedNode
	derivedNodes  []*DerivedNode
	filterNodes   []*FilterNode
	namedFilters  []*FilterNode // booking order, for Report/Cutflow

	actions []*actionNode

	dedup map[dedupKey]Node

	mu     sync.Mutex
	state  state
	hasRun bool

	workers int

	logger   *logrus.Logger
	tracer   opentracing.Tracer
	executor *rowexec.Executor
}

// NewRoot builds a Root over source. defaultColumns, if given, backs
// every booking call that omits an explicit input list.
func NewRoot(source column.Source, defaultColumns ...string) (*Root, error) {
	if source == nil {
		return nil, errors.New("plan: nil source")
	}
	cols := make(map[string]column.Info, len(source.Columns()))
	for _, c := range source.Columns() {
		cols[c.Name] = c
	}
	r := &Root{
		source:         source,
		sourceColumns:  cols,
		defaultColumns: defaultColumns,
		derivedByName:  map[string]*DerivedNode{},
		dedup:          map[dedupKey]Node{},
		state:          stateBooking,
		workers:        1,
		logger:         logrus.StandardLogger(),
		tracer:         opentracing.GlobalTracer(),
		executor:       rowexec.New(),
	}
	r.chain = chain{root: r, self: r}
	return r, nil
}

// SetWorkers sets the requested worker count for this root's pass. A
// value less than 2 runs single-threaded. Only effective before the
// first pass: run reads the worker count once, when the pass starts.
func (r *Root) SetWorkers(n int) { r.workers = n }

// SetLogger overrides the default standard logrus logger.
func (r *Root) SetLogger(l *logrus.Logger) {
	if l != nil {
		r.logger = l
		r.executor.Logger = l
	}
}

// SetTracer overrides the default global opentracing tracer.
func (r *Root) SetTracer(t opentracing.Tracer) {
	if t != nil {
		r.tracer = t
		r.executor.Tracer = t
	}
}

func (r *Root) resolve(slot int, row int64, cur column.Cursor, name string) (column.Value, error) {
	if _, ok := r.sourceColumns[name]; !ok {
		return nil, errors.Wrapf(rdferrors.ErrUnknownColumn, "column %q%s", name, similartext.Find(r.knownColumnNames(), name))
	}
	return cur.Column(name)
}

// knownColumnNames lists every source and derived column name booked
// so far, for "did you mean" suggestions on an unknown-column error.
func (r *Root) knownColumnNames() []string {
	out := make([]string, 0, len(r.sourceColumns)+len(r.derivedByName))
	for name := range r.sourceColumns {
		out = append(out, name)
	}
	for name := range r.derivedByName {
		out = append(out, name)
	}
	return out
}

func (r *Root) passes(slot int, row int64, cur column.Cursor) (bool, error) { return true, nil }

func (r *Root) hasColumn(name string) bool {
	_, ok := r.sourceColumns[name]
	return ok
}

// resolveInputs applies the default-column-list fallback (§3) and
// validates arity against fn's declared parameter count. withSlot
// callables carry one extra leading parameter that is not a column.
func (r *Root) resolveInputs(fn interface{}, explicit []string, withSlot bool) ([]string, error) {
	arity, err := rcall.Arity(fn)
	if err != nil {
		return nil, err
	}
	if withSlot {
		arity--
	}
	if len(explicit) > 0 {
		if len(explicit) != arity {
			return nil, errors.Wrapf(rdferrors.ErrArityMismatch, "callable wants %d inputs, got %d explicit", arity, len(explicit))
		}
		return explicit, nil
	}
	if arity == 0 {
		return nil, nil
	}
	if len(r.defaultColumns) < arity {
		return nil, errors.Wrapf(rdferrors.ErrArityMismatch, "default column list has %d entries, need %d", len(r.defaultColumns), arity)
	}
	out := make([]string, arity)
	copy(out, r.defaultColumns[:arity])
	return out, nil
}

// paramKindsFor captures fn's declared parameter kinds as the type
// witness a DerivedNode/FilterNode checks each resolved column's kind
// against before every evaluation, dropping the leading slot parameter
// for a withSlot callable since it is not backed by a column.
func paramKindsFor(fn interface{}, withSlot bool) []column.Kind {
	reflectKinds := rcall.ParamKinds(fn)
	if withSlot && len(reflectKinds) > 0 {
		reflectKinds = reflectKinds[1:]
	}
	kinds := make([]column.Kind, len(reflectKinds))
	for i, rk := range reflectKinds {
		kinds[i] = column.KindFromReflect(rk)
	}
	return kinds
}

func (r *Root) checkNameAvailable(name string) error {
	if _, ok := r.sourceColumns[name]; ok {
		return errors.Wrapf(rdferrors.ErrDuplicateName, "column %q", name)
	}
	if _, ok := r.derivedByName[name]; ok {
		return errors.Wrapf(rdferrors.ErrDuplicateName, "column %q", name)
	}
	return nil
}

func (r *Root) newDerived(parent Node, name string, fn interface{}, explicit []string, withSlot bool) (*DerivedNode, error) {
	if r.state != stateBooking {
		return nil, rdferrors.ErrRootFrozen
	}
	anon := name == ""
	requestedName := name
	if anon {
		name = newAnonName("_derived")
	}

	inputs, err := r.resolveInputs(fn, explicit, withSlot)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if !parent.hasColumn(in) {
			return nil, errors.Wrapf(rdferrors.ErrUnknownColumn, "column %q%s", in, similartext.Find(r.knownColumnNames(), in))
		}
	}

	hash, hashErr := hashChild(fn, inputs, withSlot)
	dedupOK := hashErr == nil
	key := dedupKey{parent: parent, hash: hash, name: requestedName}
	if dedupOK {
		if existing, ok := r.dedup[key]; ok {
			if dn, ok := existing.(*DerivedNode); ok {
				return dn, nil
			}
		}
	}

	if !anon {
		if err := r.checkNameAvailable(name); err != nil {
			return nil, err
		}
	}

	d := &DerivedNode{name: name, fn: fn, inputs: inputs, withSlot: withSlot, parent: parent, paramKinds: paramKindsFor(fn, withSlot)}
	d.chain = chain{root: r, self: d}
	r.derivedByName[name] = d
	r.derivedNodes = append(r.derivedNodes, d)
	if dedupOK {
		r.dedup[key] = d
	}
	return d, nil
}

func (r *Root) newAlias(parent Node, name, of string) (*DerivedNode, error) {
	if r.state != stateBooking {
		return nil, rdferrors.ErrRootFrozen
	}
	if name == "" {
		return nil, errors.New("plan: alias requires a name")
	}
	if !parent.hasColumn(of) {
		return nil, errors.Wrapf(rdferrors.ErrUnknownColumn, "column %q%s", of, similartext.Find(r.knownColumnNames(), of))
	}
	if err := r.checkNameAvailable(name); err != nil {
		return nil, err
	}
	d := &DerivedNode{name: name, isAlias: true, aliasOf: of, parent: parent}
	d.chain = chain{root: r, self: d}
	r.derivedByName[name] = d
	r.derivedNodes = append(r.derivedNodes, d)
	return d, nil
}

func (r *Root) newFilter(parent Node, name string, fn interface{}, explicit []string) (*FilterNode, error) {
	if r.state != stateBooking {
		return nil, rdferrors.ErrRootFrozen
	}
	inputs, err := r.resolveInputs(fn, explicit, false)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if !parent.hasColumn(in) {
			return nil, errors.Wrapf(rdferrors.ErrUnknownColumn, "column %q%s", in, similartext.Find(r.knownColumnNames(), in))
		}
	}

	hash, hashErr := hashChild(fn, inputs, false)
	dedupOK := hashErr == nil
	key := dedupKey{parent: parent, hash: hash, name: name}
	if dedupOK {
		if existing, ok := r.dedup[key]; ok {
			if existingFilter, ok := existing.(*FilterNode); ok {
				return existingFilter, nil
			}
		}
	}

	if name != "" {
		for _, nf := range r.namedFilters {
			if nf.name == name {
				return nil, errors.Wrapf(rdferrors.ErrDuplicateName, "named filter %q", name)
			}
		}
	}

	f := &FilterNode{name: name, fn: fn, inputs: inputs, parent: parent, paramKinds: paramKindsFor(fn, false)}
	f.chain = chain{root: r, self: f}
	r.filterNodes = append(r.filterNodes, f)
	if name != "" {
		r.namedFilters = append(r.namedFilters, f)
	}
	if dedupOK {
		r.dedup[key] = f
	}
	return f, nil
}

func (r *Root) bookAction(parent Node, act aggregation.Action, explicit []string, want int) (*result.Handle, error) {
	if r.state != stateBooking {
		return nil, rdferrors.ErrRootFrozen
	}
	var inputs []string
	switch {
	case len(explicit) > 0:
		if len(explicit) != want {
			return nil, errors.Wrapf(rdferrors.ErrArityMismatch, "action wants %d inputs, got %d", want, len(explicit))
		}
		inputs = explicit
	case want > 0:
		if len(r.defaultColumns) < want {
			return nil, errors.Wrapf(rdferrors.ErrArityMismatch, "default column list has %d entries, need %d", len(r.defaultColumns), want)
		}
		inputs = make([]string, want)
		copy(inputs, r.defaultColumns[:want])
	}
	for _, in := range inputs {
		if !parent.hasColumn(in) {
			return nil, errors.Wrapf(rdferrors.ErrUnknownColumn, "column %q%s", in, similartext.Find(r.knownColumnNames(), in))
		}
	}
	an := &actionNode{root: r, parent: parent, action: act, inputs: inputs}
	r.actions = append(r.actions, an)
	return result.New(an), nil
}

// run drives the pipeline's one-and-only pass, shared across every
// action booked on this root. Safe to call repeatedly and
// concurrently: once the root reaches stateReady, further calls are a
// no-op. On failure the root reverts to stateBooking so a later call
// (from a retried Observe) attempts the pass again.
func (r *Root) run() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateReady {
		return nil
	}
	r.state = stateRunning

	ctx := context.Background()
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, r.tracer, "rdf.run")
	defer span.Finish()
	span.SetTag("actions", len(r.actions))

	n := r.workers
	if n < 1 {
		n = 1
	}

	runnables := r.collectRunnables()
	if err := r.executor.Run(ctx, "rdf.pass", r.source, n, runnables); err != nil {
		r.state = stateBooking
		r.logger.WithError(err).Warn("rdf: pass failed, reverting to booking state")
		return err
	}

	for _, a := range r.actions {
		fspan := r.tracer.StartSpan("rdf.finalize", opentracing.ChildOf(span.Context()))
		v, ferr := a.action.Finalize()
		a.value, a.err = v, ferr
		a.ready = true
		fspan.Finish()
	}
	r.actions = nil
	r.hasRun = true
	r.state = stateReady
	return nil
}

func (r *Root) collectRunnables() []rowexec.Runnable {
	out := make([]rowexec.Runnable, 0, len(r.derivedNodes)+len(r.filterNodes)+len(r.actions))
	for _, d := range r.derivedNodes {
		out = append(out, d)
	}
	for _, f := range r.filterNodes {
		out = append(out, f)
	}
	for _, a := range r.actions {
		out = append(out, a)
	}
	return out
}

// CutflowRow is one named filter's accounting as of the last pass.
type CutflowRow struct {
	Name    string
	Pass    int64
	All     int64
	Percent float64
}

// Cutflow triggers a pass if none has run yet, then returns every
// named filter's accept/observed counts and accept percentage, in
// booking order.
func (r *Root) Cutflow() ([]CutflowRow, error) {
	if err := r.run(); err != nil {
		return nil, err
	}
	rows := make([]CutflowRow, 0, len(r.namedFilters))
	for _, f := range r.namedFilters {
		var pass, all int64
		for slot := range f.accept {
			pass += f.accept[slot]
			all += f.accept[slot] + f.reject[slot]
		}
		var pct float64
		if all > 0 {
			pct = float64(pass) / float64(all) * 100
		}
		rows = append(rows, CutflowRow{Name: f.Name(), Pass: pass, All: all, Percent: pct})
	}
	return rows, nil
}

// Report triggers a pass if none has run yet, then renders the same
// data Cutflow returns as the printed form: one line per named filter,
// in booking order, "name: pass=X all=Y -- Z.ZZZ %".
func (r *Root) Report() (string, error) {
	rows, err := r.Cutflow()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%s: pass=%d all=%d -- %.3f %%\n", row.Name, row.Pass, row.All, row.Percent)
	}
	return b.String(), nil
}

var anonCounter int64

func newAnonName(prefix string) string {
	id, err := uuid.NewV4()
	if err != nil {
		anonCounter++
		return fmt.Sprintf("%s_%d", prefix, anonCounter)
	}
	return prefix + "_" + id.String()
}

func hashChild(fn interface{}, inputs []string, withSlot bool) (uint64, error) {
	key := struct {
		Fn       uintptr
		Inputs   []string
		WithSlot bool
	}{
		Fn:       reflect.ValueOf(fn).Pointer(),
		Inputs:   inputs,
		WithSlot: withSlot,
	}
	return hashstructure.Hash(key, nil)
}
