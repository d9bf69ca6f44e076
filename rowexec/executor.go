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

// Package rowexec contains the single-threaded loop and the parallel
// driver that walk a Source one row at a time, handing each row to
// every booked Runnable. It knows nothing about derived columns,
// filters, or the shape of the pipeline graph above it — those are the
// plan package's concern; rowexec only owns cursor advancement, slot
// assignment, and merge-point sequencing.
package rowexec

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/rdf/column"
)

// Runnable is one booked node's execution surface (an action, derived
// column, or filter), as seen by the dispatch engine. AllocateSlots is called once before a pass begins;
// Run is called once per row, per slot, for every row that slot's
// cursor yields.
type Runnable interface {
	AllocateSlots(n int)
	Run(slot int, row int64, cur column.Cursor) error
}

// Executor drives one pass over a Source on behalf of a set of
// Runnables, either on the calling goroutine or fanned out across a
// fixed number of worker slots.
type Executor struct {
	Logger *logrus.Logger
	Tracer opentracing.Tracer
}

// New returns an Executor with nil-safe defaults: the standard logrus
// logger and whatever tracer the process has installed globally (a
// no-op tracer if none has).
func New() *Executor {
	return &Executor{
		Logger: logrus.StandardLogger(),
		Tracer: opentracing.GlobalTracer(),
	}
}

func (e *Executor) logger() *logrus.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logrus.StandardLogger()
}

func (e *Executor) tracer() opentracing.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return opentracing.GlobalTracer()
}

// Run drives one pass. slots is the requested worker count; a value of
// 1 (or less) always takes the single-threaded path regardless of
// src.Partition's capabilities. Every Runnable has AllocateSlots called
// with the actual slot count actually used, which may be smaller than
// requested if the source cannot honor it (e.g. fewer rows than
// workers).
func (e *Executor) Run(ctx context.Context, passName string, src column.Source, slots int, runnables []Runnable) error {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, e.tracer(), passName)
	defer span.Finish()
	span.SetTag("source", src.Name())
	span.SetTag("requestedSlots", slots)

	if slots <= 1 {
		span.SetTag("mode", "single")
		for _, r := range runnables {
			r.AllocateSlots(1)
		}
		return e.runSingle(ctx, src, runnables)
	}

	cursors, err := src.Partition(slots)
	if err != nil {
		return errors.Wrap(err, "rowexec: partition source")
	}
	n := len(cursors)
	span.SetTag("mode", "parallel")
	span.SetTag("actualSlots", n)
	if n <= 1 {
		for _, r := range runnables {
			r.AllocateSlots(1)
		}
		if n == 0 {
			return nil
		}
		return e.runOneCursor(ctx, 0, cursors[0], runnables)
	}

	for _, r := range runnables {
		r.AllocateSlots(n)
	}
	return e.runParallel(ctx, cursors, runnables)
}

func (e *Executor) runSingle(ctx context.Context, src column.Source, runnables []Runnable) error {
	cur, err := src.NewCursor()
	if err != nil {
		return errors.Wrap(err, "rowexec: open cursor")
	}
	return e.runOneCursor(ctx, 0, cur, runnables)
}

func (e *Executor) runOneCursor(ctx context.Context, slot int, cur column.Cursor, runnables []Runnable) error {
	defer cur.Close()
	for cur.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := cur.Row()
		for _, r := range runnables {
			if err := r.Run(slot, row, cur); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) runParallel(ctx context.Context, cursors []column.Cursor, runnables []Runnable) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	wg.Add(len(cursors))
	for slot, cur := range cursors {
		slot, cur := slot, cur
		go func() {
			defer wg.Done()
			log := e.logger().WithField("slot", slot)
			log.Debug("rowexec: worker starting")
			if err := e.runOneCursor(ctx, slot, cur, runnables); err != nil {
				log.WithError(err).Warn("rowexec: worker failed")
				once.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			log.Debug("rowexec: worker finished")
		}()
	}
	wg.Wait()
	return firstErr
}
