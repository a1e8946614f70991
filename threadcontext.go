// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"code.hybscloud.com/atomix"
)

// ThreadContext bundles the one Queue a single producer goroutine writes
// into with the bookkeeping the backend needs to drain it correctly: a
// stable identity for diagnostics, and a shutdown flag the producer sets
// once it is done emitting so the backend can reclaim the context after
// draining whatever it already wrote.
//
// Exactly one producer goroutine writes through a given ThreadContext.
// The backend is the sole reader of every field except id/name, which are
// set once at construction and never change.
type ThreadContext struct {
	Queue Queue

	id     uint64
	name   string
	logger *Logger

	// dropped counts records the frontend dropped before even attempting
	// a Reserve (a Log call on a Logger that has been removed from its
	// registry — see Logger.Log). Drops a Dropping queue refuses are
	// counted by the queue itself, in Queue.Dropped().
	dropped atomix.Uint64

	// shutdown is set by the producer's owning goroutine, via
	// MarkShutdown, when it will never emit again. The backend only
	// reclaims a context once
	// shutdown is set and the queue has been fully drained.
	shutdown atomix.Bool
}

func newThreadContext(id uint64, name string, q Queue) *ThreadContext {
	return &ThreadContext{Queue: q, id: id, name: name}
}

// ID returns the identity this context was registered under.
func (tc *ThreadContext) ID() uint64 { return tc.id }

// Name returns the producer-supplied thread name, or "" if none was given.
func (tc *ThreadContext) Name() string { return tc.name }

// Logger returns the Logger this context emits through.
func (tc *ThreadContext) Logger() *Logger { return tc.logger }

func (tc *ThreadContext) setLogger(lg *Logger) { tc.logger = lg }

// MarkShutdown records that the owning producer will not emit again. Safe
// to call from the producer goroutine only.
func (tc *ThreadContext) MarkShutdown() {
	tc.shutdown.StoreRelease(true)
}

// ShuttingDown reports whether MarkShutdown has been called. Read by the
// backend when deciding whether an empty queue's context can be reclaimed.
func (tc *ThreadContext) ShuttingDown() bool {
	return tc.shutdown.LoadAcquire()
}

// Dropped returns the total number of records this context ever failed to
// enqueue, combining the queue's own dropped counter (Dropping variants)
// with any the frontend counted itself. A BoundedBlocking reserve larger
// than the whole buffer returns ErrWouldBlock without being counted.
func (tc *ThreadContext) Dropped() uint64 {
	return tc.dropped.LoadAcquire() + tc.Queue.Dropped()
}

func (tc *ThreadContext) countDropped() {
	tc.dropped.AddAcqRel(1)
}
