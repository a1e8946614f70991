// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import "time"

// ErrorNotifier receives diagnostic errors the backend cannot otherwise
// surface to the caller: a failed clock resync, a sink write failure, a
// configuration mistake caught at start time. It must not block — the
// backend calls it from its own drain loop.
type ErrorNotifier func(error)

// QueueOptions configures the Queue a ThreadContext wraps.
type QueueOptions struct {
	// Variant selects the reserve-failure and growth policy. The zero
	// value is BoundedDropping.
	Variant QueueVariant
	// InitialCapacity is rounded up to the next power of two; a value
	// below 2 makes NewQueue panic.
	InitialCapacity int
	// Ceiling bounds growth for UnboundedDropping/UnboundedBlocking. Zero
	// means unlimited, ignored entirely by bounded variants and by
	// UnboundedUnlimited.
	Ceiling int
}

// DefaultQueueOptions returns the teacher-default shape: a one-megabyte
// bounded, dropping queue, matching this engine's bias toward bounded
// memory over unbounded growth unless a caller opts in.
func DefaultQueueOptions() QueueOptions {
	return QueueOptions{
		Variant:         BoundedDropping,
		InitialCapacity: 1 << 20,
	}
}

// LoggerOptions configures a Logger at creation time. Passed to
// LoggerRegistry.CreateOrGet; ignored on any call after the first for a
// given name.
type LoggerOptions struct {
	// Threshold is the minimum Level a record must carry to be admitted.
	// Records below Threshold never reach the queue.
	Threshold Level
	// Clock selects Tsc, System, or User.
	Clock ClockSource
	// UserClock supplies timestamps when Clock is User. Required in that
	// case; ignored otherwise.
	UserClock UserClock
	// BacktraceCapacity, if non-zero, gives the logger a BacktraceStore of
	// that many records. Zero means backtrace capture is disabled.
	BacktraceCapacity int
	// BacktraceFlushThreshold is the Level at or above which a dispatched
	// record triggers a flush of any buffered backtrace records. Only
	// meaningful when BacktraceCapacity is non-zero.
	BacktraceFlushThreshold Level
}

// DefaultLoggerOptions returns Info threshold, Tsc clock, no backtrace
// capture — the common case for a service's default logger.
func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		Threshold:               Info,
		Clock:                   Tsc,
		BacktraceFlushThreshold: Error,
	}
}

// BackendOptions configures the single backend worker a process runs.
type BackendOptions struct {
	// ThreadName is a label for the backend. Backend does not apply it to
	// its goroutine or to the OS thread name.
	ThreadName string
	// SleepDuration is how long the backend sleeps between drain passes
	// once it observes every queue empty.
	SleepDuration time.Duration
	// EnableYieldWhenIdle makes the backend call runtime.Gosched between
	// SleepDuration naps instead of only sleeping, trading CPU for lower
	// wake latency.
	EnableYieldWhenIdle bool
	// TransitEventBufferInitialCapacity sizes each per-producer
	// TransitBuffer's first bounded segment.
	TransitEventBufferInitialCapacity int
	// TransitEventsSoftLimit caps how many events a single collect call
	// adds to one producer's TransitBuffer: once the buffer reaches this
	// length, the backend stops reading that producer's queue for the
	// rest of the current drain pass and resumes once the buffer has
	// drained below it on a later pass. Zero means no per-pass throttle.
	TransitEventsSoftLimit int
	// TransitEventsHardLimit is the absolute ceiling a producer's
	// TransitBuffer may never cross, regardless of how many passes it
	// takes to drain: the backend refuses to buffer more from that
	// producer until it catches up, applying backpressure at the transit
	// buffer rather than the queue. Zero means unlimited.
	TransitEventsHardLimit int
	// EnableStrictLogTimestampOrder makes the backend sample a wall-clock
	// cutoff once per drain pass and defer any event whose timestamp is
	// still ahead of it, dispatching only from what every producer has
	// already made visible as of that cutoff, at some added latency, so
	// that two producers racing the same instant never dispatch out of
	// timestamp order.
	EnableStrictLogTimestampOrder bool
	// WaitForQueuesToEmptyBeforeExit makes Backend.Stop block until every
	// registered queue has been fully drained, rather than exiting as
	// soon as the drain loop observes the stop signal.
	WaitForQueuesToEmptyBeforeExit bool
	// BackendCPUAffinity, if non-empty, pins the backend goroutine's
	// underlying OS thread to its first entry. Best-effort: a platform
	// without affinity support reports the failure via ErrorNotifier and
	// keeps running unpinned.
	BackendCPUAffinity []int
	// ErrorNotifier receives diagnostic errors. May be nil.
	ErrorNotifier ErrorNotifier
	// RdtscResyncInterval is the resync interval to pass to NewRdtscClock.
	// Backend does not read it: an RdtscClock resyncs on the interval it
	// was constructed with.
	RdtscResyncInterval time.Duration
}

// DefaultBackendOptions returns the teacher-default shape: a short sleep,
// no yield-spin, generous transit limits, relaxed ordering, and a
// half-second rdtsc resync interval.
func DefaultBackendOptions() BackendOptions {
	return BackendOptions{
		ThreadName:                        "falconlog-backend",
		SleepDuration:                      500 * time.Microsecond,
		TransitEventBufferInitialCapacity: 128,
		TransitEventsSoftLimit:            1 << 16,
		TransitEventsHardLimit:            1 << 20,
		RdtscResyncInterval:               500 * time.Millisecond,
	}
}
