// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// Logger is a named, independently configurable emission point. Producer
// goroutines never talk to a Logger's queue directly — they hold a
// ThreadContext (see NewProducer) and pass it to Log. A Logger's
// threshold, and the level at which it flushes a buffered backtrace, are
// both mutable at runtime via SetThreshold/SetBacktraceFlushThreshold: any
// producer goroutine may observe a change on its very next Log call,
// which is why both are stored behind atomix rather than plain fields.
type Logger struct {
	name     string
	registry *ThreadContextRegistry
	clock    *RdtscClock

	threshold atomix.Uint64 // Level, widened for atomix.Uint64
	source    ClockSource
	userClock UserClock

	sinks     []Sink
	formatter Formatter

	valid atomix.Bool

	backtrace          *BacktraceStore
	backtraceThreshold atomix.Uint64 // Level

	flushSeq   atomix.Uint64
	flushMu    sync.Mutex
	flushChans map[uint64]chan struct{}
}

func newLogger(name string, opts LoggerOptions, registry *ThreadContextRegistry, clock *RdtscClock) *Logger {
	lg := &Logger{
		name:      name,
		registry:  registry,
		clock:     clock,
		source:    opts.Clock,
		userClock: opts.UserClock,
		formatter: NewTextFormatter(),
		flushChans: make(map[uint64]chan struct{}),
	}
	lg.threshold.StoreRelease(uint64(opts.Threshold))
	lg.backtraceThreshold.StoreRelease(uint64(opts.BacktraceFlushThreshold))
	lg.valid.StoreRelease(true)
	if opts.BacktraceCapacity > 0 {
		lg.backtrace = newBacktraceStore(opts.BacktraceCapacity)
	}
	return lg
}

// Name returns the logger's registered name.
func (lg *Logger) Name() string { return lg.name }

// Threshold returns the current minimum admitted Level.
func (lg *Logger) Threshold() Level {
	return Level(lg.threshold.LoadAcquire())
}

// SetThreshold changes the minimum admitted Level. Safe to call
// concurrently with Log from any number of producer goroutines.
func (lg *Logger) SetThreshold(level Level) {
	lg.threshold.StoreRelease(uint64(level))
}

// BacktraceFlushThreshold returns the Level at or above which a
// dispatched record flushes any buffered backtrace records.
func (lg *Logger) BacktraceFlushThreshold() Level {
	return Level(lg.backtraceThreshold.LoadAcquire())
}

// SetBacktraceFlushThreshold changes the flush-triggering Level.
func (lg *Logger) SetBacktraceFlushThreshold(level Level) {
	lg.backtraceThreshold.StoreRelease(uint64(level))
}

// AddSink attaches a Sink the backend dispatches this logger's records to.
// Not safe to call concurrently with backend dispatch; call before the
// backend starts.
func (lg *Logger) AddSink(s Sink) {
	lg.sinks = append(lg.sinks, s)
}

// SetFormatter replaces the logger's Formatter. Same concurrency caveat
// as AddSink.
func (lg *Logger) SetFormatter(f Formatter) {
	lg.formatter = f
}

// Valid reports whether this Logger is still registered. A Logger removed
// via LoggerRegistry.Remove stays Valid()==false forever; producer
// goroutines holding a stale reference see every subsequent Log call
// dropped rather than panicking or writing into a reclaimed backend.
func (lg *Logger) Valid() bool {
	return lg.valid.LoadAcquire()
}

func (lg *Logger) invalidate() {
	lg.valid.StoreRelease(false)
}

// NewProducer registers a new ThreadContext for the calling goroutine.
// Call once per producer goroutine (typically into a goroutine-local
// variable near the top of the goroutine's body — Go has no implicit
// thread-local storage for a macro-driven call site to hook into, unlike
// the original implementation's per-thread singleton) and reuse the
// returned handle for every subsequent Log call from that goroutine.
func (lg *Logger) NewProducer(name string, qopts QueueOptions) *ThreadContext {
	q := NewQueue(qopts.Variant, qopts.InitialCapacity, qopts.Ceiling)
	tc := lg.registry.Register(name, q)
	tc.setLogger(lg)
	return tc
}
