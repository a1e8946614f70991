// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"encoding/binary"
	"runtime"
	"time"

	"code.hybscloud.com/atomix"
)

// activeProducer pairs a ThreadContext with the TransitBuffer the backend
// decodes its queue records into. Owned exclusively by the backend
// goroutine; never touched by a producer.
type activeProducer struct {
	tc     *ThreadContext
	buffer *TransitBuffer

	// reportedDropped is the last value of tc.Dropped() a synthetic
	// warning record was emitted for. The underlying counters are
	// monotonic and never reset themselves; this is the backend's own
	// baseline so each advance is reported exactly once.
	reportedDropped uint64
}

// droppedRecordMeta is the call-site descriptor for the synthetic warning
// the backend dispatches when a producer's dropped-record counter
// advances. It never travels through a queue, so it need not be a
// package-level var for GC-safety reasons — it is one anyway, to match
// every other MacroMetadata's shape as a stable, reusable descriptor.
var droppedRecordMeta = MacroMetadata{
	Function: "falconlog/backend",
	Format:   "dropped records",
	Level:    Warning,
}

// Backend is the single drain loop that pulls records off every
// registered ThreadContext's queue, decodes them, orders them, and hands
// them to each record's Logger's sinks. Exactly one Backend may run per
// process — see acquireProcessLock.
type Backend struct {
	opts     BackendOptions
	registry *ThreadContextRegistry
	clock    *RdtscClock

	active []*activeProducer

	stop    atomix.Bool
	stopped chan struct{}

	lock *processLock
}

// NewBackend constructs a Backend. clock may be nil. The backend does not
// convert timestamps with it: a Tsc-source record is converted with the
// RdtscClock of the LoggerRegistry that created its Logger, and is left
// as the raw counter sample when that clock is nil.
func NewBackend(opts BackendOptions, registry *ThreadContextRegistry, clock *RdtscClock) *Backend {
	return &Backend{
		opts:     opts,
		registry: registry,
		clock:    clock,
		stopped:  make(chan struct{}),
	}
}

// Start acquires the process-singleton lock and launches the drain loop
// in a new goroutine. Returns an error without starting anything if
// another Backend already holds the lock.
func (b *Backend) Start() error {
	lock, err := acquireProcessLock()
	if err != nil {
		return err
	}
	b.lock = lock
	go b.run()
	return nil
}

// Stop signals the drain loop to exit and waits for it to do so. If
// BackendOptions.WaitForQueuesToEmptyBeforeExit is set, the loop keeps
// draining until every registered queue and transit buffer is empty
// before it actually returns.
func (b *Backend) Stop() {
	b.stop.StoreRelease(true)
	<-b.stopped
}

func (b *Backend) run() {
	defer close(b.stopped)
	defer b.lock.Release()

	if len(b.opts.BackendCPUAffinity) > 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := setThreadAffinity(b.opts.BackendCPUAffinity); err != nil {
			b.notify(wrapFatalError(ErrCodeConfiguration, "backend cpu affinity", err))
		}
	}

	for {
		didWork := b.drainOnce()

		if b.stop.LoadAcquire() {
			if !b.opts.WaitForQueuesToEmptyBeforeExit || !b.hasPending() {
				return
			}
			continue
		}

		if !didWork {
			if b.opts.EnableYieldWhenIdle {
				runtime.Gosched()
			}
			if b.opts.SleepDuration > 0 {
				time.Sleep(b.opts.SleepDuration)
			}
		}
	}
}

// noCutoff disables the now_cutoff admission check for relaxed ordering,
// where no cross-producer ordering guarantee is promised and every
// already-collected event is eligible for dispatch immediately.
const noCutoff = ^uint64(0)

// drainOnce runs one pass of the algorithm: refresh the active-producer
// cache if the registry changed, pull newly committed records into each
// producer's transit buffer, pick the next record to dispatch, dispatch
// it, notice any producer's dropped-record counter advancing, and
// reclaim any producer that has shut down and fully drained.
//
// EnableStrictLogTimestampOrder controls how "pick the next record" is
// done. When set, a single now_cutoff is sampled from the wall clock
// before collection; only events with timestamp <= cutoff are collected
// or considered for dispatch this pass, and every eligible event is
// dispatched in strict global timestamp order (ties broken by the
// smaller thread id) before the pass ends. This bounds the race where
// producer A commits T1 before producer B commits T2>T1 but the
// backend's view of A's commit has not yet propagated when B's has:
// without the cutoff, B's T2 could dispatch before A's T1 is even
// collected. When unset, each producer dispatches its own oldest record
// in turn with no cutoff, which is both cheaper and lower-latency but
// gives no cross-producer ordering guarantee.
func (b *Backend) drainOnce() bool {
	if b.registry.Dirty() {
		b.refreshActive()
	}

	didWork := false

	if b.opts.EnableStrictLogTimestampOrder {
		cutoff := (systemNow() / 1000) * 1000 // microsecond resolution

		for _, ap := range b.active {
			if b.fillBuffer(ap, cutoff) {
				didWork = true
			}
		}
		for {
			ev, ap, ok := b.selectMinimum(cutoff)
			if !ok {
				break
			}
			b.dispatch(ev)
			ap.buffer.PopFront()
			didWork = true
		}
	} else {
		for _, ap := range b.active {
			if b.fillBuffer(ap, noCutoff) {
				didWork = true
			}
			if ev, ok := ap.buffer.Front(); ok {
				b.dispatch(ev)
				ap.buffer.PopFront()
				didWork = true
			}
		}
	}

	b.checkDropped()
	b.reapFinished()
	return didWork
}

func (b *Backend) refreshActive() {
	snap := b.registry.Snapshot()
	existing := make(map[*ThreadContext]*activeProducer, len(b.active))
	for _, ap := range b.active {
		existing[ap.tc] = ap
	}

	next := make([]*activeProducer, 0, len(snap))
	for _, tc := range snap {
		if ap, ok := existing[tc]; ok {
			next = append(next, ap)
			continue
		}
		initialCap := b.opts.TransitEventBufferInitialCapacity
		next = append(next, &activeProducer{tc: tc, buffer: newTransitBuffer(initialCap)})
	}
	b.active = next
}

// collectionLimit returns the buffer length at which fillBuffer stops
// collecting for a producer this pass: TransitEventsSoftLimit throttles
// a single collect call, TransitEventsHardLimit is the absolute ceiling
// a buffer may never cross regardless of how many passes it takes to
// drain. When both are set, the tighter of the two wins; zero means
// unlimited for that particular knob.
func (b *Backend) collectionLimit() int {
	soft, hard := b.opts.TransitEventsSoftLimit, b.opts.TransitEventsHardLimit
	switch {
	case soft > 0 && hard > 0:
		if soft < hard {
			return soft
		}
		return hard
	case soft > 0:
		return soft
	default:
		return hard
	}
}

// fillBuffer decodes complete frames currently available from ap's queue
// into ap's transit buffer. Collection for this call stops when the
// queue is empty, the buffer reaches collectionLimit, or the next
// record's converted timestamp exceeds cutoff — in which case that frame
// and everything after it is left queued for a later pass, once cutoff
// has moved forward. Pass noCutoff to disable the timestamp bound.
// Returns whether it decoded anything.
func (b *Backend) fillBuffer(ap *activeProducer, cutoff uint64) bool {
	did := false
	limit := b.collectionLimit()
	for limit <= 0 || ap.buffer.Len() < limit {
		peeked := ap.tc.Queue.Peek()
		if len(peeked) == 0 {
			return did
		}

		off := 0
		for off+frameHeaderSize <= len(peeked) {
			header := binary.LittleEndian.Uint32(peeked[off : off+frameHeaderSize])

			if header&padFlag != 0 {
				padLen := int(header & frameSizeMask)
				off += int(alignUp(uint64(frameHeaderSize + padLen)))
				continue
			}

			bodyLen := int(header & frameSizeMask)
			if bodyLen == 0 || bodyLen > ap.tc.Queue.Cap() {
				b.notify(newFatalError(ErrCodeCorruptFrame, "queue size header is zero or implausibly large"))
				ap.tc.Queue.Consume(off)
				return did
			}

			frameTotal := int(alignUp(uint64(frameHeaderSize + bodyLen)))
			if off+frameTotal > len(peeked) {
				// A fully committed frame never straddles what Peek can
				// return in one call (see queue.go's framing invariant);
				// reaching here means a genuine bug, not a benign partial
				// read. Stop rather than decode a torn frame.
				b.notify(newFatalError(ErrCodeCorruptFrame, "frame extends past committed data"))
				ap.tc.Queue.Consume(off)
				return did
			}

			body := peeked[off+frameHeaderSize : off+frameHeaderSize+bodyLen]
			ev, ok := b.decodeEvent(ap.tc, body)
			if ok && ev.Timestamp > cutoff {
				ap.tc.Queue.Consume(off)
				return did
			}
			if ok {
				ap.buffer.PushBack(ev)
				did = true
			}

			off += frameTotal
			if limit > 0 && ap.buffer.Len() >= limit {
				ap.tc.Queue.Consume(off)
				return did
			}
		}

		ap.tc.Queue.Consume(off)
		if off == 0 {
			return did
		}
	}
	return did
}

func (b *Backend) decodeEvent(tc *ThreadContext, body []byte) (TransitEvent, bool) {
	kind, level, tsSample, meta, err := decodeRecordHeader(body)
	if err != nil {
		b.notify(err)
		return TransitEvent{}, false
	}

	var args []DecodedArg
	if argPayload := body[recordHeaderSize:]; len(argPayload) > 0 {
		args, err = decodeArgs(argPayload)
		if err != nil {
			b.notify(err)
			return TransitEvent{}, false
		}
	}

	// Only EventLog records carry a sample from the logger's clock source;
	// control events are stamped with systemNow by the frontend.
	ts := tsSample
	if lg := tc.Logger(); kind == EventLog && lg != nil && lg.source == Tsc && lg.clock != nil {
		ts = lg.clock.Now(tsSample)
	}

	return TransitEvent{
		Source:    tc,
		Kind:      kind,
		Level:     level,
		Timestamp: ts,
		Meta:      meta,
		Args:      args,
		frameLen:  len(body) + recordHeaderSize,
	}, true
}

// selectMinimum picks the front event with the smallest timestamp among
// every active producer whose front event is eligible (timestamp <=
// cutoff). Ties prefer the producer with the smaller thread id, making
// the choice deterministic and stable across passes.
func (b *Backend) selectMinimum(cutoff uint64) (TransitEvent, *activeProducer, bool) {
	var best TransitEvent
	var bestAp *activeProducer
	found := false
	for _, ap := range b.active {
		ev, ok := ap.buffer.Front()
		if !ok || ev.Timestamp > cutoff {
			continue
		}
		if !found {
			best, bestAp, found = ev, ap, true
			continue
		}
		if ev.Timestamp < best.Timestamp ||
			(ev.Timestamp == best.Timestamp && ap.tc.ID() < bestAp.tc.ID()) {
			best, bestAp = ev, ap
		}
	}
	return best, bestAp, found
}

// checkDropped emits a synthetic warning record for every active
// producer whose dropped-record counter has advanced since the last
// time this was checked, then rebases the baseline so the same drop
// isn't reported twice.
func (b *Backend) checkDropped() {
	for _, ap := range b.active {
		current := ap.tc.Dropped()
		if current <= ap.reportedDropped {
			continue
		}
		delta := current - ap.reportedDropped
		ap.reportedDropped = current

		lg := ap.tc.Logger()
		if lg == nil || !lg.Valid() {
			continue
		}
		b.dispatchRecord(lg, ap.tc.ID(), Warning, systemNow(), &droppedRecordMeta,
			[]DecodedArg{{Name: "count", Value: delta}})
	}
}

func (b *Backend) dispatch(ev TransitEvent) {
	lg := ev.Source.Logger()
	if lg == nil || !lg.Valid() {
		return
	}

	switch ev.Kind {
	case EventInitBacktrace:
		capacity := int(argUint(ev.Args, "capacity"))
		if lg.backtrace == nil {
			lg.backtrace = newBacktraceStore(capacity)
			return
		}
		if discarded := lg.backtrace.Resize(capacity); discarded > 0 {
			b.notify(newFatalError(ErrCodeConfiguration, "backtrace resize discarded buffered records"))
		}
	case EventFlushBacktrace:
		if lg.backtrace != nil {
			lg.backtrace.FlushTo(func(level Level, ts uint64, meta *MacroMetadata, args []DecodedArg) {
				b.dispatchRecord(lg, ev.Source.ID(), level, ts, meta, args)
			})
		}
	case EventFlush:
		for _, s := range lg.sinks {
			if err := s.Flush(); err != nil {
				b.notify(err)
			}
		}
		lg.completeFlush(argUint(ev.Args, "flush_id"))
	case EventLog:
		if ev.Level == Backtrace {
			if lg.backtrace != nil {
				lg.backtrace.Insert(ev.Level, ev.Timestamp, ev.Meta, ev.Args)
			}
			return
		}
		if lg.backtrace != nil && ev.Level >= lg.BacktraceFlushThreshold() {
			lg.backtrace.FlushTo(func(level Level, ts uint64, meta *MacroMetadata, args []DecodedArg) {
				b.dispatchRecord(lg, ev.Source.ID(), level, ts, meta, args)
			})
		}
		b.dispatchRecord(lg, ev.Source.ID(), ev.Level, ev.Timestamp, ev.Meta, ev.Args)
	}
}

func (b *Backend) dispatchRecord(lg *Logger, threadID uint64, level Level, ts uint64, meta *MacroMetadata, args []DecodedArg) {
	rec := Record{
		Meta:      meta,
		Timestamp: time.Unix(0, int64(ts)),
		Logger:    lg.Name(),
		ThreadID:  threadID,
		Args:      args,
	}
	line := lg.formatter.Format(rec)
	for _, s := range lg.sinks {
		if err := s.Write(line); err != nil {
			b.notify(err)
		}
	}
}

func argUint(args []DecodedArg, name string) uint64 {
	for _, a := range args {
		if a.Name == name {
			if v, ok := a.Value.(uint64); ok {
				return v
			}
		}
	}
	return 0
}

func (b *Backend) notify(err error) {
	if b.opts.ErrorNotifier != nil {
		b.opts.ErrorNotifier(err)
	}
}

func (b *Backend) reapFinished() {
	kept := b.active[:0]
	for _, ap := range b.active {
		if ap.tc.ShuttingDown() && ap.buffer.Len() == 0 && len(ap.tc.Queue.Peek()) == 0 {
			b.registry.Remove(ap.tc)
			continue
		}
		kept = append(kept, ap)
	}
	b.active = kept
}

func (b *Backend) hasPending() bool {
	for _, ap := range b.active {
		if ap.buffer.Len() > 0 || len(ap.tc.Queue.Peek()) > 0 {
			return true
		}
	}
	return false
}
