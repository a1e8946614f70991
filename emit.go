// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"encoding/binary"
	"unsafe"
)

// recordHeaderSize is the fixed prefix every queue record carries ahead
// of its encoded arguments: 1-byte EventKind, 1-byte Level, 8-byte raw
// clock sample, 8-byte payload pointer whose meaning depends on Kind.
//
// For EventLog the pointer is the call site's *MacroMetadata, traveling
// as a raw address rather than a copy because frontend and backend share
// one address space — the backend casts the address straight back,
// exactly like an ordinary pointer read would. Callers must keep every
// MacroMetadata they pass to Log reachable for the process lifetime (a
// package-level var, as metadata.go documents) so the garbage collector
// never reclaims it out from under a pending record.
//
// Control events (EventInitBacktrace, EventFlushBacktrace, EventFlush)
// never carry a pointer in this field — whatever small payload they need
// (a capacity, a flush sequence number) rides as an ordinary Arg instead,
// so nothing about their lifetime depends on an untracked address
// surviving in queue memory.
const recordHeaderSize = 1 + 1 + 8 + 8

// Log enqueues one record for meta's call site on tc's queue, unless
// meta.Level is below the logger's current threshold (checked with a
// single atomic load, the inlined fast path the original implementation's
// macro performs before touching the queue at all) or the logger has been
// removed from its registry.
//
// Records at the Backtrace pseudo-level, and every control event kind,
// bypass the threshold check — they are always enqueued. The backend
// routes Backtrace-level records into the logger's BacktraceStore instead
// of dispatching them.
func (lg *Logger) Log(tc *ThreadContext, meta *MacroMetadata, args ...Arg) error {
	if !lg.valid.LoadAcquire() {
		tc.countDropped()
		return ErrWouldBlock
	}
	if meta.Kind == EventLog && meta.Level != Backtrace && meta.Level < lg.Threshold() {
		return nil
	}

	var tsSample uint64
	switch lg.source {
	case Tsc:
		tsSample = readTSC()
	case System:
		tsSample = systemNow()
	case User:
		if lg.userClock != nil {
			tsSample = lg.userClock.Now()
		}
	}

	return lg.enqueue(tc, meta.Kind, meta.Level, tsSample, unsafe.Pointer(meta), args)
}

// InitBacktrace (re)configures this logger's BacktraceStore to hold
// capacity records, creating it if it does not yet exist. Backend-applied
// asynchronously, like every other record — callers that need the resize
// to have taken effect should follow with Flush.
func (lg *Logger) InitBacktrace(tc *ThreadContext, capacity int) error {
	return lg.enqueue(tc, EventInitBacktrace, Trace, systemNow(), nil, []Arg{Uint("capacity", uint64(capacity))})
}

// FlushBacktrace asks the backend to dispatch every record currently
// buffered in this logger's BacktraceStore, oldest first, regardless of
// BacktraceFlushThreshold.
func (lg *Logger) FlushBacktrace(tc *ThreadContext) error {
	return lg.enqueue(tc, EventFlushBacktrace, Trace, systemNow(), nil, nil)
}

// Flush enqueues a barrier event and returns a channel the backend closes
// once every record tc enqueued before the barrier has been dispatched.
// Because a single queue is FIFO, it is enough for the backend to process
// the barrier in its normal position in that queue's stream — no
// cross-queue coordination is needed even under
// EnableStrictLogTimestampOrder, since the barrier only promises ordering
// relative to tc's own prior records.
func (lg *Logger) Flush(tc *ThreadContext) (<-chan struct{}, error) {
	id := lg.flushSeq.AddAcqRel(1)
	done := make(chan struct{})

	lg.flushMu.Lock()
	lg.flushChans[id] = done
	lg.flushMu.Unlock()

	if err := lg.enqueue(tc, EventFlush, Trace, systemNow(), nil, []Arg{Uint("flush_id", id)}); err != nil {
		lg.flushMu.Lock()
		delete(lg.flushChans, id)
		lg.flushMu.Unlock()
		return nil, err
	}
	return done, nil
}

func (lg *Logger) completeFlush(id uint64) {
	lg.flushMu.Lock()
	ch, ok := lg.flushChans[id]
	if ok {
		delete(lg.flushChans, id)
	}
	lg.flushMu.Unlock()
	if ok {
		close(ch)
	}
}

func (lg *Logger) enqueue(tc *ThreadContext, kind EventKind, level Level, tsSample uint64, ptr unsafe.Pointer, args []Arg) error {
	payloadLen := argsEncodedSize(args)
	total := recordHeaderSize + payloadLen

	buf, err := tc.Queue.Reserve(total)
	if err != nil {
		return err
	}

	buf[0] = byte(kind)
	buf[1] = byte(level)
	binary.LittleEndian.PutUint64(buf[2:10], tsSample)
	binary.LittleEndian.PutUint64(buf[10:18], uint64(uintptr(ptr)))
	encodeArgs(buf[recordHeaderSize:], args)

	tc.Queue.Commit(total)
	return nil
}

// decodeRecordHeader reads back what enqueue wrote: the event kind,
// level, raw clock sample, and (for EventLog only) the originating
// MacroMetadata.
func decodeRecordHeader(buf []byte) (kind EventKind, level Level, tsSample uint64, meta *MacroMetadata, err error) {
	if len(buf) < recordHeaderSize {
		return 0, 0, 0, nil, newFatalError(ErrCodeCorruptFrame, "record header truncated")
	}
	kind = EventKind(buf[0])
	level = Level(buf[1])
	tsSample = binary.LittleEndian.Uint64(buf[2:10])
	addr := uintptr(binary.LittleEndian.Uint64(buf[10:18]))
	if kind == EventLog {
		meta = (*MacroMetadata)(unsafe.Pointer(addr))
	}
	return kind, level, tsSample, meta, nil
}
