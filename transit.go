// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

// TransitEvent is one queue record after the backend has decoded it but
// before it has been dispatched to a Sink. frameLen is set at decode time
// and is not read by the backend: fillBuffer Consumes each frame from the
// originating queue as soon as it has been decoded, so the producer keeps
// making room for new records even while the backend is still holding
// older ones for timestamp-ordered dispatch.
type TransitEvent struct {
	Source    *ThreadContext
	Kind      EventKind
	Level     Level
	Timestamp uint64
	Meta      *MacroMetadata
	Args      []DecodedArg

	frameLen int
}

// transitSegment is one fixed-capacity array within a TransitBuffer's
// linked list. A segment is never compacted in place; once head reaches
// tail and a next segment exists, the buffer drops the exhausted segment
// entirely rather than memmove-ing remaining entries down.
type transitSegment struct {
	events []TransitEvent
	head   int
	tail   int
	next   *transitSegment
}

func newTransitSegment(capacity int) *transitSegment {
	return &transitSegment{events: make([]TransitEvent, capacity)}
}

func (s *transitSegment) full() bool  { return s.tail == len(s.events) }
func (s *transitSegment) empty() bool { return s.head == s.tail }

// TransitBuffer is the per-producer staging area the backend decodes
// queue records into before dispatch. It starts as a single bounded ring
// (one segment) sized by BackendOptions.TransitEventBufferInitialCapacity
// and grows by appending further same-sized segments to a linked list
// when that ring fills — an unbounded tail of bounded rings, matching the
// original implementation's TransitEventBuffer rather than a single
// reallocating slice, since a decoded TransitEvent is comparatively large
// (it carries a full decoded argument list) and a reallocation would copy
// all of it.
//
// TransitBuffer itself enforces no limit; BackendOptions.
// TransitEventsSoftLimit and TransitEventsHardLimit are enforced by the
// backend's drain loop, which consults Len before deciding whether to
// decode another record into a given producer's buffer this pass.
type TransitBuffer struct {
	segCap int
	first  *transitSegment
	last   *transitSegment
	count  int
}

func newTransitBuffer(initialCapacity int) *TransitBuffer {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	seg := newTransitSegment(initialCapacity)
	return &TransitBuffer{segCap: initialCapacity, first: seg, last: seg}
}

// Len returns the number of events currently buffered.
func (b *TransitBuffer) Len() int { return b.count }

// PushBack appends e, allocating a new segment if the current tail
// segment is full.
func (b *TransitBuffer) PushBack(e TransitEvent) {
	if b.last.full() {
		seg := newTransitSegment(b.segCap)
		b.last.next = seg
		b.last = seg
	}
	b.last.events[b.last.tail] = e
	b.last.tail++
	b.count++
}

// Front returns the oldest buffered event without removing it.
func (b *TransitBuffer) Front() (TransitEvent, bool) {
	for b.first.empty() && b.first.next != nil {
		b.first = b.first.next
	}
	if b.first.empty() {
		return TransitEvent{}, false
	}
	return b.first.events[b.first.head], true
}

// PopFront removes the oldest buffered event.
func (b *TransitBuffer) PopFront() {
	if b.first.empty() {
		return
	}
	b.first.events[b.first.head] = TransitEvent{}
	b.first.head++
	b.count--
	for b.first.empty() && b.first.next != nil {
		b.first = b.first.next
	}
}
