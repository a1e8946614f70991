// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import "unsafe"

// QueueVariant selects the reserve-failure policy and growth behavior of a
// [Queue]. See [NewQueue].
type QueueVariant uint8

const (
	// BoundedDropping never grows. A reserve that cannot fit increments the
	// queue's dropped counter and returns ErrWouldBlock.
	BoundedDropping QueueVariant = iota
	// BoundedBlocking never grows. A reserve that cannot fit spins with
	// pause hints until space is available.
	BoundedBlocking
	// UnboundedDropping grows by doubling up to an optional ceiling; once
	// the ceiling is reached it behaves like BoundedDropping.
	UnboundedDropping
	// UnboundedBlocking grows by doubling up to an optional ceiling; once
	// the ceiling is reached it behaves like BoundedBlocking.
	UnboundedBlocking
	// UnboundedUnlimited grows by doubling with no ceiling. Reserve never
	// fails.
	UnboundedUnlimited
)

// String returns the variant's name, e.g. for inclusion in diagnostic
// records and the error-notifier.
func (v QueueVariant) String() string {
	switch v {
	case BoundedDropping:
		return "BoundedDropping"
	case BoundedBlocking:
		return "BoundedBlocking"
	case UnboundedDropping:
		return "UnboundedDropping"
	case UnboundedBlocking:
		return "UnboundedBlocking"
	case UnboundedUnlimited:
		return "UnboundedUnlimited"
	default:
		return "QueueVariant(?)"
	}
}

func (v QueueVariant) bounded() bool {
	return v == BoundedDropping || v == BoundedBlocking
}

func (v QueueVariant) blocking() bool {
	return v == BoundedBlocking || v == UnboundedBlocking
}

// Queue is the byte-oriented single-producer single-consumer ring shared by
// exactly one ThreadContext and the backend. Unlike the generic Producer/
// Consumer pair this package's teacher exposes, a Queue carries an
// undifferentiated byte stream: the frontend frames its own records
// (size-prefixed) and the backend re-frames them on the way out. This
// matches the wire contract a compiled-in macro call site needs: the
// producer knows the exact byte count to reserve before it writes a single
// field.
//
// Reserve/Commit are producer-only. Peek/Consume are consumer-only. Calling
// either pair from more than one goroutine concurrently is undefined
// behavior, identical in spirit to the teacher's SPSC constraint.
type Queue interface {
	// Reserve returns a writable region of exactly n bytes, or
	// ErrWouldBlock if the region does not fit (Dropping variants, or a
	// growable variant pinned at its ceiling). BoundedBlocking and
	// UnboundedBlocking-at-ceiling spin instead of returning
	// ErrWouldBlock, except that BoundedBlocking returns ErrWouldBlock for
	// a region larger than its whole buffer. UnboundedUnlimited and UnboundedDropping/
	// UnboundedBlocking below their ceiling grow rather than fail.
	//
	// The returned slice is only valid until the next Reserve or Commit
	// call on this queue.
	Reserve(n int) ([]byte, error)
	// Commit publishes the n bytes written into the region returned by the
	// immediately preceding Reserve call. n must equal the length passed
	// to Reserve.
	Commit(n int)
	// Peek returns a read-only view of the currently committed bytes
	// starting at the read position, and its length. The returned slice
	// never spans the physical end of the backing buffer — call Peek again
	// after Consume to continue past a wrap point. An empty slice means
	// the queue has nothing new to offer right now.
	Peek() []byte
	// Consume advances the read position past n bytes previously returned
	// by Peek.
	Consume(n int)
	// Cap returns the queue's current capacity in bytes. For growable
	// variants this can increase over the queue's lifetime.
	Cap() int
	// Dropped returns the number of reserves that failed to fit and were
	// silently dropped (Dropping variants only; always zero otherwise).
	Dropped() uint64
	// Variant reports the policy this queue was constructed with.
	Variant() QueueVariant
}

// NewQueue creates a Queue of the given variant and initial capacity
// (rounded up to the next power of two; a capacity below 2 panics).
// ceiling bounds growth
// for UnboundedDropping and UnboundedBlocking; it is ignored by bounded
// variants and by UnboundedUnlimited (which never stops growing). A
// ceiling of 0 means "no ceiling", equivalent to UnboundedUnlimited's
// growth behavior but retaining the Dropping/Blocking policy once no
// larger buffer can be allocated (practically: until the allocator fails).
func NewQueue(variant QueueVariant, capacity int, ceiling int) Queue {
	if variant.bounded() {
		return newBoundedQueue(variant, capacity)
	}
	return newGrowableQueue(variant, capacity, ceiling)
}

// Record framing. Every write to the ring is a frame: a 4-byte little
// endian size header, possibly tagged as padding, followed by the header's
// declared number of body bytes, rounded up to frameAlign so that every
// frame boundary — and therefore every wrapped offset a producer can ever
// land on — is a multiple of frameAlign. That invariant is what guarantees
// a pad frame's header always has somewhere to live: the leftover space
// before a physical wrap is either zero or at least frameAlign bytes.
const (
	frameHeaderSize = 4
	frameAlign      = 8

	// padFlag marks a frame as padding: the backend skips frameHeaderSize
	// plus the low bits of the header and continues reading from there. A
	// genuine record's size can never set this bit — sizes above 2^31
	// bytes are rejected by Reserve long before framing.
	padFlag         = uint32(1) << 31
	frameSizeMask   = padFlag - 1
	maxFrameBody    = 1 << 30 // comfortably under frameSizeMask
)

func alignUp(n uint64) uint64 {
	return (n + frameAlign - 1) &^ (frameAlign - 1)
}

// roundToPow2 rounds n up to the next power of 2, minimum 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing between the
// producer-owned and consumer-owned fields of a ring.
type pad [64]byte

// ptrSize is the size of a pointer in bytes, used to size padding after a
// pointer-shaped field.
const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// padPtr pads out a cache line after a pointer-sized field.
type padPtr [64 - ptrSize]byte
