// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"encoding/binary"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// boundedQueue is a fixed-capacity byte ring. Based on Lamport's ring
// buffer with cached index optimization, generalized from the teacher's
// fixed-stride slot array to a raw byte buffer with explicit frame
// headers: the producer caches the consumer's read position, and vice
// versa, reducing cross-core cache line traffic.
type boundedQueue struct {
	_          pad
	head       atomix.Uint64 // consumer's read offset, monotonic byte count
	_          pad
	cachedTail uint64 // consumer's cached view of tail
	_          pad
	tail       atomix.Uint64 // producer's write offset, monotonic byte count
	_          pad
	cachedHead uint64 // producer's cached view of head
	_          pad
	buf        []byte
	mask       uint64
	variant    QueueVariant
	dropped    atomix.Uint64

	// pending* describe the region returned by the last Reserve call.
	// Producer-owned, never touched by the consumer.
	pendingStart uint64
	pendingTotal uint64
}

func newBoundedQueue(variant QueueVariant, capacity int) *boundedQueue {
	if capacity < 2 {
		panic("falconlog: capacity must be >= 2")
	}
	n := uint64(roundToPow2(capacity))
	return &boundedQueue{
		buf:     make([]byte, n),
		mask:    n - 1,
		variant: variant,
	}
}

func (q *boundedQueue) Reserve(n int) ([]byte, error) {
	if n <= 0 || n > maxFrameBody {
		panic("falconlog: reserve length out of range")
	}
	total := alignUp(uint64(frameHeaderSize + n))
	if total > uint64(len(q.buf)) {
		if q.variant == BoundedDropping {
			q.dropped.AddAcqRel(1)
		}
		return nil, ErrWouldBlock
	}

	var sw spin.Wait
	for {
		tail := q.tail.LoadRelaxed()
		wrapped := tail & q.mask
		spaceToEnd := uint64(len(q.buf)) - wrapped

		padLen := uint64(0)
		need := total
		if spaceToEnd < total {
			padLen = spaceToEnd
			need = total + padLen
		}

		used := tail - q.cachedHead
		if need > uint64(len(q.buf))-used {
			q.cachedHead = q.head.LoadAcquire()
			used = tail - q.cachedHead
			if need > uint64(len(q.buf))-used {
				if q.variant == BoundedBlocking {
					sw.Once()
					continue
				}
				q.dropped.AddAcqRel(1)
				return nil, ErrWouldBlock
			}
		}

		writeAt := tail
		if padLen > 0 {
			binary.LittleEndian.PutUint32(q.buf[wrapped:wrapped+frameHeaderSize], padFlag|uint32(padLen-frameHeaderSize))
			writeAt = tail + padLen
			wrapped = 0
		}

		binary.LittleEndian.PutUint32(q.buf[wrapped:wrapped+frameHeaderSize], uint32(n))
		q.pendingStart = tail
		q.pendingTotal = need
		_ = writeAt
		body := q.buf[wrapped+frameHeaderSize : wrapped+frameHeaderSize+uint64(n)]
		return body[:n:n], nil
	}
}

func (q *boundedQueue) Commit(n int) {
	if q.pendingTotal == 0 {
		panic("falconlog: Commit without a pending Reserve")
	}
	q.tail.StoreRelease(q.pendingStart + q.pendingTotal)
	q.pendingTotal = 0
}

func (q *boundedQueue) Peek() []byte {
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			return nil
		}
	}
	wrapped := head & q.mask
	avail := q.cachedTail - head
	toEnd := uint64(len(q.buf)) - wrapped
	if avail > toEnd {
		avail = toEnd
	}
	return q.buf[wrapped : wrapped+avail]
}

func (q *boundedQueue) Consume(n int) {
	head := q.head.LoadRelaxed()
	q.head.StoreRelease(head + uint64(n))
}

func (q *boundedQueue) Cap() int { return len(q.buf) }

func (q *boundedQueue) Dropped() uint64 { return q.dropped.LoadAcquire() }

func (q *boundedQueue) Variant() QueueVariant { return q.variant }
