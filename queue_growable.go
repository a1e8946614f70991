// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"encoding/binary"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// ringView is the (buffer, mask) pair the consumer dereferences through an
// atomic pointer. head/tail themselves are never reset across a grow —
// only the backing array and its mask change. That is what makes growth
// safe without coordinating with a concurrently-draining consumer: any
// byte at logical offset X keeps meaning the same thing regardless of
// which ringView currently backs it, so a consumer mid-Peek on a stale
// view still reads correct, unmodified data; the next Peek call reloads
// the view and carries on from the same head it already had.
type ringView struct {
	buf  []byte
	mask uint64
}

// growableQueue is a byte ring that grows by doubling when Reserve would
// otherwise fail, up to an optional ceiling. Grounded on the same cached-
// index technique as boundedQueue; the difference is entirely in what
// happens when the cached check fails twice in a row.
type growableQueue struct {
	_          pad
	head       atomix.Uint64
	_          pad
	cachedTail uint64
	_          pad
	tail       atomix.Uint64
	_          pad
	cachedHead uint64
	_          pad
	view       atomic.Pointer[ringView]
	variant    QueueVariant
	ceiling    uint64 // 0 means no ceiling
	dropped    atomix.Uint64

	// curBuf/curMask mirror view.Load() for the producer, which is the
	// sole writer of both and so never needs to go through the atomic
	// pointer to address its own writes.
	curBuf  []byte
	curMask uint64

	pendingStart uint64
	pendingTotal uint64
}

func newGrowableQueue(variant QueueVariant, capacity, ceiling int) *growableQueue {
	if capacity < 2 {
		panic("falconlog: capacity must be >= 2")
	}
	n := uint64(roundToPow2(capacity))
	q := &growableQueue{
		variant: variant,
		curBuf:  make([]byte, n),
		curMask: n - 1,
	}
	if ceiling > 0 {
		q.ceiling = uint64(roundToPow2(ceiling))
	}
	q.view.Store(&ringView{buf: q.curBuf, mask: q.curMask})
	return q
}

func (q *growableQueue) Reserve(n int) ([]byte, error) {
	if n <= 0 || n > maxFrameBody {
		panic("falconlog: reserve length out of range")
	}
	total := alignUp(uint64(frameHeaderSize + n))

	var sw spin.Wait
	for {
		capacity := q.curMask + 1
		if total > capacity {
			if q.grow(total) {
				continue
			}
			if q.variant == UnboundedBlocking {
				sw.Once()
				continue
			}
			q.dropped.AddAcqRel(1)
			return nil, ErrWouldBlock
		}

		tail := q.tail.LoadRelaxed()
		wrapped := tail & q.curMask
		spaceToEnd := capacity - wrapped

		padLen := uint64(0)
		need := total
		if spaceToEnd < total {
			padLen = spaceToEnd
			need = total + padLen
		}

		used := tail - q.cachedHead
		if need > capacity-used {
			q.cachedHead = q.head.LoadAcquire()
			used = tail - q.cachedHead
			if need > capacity-used {
				if q.grow(total) {
					continue
				}
				if q.variant == UnboundedBlocking {
					sw.Once()
					continue
				}
				q.dropped.AddAcqRel(1)
				return nil, ErrWouldBlock
			}
		}

		writeAt := tail
		if padLen > 0 {
			binary.LittleEndian.PutUint32(q.curBuf[wrapped:wrapped+frameHeaderSize], padFlag|uint32(padLen-frameHeaderSize))
			writeAt = tail + padLen
			wrapped = 0
		}

		binary.LittleEndian.PutUint32(q.curBuf[wrapped:wrapped+frameHeaderSize], uint32(n))
		q.pendingStart = tail
		q.pendingTotal = need
		_ = writeAt
		body := q.curBuf[wrapped+frameHeaderSize : wrapped+frameHeaderSize+uint64(n)]
		return body[:n:n], nil
	}
}

// grow doubles the buffer (capped at the ceiling, if any, and stretched
// further if a single doubling still can't fit minTotal) and republishes
// the new view. Returns false if the ceiling already forbids growing any
// further, meaning the caller must fall back to its Dropping/Blocking
// policy.
func (q *growableQueue) grow(minTotal uint64) bool {
	capacity := q.curMask + 1
	newCap := capacity * 2
	for newCap < minTotal {
		newCap *= 2
	}
	if q.variant != UnboundedUnlimited && q.ceiling != 0 {
		if capacity >= q.ceiling {
			return false
		}
		if newCap > q.ceiling {
			newCap = q.ceiling
			if newCap < minTotal {
				return false
			}
		}
	}

	newBuf := make([]byte, newCap)
	newMask := newCap - 1

	// Snapshot head with an acquire load; a concurrently-draining
	// consumer may advance head further while this copy runs, but that
	// only means some already-consumed bytes get copied redundantly —
	// head never moves backward, so nothing gets re-read.
	head := q.head.LoadAcquire()
	tail := q.tail.LoadRelaxed()
	for off := head; off != tail; off++ {
		newBuf[off&newMask] = q.curBuf[off&q.curMask]
	}

	q.curBuf = newBuf
	q.curMask = newMask
	q.cachedHead = head
	q.view.Store(&ringView{buf: newBuf, mask: newMask})
	return true
}

func (q *growableQueue) Commit(n int) {
	if q.pendingTotal == 0 {
		panic("falconlog: Commit without a pending Reserve")
	}
	q.tail.StoreRelease(q.pendingStart + q.pendingTotal)
	q.pendingTotal = 0
}

func (q *growableQueue) Peek() []byte {
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			return nil
		}
	}
	v := q.view.Load()
	wrapped := head & v.mask
	avail := q.cachedTail - head
	toEnd := (v.mask + 1) - wrapped
	if avail > toEnd {
		avail = toEnd
	}
	return v.buf[wrapped : wrapped+avail]
}

func (q *growableQueue) Consume(n int) {
	head := q.head.LoadRelaxed()
	q.head.StoreRelease(head + uint64(n))
}

func (q *growableQueue) Cap() int { return len(q.view.Load().buf) }

func (q *growableQueue) Dropped() uint64 { return q.dropped.LoadAcquire() }

func (q *growableQueue) Variant() QueueVariant { return q.variant }
