// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRecord(t *testing.T, q Queue, payload string) error {
	t.Helper()
	buf, err := q.Reserve(len(payload))
	if err != nil {
		return err
	}
	copy(buf, payload)
	q.Commit(len(payload))
	return nil
}

func readRecord(q Queue) (string, bool) {
	buf := q.Peek()
	if len(buf) == 0 {
		return "", false
	}
	off := 0
	for off+frameHeaderSize <= len(buf) {
		header := leUint32(buf[off : off+frameHeaderSize])
		if header&padFlag != 0 {
			padLen := int(header & frameSizeMask)
			off += int(alignUp(uint64(frameHeaderSize + padLen)))
			continue
		}
		bodyLen := int(header & frameSizeMask)
		frameTotal := int(alignUp(uint64(frameHeaderSize + bodyLen)))
		body := string(buf[off+frameHeaderSize : off+frameHeaderSize+bodyLen])
		q.Consume(off + frameTotal)
		return body, true
	}
	return "", false
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func TestBoundedQueueRoundTrip(t *testing.T) {
	q := NewQueue(BoundedDropping, 64, 0)
	require.NoError(t, writeRecord(t, q, "hello"))
	require.NoError(t, writeRecord(t, q, "world"))

	got, ok := readRecord(q)
	require.True(t, ok)
	require.Equal(t, "hello", got)

	got, ok = readRecord(q)
	require.True(t, ok)
	require.Equal(t, "world", got)

	_, ok = readRecord(q)
	require.False(t, ok)
}

func TestBoundedDroppingCountsDrops(t *testing.T) {
	q := NewQueue(BoundedDropping, 16, 0)
	var dropped int
	for i := 0; i < 100; i++ {
		if err := writeRecord(t, q, "xxxxxxxxxxxxxxxxxxxxxxxxxx"); err != nil {
			dropped++
			require.ErrorIs(t, err, ErrWouldBlock)
		}
	}
	require.Greater(t, dropped, 0)
	require.Equal(t, uint64(dropped), q.Dropped())
}

func TestGrowableQueueGrowsPastInitialCapacity(t *testing.T) {
	q := NewQueue(UnboundedUnlimited, 16, 0)
	initial := q.Cap()

	for i := 0; i < 200; i++ {
		require.NoError(t, writeRecord(t, q, "payload-payload-payload"))
	}
	require.Greater(t, q.Cap(), initial)

	count := 0
	for {
		_, ok := readRecord(q)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 200, count)
}

func TestGrowableQueueCeilingFallsBackToDropping(t *testing.T) {
	q := NewQueue(UnboundedDropping, 16, 32)
	ok := 0
	drops := 0
	for i := 0; i < 50; i++ {
		if err := writeRecord(t, q, "0123456789abcdef"); err != nil {
			drops++
		} else {
			ok++
		}
	}
	require.Greater(t, drops, 0)
	require.LessOrEqual(t, q.Cap(), 32)
}

func TestBoundedQueueConcurrentProducerConsumer(t *testing.T) {
	q := NewQueue(BoundedBlocking, 256, 0)
	const n = 5000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			require.NoError(t, writeRecord(t, q, "m"))
		}
	}()

	received := 0
	for received < n {
		if _, ok := readRecord(q); ok {
			received++
		}
	}
	wg.Wait()
	require.Equal(t, n, received)
}

func TestRoundToPow2(t *testing.T) {
	cases := map[int]int{0: 2, 1: 2, 2: 2, 3: 4, 5: 8, 1024: 1024, 1025: 2048}
	for in, want := range cases {
		require.Equal(t, want, roundToPow2(in), "roundToPow2(%d)", in)
	}
}
