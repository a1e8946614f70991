// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import "sync"

// btRecord is one buffered Backtrace-level record, already decoded —
// BacktraceStore never needs to re-decode a record once it has been
// pulled off a queue, since insertion happens at the same point in the
// backend's pipeline as an ordinary dispatch would.
type btRecord struct {
	level Level
	ts    uint64
	meta  *MacroMetadata
	args  []DecodedArg
}

// BacktraceStore is a per-logger bounded ring of buffered Backtrace-level
// records. Insertion happens only from the backend, as part of draining
// an EventLog record at Backtrace level; a record at or above the
// logger's BacktraceFlushThreshold triggers FlushTo, replaying every
// buffered record oldest-first ahead of the triggering record itself.
type BacktraceStore struct {
	mu   sync.Mutex
	buf  []btRecord
	cap  int
	head int
	size int
}

func newBacktraceStore(capacity int) *BacktraceStore {
	if capacity < 1 {
		capacity = 1
	}
	return &BacktraceStore{buf: make([]btRecord, capacity), cap: capacity}
}

// Insert appends a record, evicting the oldest one if the store is full.
func (s *BacktraceStore) Insert(level Level, ts uint64, meta *MacroMetadata, args []DecodedArg) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := (s.head + s.size) % s.cap
	if s.size == s.cap {
		s.head = (s.head + 1) % s.cap
	} else {
		s.size++
	}
	s.buf[idx] = btRecord{level: level, ts: ts, meta: meta, args: args}
}

// FlushTo drains every buffered record oldest-first through dispatch,
// then empties the store.
func (s *BacktraceStore) FlushTo(dispatch func(level Level, ts uint64, meta *MacroMetadata, args []DecodedArg)) {
	s.mu.Lock()
	records := make([]btRecord, s.size)
	for i := 0; i < s.size; i++ {
		records[i] = s.buf[(s.head+i)%s.cap]
	}
	s.head = 0
	s.size = 0
	s.mu.Unlock()

	for _, r := range records {
		dispatch(r.level, r.ts, r.meta, r.args)
	}
}

// Resize changes the store's capacity, keeping the newest records and
// discarding the rest oldest-first. It returns the number of records
// discarded to make room.
func (s *BacktraceStore) Resize(newCapacity int) int {
	if newCapacity < 1 {
		newCapacity = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := s.size
	discarded := 0
	if keep > newCapacity {
		discarded = keep - newCapacity
		keep = newCapacity
	}

	newBuf := make([]btRecord, newCapacity)
	start := s.size - keep
	for i := 0; i < keep; i++ {
		newBuf[i] = s.buf[(s.head+start+i)%s.cap]
	}

	s.buf = newBuf
	s.cap = newCapacity
	s.head = 0
	s.size = keep
	return discarded
}

// Len returns the number of currently buffered records.
func (s *BacktraceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}
