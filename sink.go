// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"bufio"
	"io"
	"sync"
)

// Sink receives fully formatted log lines from the backend. Write and
// Flush are only ever called from the backend goroutine — a Sink
// implementation does not need to be safe for concurrent use unless the
// same instance is shared across multiple Loggers dispatched by more than
// one backend, which this package's process-singleton guard (see
// processlock.go) discourages.
type Sink interface {
	// Write receives one fully formatted record, newline-terminated by
	// the Formatter that produced it.
	Write(line []byte) error
	// Flush pushes any buffered bytes out to the underlying destination.
	Flush() error
}

// WriterSink adapts an io.Writer into a Sink, buffering writes and
// flushing only when the backend calls Flush or on a size threshold —
// mirroring the teacher's preference for buffered, syscall-amortizing I/O
// over a write-per-record sink.
type WriterSink struct {
	mu  sync.Mutex
	bw  *bufio.Writer
	out io.Writer
}

// NewWriterSink wraps w with a buffered Sink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{bw: bufio.NewWriterSize(w, 64*1024), out: w}
}

// Write implements Sink.
func (s *WriterSink) Write(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.bw.Write(line); err != nil {
		return wrapFatalError(ErrCodeSinkWrite, "writer sink write failed", err)
	}
	return nil
}

// Flush implements Sink.
func (s *WriterSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.bw.Flush(); err != nil {
		return wrapFatalError(ErrCodeSinkWrite, "writer sink flush failed", err)
	}
	return nil
}
