// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"code.hybscloud.com/iox"
	"github.com/agilira/go-errors"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Reserve: the queue has no room for the requested region (backpressure).
// For Peek: the queue has nothing new to offer right now.
//
// ErrWouldBlock is a control flow signal, not a failure. A Dropping-policy
// caller should count it and move on; a Blocking-policy queue spins
// internally instead of returning it from Reserve, except when
// BoundedBlocking is asked for a region larger than its whole buffer.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// Error codes for conditions the error-notifier reports. These are never
// control-flow signals — by the time one is raised, the backend has
// already decided how to recover (skip a producer, keep a stale clock
// anchor, refuse to start) and the notifier call is purely
// diagnostic.
const (
	// ErrCodeCorruptFrame is raised when a queue's size header reads as
	// zero or larger than the queue's own capacity — framing corruption
	// that should never happen absent a bug or memory stomp.
	ErrCodeCorruptFrame errors.ErrorCode = "FALCONLOG_CORRUPT_FRAME"
	// ErrCodeDuplicateBackend is raised when a second backend instance
	// tries to start in the same process while the process-singleton
	// lock is already held.
	ErrCodeDuplicateBackend errors.ErrorCode = "FALCONLOG_DUPLICATE_BACKEND"
	// ErrCodeConfiguration is raised for configuration mistakes detected
	// at configure time (bad capacity, bad affinity, nil required field).
	ErrCodeConfiguration errors.ErrorCode = "FALCONLOG_CONFIGURATION"
	// ErrCodeClockResync is raised when RdtscClock fails to resync after
	// all attempts; operation continues with a stale anchor.
	ErrCodeClockResync errors.ErrorCode = "FALCONLOG_CLOCK_RESYNC"
	// ErrCodeSinkWrite is raised when a sink's Write or Flush returns an
	// error; the backend logs it and continues with the next sink.
	ErrCodeSinkWrite errors.ErrorCode = "FALCONLOG_SINK_WRITE"
)

// newFatalError builds an [errors.Error] tagged with code, for conditions
// listed in the error taxonomy that are not control-flow signals.
func newFatalError(code errors.ErrorCode, message string) error {
	return errors.New(code, message)
}

// wrapFatalError tags an existing error with code without discarding it.
func wrapFatalError(code errors.ErrorCode, message string, cause error) error {
	return errors.Wrap(cause, code, message)
}
