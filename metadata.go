// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

// Level is a log record's severity. Levels order from least to most
// severe; a Logger's threshold admits a record iff level >= threshold.
//
// Trace collapses the original C++ implementation's Dynamic/TraceL3..
// TraceL1 band into a single level below Debug: nothing in this engine's
// data model needs finer-grained trace sub-levels.
type Level uint8

const (
	Trace Level = iota
	Debug
	Info
	Warning
	Error
	Critical
	// Backtrace is a pseudo-level: records emitted at Backtrace are never
	// dispatched directly. They are inserted into the logger's
	// BacktraceStore instead, and replayed when a later record at or
	// above the store's trigger level is dispatched. See BacktraceStore.
	Backtrace
)

// String returns the level's name, e.g. for formatter output.
func (l Level) String() string {
	switch l {
	case Trace:
		return "TRACE"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	case Backtrace:
		return "BACKTRACE"
	default:
		return "UNKNOWN"
	}
}

// EventKind distinguishes an ordinary log call from the control events
// that flow through the same queue: initializing or flushing a
// BacktraceStore, and the flush barrier.
type EventKind uint8

const (
	EventLog EventKind = iota
	EventInitBacktrace
	EventFlushBacktrace
	EventFlush
)

// MacroMetadata describes a single call site. Exactly one instance exists
// per call site — the frontend never copies it into the queue, only a
// pointer to it, mirroring the teacher's preference for sharing immutable
// descriptors by reference rather than by value.
//
// In the original C++ implementation this is synthesized by a macro at
// the call site and statically allocated. Go has no equivalent macro
// facility, so call sites construct one MacroMetadata value (typically as
// a package-level var) and pass its address to Logger.Log.
type MacroMetadata struct {
	File         string
	Line         int
	Function     string
	Format       string
	Tag          string
	Level        Level
	Kind         EventKind
	HasNamedArgs bool
}
