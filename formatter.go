// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"strconv"
	"strings"
	"time"
)

// Record is what the backend hands a Formatter for one dispatched event:
// the call-site metadata, the resolved timestamp, the logger name that
// emitted it, and its decoded arguments.
type Record struct {
	Meta      *MacroMetadata
	Timestamp time.Time
	Logger    string
	ThreadID  uint64
	Args      []DecodedArg
}

// Formatter renders a Record into a single line, newline-terminated, for
// a Sink to write. A Formatter is only ever called from the backend
// goroutine.
type Formatter interface {
	Format(r Record) []byte
}

// TextFormatter renders "timestamp level logger [file:line] message
// key=value ...", the teacher's plain-text diagnostic shape.
type TextFormatter struct {
	TimeLayout string
}

// NewTextFormatter returns a TextFormatter using RFC3339Nano timestamps.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimeLayout: time.RFC3339Nano}
}

// Format implements Formatter.
func (f *TextFormatter) Format(r Record) []byte {
	var b strings.Builder
	b.WriteString(r.Timestamp.Format(f.TimeLayout))
	b.WriteByte(' ')
	b.WriteString(r.Meta.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Logger)
	b.WriteString(" [")
	b.WriteString(r.Meta.File)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(r.Meta.Line))
	b.WriteString("] ")
	b.WriteString(r.Meta.Format)
	for _, a := range r.Args {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteByte('=')
		writeArgValue(&b, a.Value)
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func writeArgValue(b *strings.Builder, v any) {
	switch x := v.(type) {
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(x, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case string:
		b.WriteString(strconv.Quote(x))
	case []byte:
		b.WriteString(strconv.Quote(string(x)))
	default:
		b.WriteString("?")
	}
}
