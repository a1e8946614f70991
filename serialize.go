// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"encoding/binary"
	"math"
)

// argKind tags the wire representation of an Arg. Go has no call-site
// template expansion to synthesize a decoder function pointer from the
// argument type-list the way the original C++ implementation does; this
// tag is the idiomatic substitute — a small, closed set of wire shapes
// that decodeArgs switches over.
type argKind uint8

const (
	argInt64 argKind = iota
	argUint64
	argFloat64
	argBool
	argString
	argBytes
)

// Arg is one serialized call-site argument. Construct with the typed
// helpers below; Arg itself carries no exported fields because its wire
// layout is an implementation detail of the queue, not part of the public
// contract.
type Arg struct {
	name string
	kind argKind
	i    int64
	u    uint64
	f    float64
	b    bool
	s    string
	buf  []byte
}

// Int records a signed integer argument. Trivially-copyable, memcpy'd
// onto the wire.
func Int(name string, v int64) Arg { return Arg{name: name, kind: argInt64, i: v} }

// Uint records an unsigned integer argument.
func Uint(name string, v uint64) Arg { return Arg{name: name, kind: argUint64, u: v} }

// Float64 records a floating point argument.
func Float64(name string, v float64) Arg { return Arg{name: name, kind: argFloat64, f: v} }

// Bool records a boolean argument.
func Bool(name string, v bool) Arg { return Arg{name: name, kind: argBool, b: v} }

// Str records a string argument. Length-prefixed and copied in full, per
// the queue record layout's per-argument serialization rules — the
// backend never aliases queue memory past Consume.
func Str(name string, v string) Arg { return Arg{name: name, kind: argString, s: v} }

// Bytes records a byte-slice argument, copied in full like Str.
func Bytes(name string, v []byte) Arg { return Arg{name: name, kind: argBytes, buf: v} }

// encodedSize returns the number of bytes this argument occupies on the
// wire: 1-byte kind, 2-byte name length, the name itself, then the
// kind-specific payload.
func (a Arg) encodedSize() int {
	n := 1 + 2 + len(a.name)
	switch a.kind {
	case argInt64, argUint64, argFloat64:
		n += 8
	case argBool:
		n++
	case argString:
		n += 4 + len(a.s)
	case argBytes:
		n += 4 + len(a.buf)
	}
	return n
}

// argsEncodedSize returns the total payload size of args, used by the
// frontend to size a single Reserve call covering the whole record.
func argsEncodedSize(args []Arg) int {
	n := 0
	for _, a := range args {
		n += a.encodedSize()
	}
	return n
}

// encode writes a onto buf (which must be at least a.encodedSize() bytes)
// and returns the number of bytes written.
func (a Arg) encode(buf []byte) int {
	buf[0] = byte(a.kind)
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(a.name)))
	off := 3
	off += copy(buf[off:], a.name)
	switch a.kind {
	case argInt64:
		binary.LittleEndian.PutUint64(buf[off:], uint64(a.i))
		off += 8
	case argUint64:
		binary.LittleEndian.PutUint64(buf[off:], a.u)
		off += 8
	case argFloat64:
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(a.f))
		off += 8
	case argBool:
		if a.b {
			buf[off] = 1
		} else {
			buf[off] = 0
		}
		off++
	case argString:
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(a.s)))
		off += 4
		off += copy(buf[off:], a.s)
	case argBytes:
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(a.buf)))
		off += 4
		off += copy(buf[off:], a.buf)
	}
	return off
}

// encodeArgs writes every argument in args, in order, onto buf.
func encodeArgs(buf []byte, args []Arg) {
	off := 0
	for _, a := range args {
		off += a.encode(buf[off:])
	}
}

// DecodedArg is a backend-reconstructed view of one call-site argument,
// suitable for handing to a Formatter.
type DecodedArg struct {
	Name  string
	Value any
}

// decodeArgs reads back the argument list encodeArgs wrote. payload must
// alias queue memory that has not yet been Consumed; decodeArgs always
// copies string and byte-slice contents (Go's []byte-to-string conversion
// copies implicitly; byte slices are copied explicitly) so the returned
// values remain valid after the backend advances the read position.
func decodeArgs(payload []byte) ([]DecodedArg, error) {
	var out []DecodedArg
	off := 0
	for off < len(payload) {
		if off+3 > len(payload) {
			return nil, newFatalError(ErrCodeCorruptFrame, "argument header truncated")
		}
		kind := argKind(payload[off])
		off++
		nameLen := int(binary.LittleEndian.Uint16(payload[off : off+2]))
		off += 2
		if off+nameLen > len(payload) {
			return nil, newFatalError(ErrCodeCorruptFrame, "argument name truncated")
		}
		name := string(payload[off : off+nameLen])
		off += nameLen

		switch kind {
		case argInt64:
			if off+8 > len(payload) {
				return nil, newFatalError(ErrCodeCorruptFrame, "int64 argument truncated")
			}
			v := int64(binary.LittleEndian.Uint64(payload[off : off+8]))
			off += 8
			out = append(out, DecodedArg{Name: name, Value: v})
		case argUint64:
			if off+8 > len(payload) {
				return nil, newFatalError(ErrCodeCorruptFrame, "uint64 argument truncated")
			}
			v := binary.LittleEndian.Uint64(payload[off : off+8])
			off += 8
			out = append(out, DecodedArg{Name: name, Value: v})
		case argFloat64:
			if off+8 > len(payload) {
				return nil, newFatalError(ErrCodeCorruptFrame, "float64 argument truncated")
			}
			v := math.Float64frombits(binary.LittleEndian.Uint64(payload[off : off+8]))
			off += 8
			out = append(out, DecodedArg{Name: name, Value: v})
		case argBool:
			if off+1 > len(payload) {
				return nil, newFatalError(ErrCodeCorruptFrame, "bool argument truncated")
			}
			out = append(out, DecodedArg{Name: name, Value: payload[off] != 0})
			off++
		case argString:
			if off+4 > len(payload) {
				return nil, newFatalError(ErrCodeCorruptFrame, "string argument length truncated")
			}
			l := int(binary.LittleEndian.Uint32(payload[off : off+4]))
			off += 4
			if off+l > len(payload) {
				return nil, newFatalError(ErrCodeCorruptFrame, "string argument body truncated")
			}
			out = append(out, DecodedArg{Name: name, Value: string(payload[off : off+l])})
			off += l
		case argBytes:
			if off+4 > len(payload) {
				return nil, newFatalError(ErrCodeCorruptFrame, "bytes argument length truncated")
			}
			l := int(binary.LittleEndian.Uint32(payload[off : off+4]))
			off += 4
			if off+l > len(payload) {
				return nil, newFatalError(ErrCodeCorruptFrame, "bytes argument body truncated")
			}
			cp := append([]byte(nil), payload[off:off+l]...)
			out = append(out, DecodedArg{Name: name, Value: cp})
			off += l
		default:
			return nil, newFatalError(ErrCodeCorruptFrame, "unknown argument kind")
		}
	}
	return out, nil
}
