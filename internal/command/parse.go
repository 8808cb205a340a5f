package command

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/adred-codev/miniredis/internal/resp"
)

// DecodeError marks a command-level decoding failure: wrong outer
// frame shape, wrong element type, an unrecognized flag, or trailing
// fields after a command's parser declared itself done. It is
// distinct from resp.ProtocolError, which covers frame-level
// malformation (§7).
type DecodeError struct {
	msg string
}

func (e *DecodeError) Error() string { return "command: " + e.msg }

func decodeErr(format string, args ...any) error {
	return &DecodeError{msg: fmt.Sprintf(format, args...)}
}

// ErrEndOfStream is returned by Parse's next* accessors once every
// element of the frame array has been consumed.
var ErrEndOfStream = errors.New("command: end of stream")

// Parse is a stateful cursor over a RESP array frame's elements,
// yielding typed accessors the way each command's field parser needs
// (§4.C).
type Parse struct {
	elems []resp.Frame
	pos   int
}

// NewParse requires frame to be an Array and returns a cursor over its
// elements.
func NewParse(frame resp.Frame) (*Parse, error) {
	if frame.Kind != resp.KindArray {
		return nil, decodeErr("expected array frame, got %v", frame)
	}
	return &Parse{elems: frame.Array}, nil
}

func (p *Parse) next() (resp.Frame, error) {
	if p.pos >= len(p.elems) {
		return resp.Frame{}, ErrEndOfStream
	}
	f := p.elems[p.pos]
	p.pos++
	return f, nil
}

// NextString returns the next element as a UTF-8 string. Simple and
// bulk frames both qualify.
func (p *Parse) NextString() (string, error) {
	f, err := p.next()
	if err != nil {
		return "", err
	}
	switch f.Kind {
	case resp.KindSimple:
		return f.Str, nil
	case resp.KindBulk:
		if f.Null {
			return "", decodeErr("expected string, got null")
		}
		return string(f.Bulk), nil
	default:
		return "", decodeErr("expected string, got %v", f)
	}
}

// NextBytes returns the next element's raw bytes, for fields that may
// hold arbitrary binary data (values, messages).
func (p *Parse) NextBytes() ([]byte, error) {
	f, err := p.next()
	if err != nil {
		return nil, err
	}
	switch f.Kind {
	case resp.KindBulk:
		if f.Null {
			return nil, decodeErr("expected bytes, got null")
		}
		return f.Bulk, nil
	case resp.KindSimple:
		return []byte(f.Str), nil
	default:
		return nil, decodeErr("expected bytes, got %v", f)
	}
}

// NextInt returns the next element parsed as an unsigned decimal
// integer, accepting either an Integer frame or a numeric bulk/simple
// string (command arguments travel as bulk strings on the wire).
func (p *Parse) NextInt() (uint64, error) {
	f, err := p.next()
	if err != nil {
		return 0, err
	}
	switch f.Kind {
	case resp.KindInt:
		return f.Int, nil
	case resp.KindBulk:
		v, err := strconv.ParseUint(string(f.Bulk), 10, 64)
		if err != nil {
			return 0, decodeErr("expected integer, got %q", f.Bulk)
		}
		return v, nil
	case resp.KindSimple:
		v, err := strconv.ParseUint(f.Str, 10, 64)
		if err != nil {
			return 0, decodeErr("expected integer, got %q", f.Str)
		}
		return v, nil
	default:
		return 0, decodeErr("expected integer, got %v", f)
	}
}

// Finish asserts no trailing fields remain, per the original source's
// Parse::finish — extra arguments are a protocol error, not silently
// ignored.
func (p *Parse) Finish() error {
	if p.pos != len(p.elems) {
		return decodeErr("trailing arguments: %d unconsumed", len(p.elems)-p.pos)
	}
	return nil
}
