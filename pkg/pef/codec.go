package pef

import "fmt"

// Error is the shared error type for malformed PEF input. pkg/linker wraps
// these into its own taxonomy (see pkg/linker/errors.go); pkg/pef only
// needs to distinguish "ran off the end of the buffer" from "field values
// don't make sense".
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// ErrMalformed builds a pef.Error for a field whose value is out of range
// or inconsistent.
func ErrMalformed(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// ErrTruncated builds a pef.Error for a read that ran past the end of the
// buffer.
func ErrTruncated(what string) error {
	return &Error{Msg: fmt.Sprintf("truncated %s", what)}
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func putI16(b []byte, v int16) { putU16(b, uint16(v)) }
func putI32(b []byte, v int32) { putU32(b, uint32(v)) }
