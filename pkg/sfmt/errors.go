package sfmt

import (
	"errors"
	"fmt"
)

// Codec errors
var (
	ErrMandatoryMissing = errors.New("mandatory IE missing")
	ErrMandatoryInvalid = errors.New("mandatory IE invalid")
	ErrInvalidIE        = errors.New("invalid IE")
	ErrNotImplemented   = errors.New("not implemented")
	ErrBufferOverflow   = errors.New("buffer overflow")
	ErrShortBuffer      = errors.New("short buffer")
)

// Error describes a failure to parse or build a message
type Error struct {
	Msg string // message name
	IE  IEType // offending IE, zero when not IE specific
	Err error
}

func (e *Error) Error() string {
	if e.IE == 0 {
		return fmt.Sprintf("sfmt: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("sfmt: %s: <%s>: %v", e.Msg, e.IE, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidIE}, args...)...)
}

func wantLen(payload []byte, n int) error {
	if len(payload) < n {
		return malformed("need %d octets, have %d", n, len(payload))
	}
	return nil
}
