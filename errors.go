package objectstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for the structural failure modes of a decode. Callers
// match them with errors.Is; the wrapping *DecodeError carries the byte
// offset at which the failure was detected.
var (
	ErrBadStreamHeader   = errors.New("bad stream header")
	ErrTruncatedStream   = errors.New("truncated stream")
	ErrUnknownHandle     = errors.New("unknown handle")
	ErrUnboundHandle     = errors.New("unbound handle")
	ErrUnexpectedTag     = errors.New("unexpected tag")
	ErrMissingTerminator = errors.New("missing terminator")
	ErrStreamAborted     = errors.New("stream aborted by producer")
	ErrNestingTooDeep    = errors.New("nesting too deep")
	ErrMalformedString   = errors.New("malformed modified UTF-8")
)

// DecodeError wraps one of the sentinel errors with the byte offset of
// the failure and a human-readable detail. The format offers no
// resynchronization point, so every DecodeError is fatal to its decode
// session; nothing is retried.
type DecodeError struct {
	Err    error
	Offset int
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("objectstream: %s at offset %d", e.Err, e.Offset)
	}
	return fmt.Sprintf("objectstream: %s at offset %d: %s", e.Err, e.Offset, e.Detail)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func errAt(err error, offset int, format string, args ...interface{}) *DecodeError {
	return &DecodeError{
		Err:    err,
		Offset: offset,
		Detail: fmt.Sprintf(format, args...),
	}
}
