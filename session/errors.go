package session

import (
	"errors"
	"fmt"
)

// ErrorKind classifies session errors.
type ErrorKind int

const (
	// ErrorStream indicates the source or the recorder failed.
	ErrorStream ErrorKind = iota
	// ErrorFraming indicates a decode or receiver error from the framer.
	ErrorFraming
	// ErrorCanceled indicates the context was done before end-of-stream.
	ErrorCanceled
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorStream:
		return "stream"
	case ErrorFraming:
		return "framing"
	case ErrorCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by Run.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session %s: %v", e.Msg, e.Err)
	}
	return "session " + e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCanceled reports whether err is a session cancellation.
func IsCanceled(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == ErrorCanceled
}

// IsStreamError reports whether err is a source or recorder failure.
func IsStreamError(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == ErrorStream
}
