package shell

import (
	"errors"
	"fmt"
)

var (
	// ErrFinished is wrapped by misuse errors for calls after Finish.
	ErrFinished = errors.New("framer already finished")
	// ErrConcurrentFeed is wrapped by misuse errors when two goroutines
	// drive the same framer at once.
	ErrConcurrentFeed = errors.New("concurrent use of framer")
	// ErrNotFlushed is returned when a receiver's output is read before
	// Flush.
	ErrNotFlushed = errors.New("receiver not flushed")
)

// FramingErrorKind classifies framing errors.
type FramingErrorKind int

const (
	// FramingErrorDecode indicates bytes that are malformed for the codec.
	FramingErrorDecode FramingErrorKind = iota
	// FramingErrorMisuse indicates a violation of the Feed/Finish contract.
	FramingErrorMisuse
	// FramingErrorReceiver indicates the receiver rejected a line or its
	// flush.
	FramingErrorReceiver
)

// String returns the kind name.
func (k FramingErrorKind) String() string {
	switch k {
	case FramingErrorDecode:
		return "decode"
	case FramingErrorMisuse:
		return "misuse"
	case FramingErrorReceiver:
		return "receiver"
	default:
		return fmt.Sprintf("FramingErrorKind(%d)", int(k))
	}
}

// FramingError is returned by Feed and Finish.
type FramingError struct {
	Kind FramingErrorKind
	// Offset is the stream byte offset where decoding stopped. Only set for
	// FramingErrorDecode.
	Offset int64
	Msg    string
	Err    error
}

func (e *FramingError) Error() string {
	msg := e.Msg
	if e.Kind == FramingErrorDecode {
		msg = fmt.Sprintf("%s at byte %d", msg, e.Offset)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is a framing decode error.
func IsDecodeError(err error) bool {
	return isFramingKind(err, FramingErrorDecode)
}

// IsMisuseError reports whether err is a framing misuse error.
func IsMisuseError(err error) bool {
	return isFramingKind(err, FramingErrorMisuse)
}

// IsReceiverError reports whether err came from the receiver.
func IsReceiverError(err error) bool {
	return isFramingKind(err, FramingErrorReceiver)
}

func isFramingKind(err error, kind FramingErrorKind) bool {
	var fe *FramingError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// FailureKind classifies a device-shell failure signature.
type FailureKind int

const (
	// FailureNotFound covers missing commands, applets and paths.
	FailureNotFound FailureKind = iota + 1
	// FailureUnknownOption covers rejected command-line options.
	FailureUnknownOption
	// FailureAborting covers commands that gave up.
	FailureAborting
	// FailurePermissionDenied covers permission and access errors.
	FailurePermissionDenied
)

var failureKindNames = map[FailureKind]string{
	FailureNotFound:         "not_found",
	FailureUnknownOption:    "unknown_option",
	FailureAborting:         "aborting",
	FailurePermissionDenied: "permission_denied",
}

// String returns the snake_case kind name used in config and metrics.
func (k FailureKind) String() string {
	if s, ok := failureKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("FailureKind(%d)", int(k))
}

// ParseFailureKind parses a snake_case kind name.
func ParseFailureKind(s string) (FailureKind, error) {
	for k, name := range failureKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown failure kind %q", s)
}

// Sentinels matched by CommandError via errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrUnknownOption    = errors.New("unknown option")
	ErrAborting         = errors.New("aborting")
	ErrPermissionDenied = errors.New("permission denied")
)

// CommandError records the first output line that matched a failure
// signature. It is exposed by Framer.Failure, never returned by Feed.
type CommandError struct {
	Kind FailureKind
	Line string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed (%s): %s", e.Kind, e.Line)
}

// Is matches the sentinel for e.Kind.
func (e *CommandError) Is(target error) bool {
	switch e.Kind {
	case FailureNotFound:
		return target == ErrNotFound
	case FailureUnknownOption:
		return target == ErrUnknownOption
	case FailureAborting:
		return target == ErrAborting
	case FailurePermissionDenied:
		return target == ErrPermissionDenied
	}
	return false
}
