// Package archive stores reconstructed shell output after an invocation.
//
// Objects are laid out in a Hive-style key space so a bucket or directory
// can be browsed by device and day:
//
//	serial=<serial>/day=<YYYY-MM-DD>/invocation_id=<id>/output.bin
//
// Archiving runs after the framer has flushed. It never feeds back into
// framing or the invocation outcome.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/pithecene-io/adbshell/types"
)

// ObjectName is the file name of the archived output within its partition.
const ObjectName = "output.bin"

// unknownSerial partitions invocations that were not bound to a device.
const unknownSerial = "_"

// Sink stores one object and reports where it landed.
type Sink interface {
	// Put writes data under key. The returned location is a sink-specific
	// address (a file path or an s3:// URL).
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// Key returns the object key for an invocation.
func Key(meta *types.InvocationMeta) (string, error) {
	if err := meta.Validate(); err != nil {
		return "", fmt.Errorf("archive key: %w", err)
	}
	serial := meta.Serial
	if serial == "" {
		serial = unknownSerial
	}
	day := meta.StartedAt.UTC().Format("2006-01-02")
	return path.Join(
		"serial="+serial,
		"day="+day,
		"invocation_id="+meta.InvocationID,
		ObjectName,
	), nil
}

// Store archives data for an invocation and returns its location.
func Store(ctx context.Context, sink Sink, meta *types.InvocationMeta, data []byte) (string, error) {
	if sink == nil {
		return "", errors.New("archive: nil sink")
	}
	key, err := Key(meta)
	if err != nil {
		return "", err
	}
	return sink.Put(ctx, key, data)
}

// Sentinel errors for storage failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrPermissionDenied indicates a local permission failure (EACCES).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound indicates the target path or bucket does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDiskFull indicates storage is out of space (ENOSPC).
	ErrDiskFull = errors.New("no space left on device")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")

	// ErrAuth indicates missing or rejected credentials.
	ErrAuth = errors.New("authentication failed")

	// ErrAccessDenied indicates valid credentials without permission (403).
	ErrAccessDenied = errors.New("access denied")

	// ErrNetwork indicates a network-level failure.
	ErrNetwork = errors.New("network error")

	// ErrUnclassified is the kind for errors matching no other class.
	ErrUnclassified = errors.New("storage error")
)

// StorageError wraps an underlying error with storage classification.
type StorageError struct {
	// Kind is the sentinel for classification (e.g. ErrPermissionDenied).
	Kind error
	// Op is the operation that failed ("put", "init").
	Op string
	// Location is the file path or object URL involved, if any.
	Location string
	Err      error
}

func (e *StorageError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Location, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapError classifies err. Returns nil if err is nil.
func wrapError(err error, op, location string) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: classifyError(err), Op: op, Location: location, Err: err}
}

func classifyError(err error) error {
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "accessdenied", "forbidden", "403"):
		return ErrAccessDenied
	case containsAny(msg, "permission denied", "eacces"):
		return ErrPermissionDenied
	case containsAny(msg, "no such file", "does not exist", "not found", "enoent", "404", "nosuchbucket", "nosuchkey"):
		return ErrNotFound
	case containsAny(msg, "no space left", "disk full", "enospc", "quota exceeded"):
		return ErrDiskFull
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return ErrTimeout
	case containsAny(msg, "slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"):
		return ErrThrottled
	case containsAny(msg, "nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"):
		return ErrAuth
	case containsAny(msg, "connection refused", "no route to host", "network unreachable", "dial tcp"):
		return ErrNetwork
	default:
		return ErrUnclassified
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
