// Package adapter defines the notification boundary for finished invocations.
//
// Adapters publish an InvocationCompletedEvent to a downstream system after
// an invocation has been framed. Publishing happens outside the framing core
// and is the only place where retries occur.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// EventType is the event_type of every InvocationCompletedEvent.
const EventType = "invocation_completed"

// InvocationCompletedEvent is the payload published when an invocation
// finishes.
type InvocationCompletedEvent struct {
	Version      string `json:"version"`
	EventType    string `json:"event_type"` // always "invocation_completed"
	InvocationID string `json:"invocation_id"`
	Serial       string `json:"serial,omitempty"`
	Command      string `json:"command,omitempty"`
	Encoding     string `json:"encoding"`
	Outcome      string `json:"outcome"` // success, command_failed, etc.
	FailureKind  string `json:"failure_kind,omitempty"`
	FailureLine  string `json:"failure_line,omitempty"`
	Lines        int64  `json:"lines"`
	Bytes        int64  `json:"bytes"`
	ArchivePath  string `json:"archive_path,omitempty"`
	Timestamp    string `json:"timestamp"` // RFC 3339
	DurationMs   int64  `json:"duration_ms"`
}

// Adapter publishes invocation completion events to a downstream system.
type Adapter interface {
	// Publish sends the event. Must respect context cancellation and
	// deadlines.
	Publish(ctx context.Context, event *InvocationCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the delay before the first retry. It doubles per retry.
var BaseBackoff = 500 * time.Millisecond

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early when fn succeeds, when permanent reports true for
// the returned error, or when ctx is done. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, permanent func(error) bool, fn func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BaseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
