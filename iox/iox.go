// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"context"
	"io"
	"sync"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// CloseOnDone closes r when ctx is done so that a Read blocked on r returns.
// r is closed at most once. The returned stop function releases the watcher
// and reports whether r was closed by it; call it before closing r yourself.
// A reader that is not an io.Closer is never closed.
func CloseOnDone(ctx context.Context, r io.Reader) (stop func() bool) {
	c, ok := r.(io.Closer)
	if !ok {
		return func() bool { return false }
	}

	var (
		once   sync.Once
		closed bool
	)
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		select {
		case <-ctx.Done():
			once.Do(func() {
				closed = true
				_ = c.Close()
			})
		case <-done:
		}
	}()

	return func() bool {
		once.Do(func() {})
		close(done)
		<-finished
		return closed
	}
}
