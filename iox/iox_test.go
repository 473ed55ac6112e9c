package iox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type spyCloser struct {
	closed chan struct{}
}

func newSpyCloser() *spyCloser { return &spyCloser{closed: make(chan struct{})} }

func (s *spyCloser) Read([]byte) (int, error) { return 0, errors.New("unused") }

func (s *spyCloser) Close() error { close(s.closed); return errors.New("ignored") }

func (s *spyCloser) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func TestDiscardClose(t *testing.T) {
	s := newSpyCloser()
	DiscardClose(s)
	if !s.isClosed() {
		t.Fatal("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	s := newSpyCloser()
	fn := CloseFunc(s)
	if s.isClosed() {
		t.Fatal("Close called before invoking returned func")
	}
	fn()
	if !s.isClosed() {
		t.Fatal("Close was not called")
	}
}

func TestCloseOnDone_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpyCloser()
	stop := CloseOnDone(ctx, s)

	cancel()
	select {
	case <-s.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("reader not closed after cancel")
	}
	if !stop() {
		t.Error("stop() = false, want true after cancel-close")
	}
}

func TestCloseOnDone_StopBeforeCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newSpyCloser()
	stop := CloseOnDone(ctx, s)

	if stop() {
		t.Error("stop() = true, want false")
	}
	cancel()
	if s.isClosed() {
		t.Error("reader closed after stop")
	}
}

func TestCloseOnDone_NonCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stop := CloseOnDone(ctx, strings.NewReader("x"))
	if stop() {
		t.Error("stop() = true for a non-closer")
	}
}
