// session_test.go — lifecycle and write-queue unit tests.
package session_test

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/session"
)

func TestLifecycleIsPrefixOfPreparingOpenClosed(t *testing.T) {
	s := session.New(3)
	if s.State() != session.Preparing {
		t.Fatalf("new session state = %v, want preparing", s.State())
	}
	if !s.MarkOpen(api.Handle(7)) {
		t.Fatal("MarkOpen from preparing failed")
	}
	if s.State() != session.Open {
		t.Fatalf("state after MarkOpen = %v, want open", s.State())
	}
	if s.Handle() != api.Handle(7) {
		t.Fatalf("handle = %v, want 7", s.Handle())
	}
	if s.MarkOpen(api.Handle(9)) {
		t.Fatal("MarkOpen from open must fail")
	}
	if !s.MarkClosed() {
		t.Fatal("first MarkClosed must report the transition")
	}
	if s.MarkClosed() {
		t.Fatal("second MarkClosed must be a no-op")
	}
	if s.State() != session.Closed {
		t.Fatalf("state = %v, want closed", s.State())
	}
}

func TestMarkOpenAfterCloseFails(t *testing.T) {
	s := session.New(3)
	s.MarkClosed()
	if s.MarkOpen(api.Handle(1)) {
		t.Fatal("closed session must never reopen")
	}
}

func TestWriteQueueOrderAndPartialConsume(t *testing.T) {
	s := session.New(3)
	if err := s.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write([]byte("world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := s.Backlog(); got != 10 {
		t.Fatalf("backlog = %d, want 10", got)
	}

	op, ok := s.NextWrite()
	if !ok || string(op.Data) != "hello" {
		t.Fatalf("front op = %q, %v; want hello", op.Data, ok)
	}

	// Partial flush keeps the remainder at the front.
	s.CompleteWrite(2)
	op, ok = s.NextWrite()
	if !ok || string(op.Data) != "llo" {
		t.Fatalf("front op after partial = %q, %v; want llo", op.Data, ok)
	}
	s.CompleteWrite(3)
	op, ok = s.NextWrite()
	if !ok || string(op.Data) != "world" {
		t.Fatalf("front op = %q, %v; want world", op.Data, ok)
	}
	s.CompleteWrite(5)
	if _, ok := s.NextWrite(); ok {
		t.Fatal("queue should be drained")
	}
	if s.HasPending() {
		t.Fatal("HasPending after drain")
	}
	if got := s.Backlog(); got != 0 {
		t.Fatalf("backlog = %d, want 0", got)
	}
}

func TestWriteCopiesCallerBuffer(t *testing.T) {
	s := session.New(3)
	buf := []byte("abcd")
	if err := s.Write(buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf[0] = 'X'
	op, _ := s.NextWrite()
	if string(op.Data) != "abcd" {
		t.Fatalf("queued data = %q, caller mutation leaked through", op.Data)
	}
}

func TestFlushCallbackOnEmptyToNonEmptyOnly(t *testing.T) {
	s := session.New(3)
	calls := 0
	s.SetFlusher(func(*session.Session) { calls++ })

	s.Write([]byte("a"))
	s.Write([]byte("b"))
	if calls != 1 {
		t.Fatalf("flush calls = %d, want 1", calls)
	}

	s.CompleteWrite(1)
	s.CompleteWrite(1)
	s.Write([]byte("c"))
	if calls != 2 {
		t.Fatalf("flush calls after drain = %d, want 2", calls)
	}
}

func TestWriteAfterCloseRejected(t *testing.T) {
	s := session.New(3)
	s.MarkClosed()
	if err := s.Write([]byte("x")); !errors.Is(err, api.ErrSessionClosed) {
		t.Fatalf("Write after close = %v, want ErrSessionClosed", err)
	}
}

func TestEmptyWriteIsNoOp(t *testing.T) {
	s := session.New(3)
	calls := 0
	s.SetFlusher(func(*session.Session) { calls++ })
	if err := s.Write(nil); err != nil {
		t.Fatalf("Write(nil): %v", err)
	}
	if calls != 0 || s.HasPending() {
		t.Fatal("empty write must not enqueue or flush")
	}
}
