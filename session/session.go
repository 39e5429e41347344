// File: session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Core session implementation: lifecycle state machine and the
// append-only pending write queue drained by the reactor thread.

package session

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"

	"github.com/momentics/hioload-mux/api"
)

// State is the lifecycle state of a session.
type State int32

const (
	// Preparing: created and submitted, not yet registered.
	Preparing State = iota
	// Open: registered with the multiplexer, channel owned exclusively.
	Open
	// Closed: terminal. Never transitions further.
	Closed
)

func (s State) String() string {
	switch s {
	case Preparing:
		return "preparing"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// FileRegion describes a pending channel-to-channel file transfer.
type FileRegion struct {
	File   *os.File
	Offset int64
	Count  int64
}

// WriteOp is one element of the pending write queue: either a byte
// chunk or a file region, never both.
type WriteOp struct {
	Data   []byte
	Region *FileRegion
}

// Session is one connected channel plus its reactor-side state.
type Session struct {
	id string
	fd int

	state atomic.Int32

	// handle and interest are reactor-thread-only once the session is
	// submitted; no synchronization needed.
	handle   api.Handle
	interest api.Ops

	mu      sync.Mutex
	pending *queue.Queue // of WriteOp
	backlog int64        // bytes awaiting transmission

	lastActive atomic.Int64 // unix nanos of last successful IO

	// flush is invoked when the pending queue transitions from empty to
	// non-empty; the owning processor wires it to a writable-interest
	// request plus a multiplexer wakeup.
	flush func(*Session)
}

// New creates a session in the Preparing state owning fd.
func New(fd int) *Session {
	s := &Session{
		id:      uuid.NewString(),
		fd:      fd,
		pending: queue.New(),
	}
	s.lastActive.Store(time.Now().UnixNano())
	return s
}

// ID returns the session identity used to key events.
func (s *Session) ID() string { return s.id }

// Fd returns the raw descriptor of the channel.
func (s *Session) Fd() int { return s.fd }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// SetFlusher wires the processor callback invoked on empty-to-non-empty
// write queue transitions. Must be set before the session is submitted.
func (s *Session) SetFlusher(fn func(*Session)) { s.flush = fn }

// MarkOpen performs the Preparing -> Open transition and records the
// registration handle. Reactor thread only.
func (s *Session) MarkOpen(h api.Handle) bool {
	if !s.state.CompareAndSwap(int32(Preparing), int32(Open)) {
		return false
	}
	s.handle = h
	return true
}

// MarkClosed performs the transition to Closed. Returns true exactly
// once; later calls are no-ops, making close idempotent.
func (s *Session) MarkClosed() bool {
	prev := s.state.Swap(int32(Closed))
	return prev != int32(Closed)
}

// Handle returns the registration handle. Reactor thread only.
func (s *Session) Handle() api.Handle { return s.handle }

// ClearHandle drops the registration handle on close. Reactor thread only.
func (s *Session) ClearHandle() { s.handle = api.InvalidHandle }

// Interest returns the current interest mask. Reactor thread only.
func (s *Session) Interest() api.Ops { return s.interest }

// SetInterest updates the interest mirror. Reactor thread only; the
// multiplexer registration is updated by the caller.
func (s *Session) SetInterest(ops api.Ops) { s.interest = ops }

// Touch records IO activity for idle-timeout accounting.
func (s *Session) Touch() { s.lastActive.Store(time.Now().UnixNano()) }

// IdleFor reports how long the session has been without IO activity.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return time.Duration(now.UnixNano() - s.lastActive.Load())
}

// Write appends a copy of b to the pending write queue. Callable from
// any thread; never blocks on the channel. Returns api.ErrSessionClosed
// after the session reached its terminal state.
func (s *Session) Write(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	data := make([]byte, len(b))
	copy(data, b)
	return s.enqueue(WriteOp{Data: data}, int64(len(data)))
}

// TransferFile appends a file-region transfer to the pending queue. The
// file must stay open until the region is fully flushed.
func (s *Session) TransferFile(f *os.File, offset, count int64) error {
	if count <= 0 {
		return nil
	}
	return s.enqueue(WriteOp{Region: &FileRegion{File: f, Offset: offset, Count: count}}, count)
}

func (s *Session) enqueue(op WriteOp, n int64) error {
	if s.State() == Closed {
		return api.ErrSessionClosed
	}
	s.mu.Lock()
	wasEmpty := s.pending.Length() == 0
	s.pending.Add(op)
	s.backlog += n
	s.mu.Unlock()
	if wasEmpty && s.flush != nil {
		s.flush(s)
	}
	return nil
}

// NextWrite returns the oldest pending write without consuming it.
// Reactor thread only.
func (s *Session) NextWrite() (WriteOp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Length() == 0 {
		return WriteOp{}, false
	}
	return s.pending.Peek().(WriteOp), true
}

// CompleteWrite consumes n flushed bytes from the front of the pending
// queue, removing the op once exhausted. Reactor thread only.
func (s *Session) CompleteWrite(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Length() == 0 {
		return
	}
	op := s.pending.Peek().(WriteOp)
	s.backlog -= n
	if op.Region != nil {
		op.Region.Offset += n
		op.Region.Count -= n
		if op.Region.Count <= 0 {
			s.pending.Remove()
		}
		return
	}
	s.pending.Remove()
	if int64(len(op.Data)) > n {
		s.prepend(WriteOp{Data: op.Data[n:]})
	}
}

// prepend puts op back at the front. The FIFO has no push-front, so the
// queue is rebuilt; partial writes are rare enough that this stays off
// any hot path.
func (s *Session) prepend(op WriteOp) {
	rest := make([]WriteOp, 0, s.pending.Length())
	for s.pending.Length() > 0 {
		rest = append(rest, s.pending.Remove().(WriteOp))
	}
	s.pending.Add(op)
	for _, r := range rest {
		s.pending.Add(r)
	}
}

// HasPending reports whether unflushed bytes remain.
func (s *Session) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Length() > 0
}

// Backlog returns the number of bytes awaiting transmission.
func (s *Session) Backlog() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backlog
}
