// File: internal/concurrency/handoff.go
// Package concurrency provides the registration handoff queue.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handoff is the multi-producer, single-consumer FIFO used to move
// sessions between arbitrary caller goroutines and a reactor thread.
// Producers push from any goroutine; the reactor drains on its own
// thread at the top of each loop iteration.

package concurrency

import (
	"sync"

	"github.com/eapache/queue"
)

// Handoff is an unbounded mutex-guarded FIFO.
type Handoff[T any] struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewHandoff creates an empty handoff queue.
func NewHandoff[T any]() *Handoff[T] {
	return &Handoff[T]{q: queue.New()}
}

// Push appends v and returns the queue length after the append.
func (h *Handoff[T]) Push(v T) int {
	h.mu.Lock()
	h.q.Add(v)
	n := h.q.Length()
	h.mu.Unlock()
	return n
}

// Pop removes and returns the oldest element.
func (h *Handoff[T]) Pop() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.q.Length() == 0 {
		var zero T
		return zero, false
	}
	return h.q.Remove().(T), true
}

// Drain pops elements one at a time and applies fn to each, until the
// queue is observed empty. fn runs without the lock held, so producers
// are never blocked behind consumer work.
func (h *Handoff[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := h.Pop()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}

// Len returns the current number of queued elements.
func (h *Handoff[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.q.Length()
}
