// File: dispatch/executor.go
// Package dispatch implements the key-routed event executor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across worker goroutines. Each worker owns
// an unbounded FIFO; tasks are routed to workers by FNV hash of their
// key, which serializes all tasks sharing a key.

package dispatch

import (
	"hash/fnv"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-mux/api"
)

// Executor manages a pool of worker goroutines.
type Executor struct {
	workers []*worker
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// Ensure compile-time interface compliance.
var _ api.Executor = (*Executor)(nil)

// NewExecutor creates an Executor with the given number of workers.
// If numWorkers <= 0, defaults to runtime.NumCPU().
func NewExecutor(numWorkers int) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{workers: make([]*worker, numWorkers)}
	for i := 0; i < numWorkers; i++ {
		w := &worker{q: queue.New()}
		w.cond = sync.NewCond(&w.mu)
		e.workers[i] = w
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			w.run()
		}()
	}
	return e
}

// Submit schedules fn under key, returning api.ErrExecutorClosed after
// Close. Never blocks the caller.
func (e *Executor) Submit(key string, fn func()) error {
	if e.closed.Load() {
		return api.ErrExecutorClosed
	}
	e.workers[fnv32(key)%uint32(len(e.workers))].push(fn)
	return nil
}

// NumWorkers returns the pool size.
func (e *Executor) NumWorkers() int { return len(e.workers) }

// Close rejects further submissions, drains queued tasks, and joins all
// workers. Idempotent.
func (e *Executor) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	for _, w := range e.workers {
		w.mu.Lock()
		w.closed = true
		w.cond.Signal()
		w.mu.Unlock()
	}
	e.wg.Wait()
}

// worker owns one task FIFO and one goroutine.
type worker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool
}

func (w *worker) push(fn func()) {
	w.mu.Lock()
	w.q.Add(fn)
	w.cond.Signal()
	w.mu.Unlock()
}

// run drains the FIFO until closed and empty.
func (w *worker) run() {
	for {
		w.mu.Lock()
		for w.q.Length() == 0 && !w.closed {
			w.cond.Wait()
		}
		if w.q.Length() == 0 {
			w.mu.Unlock()
			return
		}
		fn := w.q.Remove().(func())
		w.mu.Unlock()
		execute(fn)
	}
}

// execute runs one task, keeping the worker alive across panics.
func execute(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// fnv32 hashes a routing key to a worker index.
func fnv32(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}
