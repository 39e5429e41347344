//go:build unix
// +build unix

// File: processor/pool.go
// Package processor
// Author: momentics <momentics@gmail.com>
//
// Pool shards sessions round-robin over several processors, each with
// its own reactor thread, all sharing one event executor.

package processor

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/dispatch"
)

// Pool owns a fixed set of processors and a shared executor.
type Pool struct {
	procs []*Processor
	exec  api.Executor
	log   *zap.Logger

	next   atomic.Uint64
	owners sync.Map // session id -> *Processor

	wg           sync.WaitGroup
	shutdownOnce sync.Once
	shutErr      error
}

// NewPool creates n processors delivering events to handler. Options
// apply to every processor; WithExecutor is overridden by the pool's
// shared executor.
func NewPool(n int, handler api.Handler, opts ...Option) (*Pool, error) {
	if n <= 0 {
		n = 1
	}
	pl := &Pool{
		exec: dispatch.NewExecutor(0),
		log:  zap.NewNop(),
	}
	wrapped := api.HandlerFunc(func(ev api.Event) {
		pl.forget(ev)
		handler.HandleEvent(ev)
	})
	for i := 0; i < n; i++ {
		procOpts := append(append([]Option{}, opts...), WithExecutor(pl.exec))
		proc, err := New(wrapped, procOpts...)
		if err != nil {
			for _, prev := range pl.procs {
				_ = prev.Shutdown()
			}
			pl.exec.Close()
			return nil, err
		}
		if proc.log != nil {
			pl.log = proc.log
		}
		pl.procs = append(pl.procs, proc)
	}
	return pl, nil
}

// Start launches every processor's reactor loop.
func (pl *Pool) Start() {
	for _, proc := range pl.procs {
		proc := proc
		pl.wg.Add(1)
		go func() {
			defer pl.wg.Done()
			if err := proc.Run(); err != nil {
				pl.log.Error("processor terminated", zap.Error(err))
			}
		}()
	}
}

// Submit shards a new session onto the next processor round-robin.
// Ownership of fd transfers on the call, as with Processor.Submit.
func (pl *Pool) Submit(fd int) (string, error) {
	proc := pl.procs[pl.next.Add(1)%uint64(len(pl.procs))]
	id, err := proc.Submit(fd)
	if err != nil {
		return "", err
	}
	pl.owners.Store(id, proc)
	return id, nil
}

// Write routes bytes to the processor owning the session.
func (pl *Pool) Write(id string, b []byte) error {
	proc, ok := pl.owners.Load(id)
	if !ok {
		return api.ErrUnknownSession
	}
	return proc.(*Processor).Write(id, b)
}

// TransferFile routes a file-region transfer to the owning processor.
func (pl *Pool) TransferFile(id string, f *os.File, offset, count int64) error {
	proc, ok := pl.owners.Load(id)
	if !ok {
		return api.ErrUnknownSession
	}
	return proc.(*Processor).TransferFile(id, f, offset, count)
}

// Close requests an asynchronous close of the session. Idempotent.
func (pl *Pool) Close(id string) error {
	proc, ok := pl.owners.Load(id)
	if !ok {
		return nil
	}
	return proc.(*Processor).Close(id)
}

// Shutdown stops every processor, joins their threads, and closes the
// shared executor. Subsequent calls are no-ops returning the same result.
func (pl *Pool) Shutdown() error {
	pl.shutdownOnce.Do(func() {
		var errs []error
		for _, proc := range pl.procs {
			if err := proc.Shutdown(); err != nil {
				errs = append(errs, err)
			}
		}
		pl.wg.Wait()
		pl.exec.Close()
		pl.shutErr = errors.Join(errs...)
	})
	return pl.shutErr
}

// forget drops ownership bookkeeping once a session can receive no
// further events.
func (pl *Pool) forget(ev api.Event) {
	switch ev.Kind {
	case api.EventClosed:
		pl.owners.Delete(ev.SessionID)
	case api.EventError:
		// registration failures are terminal without a close event
		var regErr *api.RegistrationError
		if errors.As(ev.Err, &regErr) {
			pl.owners.Delete(ev.SessionID)
		}
	}
}
