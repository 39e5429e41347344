//go:build unix
// +build unix

// File: processor/processor.go
// Package processor implements the reactor loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package processor

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/control"
	"github.com/momentics/hioload-mux/dispatch"
	"github.com/momentics/hioload-mux/internal/concurrency"
	"github.com/momentics/hioload-mux/muxer"
	"github.com/momentics/hioload-mux/session"
)

// removeReq pairs a session with the reason its close was requested.
type removeReq struct {
	s      *session.Session
	reason api.CloseReason
}

// config holds the reactor tunables; see options.go.
type config struct {
	selectTimeout time.Duration
	idleTimeout   time.Duration
	readBufSize   int
	fairnessBytes int
	maxEvents     int
	workers       int
}

// Processor multiplexes many sessions on one reactor thread.
type Processor struct {
	cfg     config
	mux     api.Multiplexer
	exec    api.Executor
	ownExec bool
	handler api.Handler
	log     *zap.Logger
	metrics *control.Metrics

	registry *session.Registry
	active   map[api.Handle]*session.Session

	adds    *concurrency.Handoff[*session.Session]
	removes *concurrency.Handoff[removeReq]
	flushes *concurrency.Handoff[*session.Session]

	readBuf []byte
	ready   []api.Ready

	// stateMu serializes the Run/Shutdown handshake so exactly one side
	// owns teardown and the done close.
	stateMu      sync.Mutex
	started      bool
	shuttingDown atomic.Bool
	shutdownOnce sync.Once
	done         chan struct{}
	runErr       error
}

// New creates a processor delivering events to handler. The processor
// does nothing until Run is called on a dedicated goroutine.
func New(handler api.Handler, opts ...Option) (*Processor, error) {
	p := &Processor{
		cfg: config{
			selectTimeout: time.Second,
			readBufSize:   64 * 1024,
			fairnessBytes: 256 * 1024,
			maxEvents:     128,
		},
		handler:  handler,
		log:      zap.NewNop(),
		registry: session.NewRegistry(16),
		active:   make(map[api.Handle]*session.Session),
		adds:     concurrency.NewHandoff[*session.Session](),
		removes:  concurrency.NewHandoff[removeReq](),
		flushes:  concurrency.NewHandoff[*session.Session](),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.mux == nil {
		m, err := muxer.New(p.cfg.maxEvents)
		if err != nil {
			return nil, err
		}
		p.mux = m
	}
	if p.exec == nil {
		p.exec = dispatch.NewExecutor(p.cfg.workers)
		p.ownExec = true
	}
	p.readBuf = make([]byte, p.cfg.readBufSize)
	p.ready = make([]api.Ready, p.cfg.maxEvents)
	return p, nil
}

// Submit enqueues fd as a new session in the Preparing state and wakes
// the reactor. The returned identity keys all events for the session.
// Ownership of fd transfers on the call: the processor closes it on
// every path, including rejection.
func (p *Processor) Submit(fd int) (string, error) {
	if p.shuttingDown.Load() {
		_ = unix.Close(fd)
		return "", api.ErrProcessorClosed
	}
	s := session.New(fd)
	s.SetFlusher(p.requestFlush)
	p.registry.Put(s)
	p.adds.Push(s)
	if p.shuttingDown.Load() {
		// Shutdown raced the push; teardown's final drain may already
		// have run, so reclaim the session here. MarkClosed arbitrates
		// if the drain saw it too.
		p.discard(s)
		return "", api.ErrProcessorClosed
	}
	_ = p.mux.Wakeup()
	return s.ID(), nil
}

// Write appends bytes to a session's pending queue. Fire-and-forget:
// delivery is confirmed by an EventSent.
func (p *Processor) Write(id string, b []byte) error {
	s, ok := p.registry.Get(id)
	if !ok {
		return api.ErrUnknownSession
	}
	return s.Write(b)
}

// TransferFile schedules a file-region transfer on a session. The
// region is flushed in queue order with the platform's channel-to-
// channel primitive when available.
func (p *Processor) TransferFile(id string, f *os.File, offset, count int64) error {
	s, ok := p.registry.Get(id)
	if !ok {
		return api.ErrUnknownSession
	}
	return s.TransferFile(f, offset, count)
}

// Close requests an asynchronous session close. Idempotent: closing an
// unknown or already-closed session is a no-op. The close takes effect
// on the next loop iteration.
func (p *Processor) Close(id string) error {
	s, ok := p.registry.Get(id)
	if !ok {
		return nil
	}
	p.removes.Push(removeReq{s: s, reason: api.CloseRequested})
	_ = p.mux.Wakeup()
	return nil
}

// Run executes the reactor loop until Shutdown. It owns the calling
// goroutine, pins it to an OS thread, and returns nil on orderly
// shutdown or the fatal multiplexer error that terminated the loop.
func (p *Processor) Run() error {
	p.stateMu.Lock()
	if p.shuttingDown.Load() || p.started {
		p.stateMu.Unlock()
		return api.ErrProcessorClosed
	}
	p.started = true
	p.stateMu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	for {
		p.drainAdds()
		p.drainRemoves()
		p.drainFlushes()
		if p.shuttingDown.Load() {
			break
		}
		n, err := p.mux.Wait(p.ready, p.cfg.selectTimeout)
		if err != nil {
			p.runErr = err
			p.log.Error("multiplexer wait failed", zap.Error(err))
			break
		}
		for i := 0; i < n; i++ {
			p.dispatch(p.ready[i])
		}
		p.scanIdle()
	}
	p.teardown()
	return p.runErr
}

// Shutdown requests loop termination, closes every active session, and
// releases the multiplexer. Safe to call from any goroutine and
// concurrently with in-flight Submit calls; subsequent calls are no-ops.
func (p *Processor) Shutdown() error {
	p.shutdownOnce.Do(func() {
		p.stateMu.Lock()
		p.shuttingDown.Store(true)
		started := p.started
		p.stateMu.Unlock()
		if started {
			_ = p.mux.Wakeup()
		} else {
			p.teardown()
			close(p.done)
		}
	})
	<-p.done
	return p.runErr
}

// requestFlush is the session callback for empty-to-non-empty write
// queue transitions. Any thread.
func (p *Processor) requestFlush(s *session.Session) {
	p.flushes.Push(s)
	_ = p.mux.Wakeup()
}

// drainAdds performs Preparing -> Open for every submitted session.
func (p *Processor) drainAdds() {
	p.adds.Drain(func(s *session.Session) {
		if p.shuttingDown.Load() {
			p.discard(s)
			return
		}
		if s.State() != session.Preparing {
			// closed before it was ever registered
			p.registry.Delete(s.ID())
			return
		}
		h, err := p.mux.Register(s.Fd(), api.OpRead)
		if err != nil {
			p.registry.Delete(s.ID())
			_ = unix.Close(s.Fd())
			p.emit(api.Event{SessionID: s.ID(), Kind: api.EventError, Err: err})
			return
		}
		if !s.MarkOpen(h) {
			_ = p.mux.Deregister(h)
			p.registry.Delete(s.ID())
			return
		}
		s.SetInterest(api.OpRead)
		s.Touch()
		p.active[h] = s
		p.metrics.SessionOpened()
		if s.HasPending() {
			// bytes were written before the session opened
			p.raiseWrite(s)
		}
	})
}

func (p *Processor) drainRemoves() {
	p.removes.Drain(func(req removeReq) {
		p.closeSession(req.s, req.reason, nil)
	})
}

func (p *Processor) drainFlushes() {
	p.flushes.Drain(func(s *session.Session) {
		if s.State() != session.Open {
			return
		}
		if s.HasPending() {
			p.raiseWrite(s)
		}
	})
}

// dispatch routes one readiness notification to its session.
func (p *Processor) dispatch(r api.Ready) {
	s, ok := p.active[r.Handle]
	if !ok {
		return
	}
	if r.Ops.Has(api.OpRead) {
		p.handleRead(s)
	}
	if s.State() == session.Closed {
		return
	}
	if r.Ops.Has(api.OpWrite) {
		p.handleWrite(s)
	}
}

// handleRead drains the channel into the reusable buffer until it
// reports no data, EOF, an error, or the per-pass fairness bound.
func (p *Processor) handleRead(s *session.Session) {
	total := 0
	for total < p.cfg.fairnessBytes {
		n, err := unix.Read(s.Fd(), p.readBuf)
		if n > 0 {
			s.Touch()
			total += n
			p.metrics.BytesRead(n)
			data := make([]byte, n)
			copy(data, p.readBuf[:n])
			p.emit(api.Event{SessionID: s.ID(), Kind: api.EventReceived, Data: data})
			if n < len(p.readBuf) {
				return
			}
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		if err == unix.EINTR {
			continue
		}
		if err == nil {
			p.closeSession(s, api.CloseEOF, nil)
			return
		}
		p.closeSession(s, api.CloseError, &api.TransientIOError{Op: "read", Err: err})
		return
	}
	// Fairness bound hit; the remainder is picked up next pass since
	// the registration is level-triggered.
}

// handleWrite flushes pending writes as far as the channel accepts,
// then re-derives writable interest from the remaining backlog.
func (p *Processor) handleWrite(s *session.Session) {
	flushed := 0
	for {
		op, ok := s.NextWrite()
		if !ok {
			break
		}
		var n int64
		var err error
		if op.Region != nil {
			n, err = p.transfer(s, op.Region)
		} else {
			var w int
			w, err = unix.Write(s.Fd(), op.Data)
			if w > 0 {
				n = int64(w)
			}
		}
		if n > 0 {
			s.CompleteWrite(n)
			flushed += int(n)
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			if err == unix.EINTR {
				continue
			}
			p.closeSession(s, api.CloseError, &api.TransientIOError{Op: "write", Err: err})
			return
		}
		if op.Region == nil && n < int64(len(op.Data)) {
			break // kernel buffer full
		}
	}
	if flushed > 0 {
		s.Touch()
		p.metrics.BytesWritten(flushed)
		p.emit(api.Event{SessionID: s.ID(), Kind: api.EventSent, Count: flushed})
	}
	p.updateWriteInterest(s)
}

// raiseWrite asserts writable interest on an open session.
func (p *Processor) raiseWrite(s *session.Session) {
	ops := s.Interest()
	if ops.Has(api.OpWrite) {
		return
	}
	ops |= api.OpWrite
	if err := p.mux.SetInterest(s.Handle(), ops); err != nil {
		p.log.Warn("raise writable interest", zap.String("session", s.ID()), zap.Error(err))
		return
	}
	s.SetInterest(ops)
}

// updateWriteInterest keeps OpWrite asserted iff backlog remains. This
// is the backpressure signal: an idle-but-writable channel never spins.
func (p *Processor) updateWriteInterest(s *session.Session) {
	if s.HasPending() {
		p.raiseWrite(s)
		return
	}
	ops := s.Interest()
	if !ops.Has(api.OpWrite) {
		return
	}
	ops &^= api.OpWrite
	if err := p.mux.SetInterest(s.Handle(), ops); err != nil {
		p.log.Warn("clear writable interest", zap.String("session", s.ID()), zap.Error(err))
		return
	}
	s.SetInterest(ops)
}

// scanIdle closes sessions without IO activity beyond the threshold.
func (p *Processor) scanIdle() {
	if p.cfg.idleTimeout <= 0 {
		return
	}
	now := time.Now()
	var expired []*session.Session
	for _, s := range p.active {
		if s.IdleFor(now) > p.cfg.idleTimeout {
			expired = append(expired, s)
		}
	}
	for _, s := range expired {
		p.closeSession(s, api.CloseIdle, nil)
	}
}

// closeSession performs the terminal transition: deregister, close the
// channel, drop bookkeeping, emit events. Idempotent.
func (p *Processor) closeSession(s *session.Session, reason api.CloseReason, cause error) {
	if !s.MarkClosed() {
		return
	}
	if h := s.Handle(); h != api.InvalidHandle {
		delete(p.active, h)
		if err := p.mux.Deregister(h); err != nil {
			p.log.Warn("deregister session", zap.String("session", s.ID()), zap.Error(err))
		}
		s.ClearHandle()
	} else {
		// never registered; the descriptor is still ours to close
		_ = unix.Close(s.Fd())
	}
	p.registry.Delete(s.ID())
	if cause != nil {
		p.emit(api.Event{SessionID: s.ID(), Kind: api.EventError, Err: cause})
	}
	p.emit(api.Event{SessionID: s.ID(), Kind: api.EventClosed, Reason: reason})
	p.metrics.SessionClosed(reason)
}

// teardown drains every session to Closed, then releases the
// multiplexer. Runs exactly once, on the loop's exit path.
func (p *Processor) teardown() {
	var open []*session.Session
	for _, s := range p.active {
		open = append(open, s)
	}
	for _, s := range open {
		p.closeSession(s, api.CloseShutdown, nil)
	}
	p.adds.Drain(func(s *session.Session) { p.discard(s) })
	p.removes.Drain(func(removeReq) {})
	p.flushes.Drain(func(*session.Session) {})
	if err := p.mux.Close(); err != nil {
		p.log.Error("multiplexer close failed", zap.Error(err))
		if p.runErr == nil {
			p.runErr = err
		}
	}
	if p.ownExec {
		p.exec.Close()
	}
}

// discard drops a session that was submitted but never opened.
func (p *Processor) discard(s *session.Session) {
	if !s.MarkClosed() {
		return
	}
	p.registry.Delete(s.ID())
	_ = unix.Close(s.Fd())
}

// emit hands one event to the executor, keyed by session identity.
func (p *Processor) emit(ev api.Event) {
	p.metrics.EventDispatched()
	if err := p.exec.Submit(ev.SessionID, func() { p.handler.HandleEvent(ev) }); err != nil {
		p.log.Debug("event dropped", zap.String("session", ev.SessionID),
			zap.Stringer("kind", ev.Kind), zap.Error(err))
	}
}
