//go:build linux
// +build linux

// File: muxer/muxer_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based selection multiplexer. Registrations are tracked
// in an explicit handle registry; the kernel event only carries the raw
// descriptor, which is resolved back to a handle on each wait pass.

package muxer

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-mux/api"
)

// entry is one live registration.
type entry struct {
	fd       int
	interest api.Ops
}

// epollMux implements api.Multiplexer on top of epoll.
//
// All methods except Wakeup are reactor-thread-only, so the registry
// needs no locking. Wakeup touches nothing but the eventfd.
type epollMux struct {
	epfd   int
	wakeFd int

	entries map[api.Handle]*entry
	byFd    map[int]api.Handle
	next    uint64
	raw     []unix.EpollEvent
	wakeBuf [8]byte

	closed  bool        // reactor-thread view
	closing atomic.Bool // checked by cross-thread Wakeup
}

// New constructs the platform multiplexer for Linux.
func New(maxEvents int) (api.Multiplexer, error) {
	if maxEvents <= 0 {
		maxEvents = 128
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, &api.FatalMultiplexerError{Op: "create", Err: err}
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, &api.FatalMultiplexerError{Op: "create wakeup", Err: err}
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, &api.FatalMultiplexerError{Op: "arm wakeup", Err: err}
	}
	return &epollMux{
		epfd:    epfd,
		wakeFd:  wakeFd,
		entries: make(map[api.Handle]*entry),
		byFd:    make(map[int]api.Handle),
		raw:     make([]unix.EpollEvent, maxEvents+1),
	}, nil
}

// epollEvents translates an interest mask into epoll event bits.
func epollEvents(ops api.Ops) uint32 {
	var ev uint32
	if ops.Has(api.OpRead) {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if ops.Has(api.OpWrite) {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (m *epollMux) Register(fd int, interest api.Ops) (api.Handle, error) {
	if m.closed {
		return api.InvalidHandle, &api.RegistrationError{Fd: fd, Err: api.ErrProcessorClosed}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return api.InvalidHandle, &api.RegistrationError{Fd: fd, Err: err}
	}
	ev := unix.EpollEvent{Events: epollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return api.InvalidHandle, &api.RegistrationError{Fd: fd, Err: err}
	}
	m.next++
	h := api.Handle(m.next)
	m.entries[h] = &entry{fd: fd, interest: interest}
	m.byFd[fd] = h
	return h, nil
}

func (m *epollMux) Deregister(h api.Handle) error {
	e, ok := m.entries[h]
	if !ok {
		return nil
	}
	delete(m.entries, h)
	delete(m.byFd, e.fd)
	// The kernel drops the epoll entry on close, but remove it first so
	// a descriptor reused by a later accept cannot alias this one.
	_ = unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, e.fd, nil)
	return unix.Close(e.fd)
}

func (m *epollMux) SetInterest(h api.Handle, ops api.Ops) error {
	e, ok := m.entries[h]
	if !ok {
		return api.ErrUnknownHandle
	}
	if e.interest == ops {
		return nil
	}
	ev := unix.EpollEvent{Events: epollEvents(ops), Fd: int32(e.fd)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_MOD, e.fd, &ev); err != nil {
		return err
	}
	e.interest = ops
	return nil
}

func (m *epollMux) InterestOf(h api.Handle) (api.Ops, error) {
	e, ok := m.entries[h]
	if !ok {
		return 0, api.ErrUnknownHandle
	}
	return e.interest, nil
}

func (m *epollMux) Wait(ready []api.Ready, timeout time.Duration) (int, error) {
	if m.closed {
		return 0, &api.FatalMultiplexerError{Op: "wait", Err: api.ErrProcessorClosed}
	}
	ms := int(timeout / time.Millisecond)
	if timeout < 0 {
		ms = -1
	} else if timeout > 0 && ms == 0 {
		// epoll's granularity is milliseconds; rounding down would turn
		// a bounded wait into a busy poll.
		ms = 1
	}
	limit := len(ready) + 1
	if limit > len(m.raw) {
		limit = len(m.raw)
	}
	n, err := unix.EpollWait(m.epfd, m.raw[:limit], ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, &api.FatalMultiplexerError{Op: "wait", Err: err}
	}
	out := 0
	for i := 0; i < n; i++ {
		raw := m.raw[i]
		fd := int(raw.Fd)
		if fd == m.wakeFd {
			m.drainWakeup()
			continue
		}
		h, ok := m.byFd[fd]
		if !ok {
			continue // raced with a deregistration in the same pass
		}
		var ops api.Ops
		if raw.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
			ops |= api.OpRead
		}
		if raw.Events&unix.EPOLLOUT != 0 {
			ops |= api.OpWrite
		}
		if raw.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			// Surface error conditions as readability so the reactor's
			// next read observes the failure or EOF directly.
			ops |= api.OpRead
		}
		if out == len(ready) {
			// The extra raw slot was spent on a session event instead of
			// the wakeup fd. Level-triggered registrations resurface the
			// overflow, and any undrained wakeup, on the next wait.
			break
		}
		ready[out] = api.Ready{Handle: h, Ops: ops}
		out++
	}
	return out, nil
}

// drainWakeup resets the eventfd counter so the next Wait blocks again.
func (m *epollMux) drainWakeup() {
	_, _ = unix.Read(m.wakeFd, m.wakeBuf[:])
}

func (m *epollMux) Wakeup() error {
	if m.closing.Load() {
		return nil
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(m.wakeFd, buf[:])
	if err == unix.EAGAIN {
		// Counter saturated: a wakeup is already pending.
		return nil
	}
	return err
}

func (m *epollMux) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.closing.Store(true)
	for h := range m.entries {
		_ = m.Deregister(h)
	}
	_ = unix.Close(m.wakeFd)
	if err := unix.Close(m.epfd); err != nil {
		return &api.FatalMultiplexerError{Op: "close", Err: err}
	}
	return nil
}
