//go:build linux
// +build linux

// muxer_linux_test.go — unit tests for the epoll selection multiplexer.
package muxer_test

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/muxer"
)

// socketPair returns a connected AF_UNIX stream pair.
func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	return fds[0], fds[1]
}

func newMux(t *testing.T) api.Multiplexer {
	t.Helper()
	m, err := muxer.New(16)
	if err != nil {
		t.Fatalf("muxer.New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestRegisterAndWaitReadable(t *testing.T) {
	m := newMux(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	h, err := m.Register(a, api.OpRead)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h == api.InvalidHandle {
		t.Fatal("Register returned invalid handle")
	}

	if _, err := unix.Write(b, []byte("x")); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	ready := make([]api.Ready, 16)
	n, err := m.Wait(ready, time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 ready, got %d", n)
	}
	if ready[0].Handle != h {
		t.Fatalf("ready handle = %v, want %v", ready[0].Handle, h)
	}
	if !ready[0].Ops.Has(api.OpRead) {
		t.Fatalf("ready ops = %v, want readable", ready[0].Ops)
	}
}

func TestWaitTimesOut(t *testing.T) {
	m := newMux(t)
	a, b := socketPair(t)
	defer unix.Close(b)
	if _, err := m.Register(a, api.OpRead); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ready := make([]api.Ready, 16)
	start := time.Now()
	n, err := m.Wait(ready, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected timeout with 0 ready, got %d", n)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("Wait returned too early: %v", elapsed)
	}
}

func TestWakeupUnblocksWait(t *testing.T) {
	m := newMux(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		m.Wakeup()
	}()

	ready := make([]api.Ready, 16)
	start := time.Now()
	n, err := m.Wait(ready, 10*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Fatalf("wakeup should report 0 ready, got %d", n)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("wakeup did not unblock Wait promptly: %v", elapsed)
	}
}

func TestWakeupBeforeWaitIsNotLost(t *testing.T) {
	m := newMux(t)
	if err := m.Wakeup(); err != nil {
		t.Fatalf("Wakeup: %v", err)
	}

	ready := make([]api.Ready, 16)
	start := time.Now()
	if _, err := m.Wait(ready, 10*time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("pre-issued wakeup was lost, Wait blocked for %v", elapsed)
	}
}

func TestInterestMask(t *testing.T) {
	m := newMux(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	h, err := m.Register(a, api.OpRead)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	ops, err := m.InterestOf(h)
	if err != nil || ops != api.OpRead {
		t.Fatalf("InterestOf = %v, %v; want read", ops, err)
	}

	// An empty socket with writable interest reports writable.
	if err := m.SetInterest(h, api.OpRead|api.OpWrite); err != nil {
		t.Fatalf("SetInterest: %v", err)
	}
	ready := make([]api.Ready, 16)
	n, err := m.Wait(ready, time.Second)
	if err != nil || n != 1 {
		t.Fatalf("Wait = %d, %v; want 1 writable", n, err)
	}
	if !ready[0].Ops.Has(api.OpWrite) {
		t.Fatalf("ready ops = %v, want writable", ready[0].Ops)
	}

	// Clearing writable interest silences the notification.
	if err := m.SetInterest(h, api.OpRead); err != nil {
		t.Fatalf("SetInterest: %v", err)
	}
	n, err = m.Wait(ready, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no readiness after clearing interest, got %d", n)
	}
}

func TestDeregisterIdempotent(t *testing.T) {
	m := newMux(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	h, err := m.Register(a, api.OpRead)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Deregister(h); err != nil {
		t.Fatalf("first Deregister: %v", err)
	}
	if err := m.Deregister(h); err != nil {
		t.Fatalf("second Deregister should be a no-op, got %v", err)
	}
	if _, err := m.InterestOf(h); !errors.Is(err, api.ErrUnknownHandle) {
		t.Fatalf("InterestOf after deregister = %v, want ErrUnknownHandle", err)
	}
}

func TestDeregisterClosesChannel(t *testing.T) {
	m := newMux(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	h, err := m.Register(a, api.OpRead)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Deregister(h); err != nil {
		t.Fatalf("Deregister: %v", err)
	}

	// The peer observes EOF once the registered side is closed.
	buf := make([]byte, 1)
	n, err := unix.Read(b, buf)
	if n != 0 || err != nil {
		t.Fatalf("peer read = %d, %v; want EOF", n, err)
	}
}

func TestRegistrationFailure(t *testing.T) {
	m := newMux(t)
	_, err := m.Register(-1, api.OpRead)
	var regErr *api.RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("Register(-1) = %v, want *api.RegistrationError", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	m, err := muxer.New(16)
	if err != nil {
		t.Fatalf("muxer.New: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}

	ready := make([]api.Ready, 1)
	_, err = m.Wait(ready, time.Millisecond)
	var fatal *api.FatalMultiplexerError
	if !errors.As(err, &fatal) {
		t.Fatalf("Wait after Close = %v, want *api.FatalMultiplexerError", err)
	}
}

// More simultaneously ready descriptors than the caller's slice holds
// must never overflow it; the remainder resurfaces on the next wait.
func TestWaitMoreReadyThanCapacity(t *testing.T) {
	m, err := muxer.New(1)
	if err != nil {
		t.Fatalf("muxer.New: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	a1, b1 := socketPair(t)
	a2, b2 := socketPair(t)
	defer unix.Close(b1)
	defer unix.Close(b2)

	h1, err := m.Register(a1, api.OpRead)
	if err != nil {
		t.Fatalf("Register a1: %v", err)
	}
	h2, err := m.Register(a2, api.OpRead)
	if err != nil {
		t.Fatalf("Register a2: %v", err)
	}
	if _, err := unix.Write(b1, []byte("x")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	if _, err := unix.Write(b2, []byte("x")); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	fdOf := map[api.Handle]int{h1: a1, h2: a2}
	seen := make(map[api.Handle]bool)
	ready := make([]api.Ready, 1)
	buf := make([]byte, 8)
	for i := 0; i < 10 && len(seen) < 2; i++ {
		n, err := m.Wait(ready, time.Second)
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if n > len(ready) {
			t.Fatalf("Wait returned %d ready for a %d-slot slice", n, len(ready))
		}
		if n == 1 {
			h := ready[0].Handle
			seen[h] = true
			// drain so the next wait surfaces the other descriptor
			unix.Read(fdOf[h], buf)
		}
	}
	if !seen[h1] || !seen[h2] {
		t.Fatalf("readiness seen = %v, want both handles", seen)
	}
}

// A positive sub-millisecond timeout still blocks instead of degrading
// into a non-blocking poll.
func TestWaitSubMillisecondTimeoutBlocks(t *testing.T) {
	m := newMux(t)
	ready := make([]api.Ready, 4)
	start := time.Now()
	n, err := m.Wait(ready, 200*time.Microsecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Fatalf("Wait = %d ready, want 0", n)
	}
	if elapsed := time.Since(start); elapsed < 500*time.Microsecond {
		t.Fatalf("Wait returned after %v, want a bounded block of ~1ms", elapsed)
	}
}
