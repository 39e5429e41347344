//go:build linux
// +build linux

// pool_linux_test.go — round-robin sharding over several processors.
package processor_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-mux/api"
	"github.com/momentics/hioload-mux/processor"
)

func TestPoolEchoAcrossProcessors(t *testing.T) {
	c := newCollector()
	var pool *processor.Pool
	handler := api.HandlerFunc(func(ev api.Event) {
		if ev.Kind == api.EventReceived {
			pool.Write(ev.SessionID, ev.Data)
		}
		c.HandleEvent(ev)
	})

	pool, err := processor.NewPool(2, handler,
		processor.WithSelectTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	pool.Start()
	defer pool.Shutdown()

	type conn struct {
		id   string
		peer int
	}
	var conns []conn
	for i := 0; i < 4; i++ {
		a, b := socketPair(t)
		id, err := pool.Submit(a)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		conns = append(conns, conn{id: id, peer: b})
	}

	for i, cn := range conns {
		msg := []byte{byte('a' + i)}
		if _, err := unix.Write(cn.peer, msg); err != nil {
			t.Fatalf("peer write: %v", err)
		}
		if got := readN(t, cn.peer, 1, 5*time.Second); !bytes.Equal(got, msg) {
			t.Fatalf("echo for session %s = %q, want %q", cn.id, got, msg)
		}
		unix.Close(cn.peer)
	}
}

func TestPoolWriteUnknownSession(t *testing.T) {
	pool, err := processor.NewPool(1, newCollector(),
		processor.WithSelectTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	pool.Start()
	defer pool.Shutdown()

	if err := pool.Write("missing", []byte("x")); !errors.Is(err, api.ErrUnknownSession) {
		t.Fatalf("Write = %v, want ErrUnknownSession", err)
	}
	if err := pool.Close("missing"); err != nil {
		t.Fatalf("Close on unknown session = %v, want nil", err)
	}
}

func TestPoolShutdownIdempotent(t *testing.T) {
	pool, err := processor.NewPool(2, newCollector(),
		processor.WithSelectTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	pool.Start()
	if err := pool.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := pool.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	a, b := socketPair(t)
	defer unix.Close(b)
	if _, err := pool.Submit(a); !errors.Is(err, api.ErrProcessorClosed) {
		t.Fatalf("Submit after shutdown = %v, want ErrProcessorClosed", err)
	}
}
