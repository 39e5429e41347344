// File: api/multiplexer.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for readiness-driven IO multiplexing
// used to drive many sockets from one reactor thread, regardless of the
// platform polling primitive (epoll, kqueue, IOCP) behind it.

package api

import "time"

// Ops is a bitmask of channel operations a registration is interested in,
// or that a channel is currently ready for.
type Ops uint32

const (
	// OpRead indicates the channel has bytes available to read.
	OpRead Ops = 1 << iota
	// OpWrite indicates the channel can accept bytes without blocking.
	OpWrite
)

// Has reports whether all bits of want are set.
func (o Ops) Has(want Ops) bool { return o&want == want }

func (o Ops) String() string {
	switch o & (OpRead | OpWrite) {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpRead | OpWrite:
		return "read|write"
	default:
		return "none"
	}
}

// Handle is an opaque token identifying one registered channel inside a
// Multiplexer. Handles come from an internal registry, never from raw
// platform state, so their lifetime is fully owned by the multiplexer.
type Handle uint64

// InvalidHandle is returned by failed registrations.
const InvalidHandle Handle = 0

// Ready describes one readiness notification returned by Wait.
type Ready struct {
	Handle Handle
	Ops    Ops
}

// Multiplexer wraps a platform readiness-polling primitive. All methods
// except Wakeup must be called from the owning reactor thread; Wakeup is
// safe from any goroutine.
type Multiplexer interface {
	// Register places fd under the multiplexer with the given initial
	// interest. The descriptor is switched to non-blocking mode first.
	// Failures are reported as *RegistrationError.
	Register(fd int, interest Ops) (Handle, error)

	// Deregister cancels the registration and closes the underlying
	// descriptor. Deregistering an unknown or already-removed handle is
	// a no-op, not an error.
	Deregister(h Handle) error

	// SetInterest replaces the interest mask of a registration.
	SetInterest(h Handle, ops Ops) error

	// InterestOf returns the current interest mask of a registration.
	InterestOf(h Handle) (Ops, error)

	// Wait blocks until at least one registered channel is ready, the
	// timeout elapses, or Wakeup is called. Ready notifications are
	// written into ready; the count is returned. A return of zero with
	// nil error means timeout or wakeup.
	Wait(ready []Ready, timeout time.Duration) (int, error)

	// Wakeup forces a concurrently blocked Wait to return promptly.
	// Callable from any goroutine; wakeups are never lost, even when
	// issued while no Wait is in progress.
	Wakeup() error

	// Close deregisters everything and releases the polling primitive.
	// Idempotent. A failure here is a *FatalMultiplexerError.
	Close() error
}
