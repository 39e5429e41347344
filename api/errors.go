// File: api/errors.go
// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy for hioload-mux. Per-session failures are contained at
// session granularity; only multiplexer-primitive failures are fatal to
// a processor.

package api

import (
	"errors"
	"fmt"
)

// Sentinel errors used across the library.
var (
	ErrProcessorClosed = errors.New("processor is shut down")
	ErrSessionClosed   = errors.New("session is closed")
	ErrUnknownSession  = errors.New("unknown session")
	ErrUnknownHandle   = errors.New("unknown registration handle")
	ErrNotSupported    = errors.New("operation not supported on this platform")
	ErrExecutorClosed  = errors.New("executor is closed")
)

// RegistrationError reports a failure to register a newly submitted
// session with the multiplexer. The session never reaches the open
// state; the error is delivered to the submitter as an EventError.
type RegistrationError struct {
	Fd  int
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register fd %d: %v", e.Fd, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// FatalMultiplexerError reports that the polling primitive itself is
// unusable. It terminates the owning processor and is propagated to the
// processor's owner; it is never produced for per-channel failures.
type FatalMultiplexerError struct {
	Op  string
	Err error
}

func (e *FatalMultiplexerError) Error() string {
	return fmt.Sprintf("multiplexer %s: %v", e.Op, e.Err)
}

func (e *FatalMultiplexerError) Unwrap() error { return e.Err }

// TransientIOError reports a per-session I/O failure. It resolves to a
// closed session plus an EventError and never escapes the reactor loop.
type TransientIOError struct {
	Op  string // "read", "write" or "transfer"
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }
