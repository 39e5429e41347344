// File: api/events.go
// Package api defines the session event model of hioload-mux.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// EventKind discriminates the tagged union of session events delivered
// to application code through the executor.
type EventKind int

const (
	// EventReceived carries bytes read from the channel.
	EventReceived EventKind = iota
	// EventSent reports how many pending bytes were flushed.
	EventSent
	// EventClosed reports the terminal close of a session.
	EventClosed
	// EventError reports a per-session failure. It is always followed
	// by an EventClosed for the same session, except for sessions that
	// failed registration and never reached the open state.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReceived:
		return "received"
	case EventSent:
		return "sent"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// CloseReason explains why a session reached its terminal state.
type CloseReason int

const (
	// CloseRequested: an explicit close was submitted by the application.
	CloseRequested CloseReason = iota
	// CloseEOF: the peer shut down its side of the connection.
	CloseEOF
	// CloseError: an I/O error occurred on read, write, or transfer.
	CloseError
	// CloseIdle: the session exceeded the configured idle timeout.
	CloseIdle
	// CloseShutdown: the owning processor was shut down.
	CloseShutdown
)

func (r CloseReason) String() string {
	switch r {
	case CloseRequested:
		return "requested"
	case CloseEOF:
		return "eof"
	case CloseError:
		return "error"
	case CloseIdle:
		return "idle"
	case CloseShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Event is one observable outcome on a session, keyed by session identity.
// Exactly one of the payload fields is meaningful, selected by Kind.
type Event struct {
	SessionID string
	Kind      EventKind

	// Data holds received bytes for EventReceived. The slice is owned by
	// the receiver; the reactor never reuses it.
	Data []byte

	// Count holds the number of bytes flushed for EventSent.
	Count int

	// Reason is set for EventClosed.
	Reason CloseReason

	// Err is set for EventError.
	Err error
}

// Handler consumes session events on executor workers, never on the
// reactor thread.
type Handler interface {
	HandleEvent(ev Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ev Event)

func (f HandlerFunc) HandleEvent(ev Event) { f(ev) }
