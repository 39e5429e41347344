// Package session
// Author: momentics <momentics@gmail.com>
//
// Per-connection state for the reactor: lifecycle state machine,
// interest set, registration handle, and the pending write queue.
//
// Fields touched only by the reactor thread after a session is open
// (handle, interest set) carry no synchronization. The pending write
// queue and the lifecycle state are shared with external threads and
// are guarded accordingly.
package session
