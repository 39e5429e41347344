// Package api
// Author: momentics
//
// Executor contract for running application-level event handling off
// the reactor thread.

package api

// Executor dispatches tasks to a worker pool. Tasks sharing a key are
// executed in submission order on the same worker, which gives every
// session a serialized event stream.
type Executor interface {
	// Submit schedules fn for execution under the given routing key.
	Submit(key string, fn func()) error

	// NumWorkers returns the number of worker goroutines.
	NumWorkers() int

	// Close stops the workers after draining already-submitted tasks.
	Close()
}
