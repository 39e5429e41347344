// Package processor
// Author: momentics <momentics@gmail.com>
//
// The single-threaded I/O processor: one multiplexer, one reactor loop,
// one dedicated thread. External goroutines hand sessions, writes, and
// close requests across via concurrency-safe queues paired with a
// multiplexer wakeup; all socket I/O happens non-blocking on the
// reactor thread, and every observable outcome is delivered to the
// event executor keyed by session identity.
//
// Per-session failures never escape the loop; only a failure of the
// polling primitive itself terminates a processor.
package processor
