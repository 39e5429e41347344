// Package dispatch
// Author: momentics <momentics@gmail.com>
//
// Worker-pool executor that runs application event handling off the
// reactor thread. Tasks are routed by key so one session's events are
// always handled in order on a single worker.
package dispatch
