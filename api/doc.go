// Package api
// Author: momentics <momentics@gmail.com>
//
// Public contracts of the hioload-mux transport core: the selection
// multiplexer abstraction, the session event model, and the executor
// used to run application handlers off the reactor thread.
//
// The reactor loop depends only on these interfaces; platform-specific
// polling backends live in package muxer.
package api
