// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package muxer provides the concrete selection multiplexer backends.
// One implementation exists per platform polling primitive; Linux uses
// epoll(7) with an eventfd(2) wakeup channel. The reactor in package
// processor depends only on api.Multiplexer and never on this package's
// internals.
package muxer
