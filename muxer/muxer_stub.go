//go:build !linux
// +build !linux

// File: muxer/muxer_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for platforms without a polling backend.

package muxer

import "github.com/momentics/hioload-mux/api"

// New returns an error for unsupported platforms.
func New(maxEvents int) (api.Multiplexer, error) {
	return nil, api.ErrNotSupported
}
