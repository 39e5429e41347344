//go:build unix && !linux
// +build unix,!linux

// File: processor/transfer_other.go
// Author: momentics <momentics@gmail.com>
//
// File-region transfer for unix platforms without a wired zero-copy
// primitive: always the buffered copy.

package processor

import "github.com/momentics/hioload-mux/session"

func (p *Processor) transfer(s *session.Session, r *session.FileRegion) (int64, error) {
	return p.transferBuffered(s, r)
}
