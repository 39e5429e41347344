//go:build linux
// +build linux

// File: processor/transfer_linux.go
// Author: momentics <momentics@gmail.com>
//
// Zero-copy file-region transfer via sendfile(2), with a buffered
// fallback for descriptors the kernel refuses to splice.

package processor

import (
	"io"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-mux/session"
)

// transfer moves at most one buffer's worth of the region into the
// session channel. Returns bytes moved; unix.EAGAIN when the channel
// would block.
func (p *Processor) transfer(s *session.Session, r *session.FileRegion) (int64, error) {
	count := r.Count
	if count > int64(p.cfg.fairnessBytes) {
		count = int64(p.cfg.fairnessBytes)
	}
	off := r.Offset
	n, err := unix.Sendfile(s.Fd(), int(r.File.Fd()), &off, int(count))
	if n > 0 {
		return int64(n), nil
	}
	switch err {
	case nil:
		// file shorter than the scheduled region
		return 0, io.ErrUnexpectedEOF
	case unix.EINVAL, unix.ENOSYS:
		// not a spliceable pair; copy through the read buffer
		return p.transferBuffered(s, r)
	default:
		return 0, err
	}
}
