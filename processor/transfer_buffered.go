//go:build unix
// +build unix

// File: processor/transfer_buffered.go
// Author: momentics <momentics@gmail.com>
//
// Buffered file-region copy through the reusable read buffer, used on
// platforms without sendfile and as the fallback for non-spliceable
// descriptor pairs.

package processor

import (
	"io"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-mux/session"
)

func (p *Processor) transferBuffered(s *session.Session, r *session.FileRegion) (int64, error) {
	count := int(r.Count)
	if count > len(p.readBuf) {
		count = len(p.readBuf)
	}
	n, err := unix.Pread(int(r.File.Fd()), p.readBuf[:count], r.Offset)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	w, err := unix.Write(s.Fd(), p.readBuf[:n])
	if w > 0 {
		return int64(w), nil
	}
	return 0, err
}
