package server

import (
	"context"
	"errors"
	"io"
	"sync"
	"syscall"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// handleShare lets the kernel hold several handles on one file at once.
const handleShare = unifs.ShareReadWrite | unifs.ShareDelete

// openMode maps open(2) flags to a mode and access pair that passes
// argument validation.
func openMode(flags uint32, create bool) (unifs.FileMode, unifs.FileAccess) {
	access := unifs.AccessRead
	switch int(flags) & syscall.O_ACCMODE {
	case syscall.O_WRONLY:
		access = unifs.AccessWrite
	case syscall.O_RDWR:
		access = unifs.AccessReadWrite
	}

	mode := unifs.ModeOpen
	trunc := flags&syscall.O_TRUNC != 0
	switch {
	case create && flags&syscall.O_EXCL != 0:
		mode = unifs.ModeCreateNew
	case create && trunc:
		mode = unifs.ModeCreate
	case create:
		mode = unifs.ModeOpenOrCreate
	case trunc:
		mode = unifs.ModeTruncate
	}
	if !access.CanWrite() {
		switch mode {
		case unifs.ModeCreateNew, unifs.ModeCreate:
			access = unifs.AccessReadWrite
		case unifs.ModeTruncate:
			mode = unifs.ModeOpen
		}
	}
	return mode, access
}

// handle is an open stream. The kernel sends explicit offsets, so writes
// seek first.
type handle struct {
	mu     sync.Mutex
	stream unifs.Stream
	path   upath.Path
}

var (
	_ fs.FileReader   = (*handle)(nil)
	_ fs.FileWriter   = (*handle)(nil)
	_ fs.FileFlusher  = (*handle)(nil)
	_ fs.FileFsyncer  = (*handle)(nil)
	_ fs.FileReleaser = (*handle)(nil)
)

func (h *handle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.stream.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, Errno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *handle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.stream.Seek(off, io.SeekStart); err != nil {
		return 0, Errno(err)
	}
	n, err := h.stream.Write(data)
	if err != nil {
		return uint32(n), Errno(err)
	}
	return uint32(n), 0
}

func (h *handle) Flush(ctx context.Context) syscall.Errno {
	return Errno(h.stream.Flush())
}

func (h *handle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return Errno(h.stream.Flush())
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	return Errno(h.stream.Close())
}
