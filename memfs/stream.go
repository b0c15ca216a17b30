package memfs

import (
	"io"
	"sync"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/internal/util"
)

// stream is an open handle on a file node. It locks only its own node.
type stream struct {
	e *engine
	n *node
	h *handle

	mu       sync.Mutex // protects the fields below
	pos      int64
	appendAt int64 // lowest seekable position in append mode
	closed   bool
	dirty    bool
}

var _ unifs.Stream = (*stream)(nil)

func (s *stream) errf(kind error, format string, args ...any) error {
	return unifs.PathErrorf("stream", s.n.path(), kind, format, args...)
}

func (s *stream) checkOpen() error {
	if s.closed {
		return unifs.NewPathError("stream", s.n.path(), unifs.ErrDisposed)
	}
	return nil
}

func (s *stream) CanRead() bool  { return s.h.access.CanRead() }
func (s *stream) CanWrite() bool { return s.h.access.CanWrite() }
func (s *stream) CanSeek() bool  { return true }

func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if !s.CanRead() {
		return 0, s.errf(unifs.ErrNotSupported, "stream does not support reading")
	}

	s.n.mu.RLock()
	n, err := readAt(s.n.content, p, s.pos)
	s.n.mu.RUnlock()
	s.pos += int64(n)
	return n, err
}

func (s *stream) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if !s.CanRead() {
		return 0, s.errf(unifs.ErrNotSupported, "stream does not support reading")
	}
	if off < 0 {
		return 0, s.errf(unifs.ErrInvalidArgument, "negative offset")
	}

	s.n.mu.RLock()
	defer s.n.mu.RUnlock()
	n, err := readAt(s.n.content, p, off)
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func readAt(content, p []byte, off int64) (int, error) {
	if off >= int64(len(content)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	return copy(p, content[off:]), nil
}

func (s *stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if !s.CanWrite() {
		return 0, s.errf(unifs.ErrNotSupported, "stream does not support writing")
	}
	if len(p) == 0 {
		return 0, nil
	}

	s.n.mu.Lock()
	end := s.pos + int64(len(p))
	if end > int64(len(s.n.content)) {
		s.n.content = grow(s.n.content, end)
	}
	copy(s.n.content[s.pos:end], p)
	s.n.touch(s.e.now())
	s.n.mu.Unlock()

	s.pos = end
	s.dirty = true
	return len(p), nil
}

// grow extends content to size, zero filling the gap.
func grow(content []byte, size int64) []byte {
	if size <= int64(cap(content)) {
		old := len(content)
		content = content[:size]
		clear(content[old:])
		return content
	}
	next := make([]byte, size, max(size, 2*int64(cap(content))))
	copy(next, content)
	return next
}

func (s *stream) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = s.pos
	case io.SeekEnd:
		s.n.mu.RLock()
		base = int64(len(s.n.content))
		s.n.mu.RUnlock()
	default:
		return 0, s.errf(unifs.ErrInvalidArgument, "invalid whence %d", whence)
	}

	next := base + offset
	switch {
	case next < 0:
		return 0, s.errf(unifs.ErrInvalidArgument, "seek before the beginning of the file")
	case next < s.appendAt:
		return 0, s.errf(unifs.ErrIO, "cannot seek before the end of an append-only stream")
	}
	s.pos = next
	return next, nil
}

func (s *stream) Position() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return s.pos, nil
}

func (s *stream) Length() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	s.n.mu.RLock()
	defer s.n.mu.RUnlock()
	return int64(len(s.n.content)), nil
}

func (s *stream) SetLength(size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	switch {
	case !s.CanWrite():
		return s.errf(unifs.ErrNotSupported, "stream does not support writing")
	case size < 0:
		return s.errf(unifs.ErrInvalidArgument, "negative length")
	case size < s.appendAt:
		return s.errf(unifs.ErrIO, "cannot truncate an append-only stream below its start")
	}

	s.n.mu.Lock()
	if size > int64(len(s.n.content)) {
		s.n.content = grow(s.n.content, size)
	} else {
		s.n.content = s.n.content[:size]
	}
	s.n.touch(s.e.now())
	s.n.mu.Unlock()

	s.pos = min(s.pos, size)
	s.dirty = true
	return nil
}

func (s *stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkOpen()
}

// Close releases the share reservation. Closing twice is a no-op.
func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dirty := s.dirty
	s.mu.Unlock()

	s.n.mu.Lock()
	s.n.releaseHandle(s.h)
	size := len(s.n.content)
	s.n.mu.Unlock()

	if dirty {
		p := s.n.path()
		s.e.logger.Trace().Str("path", p.String()).Str("size", util.Bytes(size)).Msg("Closed modified file")
		s.e.watchers.RaiseChanged(p, unifs.NotifyLastWrite|unifs.NotifySize)
	}
	return nil
}
