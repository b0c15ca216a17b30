package physfs

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
)

// stream wraps an *os.File with the share reservation it was opened under.
type stream struct {
	e      *engine
	p      upath.Path
	native string
	h      *handle
	f      *os.File

	mu       sync.Mutex // protects the fields below and the file offset
	appendAt int64      // lowest seekable position in append mode
	closed   bool
	dirty    bool
}

var _ unifs.Stream = (*stream)(nil)

func (s *stream) errf(kind error, format string, args ...any) error {
	return unifs.PathErrorf("stream", s.p, kind, format, args...)
}

func (s *stream) checkOpen() error {
	if s.closed {
		return unifs.NewPathError("stream", s.p, unifs.ErrDisposed)
	}
	return nil
}

// ioErr passes io.EOF through and translates everything else.
func (s *stream) ioErr(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}
	return s.e.translate("stream", s.p, err, unifs.ErrFileNotFound)
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
	n, err := s.f.Read(p)
	return n, s.ioErr(err)
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
	n, err := s.f.ReadAt(p, off)
	return n, s.ioErr(err)
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
	n, err := s.f.Write(p)
	if n > 0 {
		s.dirty = true
	}
	return n, s.ioErr(err)
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
		pos, err := s.f.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, s.ioErr(err)
		}
		base = pos
	case io.SeekEnd:
		info, err := s.f.Stat()
		if err != nil {
			return 0, s.ioErr(err)
		}
		base = info.Size()
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
	pos, err := s.f.Seek(next, io.SeekStart)
	return pos, s.ioErr(err)
}

func (s *stream) Position() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	pos, err := s.f.Seek(0, io.SeekCurrent)
	return pos, s.ioErr(err)
}

func (s *stream) Length() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	info, err := s.f.Stat()
	if err != nil {
		return 0, s.ioErr(err)
	}
	return info.Size(), nil
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
	if err := s.f.Truncate(size); err != nil {
		return s.ioErr(err)
	}
	s.dirty = true
	pos, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return s.ioErr(err)
	}
	if pos > size {
		_, err = s.f.Seek(size, io.SeekStart)
	}
	return s.ioErr(err)
}

func (s *stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !s.CanWrite() {
		return nil
	}
	return s.ioErr(s.f.Sync())
}

// Close closes the file and releases the share reservation. Closing twice
// is a no-op.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.f.Close()
	s.e.shares.release(s.native, s.h)
	if s.dirty {
		s.e.logger.Trace().Str("path", s.p.String()).Msg("Closed modified file")
	}
	return s.ioErr(err)
}
