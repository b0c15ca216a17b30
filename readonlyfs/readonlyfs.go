// Package readonlyfs projects a filesystem without its mutating operations.
package readonlyfs

import (
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/config"
	"github.com/brettbedarf/unifs/internal/compose"
	"github.com/brettbedarf/unifs/upath"
)

// FS serves queries from Source and rejects every mutation with
// [unifs.ErrReadOnlyFS] without calling Source.
type FS struct {
	unifs.Checked
	source unifs.FileSystem
}

var _ unifs.FileSystem = (*FS)(nil)

// New wraps source.
func New(source unifs.FileSystem) *FS {
	return NewWithConfig(source, config.NewDefaultConfig())
}

// NewWithConfig wraps source with an explicit configuration.
func NewWithConfig(source unifs.FileSystem, cfg *config.Config) *FS {
	fs := &FS{source: source}
	fs.Checked = unifs.Checked{Impl: &engine{compose.Identity(source, fs, cfg.WatcherBufferSize)}}
	return fs
}

// Source returns the wrapped filesystem.
func (fs *FS) Source() unifs.FileSystem { return fs.source }

type engine struct {
	*compose.Delegate
}

func denied(op string, p upath.Path) error {
	return unifs.NewPathError(op, p, unifs.ErrReadOnlyFS)
}

func (e *engine) CreateDirectory(p upath.Path) error { return denied("mkdir", p) }

func (e *engine) MoveDirectory(src, _ upath.Path) error { return denied("rename", src) }

func (e *engine) DeleteDirectory(p upath.Path, _ bool) error { return denied("rmdir", p) }

func (e *engine) CopyFile(_, dest upath.Path, _ bool) error { return denied("copy", dest) }

func (e *engine) ReplaceFile(_, dest, _ upath.Path, _ bool) error { return denied("replace", dest) }

func (e *engine) MoveFile(src, _ upath.Path) error { return denied("rename", src) }

func (e *engine) DeleteFile(p upath.Path) error { return denied("remove", p) }

func (e *engine) SetAttributes(p upath.Path, _ unifs.FileAttributes) error {
	return denied("chattr", p)
}

func (e *engine) SetCreationTime(p upath.Path, _ time.Time) error { return denied("chtimes", p) }

func (e *engine) SetLastAccessTime(p upath.Path, _ time.Time) error { return denied("chtimes", p) }

func (e *engine) SetLastWriteTime(p upath.Path, _ time.Time) error { return denied("chtimes", p) }

// OpenFile only opens existing files for reading.
func (e *engine) OpenFile(p upath.Path, mode unifs.FileMode, access unifs.FileAccess, share unifs.FileShare) (unifs.Stream, error) {
	if mode != unifs.ModeOpen || access != unifs.AccessRead {
		return nil, denied("open", p)
	}
	return e.Delegate.OpenFile(p, mode, access, share)
}

func (e *engine) Attributes(p upath.Path) (unifs.FileAttributes, error) {
	attrs, err := e.Delegate.Attributes(p)
	if err != nil {
		return 0, err
	}
	return attrs&^unifs.AttrNormal | unifs.AttrReadOnly, nil
}

// Sources implements [unifs.Composite].
func (fs *FS) Sources() []unifs.FileSystem { return []unifs.FileSystem{fs.source} }
