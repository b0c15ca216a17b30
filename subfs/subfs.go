// Package subfs exposes a directory of another filesystem as a root.
package subfs

import (
	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/config"
	"github.com/brettbedarf/unifs/internal/compose"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/upath"
)

// FS is a view of the subtree of Source rooted at Base.
type FS struct {
	unifs.Checked
	source unifs.FileSystem
	base   upath.Path
}

var _ unifs.FileSystem = (*FS)(nil)

// New roots a view at base, which must be an existing directory of source.
func New(source unifs.FileSystem, base upath.Path) (*FS, error) {
	return NewWithConfig(source, base, config.NewDefaultConfig())
}

// NewWithConfig is New with an explicit configuration.
func NewWithConfig(source unifs.FileSystem, base upath.Path, cfg *config.Config) (*FS, error) {
	const op = "subfs"
	if source == nil {
		return nil, unifs.PathErrorf(op, base, unifs.ErrInvalidArgument, "source filesystem is nil")
	}
	if base.IsNull() || !base.IsAbsolute() {
		return nil, unifs.PathErrorf(op, base, unifs.ErrInvalidArgument, "base must be an absolute path")
	}
	ok, err := source.DirectoryExists(base)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, unifs.PathErrorf(op, base, unifs.ErrDirectoryNotFound, "base directory does not exist")
	}

	fs := &FS{source: source, base: base}
	fs.Checked = unifs.Checked{Impl: &compose.Delegate{
		Backer: source,
		Owner:  fs,
		In: func(p upath.Path) upath.Path {
			q, _ := upath.Rebase(p, upath.Root, base)
			return q
		},
		Out: func(p upath.Path) (upath.Path, bool) {
			return upath.Rebase(p, base, upath.Root)
		},
		BufferSize: cfg.WatcherBufferSize,
	}}

	logger := util.GetLogger("subfs")
	logger.Debug().Str("base", base.String()).Msg("Created sub-rooted filesystem")
	return fs, nil
}

// Source returns the backing filesystem.
func (fs *FS) Source() unifs.FileSystem { return fs.source }

// Base returns the directory of Source exposed as the root.
func (fs *FS) Base() upath.Path { return fs.base }

// Sources implements [unifs.Composite].
func (fs *FS) Sources() []unifs.FileSystem { return []unifs.FileSystem{fs.source} }
