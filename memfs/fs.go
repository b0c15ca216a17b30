// Package memfs implements an in-memory unifs engine.
//
// The tree is made of nodes that each own a reader/writer lock. Every
// operation locks the nodes it reads or mutates together with all of their
// ancestors, root to leaf, and releases them in reverse order. Mutations are
// validated completely before the first node changes, so a failed operation
// leaves the tree untouched.
package memfs

import (
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/config"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/upath"
	"github.com/brettbedarf/unifs/watch"
	"github.com/rs/zerolog"
)

// FS is an in-memory filesystem. It is safe for concurrent use.
type FS struct {
	unifs.Checked
	e *engine
}

var _ unifs.FileSystem = (*FS)(nil)

// engine is the trusted implementation behind the validating layer.
type engine struct {
	owner    *FS
	cfg      *config.Config
	root     *node
	watchers *watch.Dispatcher
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates an empty filesystem with the default configuration.
func New() *FS {
	return NewWithConfig(config.NewDefaultConfig())
}

// NewWithConfig creates an empty filesystem.
func NewWithConfig(cfg *config.Config) *FS {
	now := time.Now
	return newFS(cfg, newDirNode("", nil, now()), now)
}

func newFS(cfg *config.Config, root *node, now func() time.Time) *FS {
	e := &engine{
		cfg:      cfg,
		root:     root,
		watchers: watch.NewDispatcher(cfg.WatcherBufferSize),
		logger:   util.GetLogger("memfs"),
		now:      now,
	}
	fs := &FS{e: e}
	e.owner = fs
	fs.Checked = unifs.Checked{Impl: e}
	return fs
}

// Checksum returns the hex encoded blake3 digest of the content of p.
func (fs *FS) Checksum(p upath.Path) (string, error) {
	return unifs.ContentHash(fs, p)
}

func (e *engine) ctx() *nodeContext { return newNodeContext(e.root) }

func (e *engine) Watch(p upath.Path) (unifs.Watcher, error) {
	ctx := e.ctx()
	ctx.lock(readLock(p))
	n := ctx.get(p)
	ctx.Close()
	if n == nil || !n.isDir {
		return nil, unifs.PathErrorf("watch", p, unifs.ErrDirectoryNotFound, "no such directory")
	}
	return e.watchers.Watch(e.owner, p), nil
}

func (e *engine) ConvertPathToNative(p upath.Path) (string, error) {
	return p.String(), nil
}

func (e *engine) ConvertPathFromNative(native string) (upath.Path, error) {
	p, err := upath.Parse(native)
	if err != nil {
		return upath.Null, err
	}
	if !p.IsAbsolute() {
		return upath.Null, unifs.PathErrorf("native", p, unifs.ErrInvalidArgument, "native path must be absolute")
	}
	return p, nil
}

// missingErr classifies why the node at p could not be found: a missing or
// non-directory ancestor is a directory error, otherwise leafKind.
func missingErr(op string, ctx *nodeContext, p upath.Path, leafKind error) error {
	n, depth := ctx.deepest(p)
	segs := p.Split()
	if depth < len(segs)-1 || (n != nil && !n.isDir && depth < len(segs)) {
		return unifs.PathErrorf(op, p, unifs.ErrDirectoryNotFound, "could not find a part of the path")
	}
	if leafKind == unifs.ErrDirectoryNotFound {
		return unifs.PathErrorf(op, p, leafKind, "no such directory")
	}
	return unifs.PathErrorf(op, p, leafKind, "no such file")
}

// child joins names that are already known to be valid segments.
func child(parent upath.Path, names ...string) upath.Path {
	p, _ := upath.Join(parent, names...)
	return p
}
