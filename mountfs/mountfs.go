// Package mountfs routes subtrees of one path space to different
// filesystems.
//
// A path is served by the mount with the longest mount point that contains
// it, with the mount point stripped, or by the fallback filesystem when no
// mount contains it. Every strict ancestor of a mount point is a virtual
// directory: it always exists and cannot be deleted or moved.
//
// Moving entries between two backing filesystems is emulated by copy and
// delete and is not atomic. When the source cannot be deleted the copy is
// removed again, so a failed move leaves the entries only at the source
// unless that cleanup fails too.
package mountfs

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/config"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/upath"
	"github.com/brettbedarf/unifs/watch"
	"github.com/rs/zerolog"
)

// FS is a mount table. It is safe for concurrent use.
type FS struct {
	unifs.Checked
	e *engine
}

var _ unifs.FileSystem = (*FS)(nil)

type engine struct {
	owner    *FS
	fallback unifs.FileSystem
	watchers *watch.Group[upath.Path]
	logger   zerolog.Logger
	created  time.Time

	mu     sync.RWMutex
	mounts map[upath.Path]unifs.FileSystem
}

// route is where a path is served.
type route struct {
	fs    unifs.FileSystem // nil when nothing serves the path
	point upath.Path       // mount point, Root for the fallback
	inner upath.Path       // path within fs
}

func (r route) same(o route) bool { return r.fs != nil && r.fs == o.fs && r.point == o.point }

// outer maps a path of the backing filesystem back into the mount table.
func (r route) outer(p upath.Path) upath.Path {
	q, _ := upath.Rebase(p, upath.Root, r.point)
	return q
}

// New creates a mount table. fallback, when not nil, serves every path that
// no mount contains.
func New(fallback unifs.FileSystem) *FS {
	return NewWithConfig(fallback, config.NewDefaultConfig())
}

// NewWithConfig is New with an explicit configuration.
func NewWithConfig(fallback unifs.FileSystem, cfg *config.Config) *FS {
	e := &engine{
		fallback: fallback,
		watchers: watch.NewGroup[upath.Path](cfg.WatcherBufferSize),
		logger:   util.GetLogger("mountfs"),
		created:  time.Now(),
		mounts:   make(map[upath.Path]unifs.FileSystem),
	}
	fs := &FS{e: e}
	e.owner = fs
	fs.Checked = unifs.Checked{Impl: e}
	return fs
}

func invalidMount(p upath.Path, format string, args ...any) error {
	return unifs.PathErrorf("mount", p, unifs.ErrInvalidArgument, format, args...)
}

// Mount serves backer at the absolute path p. Mount points may nest.
func (fs *FS) Mount(p upath.Path, backer unifs.FileSystem) error {
	e := fs.e
	switch {
	case p.IsNull() || !p.IsAbsolute():
		return invalidMount(p, "mount point must be an absolute path")
	case p.IsRoot():
		return invalidMount(p, "cannot mount onto the root")
	case backer == nil:
		return invalidMount(p, "filesystem is nil")
	case unifs.DependsOn(backer, fs):
		return invalidMount(p, "filesystem contains the mount table itself")
	}

	e.mu.Lock()
	if _, ok := e.mounts[p]; ok {
		e.mu.Unlock()
		return invalidMount(p, "a filesystem is already mounted here")
	}
	e.mounts[p] = backer
	e.mu.Unlock()

	e.logger.Info().Str("path", p.String()).Msg("Mounted filesystem")
	e.watchers.Range(func(f *watch.Fan[upath.Path]) bool {
		if p == f.Path() || p.IsInDirectory(f.Path(), true) {
			e.attach(f, p, backer, upath.Root)
		}
		return true
	})
	return nil
}

// Unmount removes the mount at p. It reports whether one was mounted.
func (fs *FS) Unmount(p upath.Path) bool {
	e := fs.e
	e.mu.Lock()
	_, ok := e.mounts[p]
	delete(e.mounts, p)
	e.mu.Unlock()
	if !ok {
		return false
	}

	e.logger.Info().Str("path", p.String()).Msg("Unmounted filesystem")
	e.watchers.Range(func(f *watch.Fan[upath.Path]) bool {
		f.Detach(p)
		return true
	})
	return true
}

// IsMounted reports whether a filesystem is mounted exactly at p.
func (fs *FS) IsMounted(p upath.Path) bool {
	fs.e.mu.RLock()
	defer fs.e.mu.RUnlock()
	_, ok := fs.e.mounts[p]
	return ok
}

// Mounts returns a copy of the mount table.
func (fs *FS) Mounts() map[upath.Path]unifs.FileSystem {
	fs.e.mu.RLock()
	defer fs.e.mu.RUnlock()
	return maps.Clone(fs.e.mounts)
}

// MountPoint returns where backer is mounted.
func (fs *FS) MountPoint(backer unifs.FileSystem) (upath.Path, bool) {
	fs.e.mu.RLock()
	defer fs.e.mu.RUnlock()
	for p, m := range fs.e.mounts {
		if m == backer {
			return p, true
		}
	}
	return upath.Null, false
}

// Fallback returns the filesystem serving unmounted paths, or nil.
func (fs *FS) Fallback() unifs.FileSystem { return fs.e.fallback }

// Sources implements [unifs.Composite].
func (fs *FS) Sources() []unifs.FileSystem {
	mounts := fs.Mounts()
	out := make([]unifs.FileSystem, 0, len(mounts)+1)
	for _, p := range slices.SortedFunc(maps.Keys(mounts), upath.Compare) {
		out = append(out, mounts[p])
	}
	if fs.e.fallback != nil {
		out = append(out, fs.e.fallback)
	}
	return out
}

// resolve finds the mount serving p.
func (e *engine) resolve(p upath.Path) route {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for cur := p; !cur.IsNull() && !cur.IsRoot(); cur = cur.Directory() {
		if m, ok := e.mounts[cur]; ok {
			inner, _ := upath.Rebase(p, cur, upath.Root)
			return route{fs: m, point: cur, inner: inner}
		}
	}
	return route{fs: e.fallback, point: upath.Root, inner: p}
}

// isMountPoint reports whether p is exactly a mount point.
func (e *engine) isMountPoint(p upath.Path) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.mounts[p]
	return ok
}

// isVirtual reports whether p is a strict ancestor of a mount point. The
// root always is.
func (e *engine) isVirtual(p upath.Path) bool {
	if p.IsRoot() {
		return true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for m := range e.mounts {
		if m.IsInDirectory(p, true) {
			return true
		}
	}
	return false
}

// pinned reports whether p is a mount point or a virtual directory.
func (e *engine) pinned(p upath.Path) bool { return e.isMountPoint(p) || e.isVirtual(p) }

// virtualChildren lists the next segment of every mount point below dir.
func (e *engine) virtualChildren(dir upath.Path) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []string
	depth := len(dir.Split())
	for m := range e.mounts {
		if m.IsInDirectory(dir, true) {
			name := m.Split()[depth]
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

func unserved(op string, p upath.Path, kind error) error {
	return unifs.PathErrorf(op, p, kind, "no filesystem serves this path")
}

// err rewrites errors from the backer so they name mount table paths.
func (r route) err(err error) error {
	return unifs.RebasePath(err, r.outer)
}

// Watch fans in the filesystem serving p and every mount below p. Mounts
// added or removed below p later are attached or detached while the watcher
// is open.
func (e *engine) Watch(p upath.Path) (unifs.Watcher, error) {
	ok, err := e.DirectoryExists(p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, unifs.PathErrorf("watch", p, unifs.ErrDirectoryNotFound, "no such directory")
	}

	f := e.watchers.Watch(e.owner, p)
	r := e.resolve(p)
	if r.fs != nil {
		e.attach(f, r.point, r.fs, r.inner)
	}
	e.mu.RLock()
	below := make(map[upath.Path]unifs.FileSystem)
	for m, b := range e.mounts {
		if m.IsInDirectory(p, true) {
			below[m] = b
		}
	}
	e.mu.RUnlock()
	for m, b := range below {
		e.attach(f, m, b, upath.Root)
	}
	return f, nil
}

// attach forwards a watcher on inner of backer, mounted at point. Events
// for paths shadowed by a deeper mount are dropped.
func (e *engine) attach(f *watch.Fan[upath.Path], point upath.Path, backer unifs.FileSystem, inner upath.Path) {
	if ok, err := backer.DirectoryExists(inner); err != nil || !ok {
		return
	}
	w, err := backer.Watch(inner)
	if err != nil {
		e.logger.Debug().Err(err).Str("mount", point.String()).Msg("Failed to watch mounted filesystem")
		return
	}
	f.Attach(point, w, func(q upath.Path) (upath.Path, bool) {
		out, ok := upath.Rebase(q, upath.Root, point)
		if !ok || e.resolve(out).point != point {
			return upath.Null, false
		}
		return out, true
	})
}

func (e *engine) ConvertPathToNative(p upath.Path) (string, error) {
	r := e.resolve(p)
	if r.fs == nil {
		return "", unserved("native", p, unifs.ErrNotSupported)
	}
	native, err := r.fs.ConvertPathToNative(r.inner)
	return native, r.err(err)
}

// ConvertPathFromNative asks each mount, deepest mount point first, then
// the fallback.
func (e *engine) ConvertPathFromNative(native string) (upath.Path, error) {
	e.mu.RLock()
	points := slices.Collect(maps.Keys(e.mounts))
	e.mu.RUnlock()
	slices.SortFunc(points, func(a, b upath.Path) int { return len(b.Split()) - len(a.Split()) })

	var routes []route
	for _, m := range points {
		r := e.resolve(m)
		if r.point == m {
			routes = append(routes, r)
		}
	}
	if e.fallback != nil {
		routes = append(routes, route{fs: e.fallback, point: upath.Root})
	}

	var firstErr error
	for _, r := range routes {
		q, err := r.fs.ConvertPathFromNative(native)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out := r.outer(q)
		if e.resolve(out).point == r.point {
			return out, nil
		}
	}
	if firstErr == nil {
		firstErr = unifs.PathErrorf("native", upath.Null, unifs.ErrInvalidOperation, "native path %q is not served by any mount", native)
	}
	return upath.Null, firstErr
}
