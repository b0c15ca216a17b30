// Package aggregatefs merges several filesystems into one read-only view.
//
// Backing filesystems are consulted in reverse registration order, so the
// most recently added one wins, and the fallback is consulted last. A
// directory exists when any backer has it; a file is served by the first
// backer that has it.
package aggregatefs

import (
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/config"
	"github.com/brettbedarf/unifs/internal/compose"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/upath"
	"github.com/brettbedarf/unifs/watch"
	"github.com/rs/zerolog"
)

// FS is a read-only union of filesystems. It is safe for concurrent use.
type FS struct {
	unifs.Checked
	e *engine
}

var _ unifs.FileSystem = (*FS)(nil)

type engine struct {
	owner    *FS
	fallback unifs.FileSystem
	watchers *watch.Group[unifs.FileSystem]
	logger   zerolog.Logger

	mu      sync.RWMutex
	backers []unifs.FileSystem // registration order
}

// Entry is a backing filesystem that has an entry at a path.
type Entry struct {
	FileSystem unifs.FileSystem
	Path       upath.Path
	IsDir      bool
}

// New creates an aggregate with an optional fallback consulted last.
func New(fallback unifs.FileSystem) *FS {
	return NewWithConfig(fallback, config.NewDefaultConfig())
}

// NewWithConfig is New with an explicit configuration.
func NewWithConfig(fallback unifs.FileSystem, cfg *config.Config) *FS {
	e := &engine{
		fallback: fallback,
		watchers: watch.NewGroup[unifs.FileSystem](cfg.WatcherBufferSize),
		logger:   util.GetLogger("aggregatefs"),
	}
	fs := &FS{e: e}
	e.owner = fs
	fs.Checked = unifs.Checked{Impl: e}
	return fs
}

// AddFileSystem registers fs with the highest priority.
func (fs *FS) AddFileSystem(backer unifs.FileSystem) error {
	e := fs.e
	if backer == nil {
		return invalidArg("filesystem is nil")
	}
	if unifs.DependsOn(backer, fs) {
		return invalidArg("filesystem contains the aggregate itself")
	}
	e.mu.Lock()
	if slices.Contains(e.backers, backer) {
		e.mu.Unlock()
		return invalidArg("filesystem is already registered")
	}
	e.backers = append(e.backers, backer)
	n := len(e.backers)
	e.mu.Unlock()

	e.logger.Debug().Int("backers", n).Msg("Added filesystem")
	e.watchers.Range(func(f *watch.Fan[unifs.FileSystem]) bool {
		e.attach(f, backer)
		return true
	})
	return nil
}

// RemoveFileSystem unregisters fs. It reports whether fs was registered.
func (fs *FS) RemoveFileSystem(backer unifs.FileSystem) bool {
	e := fs.e
	e.mu.Lock()
	i := slices.Index(e.backers, backer)
	if i < 0 {
		e.mu.Unlock()
		return false
	}
	e.backers = slices.Delete(e.backers, i, i+1)
	n := len(e.backers)
	e.mu.Unlock()

	e.logger.Debug().Int("backers", n).Msg("Removed filesystem")
	e.watchers.Range(func(f *watch.Fan[unifs.FileSystem]) bool {
		f.Detach(backer)
		return true
	})
	return true
}

// ClearFileSystems unregisters every filesystem except the fallback.
func (fs *FS) ClearFileSystems() {
	for _, b := range fs.FileSystems() {
		fs.RemoveFileSystem(b)
	}
}

// FileSystems returns the registered filesystems in registration order.
func (fs *FS) FileSystems() []unifs.FileSystem {
	fs.e.mu.RLock()
	defer fs.e.mu.RUnlock()
	return slices.Clone(fs.e.backers)
}

// Fallback returns the filesystem consulted last, or nil.
func (fs *FS) Fallback() unifs.FileSystem { return fs.e.fallback }

// Sources implements [unifs.Composite].
func (fs *FS) Sources() []unifs.FileSystem { return fs.e.priority() }

// FindFileSystemEntries lists every backer that has an entry at p, highest
// priority first.
func (fs *FS) FindFileSystemEntries(p upath.Path) ([]Entry, error) {
	if p.IsNull() || !p.IsAbsolute() {
		return nil, unifs.PathErrorf("find", p, unifs.ErrInvalidArgument, "path must be absolute")
	}
	var out []Entry
	for _, b := range fs.e.priority() {
		isDir, isFile, err := probe(b, p)
		if err != nil {
			return nil, err
		}
		if isDir || isFile {
			out = append(out, Entry{FileSystem: b, Path: p, IsDir: isDir})
		}
	}
	return out, nil
}

// FindFirstFileSystemEntry returns the highest priority backer with an
// entry at p.
func (fs *FS) FindFirstFileSystemEntry(p upath.Path) (Entry, bool, error) {
	entries, err := fs.FindFileSystemEntries(p)
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	return entries[0], true, nil
}

// priority returns the backers in lookup order.
func (e *engine) priority() []unifs.FileSystem {
	e.mu.RLock()
	out := make([]unifs.FileSystem, 0, len(e.backers)+1)
	for i := len(e.backers) - 1; i >= 0; i-- {
		out = append(out, e.backers[i])
	}
	e.mu.RUnlock()
	if e.fallback != nil {
		out = append(out, e.fallback)
	}
	return out
}

func probe(fs unifs.FileSystem, p upath.Path) (isDir, isFile bool, err error) {
	if isDir, err = fs.DirectoryExists(p); err != nil || isDir {
		return isDir, false, err
	}
	isFile, err = fs.FileExists(p)
	return false, isFile, err
}

// first returns the highest priority backer with an entry at p.
func (e *engine) first(op string, p upath.Path, wantFile bool) (unifs.FileSystem, error) {
	parentSeen := false
	for _, b := range e.priority() {
		isDir, isFile, err := probe(b, p)
		if err != nil {
			return nil, err
		}
		if isFile || (isDir && !wantFile) {
			return b, nil
		}
		if !parentSeen {
			if parentSeen, err = b.DirectoryExists(p.Directory()); err != nil {
				return nil, err
			}
		}
	}
	if !parentSeen && !p.IsRoot() {
		return nil, unifs.PathErrorf(op, p, unifs.ErrDirectoryNotFound, "could not find a part of the path")
	}
	return nil, unifs.PathErrorf(op, p, unifs.ErrFileNotFound, "no such file")
}

func readOnly(op string, p upath.Path) error {
	return unifs.NewPathError(op, p, unifs.ErrReadOnlyFS)
}

func invalidArg(msg string) error {
	return unifs.PathErrorf("aggregate", upath.Root, unifs.ErrInvalidArgument, "%s", msg)
}

func (e *engine) CreateDirectory(p upath.Path) error { return readOnly("mkdir", p) }
func (e *engine) MoveDirectory(src, _ upath.Path) error { return readOnly("rename", src) }
func (e *engine) DeleteDirectory(p upath.Path, _ bool) error { return readOnly("rmdir", p) }
func (e *engine) CopyFile(_, dest upath.Path, _ bool) error { return readOnly("copy", dest) }
func (e *engine) MoveFile(src, _ upath.Path) error { return readOnly("rename", src) }
func (e *engine) DeleteFile(p upath.Path) error { return readOnly("remove", p) }
func (e *engine) SetCreationTime(p upath.Path, _ time.Time) error { return readOnly("chtimes", p) }
func (e *engine) SetLastAccessTime(p upath.Path, _ time.Time) error { return readOnly("chtimes", p) }
func (e *engine) SetLastWriteTime(p upath.Path, _ time.Time) error { return readOnly("chtimes", p) }

func (e *engine) ReplaceFile(_, dest, _ upath.Path, _ bool) error {
	return readOnly("replace", dest)
}

func (e *engine) SetAttributes(p upath.Path, _ unifs.FileAttributes) error {
	return readOnly("chattr", p)
}

func (e *engine) DirectoryExists(p upath.Path) (bool, error) {
	for _, b := range e.priority() {
		ok, err := b.DirectoryExists(p)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (e *engine) FileExists(p upath.Path) (bool, error) {
	for _, b := range e.priority() {
		ok, err := b.FileExists(p)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (e *engine) FileLength(p upath.Path) (int64, error) {
	b, err := e.first("stat", p, true)
	if err != nil {
		return 0, err
	}
	return b.FileLength(p)
}

func (e *engine) OpenFile(p upath.Path, mode unifs.FileMode, access unifs.FileAccess, share unifs.FileShare) (unifs.Stream, error) {
	if mode != unifs.ModeOpen || access != unifs.AccessRead {
		return nil, readOnly("open", p)
	}
	b, err := e.first("open", p, true)
	if err != nil {
		return nil, err
	}
	return b.OpenFile(p, mode, access, share)
}

func (e *engine) Attributes(p upath.Path) (unifs.FileAttributes, error) {
	b, err := e.first("stat", p, false)
	if err != nil {
		return 0, err
	}
	attrs, err := b.Attributes(p)
	if err != nil {
		return 0, err
	}
	return attrs&^unifs.AttrNormal | unifs.AttrReadOnly, nil
}

func (e *engine) times(p upath.Path, get func(unifs.FileSystem, upath.Path) (time.Time, error)) (time.Time, error) {
	b, err := e.first("stat", p, false)
	if err != nil {
		return time.Time{}, err
	}
	return get(b, p)
}

func (e *engine) CreationTime(p upath.Path) (time.Time, error) {
	return e.times(p, unifs.FileSystem.CreationTime)
}

func (e *engine) LastAccessTime(p upath.Path) (time.Time, error) {
	return e.times(p, unifs.FileSystem.LastAccessTime)
}

func (e *engine) LastWriteTime(p upath.Path) (time.Time, error) {
	return e.times(p, unifs.FileSystem.LastWriteTime)
}

// list merges one directory level across every backer that has it.
func (e *engine) list(dir upath.Path) ([]compose.Child, bool, error) {
	var lists [][]compose.Child
	found := false
	for _, b := range e.priority() {
		children, ok, err := compose.ListDir(b, dir)
		if err != nil {
			return nil, false, err
		}
		if ok {
			found = true
			lists = append(lists, children)
		}
	}
	return compose.Merge(lists...), found, nil
}

func (e *engine) EnumeratePaths(p upath.Path, pattern string, option unifs.SearchOption, target unifs.SearchTarget) iter.Seq2[upath.Path, error] {
	return compose.Walk(p, pattern, option, target, e.list)
}

// Watch fans in a watcher from every backer that has the directory.
// Backers added later are attached while the watcher is open.
func (e *engine) Watch(p upath.Path) (unifs.Watcher, error) {
	ok, err := e.DirectoryExists(p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, unifs.PathErrorf("watch", p, unifs.ErrDirectoryNotFound, "no such directory")
	}
	f := e.watchers.Watch(e.owner, p)
	for _, b := range e.priority() {
		e.attach(f, b)
	}
	return f, nil
}

func (e *engine) attach(f *watch.Fan[unifs.FileSystem], b unifs.FileSystem) {
	ok, err := b.DirectoryExists(f.Path())
	if err != nil || !ok {
		return
	}
	w, err := b.Watch(f.Path())
	if err != nil {
		e.logger.Debug().Err(err).Str("path", f.Path().String()).Msg("Failed to watch backing filesystem")
		return
	}
	f.Attach(b, w, func(p upath.Path) (upath.Path, bool) { return p, true })
}

func (e *engine) ConvertPathToNative(p upath.Path) (string, error) {
	b, err := e.first("native", p, false)
	if err != nil {
		backers := e.priority()
		if len(backers) == 0 {
			return "", unifs.PathErrorf("native", p, unifs.ErrNotSupported, "no filesystem registered")
		}
		b = backers[0]
	}
	return b.ConvertPathToNative(p)
}

func (e *engine) ConvertPathFromNative(native string) (upath.Path, error) {
	var firstErr error
	for _, b := range e.priority() {
		p, err := b.ConvertPathFromNative(native)
		if err == nil {
			return p, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = unifs.PathErrorf("native", upath.Null, unifs.ErrNotSupported, "no filesystem registered")
	}
	return upath.Null, firstErr
}
