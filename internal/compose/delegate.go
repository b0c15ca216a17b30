// Package compose holds the delegation shared by composite engines that
// expose a backing filesystem under a different path space.
package compose

import (
	"iter"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
	"github.com/brettbedarf/unifs/watch"
)

// Delegate forwards every capability call to Backer, translating paths with
// In on the way down and Out on the way back up. Errors are rewritten so
// they name the caller's path.
//
// Delegate trusts its input: wrap it in [unifs.Checked].
type Delegate struct {
	Backer unifs.FileSystem
	// Owner is reported by watchers created through Watch.
	Owner unifs.FileSystem
	// In maps a caller path to the backer.
	In func(upath.Path) upath.Path
	// Out maps a backer path to the caller. It returns false for backer paths
	// the caller cannot see.
	Out func(upath.Path) (upath.Path, bool)
	// BufferSize sizes the event buffer of forwarded watchers.
	BufferSize int
}

var _ unifs.FileSystem = (*Delegate)(nil)

// Identity returns a Delegate that does not translate paths.
func Identity(backer, owner unifs.FileSystem, bufSize int) *Delegate {
	return &Delegate{
		Backer:     backer,
		Owner:      owner,
		In:         func(p upath.Path) upath.Path { return p },
		Out:        func(p upath.Path) (upath.Path, bool) { return p, true },
		BufferSize: bufSize,
	}
}

// Err rewrites the path of a *unifs.PathError into the caller's space.
func (d *Delegate) Err(err error) error {
	return unifs.RebasePath(err, func(p upath.Path) upath.Path {
		if out, ok := d.Out(p); ok {
			return out
		}
		return p
	})
}

func (d *Delegate) CreateDirectory(p upath.Path) error {
	return d.Err(d.Backer.CreateDirectory(d.In(p)))
}

func (d *Delegate) DirectoryExists(p upath.Path) (bool, error) {
	ok, err := d.Backer.DirectoryExists(d.In(p))
	return ok, d.Err(err)
}

func (d *Delegate) MoveDirectory(src, dest upath.Path) error {
	return d.Err(d.Backer.MoveDirectory(d.In(src), d.In(dest)))
}

func (d *Delegate) DeleteDirectory(p upath.Path, recursive bool) error {
	return d.Err(d.Backer.DeleteDirectory(d.In(p), recursive))
}

func (d *Delegate) CopyFile(src, dest upath.Path, overwrite bool) error {
	return d.Err(d.Backer.CopyFile(d.In(src), d.In(dest), overwrite))
}

func (d *Delegate) ReplaceFile(src, dest, backup upath.Path, ignoreMetadataErrors bool) error {
	if !backup.IsNull() {
		backup = d.In(backup)
	}
	return d.Err(d.Backer.ReplaceFile(d.In(src), d.In(dest), backup, ignoreMetadataErrors))
}

func (d *Delegate) FileLength(p upath.Path) (int64, error) {
	n, err := d.Backer.FileLength(d.In(p))
	return n, d.Err(err)
}

func (d *Delegate) FileExists(p upath.Path) (bool, error) {
	ok, err := d.Backer.FileExists(d.In(p))
	return ok, d.Err(err)
}

func (d *Delegate) MoveFile(src, dest upath.Path) error {
	return d.Err(d.Backer.MoveFile(d.In(src), d.In(dest)))
}

func (d *Delegate) DeleteFile(p upath.Path) error {
	return d.Err(d.Backer.DeleteFile(d.In(p)))
}

func (d *Delegate) OpenFile(p upath.Path, mode unifs.FileMode, access unifs.FileAccess, share unifs.FileShare) (unifs.Stream, error) {
	s, err := d.Backer.OpenFile(d.In(p), mode, access, share)
	return s, d.Err(err)
}

func (d *Delegate) Attributes(p upath.Path) (unifs.FileAttributes, error) {
	a, err := d.Backer.Attributes(d.In(p))
	return a, d.Err(err)
}

func (d *Delegate) SetAttributes(p upath.Path, attrs unifs.FileAttributes) error {
	return d.Err(d.Backer.SetAttributes(d.In(p), attrs))
}

func (d *Delegate) CreationTime(p upath.Path) (time.Time, error) {
	t, err := d.Backer.CreationTime(d.In(p))
	return t, d.Err(err)
}

func (d *Delegate) SetCreationTime(p upath.Path, t time.Time) error {
	return d.Err(d.Backer.SetCreationTime(d.In(p), t))
}

func (d *Delegate) LastAccessTime(p upath.Path) (time.Time, error) {
	t, err := d.Backer.LastAccessTime(d.In(p))
	return t, d.Err(err)
}

func (d *Delegate) SetLastAccessTime(p upath.Path, t time.Time) error {
	return d.Err(d.Backer.SetLastAccessTime(d.In(p), t))
}

func (d *Delegate) LastWriteTime(p upath.Path) (time.Time, error) {
	t, err := d.Backer.LastWriteTime(d.In(p))
	return t, d.Err(err)
}

func (d *Delegate) SetLastWriteTime(p upath.Path, t time.Time) error {
	return d.Err(d.Backer.SetLastWriteTime(d.In(p), t))
}

func (d *Delegate) EnumeratePaths(p upath.Path, pattern string, option unifs.SearchOption, target unifs.SearchTarget) iter.Seq2[upath.Path, error] {
	return func(yield func(upath.Path, error) bool) {
		for q, err := range d.Backer.EnumeratePaths(d.In(p), pattern, option, target) {
			if err != nil {
				yield(upath.Null, d.Err(err))
				return
			}
			out, ok := d.Out(q)
			if !ok {
				continue
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

// Watch forwards a watcher on the backer, re-rooting its events.
func (d *Delegate) Watch(p upath.Path) (unifs.Watcher, error) {
	inner, err := d.Backer.Watch(d.In(p))
	if err != nil {
		return nil, d.Err(err)
	}
	f := watch.NewForwarder(d.Owner, p, d.BufferSize)
	f.Add(inner, watch.Translate(d.Out))
	return f, nil
}

func (d *Delegate) ConvertPathToNative(p upath.Path) (string, error) {
	native, err := d.Backer.ConvertPathToNative(d.In(p))
	return native, d.Err(err)
}

func (d *Delegate) ConvertPathFromNative(native string) (upath.Path, error) {
	q, err := d.Backer.ConvertPathFromNative(native)
	if err != nil {
		return upath.Null, d.Err(err)
	}
	out, ok := d.Out(q)
	if !ok {
		return upath.Null, unifs.PathErrorf("native", q, unifs.ErrInvalidOperation, "native path %q is outside this filesystem", native)
	}
	return out, nil
}
