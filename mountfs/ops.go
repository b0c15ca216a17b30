package mountfs

import (
	"iter"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/internal/compose"
	"github.com/brettbedarf/unifs/upath"
)

// virtualOnly reports whether p exists only as a virtual directory.
func (e *engine) virtualOnly(p upath.Path, r route) (bool, error) {
	if !e.isVirtual(p) {
		return false, nil
	}
	if r.fs == nil {
		return true, nil
	}
	ok, err := r.fs.DirectoryExists(r.inner)
	return !ok, r.err(err)
}

func (e *engine) CreateDirectory(p upath.Path) error {
	const op = "mkdir"
	if e.pinned(p) {
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "cannot create a mount point or one of its ancestors")
	}
	r := e.resolve(p)
	if r.fs == nil {
		return unserved(op, p, unifs.ErrUnauthorizedAccess)
	}
	return r.err(r.fs.CreateDirectory(r.inner))
}

func (e *engine) DirectoryExists(p upath.Path) (bool, error) {
	if e.pinned(p) {
		return true, nil
	}
	r := e.resolve(p)
	if r.fs == nil {
		return false, nil
	}
	ok, err := r.fs.DirectoryExists(r.inner)
	return ok, r.err(err)
}

func (e *engine) DeleteDirectory(p upath.Path, recursive bool) error {
	const op = "rmdir"
	if e.pinned(p) {
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "cannot delete a mount point or one of its ancestors")
	}
	r := e.resolve(p)
	if r.fs == nil {
		return unserved(op, p, unifs.ErrDirectoryNotFound)
	}
	return r.err(r.fs.DeleteDirectory(r.inner, recursive))
}

func (e *engine) MoveDirectory(src, dest upath.Path) error {
	const op = "rename"
	switch {
	case e.pinned(src):
		return unifs.PathErrorf(op, src, unifs.ErrUnauthorizedAccess, "cannot move a mount point or one of its ancestors")
	case e.pinned(dest):
		return unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	case src == dest:
		return unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	case dest.IsInDirectory(src, true):
		return unifs.PathErrorf(op, dest, unifs.ErrIO, "cannot move %s into its own subdirectory", src)
	}
	rs, rd := e.resolve(src), e.resolve(dest)
	switch {
	case rs.fs == nil:
		return unserved(op, src, unifs.ErrDirectoryNotFound)
	case rd.fs == nil:
		return unserved(op, dest, unifs.ErrUnauthorizedAccess)
	case rs.same(rd):
		return rs.err(rs.fs.MoveDirectory(rs.inner, rd.inner))
	}

	// across mounts
	if ok, err := rs.fs.DirectoryExists(rs.inner); err != nil || !ok {
		if err == nil {
			err = unifs.PathErrorf(op, src, unifs.ErrDirectoryNotFound, "no such directory")
		}
		return rs.err(err)
	}
	if err := e.checkFree(op, dest, rd); err != nil {
		return err
	}
	if err := unifs.CopyDirectoryAcross(rs.fs, rs.inner, rd.fs, rd.inner, false); err != nil {
		e.discardCopy(dest, rd)
		return rd.err(err)
	}
	if err := rs.fs.DeleteDirectory(rs.inner, true); err != nil {
		// leave the source in place rather than two copies
		e.discardCopy(dest, rd)
		return rs.err(err)
	}
	e.logger.Debug().Str("src", src.String()).Str("dest", dest.String()).Msg("Moved directory across mounts")
	return nil
}

// discardCopy removes a partial or complete tree copied to dest by a failed
// move.
func (e *engine) discardCopy(dest upath.Path, rd route) {
	ok, err := rd.fs.DirectoryExists(rd.inner)
	if err == nil && ok {
		err = rd.fs.DeleteDirectory(rd.inner, true)
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("path", dest.String()).Msg("Failed to remove copy after failed move")
	}
}

// checkFree verifies that nothing exists at dest and that its parent does.
func (e *engine) checkFree(op string, dest upath.Path, rd route) error {
	isDir, err := rd.fs.DirectoryExists(rd.inner)
	if err != nil {
		return rd.err(err)
	}
	isFile, err := rd.fs.FileExists(rd.inner)
	if err != nil {
		return rd.err(err)
	}
	if isDir || isFile {
		return unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	}
	parent, err := e.DirectoryExists(dest.Directory())
	if err != nil {
		return err
	}
	if !parent {
		return unifs.PathErrorf(op, dest, unifs.ErrDirectoryNotFound, "destination parent does not exist")
	}
	return nil
}

// sourceFile verifies that a regular file exists at the source of a copy.
func sourceFile(r route) error {
	_, err := r.fs.FileLength(r.inner)
	return r.err(err)
}

func (e *engine) CopyFile(src, dest upath.Path, overwrite bool) error {
	const op = "copy"
	rs, rd := e.resolve(src), e.resolve(dest)
	switch {
	case rs.fs == nil:
		return unserved(op, src, unifs.ErrFileNotFound)
	case rd.fs == nil || e.pinned(dest):
		return unserved(op, dest, unifs.ErrUnauthorizedAccess)
	case rs.same(rd):
		return rs.err(rs.fs.CopyFile(rs.inner, rd.inner, overwrite))
	}
	if err := sourceFile(rs); err != nil {
		return err
	}
	return rd.err(unifs.CopyFileAcross(rs.fs, rs.inner, rd.fs, rd.inner, overwrite))
}

func (e *engine) MoveFile(src, dest upath.Path) error {
	const op = "rename"
	rs, rd := e.resolve(src), e.resolve(dest)
	switch {
	case rs.fs == nil:
		return unserved(op, src, unifs.ErrFileNotFound)
	case e.pinned(dest):
		return unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	case rd.fs == nil:
		return unserved(op, dest, unifs.ErrUnauthorizedAccess)
	case rs.same(rd):
		return rs.err(rs.fs.MoveFile(rs.inner, rd.inner))
	}

	// across mounts
	if err := sourceFile(rs); err != nil {
		return err
	}
	if err := e.checkFree(op, dest, rd); err != nil {
		return err
	}
	if err := unifs.CopyFileAcross(rs.fs, rs.inner, rd.fs, rd.inner, false); err != nil {
		return rd.err(err)
	}
	if err := rs.fs.DeleteFile(rs.inner); err != nil {
		// leave the source in place rather than two copies
		if cerr := rd.fs.DeleteFile(rd.inner); cerr != nil {
			e.logger.Warn().Err(cerr).Str("path", dest.String()).Msg("Failed to remove copy after failed move")
		}
		return rs.err(err)
	}
	e.logger.Debug().Str("src", src.String()).Str("dest", dest.String()).Msg("Moved file across mounts")
	return nil
}

func (e *engine) ReplaceFile(src, dest, backup upath.Path, ignoreMetadataErrors bool) error {
	const op = "replace"
	rs, rd := e.resolve(src), e.resolve(dest)
	switch {
	case rs.fs == nil:
		return unserved(op, src, unifs.ErrFileNotFound)
	case rd.fs == nil:
		return unserved(op, dest, unifs.ErrFileNotFound)
	case !rs.same(rd):
		return unifs.PathErrorf(op, dest, unifs.ErrNotSupported, "cannot replace across mounted filesystems")
	}
	inner := upath.Null
	if !backup.IsNull() {
		rb := e.resolve(backup)
		if !rb.same(rs) {
			return unifs.PathErrorf(op, backup, unifs.ErrNotSupported, "cannot back up across mounted filesystems")
		}
		inner = rb.inner
	}
	return rs.err(rs.fs.ReplaceFile(rs.inner, rd.inner, inner, ignoreMetadataErrors))
}

func (e *engine) FileLength(p upath.Path) (int64, error) {
	r := e.resolve(p)
	if r.fs == nil || e.pinned(p) {
		return 0, unserved("stat", p, unifs.ErrFileNotFound)
	}
	n, err := r.fs.FileLength(r.inner)
	return n, r.err(err)
}

func (e *engine) FileExists(p upath.Path) (bool, error) {
	r := e.resolve(p)
	if r.fs == nil || e.pinned(p) {
		return false, nil
	}
	ok, err := r.fs.FileExists(r.inner)
	return ok, r.err(err)
}

func (e *engine) DeleteFile(p upath.Path) error {
	const op = "remove"
	if e.pinned(p) {
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "path is a directory")
	}
	r := e.resolve(p)
	if r.fs == nil {
		return unserved(op, p, unifs.ErrFileNotFound)
	}
	return r.err(r.fs.DeleteFile(r.inner))
}

func (e *engine) OpenFile(p upath.Path, mode unifs.FileMode, access unifs.FileAccess, share unifs.FileShare) (unifs.Stream, error) {
	const op = "open"
	if e.pinned(p) {
		return nil, unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "path is a directory")
	}
	r := e.resolve(p)
	if r.fs == nil {
		if mode == unifs.ModeOpen || mode == unifs.ModeTruncate {
			return nil, unserved(op, p, unifs.ErrFileNotFound)
		}
		return nil, unserved(op, p, unifs.ErrUnauthorizedAccess)
	}
	s, err := r.fs.OpenFile(r.inner, mode, access, share)
	return s, r.err(err)
}

func (e *engine) Attributes(p upath.Path) (unifs.FileAttributes, error) {
	r := e.resolve(p)
	virtual, err := e.virtualOnly(p, r)
	switch {
	case err != nil:
		return 0, err
	case virtual:
		return unifs.AttrDirectory | unifs.AttrReadOnly, nil
	case r.fs == nil:
		return 0, unserved("stat", p, unifs.ErrFileNotFound)
	}
	attrs, err := r.fs.Attributes(r.inner)
	return attrs, r.err(err)
}

func (e *engine) SetAttributes(p upath.Path, attrs unifs.FileAttributes) error {
	return e.set("chattr", p, func(r route) error { return r.fs.SetAttributes(r.inner, attrs) })
}

// set applies a metadata change to the backer serving p. Virtual
// directories have fixed metadata.
func (e *engine) set(op string, p upath.Path, fn func(route) error) error {
	r := e.resolve(p)
	virtual, err := e.virtualOnly(p, r)
	switch {
	case err != nil:
		return err
	case virtual:
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "cannot change a virtual directory")
	case r.fs == nil:
		return unserved(op, p, unifs.ErrFileNotFound)
	}
	return r.err(fn(r))
}

func (e *engine) get(p upath.Path, fn func(unifs.FileSystem, upath.Path) (time.Time, error)) (time.Time, error) {
	r := e.resolve(p)
	virtual, err := e.virtualOnly(p, r)
	switch {
	case err != nil:
		return time.Time{}, err
	case virtual:
		return e.created, nil
	case r.fs == nil:
		return time.Time{}, unserved("stat", p, unifs.ErrFileNotFound)
	}
	t, err := fn(r.fs, r.inner)
	return t, r.err(err)
}

func (e *engine) CreationTime(p upath.Path) (time.Time, error) {
	return e.get(p, unifs.FileSystem.CreationTime)
}

func (e *engine) SetCreationTime(p upath.Path, t time.Time) error {
	return e.set("chtimes", p, func(r route) error { return r.fs.SetCreationTime(r.inner, t) })
}

func (e *engine) LastAccessTime(p upath.Path) (time.Time, error) {
	return e.get(p, unifs.FileSystem.LastAccessTime)
}

func (e *engine) SetLastAccessTime(p upath.Path, t time.Time) error {
	return e.set("chtimes", p, func(r route) error { return r.fs.SetLastAccessTime(r.inner, t) })
}

func (e *engine) LastWriteTime(p upath.Path) (time.Time, error) {
	return e.get(p, unifs.FileSystem.LastWriteTime)
}

func (e *engine) SetLastWriteTime(p upath.Path, t time.Time) error {
	return e.set("chtimes", p, func(r route) error { return r.fs.SetLastWriteTime(r.inner, t) })
}

// list merges the mount points below dir with the listing of the
// filesystem serving dir. Mount points shadow entries of the same name.
func (e *engine) list(dir upath.Path) ([]compose.Child, bool, error) {
	var virtual []compose.Child
	for _, name := range e.virtualChildren(dir) {
		virtual = append(virtual, compose.Child{Name: name, IsDir: true})
	}
	found := e.pinned(dir)

	r := e.resolve(dir)
	if r.fs == nil {
		return virtual, found, nil
	}
	children, ok, err := compose.ListDir(r.fs, r.inner)
	if err != nil {
		return nil, false, r.err(err)
	}
	return compose.Merge(virtual, children), found || ok, nil
}

func (e *engine) EnumeratePaths(p upath.Path, pattern string, option unifs.SearchOption, target unifs.SearchTarget) iter.Seq2[upath.Path, error] {
	return compose.Walk(p, pattern, option, target, e.list)
}
