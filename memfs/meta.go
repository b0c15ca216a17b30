package memfs

import (
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
)

// stat runs fn on the read-locked node at p.
func (e *engine) stat(p upath.Path, fn func(n *node)) error {
	ctx := e.ctx()
	defer ctx.Close()
	ctx.lock(readLock(p))
	n := ctx.get(p)
	if n == nil {
		return missingErr("stat", ctx, p, unifs.ErrFileNotFound)
	}
	fn(n)
	return nil
}

// update runs fn on the write-locked node at p and raises a Changed event
// when fn succeeds.
func (e *engine) update(op string, p upath.Path, change unifs.NotifyFilters, fn func(n *node) error) error {
	ctx := e.ctx()
	ctx.lock(writeLock(p))
	n := ctx.get(p)
	if n == nil {
		err := missingErr(op, ctx, p, unifs.ErrFileNotFound)
		ctx.Close()
		return err
	}
	err := fn(n)
	ctx.Close()
	if err != nil {
		return err
	}
	e.watchers.RaiseChanged(p, change)
	return nil
}

func (e *engine) Attributes(p upath.Path) (attrs unifs.FileAttributes, err error) {
	err = e.stat(p, func(n *node) { attrs = n.attrs })
	return attrs, err
}

func (e *engine) SetAttributes(p upath.Path, attrs unifs.FileAttributes) error {
	const op = "chattr"
	return e.update(op, p, unifs.NotifyAttributes, func(n *node) error {
		if n.isDir {
			if !attrs.Has(unifs.AttrDirectory) {
				return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "cannot clear the directory attribute")
			}
			n.attrs = attrs &^ unifs.AttrNormal
			return nil
		}
		if attrs.Has(unifs.AttrDirectory) {
			return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "cannot set the directory attribute on a file")
		}
		switch {
		case attrs == 0:
			attrs = unifs.AttrNormal
		case attrs != unifs.AttrNormal:
			attrs &^= unifs.AttrNormal
		}
		n.attrs = attrs
		return nil
	})
}

func (e *engine) CreationTime(p upath.Path) (t time.Time, err error) {
	err = e.stat(p, func(n *node) { t = n.ctime })
	return t, err
}

func (e *engine) SetCreationTime(p upath.Path, t time.Time) error {
	return e.update("chtimes", p, unifs.NotifyCreationTime, func(n *node) error {
		n.ctime = t
		return nil
	})
}

func (e *engine) LastAccessTime(p upath.Path) (t time.Time, err error) {
	err = e.stat(p, func(n *node) { t = n.atime })
	return t, err
}

func (e *engine) SetLastAccessTime(p upath.Path, t time.Time) error {
	return e.update("chtimes", p, unifs.NotifyLastAccess, func(n *node) error {
		n.atime = t
		return nil
	})
}

func (e *engine) LastWriteTime(p upath.Path) (t time.Time, err error) {
	err = e.stat(p, func(n *node) { t = n.mtime })
	return t, err
}

func (e *engine) SetLastWriteTime(p upath.Path, t time.Time) error {
	return e.update("chtimes", p, unifs.NotifyLastWrite, func(n *node) error {
		n.mtime = t
		return nil
	})
}
