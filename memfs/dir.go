package memfs

import (
	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
)

func (e *engine) CreateDirectory(p upath.Path) error {
	const op = "mkdir"
	if p.IsRoot() {
		return unifs.PathErrorf(op, p, unifs.ErrIO, "cannot create the root directory")
	}
	segs := p.Split()
	for {
		// find how much of the path already exists
		ctx := e.ctx()
		ctx.lock(readLock(p))
		n, depth := ctx.deepest(p)
		ctx.Close()

		if !n.isDir {
			return unifs.NewPathError(op, n.path(), unifs.ErrNotADirectory)
		}
		if depth == len(segs) {
			return nil
		}

		// write-lock the deepest existing directory and build the rest beneath it
		base, _ := upath.Join(upath.Root, segs[:depth]...)
		ctx = e.ctx()
		ctx.lock(writeLock(base))
		parent := ctx.get(base)
		if parent == nil || !parent.isDir {
			ctx.Close()
			continue
		}
		if _, exists := parent.children.Load(segs[depth]); exists {
			// raced with another creator
			ctx.Close()
			continue
		}

		now := e.now()
		parent.touch(now)
		created := make([]upath.Path, 0, len(segs)-depth)
		cur := parent
		for i := depth; i < len(segs); i++ {
			next := newDirNode(segs[i], cur, now)
			cur.addChild(segs[i], next)
			cur = next
			created = append(created, child(base, segs[depth:i+1]...))
		}
		ctx.Close()

		e.logger.Trace().Str("path", p.String()).Int("created", len(created)).Msg("Created directories")
		for _, c := range created {
			e.watchers.RaiseCreated(c)
		}
		return nil
	}
}

func (e *engine) DirectoryExists(p upath.Path) (bool, error) {
	ctx := e.ctx()
	defer ctx.Close()
	ctx.lock(readLock(p))
	n := ctx.get(p)
	return n != nil && n.isDir, nil
}

func (e *engine) MoveDirectory(src, dest upath.Path) error {
	const op = "rename"
	switch {
	case src.IsRoot():
		return unifs.PathErrorf(op, src, unifs.ErrUnauthorizedAccess, "cannot move the root directory")
	case dest.IsRoot() || src == dest:
		return unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	case dest.IsInDirectory(src, true):
		return unifs.PathErrorf(op, dest, unifs.ErrIO, "cannot move %s into its own subdirectory", src)
	}

	ctx := e.ctx()
	ctx.lock(writeLock(src.Directory()), writeLock(src), writeLock(dest.Directory()), readLock(dest))
	srcParent, n := ctx.get(src.Directory()), ctx.get(src)
	destParent := ctx.get(dest.Directory())

	var err error
	switch {
	case n == nil || !n.isDir:
		err = missingErr(op, ctx, src, unifs.ErrDirectoryNotFound)
	case destParent == nil || !destParent.isDir:
		err = unifs.PathErrorf(op, dest, unifs.ErrDirectoryNotFound, "destination parent does not exist")
	case ctx.get(dest) != nil:
		err = unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	case n.attrs.Has(unifs.AttrReadOnly):
		err = unifs.PathErrorf(op, src, unifs.ErrUnauthorizedAccess, "directory is read-only")
	case subtreeInUse(n):
		err = unifs.NewPathError(op, src, unifs.ErrInUse)
	}
	if err != nil {
		ctx.Close()
		return err
	}

	now := e.now()
	srcParent.removeChild(src.Name())
	destParent.addChild(dest.Name(), n)
	srcParent.touch(now)
	destParent.touch(now)
	ctx.Close()

	e.logger.Trace().Str("src", src.String()).Str("dest", dest.String()).Msg("Moved directory")
	e.watchers.RaiseRenamed(dest, src)
	return nil
}

// subtreeInUse reports whether any file below n has an open handle. The
// caller holds n for writing so no handle can be added concurrently.
func subtreeInUse(n *node) bool {
	if !n.isDir {
		return n.open.Load() > 0
	}
	inUse := false
	n.children.Range(func(_ string, ch *node) bool {
		inUse = subtreeInUse(ch)
		return !inUse
	})
	return inUse
}

func (e *engine) DeleteDirectory(p upath.Path, recursive bool) error {
	const op = "rmdir"
	if p.IsRoot() {
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "cannot delete the root directory")
	}

	ctx := e.ctx()
	defer ctx.Close()
	ctx.lock(writeLock(p.Directory()), writeLock(p))
	parent, n := ctx.get(p.Directory()), ctx.get(p)
	if n == nil || !n.isDir {
		return missingErr(op, ctx, p, unifs.ErrDirectoryNotFound)
	}
	if n.attrs.Has(unifs.AttrReadOnly) {
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "directory is read-only")
	}

	if !recursive {
		if n.children.Size() > 0 {
			return unifs.NewPathError(op, p, unifs.ErrNotEmpty)
		}
	} else {
		// validate the whole subtree before removing anything
		for _, d := range ctx.lockSubtree(n, true) {
			switch {
			case d.attrs.Has(unifs.AttrReadOnly):
				return unifs.PathErrorf(op, d.path(), unifs.ErrUnauthorizedAccess, "entry is read-only")
			case len(d.handles) > 0:
				return unifs.NewPathError(op, d.path(), unifs.ErrInUse)
			}
		}
	}

	parent.removeChild(p.Name())
	parent.touch(e.now())
	n.del()
	ctx.Close()

	e.logger.Trace().Str("path", p.String()).Bool("recursive", recursive).Msg("Deleted directory")
	e.watchers.RaiseDeleted(p)
	return nil
}
