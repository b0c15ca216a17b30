package memfs

import (
	"slices"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/upath"
)

func (e *engine) FileExists(p upath.Path) (bool, error) {
	ctx := e.ctx()
	defer ctx.Close()
	ctx.lock(readLock(p))
	n := ctx.get(p)
	return n != nil && !n.isDir, nil
}

func (e *engine) FileLength(p upath.Path) (int64, error) {
	ctx := e.ctx()
	defer ctx.Close()
	ctx.lock(readLock(p))
	n := ctx.get(p)
	if n == nil || n.isDir {
		return 0, missingErr("stat", ctx, p, unifs.ErrFileNotFound)
	}
	return int64(len(n.content)), nil
}

// checkMutable validates that an existing file may be removed or replaced.
func checkMutable(op string, p upath.Path, n *node) error {
	switch {
	case n.isDir:
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "path is a directory")
	case n.attrs.Has(unifs.AttrReadOnly):
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "file is read-only")
	case len(n.handles) > 0:
		return unifs.NewPathError(op, p, unifs.ErrInUse)
	}
	return nil
}

func (e *engine) CopyFile(src, dest upath.Path, overwrite bool) error {
	const op = "copy"
	if src == dest {
		return unifs.PathErrorf(op, dest, unifs.ErrIO, "cannot copy a file onto itself")
	}

	ctx := e.ctx()
	ctx.lock(readLock(src), writeLock(dest.Directory()), writeLock(dest))
	n, destParent, existing := ctx.get(src), ctx.get(dest.Directory()), ctx.get(dest)

	var err error
	switch {
	case n == nil:
		err = missingErr(op, ctx, src, unifs.ErrFileNotFound)
	case n.isDir:
		err = unifs.PathErrorf(op, src, unifs.ErrUnauthorizedAccess, "source is a directory")
	case destParent == nil || !destParent.isDir:
		err = unifs.PathErrorf(op, dest, unifs.ErrDirectoryNotFound, "destination parent does not exist")
	case existing != nil && !overwrite:
		err = unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	case existing != nil:
		err = checkMutable(op, dest, existing)
	}
	if err != nil {
		ctx.Close()
		return err
	}

	now := e.now()
	target := existing
	if target == nil {
		target = newFileNode(dest.Name(), destParent, now)
		destParent.addChild(dest.Name(), target)
		destParent.touch(now)
	}
	target.content = slices.Clone(n.content)
	target.attrs = n.attrs
	target.mtime = n.mtime
	target.atime = now
	size := len(n.content)
	ctx.Close()

	e.logger.Trace().Str("src", src.String()).Str("dest", dest.String()).Str("size", util.Bytes(size)).Msg("Copied file")
	if existing == nil {
		e.watchers.RaiseCreated(dest)
	} else {
		e.watchers.RaiseChanged(dest, unifs.NotifyLastWrite|unifs.NotifySize)
	}
	return nil
}

func (e *engine) ReplaceFile(src, dest, backup upath.Path, _ bool) error {
	const op = "replace"
	switch {
	case src == dest:
		return unifs.PathErrorf(op, dest, unifs.ErrIO, "source and destination are the same file")
	case !backup.IsNull() && (backup == src || backup == dest):
		return unifs.PathErrorf(op, backup, unifs.ErrIO, "backup must differ from source and destination")
	}

	reqs := []lockReq{writeLock(src.Directory()), writeLock(src), writeLock(dest.Directory()), writeLock(dest)}
	if !backup.IsNull() {
		reqs = append(reqs, writeLock(backup.Directory()), writeLock(backup))
	}
	ctx := e.ctx()
	ctx.lock(reqs...)
	srcNode, destNode := ctx.get(src), ctx.get(dest)

	var err error
	switch {
	case srcNode == nil:
		err = missingErr(op, ctx, src, unifs.ErrFileNotFound)
	case destNode == nil:
		err = missingErr(op, ctx, dest, unifs.ErrFileNotFound)
	default:
		if err = checkMutable(op, src, srcNode); err == nil {
			err = checkMutable(op, dest, destNode)
		}
	}
	var backupParent, backupNode *node
	if err == nil && !backup.IsNull() {
		backupParent, backupNode = ctx.get(backup.Directory()), ctx.get(backup)
		switch {
		case backupParent == nil || !backupParent.isDir:
			err = unifs.PathErrorf(op, backup, unifs.ErrDirectoryNotFound, "backup parent does not exist")
		case backupNode != nil:
			err = checkMutable(op, backup, backupNode)
		}
	}
	if err != nil {
		ctx.Close()
		return err
	}

	now := e.now()
	srcParent, destParent := ctx.get(src.Directory()), ctx.get(dest.Directory())
	created := destNode.ctime

	srcParent.removeChild(src.Name())
	destParent.removeChild(dest.Name())
	if backup.IsNull() {
		destNode.del()
	} else {
		if backupNode != nil {
			backupParent.removeChild(backup.Name())
			backupNode.del()
		}
		backupParent.addChild(backup.Name(), destNode)
		backupParent.touch(now)
	}
	destParent.addChild(dest.Name(), srcNode)
	srcNode.ctime = created
	srcParent.touch(now)
	destParent.touch(now)
	ctx.Close()

	e.logger.Trace().Str("src", src.String()).Str("dest", dest.String()).Str("backup", backup.String()).Msg("Replaced file")
	if !backup.IsNull() {
		e.watchers.RaiseRenamed(backup, dest)
	} else {
		e.watchers.RaiseDeleted(dest)
	}
	e.watchers.RaiseRenamed(dest, src)
	return nil
}

func (e *engine) MoveFile(src, dest upath.Path) error {
	const op = "rename"
	if src == dest {
		return unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	}

	ctx := e.ctx()
	ctx.lock(writeLock(src.Directory()), writeLock(src), writeLock(dest.Directory()), readLock(dest))
	srcParent, n := ctx.get(src.Directory()), ctx.get(src)
	destParent := ctx.get(dest.Directory())

	var err error
	switch {
	case n == nil:
		err = missingErr(op, ctx, src, unifs.ErrFileNotFound)
	case n.isDir:
		err = unifs.PathErrorf(op, src, unifs.ErrFileNotFound, "source is a directory")
	case destParent == nil || !destParent.isDir:
		err = unifs.PathErrorf(op, dest, unifs.ErrDirectoryNotFound, "destination parent does not exist")
	case ctx.get(dest) != nil:
		err = unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	default:
		err = checkMutable(op, src, n)
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

	e.logger.Trace().Str("src", src.String()).Str("dest", dest.String()).Msg("Moved file")
	e.watchers.RaiseRenamed(dest, src)
	return nil
}

func (e *engine) DeleteFile(p upath.Path) error {
	const op = "remove"
	ctx := e.ctx()
	defer ctx.Close()
	ctx.lock(writeLock(p.Directory()), writeLock(p))
	parent, n := ctx.get(p.Directory()), ctx.get(p)
	if n == nil {
		return missingErr(op, ctx, p, unifs.ErrFileNotFound)
	}
	if err := checkMutable(op, p, n); err != nil {
		return err
	}

	parent.removeChild(p.Name())
	parent.touch(e.now())
	n.del()
	ctx.Close()

	e.logger.Trace().Str("path", p.String()).Msg("Deleted file")
	e.watchers.RaiseDeleted(p)
	return nil
}

func (e *engine) OpenFile(p upath.Path, mode unifs.FileMode, access unifs.FileAccess, share unifs.FileShare) (unifs.Stream, error) {
	const op = "open"
	if p.IsRoot() {
		return nil, unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "path is a directory")
	}
	mayCreate := mode != unifs.ModeOpen && mode != unifs.ModeTruncate
	parentReq := readLock(p.Directory())
	if mayCreate {
		parentReq = writeLock(p.Directory())
	}

	ctx := e.ctx()
	defer ctx.Close()
	ctx.lock(parentReq, writeLock(p))
	parent, n := ctx.get(p.Directory()), ctx.get(p)

	switch {
	case parent == nil || !parent.isDir:
		return nil, missingErr(op, ctx, p, unifs.ErrFileNotFound)
	case n == nil && !mayCreate:
		return nil, unifs.PathErrorf(op, p, unifs.ErrFileNotFound, "no such file")
	case n != nil && n.isDir:
		return nil, unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "path is a directory")
	case n != nil && mode == unifs.ModeCreateNew:
		return nil, unifs.PathErrorf(op, p, unifs.ErrExist, "file already exists")
	case n != nil && access.CanWrite() && n.attrs.Has(unifs.AttrReadOnly):
		return nil, unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "file is read-only")
	case n != nil && n.shareConflict(access, share):
		return nil, unifs.NewPathError(op, p, unifs.ErrInUse)
	}

	now := e.now()
	created, truncated := false, false
	if n == nil {
		n = newFileNode(p.Name(), parent, now)
		parent.addChild(p.Name(), n)
		parent.touch(now)
		created = true
	} else if mode == unifs.ModeCreate || mode == unifs.ModeTruncate {
		truncated = len(n.content) > 0
		n.content = nil
		n.touch(now)
	} else {
		n.atime = now
	}

	h := &handle{access: access, share: share}
	n.addHandle(h)
	s := &stream{e: e, n: n, h: h}
	if mode == unifs.ModeAppend {
		s.pos = int64(len(n.content))
		s.appendAt = s.pos
	}
	ctx.Close()

	e.logger.Trace().Str("path", p.String()).Str("mode", mode.String()).Str("access", access.String()).Msg("Opened file")
	if created {
		e.watchers.RaiseCreated(p)
	} else if truncated {
		e.watchers.RaiseChanged(p, unifs.NotifySize|unifs.NotifyLastWrite)
	}
	return s, nil
}
