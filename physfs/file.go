package physfs

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/upath"
)

func (e *engine) FileExists(p upath.Path) (bool, error) {
	_, info, err := e.stat(p)
	return info != nil && !info.IsDir(), err
}

func (e *engine) FileLength(p upath.Path) (int64, error) {
	_, info, err := e.stat(p)
	if err != nil {
		return 0, err
	}
	if info == nil || info.IsDir() {
		return 0, e.missing("stat", p, unifs.ErrFileNotFound)
	}
	return info.Size(), nil
}

// checkMutable validates that an existing file may be removed or replaced.
func (e *engine) checkMutable(op string, p upath.Path, native string, info fs.FileInfo) error {
	switch {
	case info.IsDir():
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "path is a directory")
	case readOnly(info):
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "file is read-only")
	case e.shares.inUse(native):
		return unifs.NewPathError(op, p, unifs.ErrInUse)
	}
	return nil
}

// sourceFile stats the existing regular file src.
func (e *engine) sourceFile(op string, src upath.Path) (string, fs.FileInfo, error) {
	native, info, err := e.stat(src)
	switch {
	case err != nil:
		return "", nil, err
	case info == nil:
		return "", nil, e.missing(op, src, unifs.ErrFileNotFound)
	case info.IsDir():
		return "", nil, unifs.PathErrorf(op, src, unifs.ErrUnauthorizedAccess, "source is a directory")
	}
	return native, info, nil
}

func (e *engine) CopyFile(src, dest upath.Path, overwrite bool) error {
	const op = "copy"
	if src == dest {
		return unifs.PathErrorf(op, dest, unifs.ErrIO, "cannot copy a file onto itself")
	}
	srcNative, info, err := e.sourceFile(op, src)
	if err != nil {
		return err
	}
	destNative, existing, err := e.stat(dest)
	if err != nil {
		return err
	}
	switch {
	case !e.isDir(dest.Directory()):
		return unifs.PathErrorf(op, dest, unifs.ErrDirectoryNotFound, "destination parent does not exist")
	case existing != nil && !overwrite:
		return unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	case existing != nil:
		if err := e.checkMutable(op, dest, destNative, existing); err != nil {
			return err
		}
	}

	in, err := os.Open(srcNative)
	if err != nil {
		return e.translate(op, src, err, unifs.ErrFileNotFound)
	}
	defer in.Close()
	out, err := os.OpenFile(destNative, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return e.translate(op, dest, err, unifs.ErrFileNotFound)
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return e.translate(op, dest, err, unifs.ErrFileNotFound)
	}

	if err := os.Chmod(destNative, info.Mode().Perm()); err != nil {
		return e.translate(op, dest, err, unifs.ErrFileNotFound)
	}
	if err := setTimes(destNative, accessTime(srcNative, info), info.ModTime()); err != nil {
		return e.translate(op, dest, err, unifs.ErrFileNotFound)
	}
	e.logger.Trace().Str("src", src.String()).Str("dest", dest.String()).Str("size", util.Bytes(n)).Msg("Copied file")
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

	srcNative, srcInfo, err := e.stat(src)
	if err != nil {
		return err
	}
	if srcInfo == nil {
		return e.missing(op, src, unifs.ErrFileNotFound)
	}
	destNative, destInfo, err := e.stat(dest)
	if err != nil {
		return err
	}
	if destInfo == nil {
		return e.missing(op, dest, unifs.ErrFileNotFound)
	}
	if err := e.checkMutable(op, src, srcNative, srcInfo); err != nil {
		return err
	}
	if err := e.checkMutable(op, dest, destNative, destInfo); err != nil {
		return err
	}

	if backup.IsNull() {
		if err := os.Rename(srcNative, destNative); err != nil {
			return e.translate(op, dest, err, unifs.ErrFileNotFound)
		}
		e.logger.Trace().Str("src", src.String()).Str("dest", dest.String()).Msg("Replaced file")
		return nil
	}

	backupNative, backupInfo, err := e.stat(backup)
	if err != nil {
		return err
	}
	if !e.isDir(backup.Directory()) {
		return unifs.PathErrorf(op, backup, unifs.ErrDirectoryNotFound, "backup parent does not exist")
	}
	if backupInfo != nil {
		if err := e.checkMutable(op, backup, backupNative, backupInfo); err != nil {
			return err
		}
	}
	if err := os.Rename(destNative, backupNative); err != nil {
		return e.translate(op, backup, err, unifs.ErrFileNotFound)
	}
	if err := os.Rename(srcNative, destNative); err != nil {
		if rerr := os.Rename(backupNative, destNative); rerr != nil {
			e.logger.Warn().Err(rerr).Str("dest", dest.String()).Str("backup", backup.String()).Msg("Could not restore replaced file from backup")
		}
		return e.translate(op, dest, err, unifs.ErrFileNotFound)
	}
	e.logger.Trace().Str("src", src.String()).Str("dest", dest.String()).Str("backup", backup.String()).Msg("Replaced file")
	return nil
}

func (e *engine) MoveFile(src, dest upath.Path) error {
	const op = "rename"
	if src == dest {
		return unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	}
	srcNative, info, err := e.stat(src)
	switch {
	case err != nil:
		return err
	case info == nil:
		return e.missing(op, src, unifs.ErrFileNotFound)
	case info.IsDir():
		return unifs.PathErrorf(op, src, unifs.ErrFileNotFound, "source is a directory")
	}
	destNative, err := e.checkDest(op, dest)
	if err != nil {
		return err
	}
	if err := e.checkMutable(op, src, srcNative, info); err != nil {
		return err
	}
	if err := os.Rename(srcNative, destNative); err != nil {
		return e.translate(op, src, err, unifs.ErrFileNotFound)
	}
	e.logger.Trace().Str("src", src.String()).Str("dest", dest.String()).Msg("Moved file")
	return nil
}

func (e *engine) DeleteFile(p upath.Path) error {
	const op = "remove"
	native, info, err := e.stat(p)
	if err != nil {
		return err
	}
	if info == nil {
		return e.missing(op, p, unifs.ErrFileNotFound)
	}
	if err := e.checkMutable(op, p, native, info); err != nil {
		return err
	}
	if err := os.Remove(native); err != nil {
		return e.translate(op, p, err, unifs.ErrFileNotFound)
	}
	e.logger.Trace().Str("path", p.String()).Msg("Deleted file")
	return nil
}

// openFlags maps a mode and access pair to os.OpenFile flags. Append is
// opened without O_APPEND so the stream can enforce its own seek floor.
func openFlags(mode unifs.FileMode, access unifs.FileAccess) int {
	flags := os.O_RDONLY
	switch access {
	case unifs.AccessWrite:
		flags = os.O_WRONLY
	case unifs.AccessReadWrite:
		flags = os.O_RDWR
	}
	switch mode {
	case unifs.ModeCreateNew:
		flags |= os.O_CREATE | os.O_EXCL
	case unifs.ModeCreate:
		flags |= os.O_CREATE | os.O_TRUNC
	case unifs.ModeOpenOrCreate, unifs.ModeAppend:
		flags |= os.O_CREATE
	case unifs.ModeTruncate:
		flags |= os.O_TRUNC
	}
	return flags
}

func (e *engine) OpenFile(p upath.Path, mode unifs.FileMode, access unifs.FileAccess, share unifs.FileShare) (unifs.Stream, error) {
	const op = "open"
	if p.IsRoot() {
		return nil, unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "path is a directory")
	}
	mayCreate := mode != unifs.ModeOpen && mode != unifs.ModeTruncate
	if !e.isDir(p.Directory()) {
		return nil, e.missing(op, p, unifs.ErrFileNotFound)
	}
	native, info, err := e.stat(p)
	switch {
	case err != nil:
		return nil, err
	case info == nil && !mayCreate:
		return nil, unifs.PathErrorf(op, p, unifs.ErrFileNotFound, "no such file")
	case info != nil && info.IsDir():
		return nil, unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "path is a directory")
	case info != nil && mode == unifs.ModeCreateNew:
		return nil, unifs.PathErrorf(op, p, unifs.ErrExist, "file already exists")
	case info != nil && access.CanWrite() && readOnly(info):
		return nil, unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "file is read-only")
	}

	h, ok := e.shares.acquire(native, access, share)
	if !ok {
		return nil, unifs.NewPathError(op, p, unifs.ErrInUse)
	}
	f, err := os.OpenFile(native, openFlags(mode, access), 0o644)
	if err != nil {
		e.shares.release(native, h)
		if errors.Is(err, fs.ErrExist) {
			return nil, unifs.PathErrorf(op, p, unifs.ErrExist, "file already exists")
		}
		return nil, e.translate(op, p, err, unifs.ErrFileNotFound)
	}

	s := &stream{e: e, p: p, native: native, h: h, f: f}
	if mode == unifs.ModeAppend {
		end, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			s.Close()
			return nil, e.translate(op, p, err, unifs.ErrFileNotFound)
		}
		s.appendAt = end
	}
	e.logger.Trace().Str("path", p.String()).Str("mode", mode.String()).Str("access", access.String()).Msg("Opened file")
	return s, nil
}
