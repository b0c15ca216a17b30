package physfs

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"syscall"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/internal/compose"
	"github.com/brettbedarf/unifs/upath"
)

func (e *engine) CreateDirectory(p upath.Path) error {
	const op = "mkdir"
	if p.IsRoot() {
		return unifs.PathErrorf(op, p, unifs.ErrIO, "cannot create the root directory")
	}
	native, err := e.native(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(native, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) || errors.Is(err, syscall.ENOTDIR) {
			return unifs.NewPathError(op, p, unifs.ErrNotADirectory)
		}
		return e.translate(op, p, err, unifs.ErrDirectoryNotFound)
	}
	e.logger.Trace().Str("path", p.String()).Msg("Created directory")
	return nil
}

func (e *engine) DirectoryExists(p upath.Path) (bool, error) {
	_, info, err := e.stat(p)
	return info != nil && info.IsDir(), err
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

	srcNative, info, err := e.stat(src)
	if err != nil {
		return err
	}
	if info == nil || !info.IsDir() {
		return e.missing(op, src, unifs.ErrDirectoryNotFound)
	}
	destNative, err := e.checkDest(op, dest)
	if err != nil {
		return err
	}
	if e.shares.inUse(srcNative) {
		return unifs.NewPathError(op, src, unifs.ErrInUse)
	}
	if err := os.Rename(srcNative, destNative); err != nil {
		return e.translate(op, src, err, unifs.ErrDirectoryNotFound)
	}
	e.logger.Trace().Str("src", src.String()).Str("dest", dest.String()).Msg("Moved directory")
	return nil
}

// checkDest verifies nothing exists at dest and its parent directory does.
func (e *engine) checkDest(op string, dest upath.Path) (string, error) {
	native, info, err := e.stat(dest)
	if err != nil {
		return "", err
	}
	if info != nil {
		return "", unifs.PathErrorf(op, dest, unifs.ErrExist, "destination already exists")
	}
	if !e.isDir(dest.Directory()) {
		return "", unifs.PathErrorf(op, dest, unifs.ErrDirectoryNotFound, "destination parent does not exist")
	}
	return native, nil
}

func (e *engine) DeleteDirectory(p upath.Path, recursive bool) error {
	const op = "rmdir"
	if p.IsRoot() {
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "cannot delete the root directory")
	}
	native, info, err := e.stat(p)
	if err != nil {
		return err
	}
	if info == nil || !info.IsDir() {
		return e.missing(op, p, unifs.ErrDirectoryNotFound)
	}

	if !recursive {
		if err := os.Remove(native); err != nil {
			return e.translate(op, p, err, unifs.ErrDirectoryNotFound)
		}
		return nil
	}

	// validate the whole subtree before removing anything
	if e.shares.inUse(native) {
		return unifs.NewPathError(op, p, unifs.ErrInUse)
	}
	err = filepath.WalkDir(native, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if attributesOf(d.Name(), info).Has(unifs.AttrReadOnly) {
			q, _ := e.uniform(path)
			return unifs.PathErrorf(op, q, unifs.ErrUnauthorizedAccess, "entry is read-only")
		}
		return nil
	})
	if err != nil {
		var pe *unifs.PathError
		if errors.As(err, &pe) {
			return err
		}
		return e.translate(op, p, err, unifs.ErrDirectoryNotFound)
	}
	if err := os.RemoveAll(native); err != nil {
		return e.translate(op, p, err, unifs.ErrDirectoryNotFound)
	}
	e.logger.Trace().Str("path", p.String()).Msg("Deleted directory tree")
	return nil
}

// list reads one directory for the shared walker.
func (e *engine) list(dir upath.Path) ([]compose.Child, bool, error) {
	native, err := e.native(dir)
	if err != nil {
		return nil, false, err
	}
	entries, err := os.ReadDir(native)
	switch {
	case errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR):
		return nil, false, nil
	case err != nil:
		return nil, false, e.translate("readdir", dir, err, unifs.ErrDirectoryNotFound)
	}
	out := make([]compose.Child, 0, len(entries))
	for _, ent := range entries {
		isDir := ent.IsDir()
		if ent.Type()&fs.ModeSymlink != 0 {
			// follow links the way Stat does
			if info, err := os.Stat(filepath.Join(native, ent.Name())); err == nil {
				isDir = info.IsDir()
			}
		}
		out = append(out, compose.Child{Name: ent.Name(), IsDir: isDir})
	}
	return out, true, nil
}

func (e *engine) EnumeratePaths(p upath.Path, pattern string, option unifs.SearchOption, target unifs.SearchTarget) iter.Seq2[upath.Path, error] {
	return compose.Walk(p, pattern, option, target, e.list)
}
