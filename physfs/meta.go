package physfs

import (
	"io/fs"
	"os"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
)

// readOnly reports whether the owner write bit is clear.
func readOnly(info fs.FileInfo) bool { return info.Mode().Perm()&0o200 == 0 }

// attributesOf derives attributes from permission bits and the dot-file
// convention. Other attributes have no native representation.
func attributesOf(name string, info fs.FileInfo) unifs.FileAttributes {
	var a unifs.FileAttributes
	if info.IsDir() {
		a |= unifs.AttrDirectory
	}
	if readOnly(info) {
		a |= unifs.AttrReadOnly
	}
	if unifs.IsHidden(name) {
		a |= unifs.AttrHidden
	}
	if a == 0 {
		a = unifs.AttrNormal
	}
	return a
}

// existing stats p and fails when it does not exist.
func (e *engine) existing(op string, p upath.Path) (string, fs.FileInfo, error) {
	native, info, err := e.stat(p)
	if err != nil {
		return "", nil, err
	}
	if info == nil {
		return "", nil, e.missing(op, p, unifs.ErrFileNotFound)
	}
	return native, info, nil
}

func (e *engine) Attributes(p upath.Path) (unifs.FileAttributes, error) {
	_, info, err := e.existing("stat", p)
	if err != nil {
		return 0, err
	}
	return attributesOf(p.Name(), info), nil
}

// SetAttributes maps ReadOnly onto the write bits. Hidden follows the name
// and the remaining flags are accepted but not stored.
func (e *engine) SetAttributes(p upath.Path, attrs unifs.FileAttributes) error {
	const op = "chattr"
	native, info, err := e.existing(op, p)
	if err != nil {
		return err
	}
	switch {
	case info.IsDir() && !attrs.Has(unifs.AttrDirectory):
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "cannot clear the directory attribute")
	case !info.IsDir() && attrs.Has(unifs.AttrDirectory):
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "cannot set the directory attribute on a file")
	}

	perm := info.Mode().Perm()
	if attrs.Has(unifs.AttrReadOnly) {
		perm &^= 0o222
	} else {
		perm |= 0o200
	}
	if perm == info.Mode().Perm() {
		return nil
	}
	if err := os.Chmod(native, perm); err != nil {
		return e.translate(op, p, err, unifs.ErrFileNotFound)
	}
	return nil
}

func (e *engine) CreationTime(p upath.Path) (time.Time, error) {
	native, info, err := e.existing("stat", p)
	if err != nil {
		return time.Time{}, err
	}
	return creationTime(native, info), nil
}

func (e *engine) SetCreationTime(p upath.Path, _ time.Time) error {
	if _, _, err := e.existing("chtimes", p); err != nil {
		return err
	}
	return unifs.PathErrorf("chtimes", p, unifs.ErrNotSupported, "creation time cannot be set on this platform")
}

func (e *engine) LastAccessTime(p upath.Path) (time.Time, error) {
	native, info, err := e.existing("stat", p)
	if err != nil {
		return time.Time{}, err
	}
	return accessTime(native, info), nil
}

func (e *engine) SetLastAccessTime(p upath.Path, t time.Time) error {
	native, _, err := e.existing("chtimes", p)
	if err != nil {
		return err
	}
	return e.translate("chtimes", p, setTimes(native, t, time.Time{}), unifs.ErrFileNotFound)
}

func (e *engine) LastWriteTime(p upath.Path) (time.Time, error) {
	_, info, err := e.existing("stat", p)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (e *engine) SetLastWriteTime(p upath.Path, t time.Time) error {
	native, _, err := e.existing("chtimes", p)
	if err != nil {
		return err
	}
	return e.translate("chtimes", p, setTimes(native, time.Time{}, t), unifs.ErrFileNotFound)
}
