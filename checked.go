package unifs

import (
	"fmt"
	"iter"
	"time"

	"github.com/brettbedarf/unifs/upath"
)

// Checked validates arguments before delegating to Impl.
//
// Engines embed Checked around their trusted implementation so that Impl can
// assume every path is absolute and every enum in range. Argument errors
// never reach Impl and never leave partial state.
type Checked struct {
	Impl FileSystem
}

var _ FileSystem = Checked{}

func validatePath(op string, p upath.Path, name string) error {
	if p.IsNull() {
		return PathErrorf(op, p, ErrInvalidArgument, "%s is null", name)
	}
	if !p.IsAbsolute() {
		return PathErrorf(op, p, ErrInvalidArgument, "%s %q must be absolute", name, p)
	}
	return nil
}

func validateOpen(p upath.Path, mode FileMode, access FileAccess, share FileShare) error {
	const op = "open"
	switch {
	case !mode.Valid():
		return PathErrorf(op, p, ErrInvalidArgument, "invalid file mode %d", int(mode))
	case !access.Valid():
		return PathErrorf(op, p, ErrInvalidArgument, "invalid file access %d", int(access))
	case !share.Valid():
		return PathErrorf(op, p, ErrInvalidArgument, "invalid file share %d", int(share))
	case mode == ModeAppend && access.CanRead():
		return PathErrorf(op, p, ErrInvalidArgument, "mode %s cannot be combined with %s access", mode, access)
	case !access.CanWrite() && (mode == ModeTruncate || mode == ModeCreate || mode == ModeCreateNew || mode == ModeAppend):
		return PathErrorf(op, p, ErrInvalidArgument, "mode %s requires write access", mode)
	}
	return nil
}

func (c Checked) CreateDirectory(p upath.Path) error {
	if err := validatePath("mkdir", p, "path"); err != nil {
		return err
	}
	return c.Impl.CreateDirectory(p)
}

func (c Checked) DirectoryExists(p upath.Path) (bool, error) {
	if p.IsNull() {
		return false, nil
	}
	if err := validatePath("stat", p, "path"); err != nil {
		return false, err
	}
	return c.Impl.DirectoryExists(p)
}

func (c Checked) MoveDirectory(src, dest upath.Path) error {
	if err := validatePath("rename", src, "source"); err != nil {
		return err
	}
	if err := validatePath("rename", dest, "destination"); err != nil {
		return err
	}
	return c.Impl.MoveDirectory(src, dest)
}

func (c Checked) DeleteDirectory(p upath.Path, recursive bool) error {
	if err := validatePath("rmdir", p, "path"); err != nil {
		return err
	}
	return c.Impl.DeleteDirectory(p, recursive)
}

func (c Checked) CopyFile(src, dest upath.Path, overwrite bool) error {
	if err := validatePath("copy", src, "source"); err != nil {
		return err
	}
	if err := validatePath("copy", dest, "destination"); err != nil {
		return err
	}
	return c.Impl.CopyFile(src, dest, overwrite)
}

func (c Checked) ReplaceFile(src, dest, backup upath.Path, ignoreMetadataErrors bool) error {
	if err := validatePath("replace", src, "source"); err != nil {
		return err
	}
	if err := validatePath("replace", dest, "destination"); err != nil {
		return err
	}
	if backup.IsEmpty() {
		backup = upath.Null
	}
	if !backup.IsNull() {
		if err := validatePath("replace", backup, "backup"); err != nil {
			return err
		}
	}
	return c.Impl.ReplaceFile(src, dest, backup, ignoreMetadataErrors)
}

func (c Checked) FileLength(p upath.Path) (int64, error) {
	if err := validatePath("stat", p, "path"); err != nil {
		return 0, err
	}
	return c.Impl.FileLength(p)
}

func (c Checked) FileExists(p upath.Path) (bool, error) {
	if p.IsNull() {
		return false, nil
	}
	if err := validatePath("stat", p, "path"); err != nil {
		return false, err
	}
	return c.Impl.FileExists(p)
}

func (c Checked) MoveFile(src, dest upath.Path) error {
	if err := validatePath("rename", src, "source"); err != nil {
		return err
	}
	if err := validatePath("rename", dest, "destination"); err != nil {
		return err
	}
	return c.Impl.MoveFile(src, dest)
}

func (c Checked) DeleteFile(p upath.Path) error {
	if err := validatePath("remove", p, "path"); err != nil {
		return err
	}
	return c.Impl.DeleteFile(p)
}

func (c Checked) OpenFile(p upath.Path, mode FileMode, access FileAccess, share FileShare) (Stream, error) {
	if err := validatePath("open", p, "path"); err != nil {
		return nil, err
	}
	if err := validateOpen(p, mode, access, share); err != nil {
		return nil, err
	}
	return c.Impl.OpenFile(p, mode, access, share)
}

func (c Checked) Attributes(p upath.Path) (FileAttributes, error) {
	if err := validatePath("stat", p, "path"); err != nil {
		return 0, err
	}
	return c.Impl.Attributes(p)
}

func (c Checked) SetAttributes(p upath.Path, attrs FileAttributes) error {
	if err := validatePath("chattr", p, "path"); err != nil {
		return err
	}
	return c.Impl.SetAttributes(p, attrs)
}

func (c Checked) CreationTime(p upath.Path) (time.Time, error) {
	if err := validatePath("stat", p, "path"); err != nil {
		return time.Time{}, err
	}
	return c.Impl.CreationTime(p)
}

func (c Checked) SetCreationTime(p upath.Path, t time.Time) error {
	if err := validatePath("chtimes", p, "path"); err != nil {
		return err
	}
	return c.Impl.SetCreationTime(p, t)
}

func (c Checked) LastAccessTime(p upath.Path) (time.Time, error) {
	if err := validatePath("stat", p, "path"); err != nil {
		return time.Time{}, err
	}
	return c.Impl.LastAccessTime(p)
}

func (c Checked) SetLastAccessTime(p upath.Path, t time.Time) error {
	if err := validatePath("chtimes", p, "path"); err != nil {
		return err
	}
	return c.Impl.SetLastAccessTime(p, t)
}

func (c Checked) LastWriteTime(p upath.Path) (time.Time, error) {
	if err := validatePath("stat", p, "path"); err != nil {
		return time.Time{}, err
	}
	return c.Impl.LastWriteTime(p)
}

func (c Checked) SetLastWriteTime(p upath.Path, t time.Time) error {
	if err := validatePath("chtimes", p, "path"); err != nil {
		return err
	}
	return c.Impl.SetLastWriteTime(p, t)
}

func (c Checked) EnumeratePaths(p upath.Path, pattern string, option SearchOption, target SearchTarget) iter.Seq2[upath.Path, error] {
	err := validatePath("readdir", p, "path")
	switch {
	case err != nil:
	case !option.Valid():
		err = PathErrorf("readdir", p, ErrInvalidArgument, "invalid search option %d", int(option))
	case !target.Valid():
		err = PathErrorf("readdir", p, ErrInvalidArgument, "invalid search target %d", int(target))
	}
	if err != nil {
		return func(yield func(upath.Path, error) bool) {
			yield(upath.Null, err)
		}
	}
	return c.Impl.EnumeratePaths(p, pattern, option, target)
}

func (c Checked) Watch(p upath.Path) (Watcher, error) {
	if err := validatePath("watch", p, "path"); err != nil {
		return nil, err
	}
	return c.Impl.Watch(p)
}

func (c Checked) ConvertPathToNative(p upath.Path) (string, error) {
	if err := validatePath("native", p, "path"); err != nil {
		return "", err
	}
	return c.Impl.ConvertPathToNative(p)
}

func (c Checked) ConvertPathFromNative(native string) (upath.Path, error) {
	if native == "" {
		return upath.Null, fmt.Errorf("%w: native path is empty", ErrInvalidArgument)
	}
	return c.Impl.ConvertPathFromNative(native)
}

// Collect drains an enumeration into a slice, stopping at the first error.
func Collect(seq iter.Seq2[upath.Path, error]) ([]upath.Path, error) {
	var out []upath.Path
	for p, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}
