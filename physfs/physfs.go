// Package physfs serves the operating system's filesystem through the unifs
// capability interface.
//
// On Windows every drive is exposed below /mnt, so C:\Users maps to
// /mnt/c/Users. Elsewhere uniform paths are native paths, optionally below
// a root directory given to New.
//
// Share modes are emulated per FS: handles opened through the same FS are
// checked against each other exactly like the in-memory engine. Handles
// opened by other processes are not seen.
package physfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/config"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/upath"
	"github.com/rs/zerolog"
)

// DriveMount is the directory under which Windows drives appear.
const DriveMount = "/mnt"

// FS is a view of the native filesystem. It is safe for concurrent use.
type FS struct {
	unifs.Checked
	e *engine
}

var _ unifs.FileSystem = (*FS)(nil)

type engine struct {
	owner  *FS
	cfg    *config.Config
	root   string // native directory behind "/"; unused with drive mapping
	drives bool
	shares *shareTable
	logger zerolog.Logger
}

// New serves the native directory root as "/". An empty root serves the
// whole filesystem.
func New(root string) (*FS, error) {
	return NewWithConfig(root, config.NewDefaultConfig())
}

// NewWithConfig is New with an explicit configuration.
func NewWithConfig(root string, cfg *config.Config) (*FS, error) {
	return newFS(root, runtime.GOOS == "windows" && root == "", cfg)
}

func newFS(root string, drives bool, cfg *config.Config) (*FS, error) {
	if !drives {
		if root == "" {
			root = string(filepath.Separator)
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, unifs.PathErrorf("physfs", upath.Root, unifs.ErrInvalidArgument, "root %q: %v", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return nil, unifs.PathErrorf("physfs", upath.Root, unifs.ErrDirectoryNotFound, "root %q is not a directory", root)
		}
		root = abs
	}

	e := &engine{
		cfg:    cfg,
		root:   root,
		drives: drives,
		shares: newShareTable(),
		logger: util.GetLogger("physfs"),
	}
	fs := &FS{e: e}
	e.owner = fs
	fs.Checked = unifs.Checked{Impl: e}
	e.logger.Debug().Str("root", root).Bool("drives", drives).Msg("Opened physical filesystem")
	return fs, nil
}

// Root returns the native directory served as "/", or "" when drives are
// mapped below [DriveMount].
func (fs *FS) Root() string {
	if fs.e.drives {
		return ""
	}
	return fs.e.root
}

// native maps a uniform path to a native one.
func (e *engine) native(p upath.Path) (string, error) {
	if e.drives {
		return driveToNative(p)
	}
	return filepath.Join(e.root, filepath.FromSlash(p.String())), nil
}

// uniform maps a native path back. ok is false for paths outside the root.
func (e *engine) uniform(native string) (upath.Path, bool) {
	if e.drives {
		p, err := driveFromNative(native)
		return p, err == nil
	}
	rel, err := filepath.Rel(e.root, native)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return upath.Null, false
	}
	p, err := upath.Parse("/" + filepath.ToSlash(rel))
	return p, err == nil
}

// driveToNative maps /mnt/<letter>/rest to <LETTER>:\rest.
func driveToNative(p upath.Path) (string, error) {
	segs := p.Split()
	if len(segs) < 2 || "/"+segs[0] != DriveMount || len(segs[1]) != 1 || !isLetter(segs[1][0]) {
		return "", unifs.PathErrorf("native", p, unifs.ErrNotSupported, "path is not below a drive in %s", DriveMount)
	}
	drive := strings.ToUpper(segs[1]) + `:\`
	return drive + strings.Join(segs[2:], `\`), nil
}

// driveFromNative maps <letter>:\rest to /mnt/<letter>/rest.
func driveFromNative(native string) (upath.Path, error) {
	if len(native) < 2 || native[1] != ':' || !isLetter(native[0]) {
		return upath.Null, unifs.PathErrorf("native", upath.Null, unifs.ErrInvalidArgument, "native path %q has no drive letter", native)
	}
	rest := strings.ReplaceAll(native[2:], `\`, "/")
	return upath.Parse(DriveMount + "/" + strings.ToLower(native[:1]) + "/" + rest)
}

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func (e *engine) ConvertPathToNative(p upath.Path) (string, error) {
	return e.native(p)
}

func (e *engine) ConvertPathFromNative(native string) (upath.Path, error) {
	if !e.drives {
		if !filepath.IsAbs(native) {
			return upath.Null, unifs.PathErrorf("native", upath.Null, unifs.ErrInvalidArgument, "native path %q must be absolute", native)
		}
		native = filepath.Clean(native)
	}
	p, ok := e.uniform(native)
	if !ok {
		return upath.Null, unifs.PathErrorf("native", upath.Null, unifs.ErrInvalidOperation, "native path %q is outside %s", native, e.root)
	}
	return p, nil
}

// translate maps an os error to a unifs kind. notFound is the kind used for
// a missing entry whose parent exists.
func (e *engine) translate(op string, p upath.Path, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return e.missing(op, p, notFound)
	case errors.Is(err, syscall.ENOTDIR):
		return unifs.PathErrorf(op, p, unifs.ErrDirectoryNotFound, "could not find a part of the path")
	case errors.Is(err, syscall.ENOTEMPTY):
		// checked before ErrExist, which ENOTEMPTY also matches
		return unifs.NewPathError(op, p, unifs.ErrNotEmpty)
	case errors.Is(err, fs.ErrExist):
		return unifs.NewPathError(op, p, unifs.ErrExist)
	case errors.Is(err, syscall.EXDEV):
		return unifs.NewPathError(op, p, unifs.ErrCrossDevice)
	case errors.Is(err, fs.ErrPermission):
		return unifs.PathErrorf(op, p, unifs.ErrUnauthorizedAccess, "%v", unwrapOS(err))
	}
	return unifs.PathErrorf(op, p, unifs.ErrIO, "%v", unwrapOS(err))
}

// unwrapOS drops the native path from os errors so messages name only the
// uniform path.
func unwrapOS(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Err
	}
	return err
}

// missing classifies a missing entry by whether its parent directory exists.
func (e *engine) missing(op string, p upath.Path, kind error) error {
	if !p.IsRoot() && !e.isDir(p.Directory()) {
		return unifs.PathErrorf(op, p, unifs.ErrDirectoryNotFound, "could not find a part of the path")
	}
	if kind == unifs.ErrDirectoryNotFound {
		return unifs.PathErrorf(op, p, kind, "no such directory")
	}
	return unifs.PathErrorf(op, p, kind, "no such file")
}

// stat returns the native path and info of p. info is nil when p does not
// exist.
func (e *engine) stat(p upath.Path) (string, fs.FileInfo, error) {
	native, err := e.native(p)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(native)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return native, nil, nil
	}
	if err != nil {
		return native, nil, e.translate("stat", p, err, unifs.ErrFileNotFound)
	}
	return native, info, nil
}

func (e *engine) isDir(p upath.Path) bool {
	_, info, err := e.stat(p)
	return err == nil && info != nil && info.IsDir()
}
