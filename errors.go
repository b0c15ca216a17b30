package unifs

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/brettbedarf/unifs/upath"
)

// kind is a top level error category. Kinds that have an io/fs equivalent
// also match it with errors.Is.
type kind struct {
	msg string
	std error
}

func (k *kind) Error() string { return k.msg }

func (k *kind) Is(target error) bool { return k.std != nil && target == k.std }

// Error kinds. Every error returned by an engine matches exactly one of these
// with errors.Is.
var (
	ErrInvalidPath        error = upath.ErrInvalidPath
	ErrInvalidArgument    error = &kind{"invalid argument", fs.ErrInvalid}
	ErrFileNotFound       error = &kind{"file not found", fs.ErrNotExist}
	ErrDirectoryNotFound  error = &kind{"directory not found", fs.ErrNotExist}
	ErrIO                 error = &kind{"i/o error", nil}
	ErrUnauthorizedAccess error = &kind{"access denied", fs.ErrPermission}
	ErrNotSupported       error = &kind{"operation not supported", nil}
	ErrDisposed           error = &kind{"object disposed", fs.ErrClosed}
	ErrInvalidOperation   error = &kind{"invalid operation", nil}
)

// Detail errors. Each one also matches its kind.
var (
	ErrExist          = fmt.Errorf("%w: %w", ErrIO, fs.ErrExist)
	ErrNotEmpty       = fmt.Errorf("%w: directory not empty", ErrIO)
	ErrInUse          = fmt.Errorf("%w: in use by another handle", ErrIO)
	ErrReadOnlyFS     = fmt.Errorf("%w: read-only filesystem", ErrIO)
	ErrNotADirectory  = fmt.Errorf("%w: not a directory", ErrIO)
	ErrCrossDevice    = fmt.Errorf("%w: cross-device operation", ErrIO)
	ErrBufferOverflow = fmt.Errorf("%w: watcher buffer overflow", ErrIO)
)

// PathError records an error and the operation and path that caused it.
type PathError struct {
	Op   string
	Path upath.Path
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path.String() + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

// NewPathError wraps err with the operation and path. A nil err stays nil.
func NewPathError(op string, p upath.Path, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: p, Err: err}
}

// PathErrorf wraps a kind with a formatted detail message.
func PathErrorf(op string, p upath.Path, kind error, format string, args ...any) error {
	return &PathError{Op: op, Path: p, Err: fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))}
}

// Kind returns the top level kind of err, or nil when err is not a unifs error.
func Kind(err error) error {
	for _, k := range []error{
		ErrInvalidPath,
		ErrInvalidArgument,
		ErrFileNotFound,
		ErrDirectoryNotFound,
		ErrUnauthorizedAccess,
		ErrNotSupported,
		ErrDisposed,
		ErrInvalidOperation,
		ErrIO,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// RebasePath rewrites the path of a *PathError in err using fn. Composite
// engines use it so messages name the path the caller used.
func RebasePath(err error, fn func(upath.Path) upath.Path) error {
	var pe *PathError
	if err == nil || !errors.As(err, &pe) {
		return err
	}
	return &PathError{Op: pe.Op, Path: fn(pe.Path), Err: pe.Err}
}
