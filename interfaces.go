package unifs

import (
	"io"
	"iter"
	"time"

	"github.com/brettbedarf/unifs/upath"
)

// FileSystem is the capability interface implemented by every engine.
//
// Callers pass absolute, non-null paths. Engines embed [Checked] so those
// preconditions are enforced before any engine logic runs.
type FileSystem interface {
	// CreateDirectory creates p and every missing ancestor. Existing
	// directories are left untouched.
	CreateDirectory(p upath.Path) error
	DirectoryExists(p upath.Path) (bool, error)
	MoveDirectory(src, dest upath.Path) error
	DeleteDirectory(p upath.Path, recursive bool) error

	CopyFile(src, dest upath.Path, overwrite bool) error
	// ReplaceFile moves dest to backup (when backup is not Null) and then src
	// to dest. Without a backup the old dest content is discarded.
	ReplaceFile(src, dest, backup upath.Path, ignoreMetadataErrors bool) error
	FileLength(p upath.Path) (int64, error)
	FileExists(p upath.Path) (bool, error)
	MoveFile(src, dest upath.Path) error
	DeleteFile(p upath.Path) error
	OpenFile(p upath.Path, mode FileMode, access FileAccess, share FileShare) (Stream, error)

	Attributes(p upath.Path) (FileAttributes, error)
	SetAttributes(p upath.Path, attrs FileAttributes) error
	CreationTime(p upath.Path) (time.Time, error)
	SetCreationTime(p upath.Path, t time.Time) error
	LastAccessTime(p upath.Path) (time.Time, error)
	SetLastAccessTime(p upath.Path, t time.Time) error
	LastWriteTime(p upath.Path) (time.Time, error)
	SetLastWriteTime(p upath.Path, t time.Time) error

	// EnumeratePaths lazily yields entries below p whose names match pattern.
	// The sequence can be ranged more than once; each pass re-reads the tree.
	EnumeratePaths(p upath.Path, pattern string, option SearchOption, target SearchTarget) iter.Seq2[upath.Path, error]

	Watch(p upath.Path) (Watcher, error)

	ConvertPathToNative(p upath.Path) (string, error)
	ConvertPathFromNative(native string) (upath.Path, error)
}

// Stream is an open file handle returned by [FileSystem.OpenFile].
//
// Close releases the handle's share reservation. Closing twice is a no-op and
// every other call after Close fails with [ErrDisposed].
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.ReaderAt
	io.Closer

	Length() (int64, error)
	SetLength(n int64) error
	Position() (int64, error)
	Flush() error

	CanRead() bool
	CanWrite() bool
	CanSeek() bool
}

// Watcher delivers change notifications for a directory.
type Watcher interface {
	FileSystem() FileSystem
	Path() upath.Path
	// Events is closed once the watcher is closed.
	Events() <-chan WatchEvent

	Filter() string
	SetFilter(pattern string) error
	NotifyFilter() NotifyFilters
	SetNotifyFilter(f NotifyFilters)
	IncludeSubdirectories() bool
	SetIncludeSubdirectories(include bool)
	Enabled() bool
	SetEnabled(enabled bool)

	Close() error
}

// WatchEvent is a single change notification.
type WatchEvent struct {
	Kind ChangeKind
	// Path is the affected entry. For Renamed it is the new name.
	Path upath.Path
	// OldPath is set for Renamed only.
	OldPath upath.Path
	// Change narrows a Changed event to what was modified.
	Change NotifyFilters
	// Err is set for Error events.
	Err error
}
