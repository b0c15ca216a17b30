package unifs

import (
	"iter"
	"time"

	"github.com/brettbedarf/unifs/upath"
)

// EntryKind tags an [Entry].
type EntryKind int

const (
	EntryFile EntryKind = iota + 1
	EntryDirectory
)

func (k EntryKind) String() string {
	if k == EntryDirectory {
		return "directory"
	}
	return "file"
}

// Entry is a metadata snapshot of a file or directory.
type Entry struct {
	Kind       EntryKind
	Path       upath.Path
	Length     int64 // 0 for directories
	Attributes FileAttributes

	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
}

func (e Entry) IsDir() bool { return e.Kind == EntryDirectory }

// EntryAt reads the metadata of p from fs.
func EntryAt(fs FileSystem, p upath.Path) (Entry, error) {
	e := Entry{Path: p}
	isFile, err := fs.FileExists(p)
	if err != nil {
		return e, err
	}
	if isFile {
		e.Kind = EntryFile
		if e.Length, err = fs.FileLength(p); err != nil {
			return e, err
		}
	} else {
		isDir, err := fs.DirectoryExists(p)
		if err != nil {
			return e, err
		}
		if !isDir {
			return e, PathErrorf("stat", p, ErrFileNotFound, "no such file or directory")
		}
		e.Kind = EntryDirectory
	}

	if e.Attributes, err = fs.Attributes(p); err != nil {
		return e, err
	}
	if e.CreationTime, err = fs.CreationTime(p); err != nil {
		return e, err
	}
	if e.LastAccessTime, err = fs.LastAccessTime(p); err != nil {
		return e, err
	}
	if e.LastWriteTime, err = fs.LastWriteTime(p); err != nil {
		return e, err
	}
	return e, nil
}

// EnumerateEntries is EnumeratePaths resolved into entries. Entries removed
// between listing and stat are skipped.
func EnumerateEntries(fs FileSystem, p upath.Path, pattern string, option SearchOption, target SearchTarget) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for child, err := range fs.EnumeratePaths(p, pattern, option, target) {
			if err != nil {
				yield(Entry{}, err)
				return
			}
			e, err := EntryAt(fs, child)
			if err != nil {
				if Kind(err) == ErrFileNotFound || Kind(err) == ErrDirectoryNotFound {
					continue
				}
				yield(Entry{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}
