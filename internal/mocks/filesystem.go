package mocks

import (
	"iter"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
	"github.com/stretchr/testify/mock"
)

// MockFileSystem implements unifs.FileSystem for testing across packages
type MockFileSystem struct {
	mock.Mock
}

var _ unifs.FileSystem = (*MockFileSystem)(nil)

func (m *MockFileSystem) CreateDirectory(p upath.Path) error {
	return m.Called(p).Error(0)
}

func (m *MockFileSystem) DirectoryExists(p upath.Path) (bool, error) {
	args := m.Called(p)
	return args.Bool(0), args.Error(1)
}

func (m *MockFileSystem) MoveDirectory(src, dest upath.Path) error {
	return m.Called(src, dest).Error(0)
}

func (m *MockFileSystem) DeleteDirectory(p upath.Path, recursive bool) error {
	return m.Called(p, recursive).Error(0)
}

func (m *MockFileSystem) CopyFile(src, dest upath.Path, overwrite bool) error {
	return m.Called(src, dest, overwrite).Error(0)
}

func (m *MockFileSystem) ReplaceFile(src, dest, backup upath.Path, ignoreMetadataErrors bool) error {
	return m.Called(src, dest, backup, ignoreMetadataErrors).Error(0)
}

func (m *MockFileSystem) FileLength(p upath.Path) (int64, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return 0, args.Error(1)
	}
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileSystem) FileExists(p upath.Path) (bool, error) {
	args := m.Called(p)
	return args.Bool(0), args.Error(1)
}

func (m *MockFileSystem) MoveFile(src, dest upath.Path) error {
	return m.Called(src, dest).Error(0)
}

func (m *MockFileSystem) DeleteFile(p upath.Path) error {
	return m.Called(p).Error(0)
}

func (m *MockFileSystem) OpenFile(p upath.Path, mode unifs.FileMode, access unifs.FileAccess, share unifs.FileShare) (unifs.Stream, error) {
	args := m.Called(p, mode, access, share)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(upath.Path) unifs.Stream); ok {
		return fn(p), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(unifs.Stream), args.Error(1)
}

func (m *MockFileSystem) Attributes(p upath.Path) (unifs.FileAttributes, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return 0, args.Error(1)
	}
	return args.Get(0).(unifs.FileAttributes), args.Error(1)
}

func (m *MockFileSystem) SetAttributes(p upath.Path, attrs unifs.FileAttributes) error {
	return m.Called(p, attrs).Error(0)
}

func (m *MockFileSystem) timeResult(args mock.Arguments) (time.Time, error) {
	if args.Get(0) == nil {
		return time.Time{}, args.Error(1)
	}
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockFileSystem) CreationTime(p upath.Path) (time.Time, error) {
	return m.timeResult(m.Called(p))
}

func (m *MockFileSystem) SetCreationTime(p upath.Path, t time.Time) error {
	return m.Called(p, t).Error(0)
}

func (m *MockFileSystem) LastAccessTime(p upath.Path) (time.Time, error) {
	return m.timeResult(m.Called(p))
}

func (m *MockFileSystem) SetLastAccessTime(p upath.Path, t time.Time) error {
	return m.Called(p, t).Error(0)
}

func (m *MockFileSystem) LastWriteTime(p upath.Path) (time.Time, error) {
	return m.timeResult(m.Called(p))
}

func (m *MockFileSystem) SetLastWriteTime(p upath.Path, t time.Time) error {
	return m.Called(p, t).Error(0)
}

// EnumeratePaths yields the []upath.Path given to Return, then the error if
// one is set.
func (m *MockFileSystem) EnumeratePaths(p upath.Path, pattern string, option unifs.SearchOption, target unifs.SearchTarget) iter.Seq2[upath.Path, error] {
	args := m.Called(p, pattern, option, target)
	paths, _ := args.Get(0).([]upath.Path)
	err := args.Error(1)
	return func(yield func(upath.Path, error) bool) {
		for _, q := range paths {
			if !yield(q, nil) {
				return
			}
		}
		if err != nil {
			yield(upath.Null, err)
		}
	}
}

func (m *MockFileSystem) Watch(p upath.Path) (unifs.Watcher, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(unifs.Watcher), args.Error(1)
}

func (m *MockFileSystem) ConvertPathToNative(p upath.Path) (string, error) {
	args := m.Called(p)
	return args.String(0), args.Error(1)
}

func (m *MockFileSystem) ConvertPathFromNative(native string) (upath.Path, error) {
	args := m.Called(native)
	if args.Get(0) == nil {
		return upath.Null, args.Error(1)
	}
	return args.Get(0).(upath.Path), args.Error(1)
}
