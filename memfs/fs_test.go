package memfs

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(s string) upath.Path { return upath.MustParse(s) }

func writeFile(t *testing.T, fs unifs.FileSystem, path, content string) {
	t.Helper()
	if dir := p(path).Directory(); !dir.IsRoot() {
		require.NoError(t, fs.CreateDirectory(dir))
	}
	require.NoError(t, unifs.WriteAllText(fs, p(path), content))
}

func readFile(t *testing.T, fs unifs.FileSystem, path string) string {
	t.Helper()
	s, err := unifs.ReadAllText(fs, p(path))
	require.NoError(t, err)
	return s
}

func exists(t *testing.T, fs unifs.FileSystem, path string) (file, dir bool) {
	t.Helper()
	file, err := fs.FileExists(p(path))
	require.NoError(t, err)
	dir, err = fs.DirectoryExists(p(path))
	require.NoError(t, err)
	return file, dir
}

func list(t *testing.T, fs unifs.FileSystem, dir, pattern string, option unifs.SearchOption, target unifs.SearchTarget) []string {
	t.Helper()
	paths, err := unifs.Collect(fs.EnumeratePaths(p(dir), pattern, option, target))
	require.NoError(t, err)
	out := make([]string, len(paths))
	for i, q := range paths {
		out[i] = q.String()
	}
	return out
}

func TestValidation_RejectsRelativeAndNull(t *testing.T) {
	t.Parallel()
	fs := New()

	err := fs.CreateDirectory(p("a"))
	assert.ErrorIs(t, err, unifs.ErrInvalidArgument)
	err = fs.CreateDirectory(upath.Null)
	assert.ErrorIs(t, err, unifs.ErrInvalidArgument)

	ok, err := fs.FileExists(upath.Null)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = fs.OpenFile(p("/f"), unifs.ModeAppend, unifs.AccessReadWrite, unifs.ShareNone)
	assert.ErrorIs(t, err, unifs.ErrInvalidArgument)
	_, err = fs.OpenFile(p("/f"), unifs.ModeCreate, unifs.AccessRead, unifs.ShareNone)
	assert.ErrorIs(t, err, unifs.ErrInvalidArgument)
	_, err = fs.OpenFile(p("/f"), unifs.FileMode(99), unifs.AccessRead, unifs.ShareNone)
	assert.ErrorIs(t, err, unifs.ErrInvalidArgument)

	_, err = fs.ConvertPathFromNative("")
	assert.ErrorIs(t, err, unifs.ErrInvalidArgument)

	_, err = unifs.Collect(fs.EnumeratePaths(p("rel"), "*", unifs.TopDirectoryOnly, unifs.TargetBoth))
	assert.ErrorIs(t, err, unifs.ErrInvalidArgument)
}

func TestCreateDirectory(t *testing.T) {
	t.Parallel()
	fs := New()

	require.NoError(t, fs.CreateDirectory(p("/a/b/c")))
	for _, d := range []string{"/a", "/a/b", "/a/b/c"} {
		_, dir := exists(t, fs, d)
		assert.True(t, dir, d)
	}
	require.NoError(t, fs.CreateDirectory(p("/a/b")), "existing directory is a no-op")

	err := fs.CreateDirectory(upath.Root)
	assert.ErrorIs(t, err, unifs.ErrIO)

	writeFile(t, fs, "/a/file", "x")
	err = fs.CreateDirectory(p("/a/file/sub"))
	assert.ErrorIs(t, err, unifs.ErrNotADirectory)
	err = fs.CreateDirectory(p("/a/file"))
	assert.ErrorIs(t, err, unifs.ErrIO)
}

func TestDeleteDirectory(t *testing.T) {
	t.Parallel()
	fs := New()

	err := fs.DeleteDirectory(upath.Root, true)
	assert.ErrorIs(t, err, unifs.ErrUnauthorizedAccess)

	err = fs.DeleteDirectory(p("/missing"), false)
	assert.ErrorIs(t, err, unifs.ErrDirectoryNotFound)

	writeFile(t, fs, "/d/f.txt", "x")
	err = fs.DeleteDirectory(p("/d"), false)
	assert.ErrorIs(t, err, unifs.ErrNotEmpty)
	assert.ErrorIs(t, err, unifs.ErrIO)

	err = fs.DeleteDirectory(p("/d/f.txt"), false)
	assert.ErrorIs(t, err, unifs.ErrDirectoryNotFound)

	require.NoError(t, fs.DeleteDirectory(p("/d"), true))
	file, dir := exists(t, fs, "/d/f.txt")
	assert.False(t, file)
	assert.False(t, dir)
	_, dir = exists(t, fs, "/d")
	assert.False(t, dir)

	require.NoError(t, fs.CreateDirectory(p("/empty")))
	require.NoError(t, fs.DeleteDirectory(p("/empty"), false))
}

func TestDeleteDirectory_RecursiveIsAllOrNothing(t *testing.T) {
	t.Parallel()

	t.Run("read-only file", func(t *testing.T) {
		t.Parallel()
		fs := New()
		writeFile(t, fs, "/d/a.txt", "a")
		writeFile(t, fs, "/d/sub/file.txt", "x")
		require.NoError(t, fs.SetAttributes(p("/d/sub/file.txt"), unifs.AttrReadOnly))

		err := fs.DeleteDirectory(p("/d"), true)
		assert.ErrorIs(t, err, unifs.ErrUnauthorizedAccess)

		_, dir := exists(t, fs, "/d/sub")
		assert.True(t, dir)
		file, _ := exists(t, fs, "/d/a.txt")
		assert.True(t, file)
	})

	t.Run("open handle", func(t *testing.T) {
		t.Parallel()
		fs := New()
		writeFile(t, fs, "/d/sub/file.txt", "x")
		s, err := fs.OpenFile(p("/d/sub/file.txt"), unifs.ModeOpen, unifs.AccessRead, unifs.ShareReadWrite)
		require.NoError(t, err)

		err = fs.DeleteDirectory(p("/d"), true)
		assert.ErrorIs(t, err, unifs.ErrInUse)
		_, dir := exists(t, fs, "/d/sub")
		assert.True(t, dir)

		require.NoError(t, s.Close())
		require.NoError(t, fs.DeleteDirectory(p("/d"), true))
	})
}

func TestMoveDirectory(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/src/sub/f.txt", "payload")
	require.NoError(t, fs.CreateDirectory(p("/dst")))

	require.NoError(t, fs.MoveDirectory(p("/src"), p("/dst/moved")))
	_, dir := exists(t, fs, "/src")
	assert.False(t, dir)
	assert.Equal(t, "payload", readFile(t, fs, "/dst/moved/sub/f.txt"))

	tests := []struct {
		name      string
		src, dest string
		kind      error
	}{
		{"root source", "/", "/x", unifs.ErrUnauthorizedAccess},
		{"same path", "/dst", "/dst", unifs.ErrIO},
		{"into own subtree", "/dst", "/dst/moved/inner", unifs.ErrIO},
		{"missing source", "/nope", "/x", unifs.ErrDirectoryNotFound},
		{"file source", "/dst/moved/sub/f.txt", "/x", unifs.ErrDirectoryNotFound},
		{"missing dest parent", "/dst/moved", "/no/where", unifs.ErrDirectoryNotFound},
		{"dest exists", "/dst/moved", "/dst", unifs.ErrIO},
	}
	for _, tt := range tests {
		err := fs.MoveDirectory(p(tt.src), p(tt.dest))
		assert.ErrorIs(t, err, tt.kind, tt.name)
	}
}

func TestMoveDirectory_BlockedByOpenHandle(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/a/b/f", "x")
	s, err := fs.OpenFile(p("/a/b/f"), unifs.ModeOpen, unifs.AccessRead, unifs.ShareRead)
	require.NoError(t, err)
	defer s.Close()

	err = fs.MoveDirectory(p("/a"), p("/z"))
	assert.ErrorIs(t, err, unifs.ErrInUse)
}

func TestMoveFile_PreservesContentAndMetadata(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/a/src.bin", "some content")
	require.NoError(t, fs.CreateDirectory(p("/b")))
	stamp := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, fs.SetLastWriteTime(p("/a/src.bin"), stamp))
	require.NoError(t, fs.SetAttributes(p("/a/src.bin"), unifs.AttrHidden))

	before, err := fs.Checksum(p("/a/src.bin"))
	require.NoError(t, err)

	require.NoError(t, fs.MoveFile(p("/a/src.bin"), p("/b/dst.bin")))

	file, _ := exists(t, fs, "/a/src.bin")
	assert.False(t, file)
	after, err := fs.Checksum(p("/b/dst.bin"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	mtime, err := fs.LastWriteTime(p("/b/dst.bin"))
	require.NoError(t, err)
	assert.True(t, stamp.Equal(mtime))
	attrs, err := fs.Attributes(p("/b/dst.bin"))
	require.NoError(t, err)
	assert.Equal(t, unifs.AttrHidden, attrs)
}

func TestMoveFile_Errors(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/f", "1")
	writeFile(t, fs, "/g", "2")
	writeFile(t, fs, "/ro", "3")
	require.NoError(t, fs.SetAttributes(p("/ro"), unifs.AttrReadOnly))

	assert.ErrorIs(t, fs.MoveFile(p("/f"), p("/g")), unifs.ErrExist)
	assert.ErrorIs(t, fs.MoveFile(p("/f"), p("/f")), unifs.ErrIO)
	assert.ErrorIs(t, fs.MoveFile(p("/missing"), p("/h")), unifs.ErrFileNotFound)
	assert.ErrorIs(t, fs.MoveFile(p("/f"), p("/no/h")), unifs.ErrDirectoryNotFound)
	assert.ErrorIs(t, fs.MoveFile(p("/ro"), p("/h")), unifs.ErrUnauthorizedAccess)

	s, err := fs.OpenFile(p("/f"), unifs.ModeOpen, unifs.AccessRead, unifs.ShareReadWrite|unifs.ShareDelete)
	require.NoError(t, err)
	assert.ErrorIs(t, fs.MoveFile(p("/f"), p("/h")), unifs.ErrInUse)
	require.NoError(t, s.Close())
	require.NoError(t, fs.MoveFile(p("/f"), p("/h")))
}

func TestCopyFile(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/src", "hello")
	require.NoError(t, fs.SetAttributes(p("/src"), unifs.AttrHidden))

	require.NoError(t, fs.CopyFile(p("/src"), p("/dst"), false))
	assert.Equal(t, "hello", readFile(t, fs, "/dst"))
	attrs, err := fs.Attributes(p("/dst"))
	require.NoError(t, err)
	assert.Equal(t, unifs.AttrHidden, attrs)

	// content is duplicated, not shared
	require.NoError(t, unifs.WriteAllText(fs, p("/dst"), "changed"))
	assert.Equal(t, "hello", readFile(t, fs, "/src"))

	assert.ErrorIs(t, fs.CopyFile(p("/src"), p("/dst"), false), unifs.ErrExist)
	require.NoError(t, fs.CopyFile(p("/src"), p("/dst"), true))
	assert.Equal(t, "hello", readFile(t, fs, "/dst"))

	assert.ErrorIs(t, fs.CopyFile(p("/src"), p("/src"), true), unifs.ErrIO)
	assert.ErrorIs(t, fs.CopyFile(p("/nope"), p("/x"), true), unifs.ErrFileNotFound)
	assert.ErrorIs(t, fs.CopyFile(p("/src"), p("/no/x"), true), unifs.ErrDirectoryNotFound)
}

func TestReplaceFile(t *testing.T) {
	t.Parallel()

	t.Run("with backup", func(t *testing.T) {
		t.Parallel()
		fs := New()
		writeFile(t, fs, "/s", "source")
		writeFile(t, fs, "/d", "dest")
		created, err := fs.CreationTime(p("/d"))
		require.NoError(t, err)

		require.NoError(t, fs.ReplaceFile(p("/s"), p("/d"), p("/b"), false))

		file, _ := exists(t, fs, "/s")
		assert.False(t, file)
		assert.Equal(t, "source", readFile(t, fs, "/d"))
		assert.Equal(t, "dest", readFile(t, fs, "/b"))
		ctime, err := fs.CreationTime(p("/d"))
		require.NoError(t, err)
		assert.True(t, created.Equal(ctime))
	})

	t.Run("without backup", func(t *testing.T) {
		t.Parallel()
		fs := New()
		writeFile(t, fs, "/s", "source")
		writeFile(t, fs, "/d", "dest")

		require.NoError(t, fs.ReplaceFile(p("/s"), p("/d"), upath.Null, false))
		assert.Equal(t, "source", readFile(t, fs, "/d"))
		paths := list(t, fs, "/", "*", unifs.AllDirectories, unifs.TargetBoth)
		assert.Equal(t, []string{"/d"}, paths)
	})

	t.Run("existing backup is overwritten", func(t *testing.T) {
		t.Parallel()
		fs := New()
		writeFile(t, fs, "/s", "source")
		writeFile(t, fs, "/d", "dest")
		writeFile(t, fs, "/b", "old backup")

		require.NoError(t, fs.ReplaceFile(p("/s"), p("/d"), p("/b"), false))
		assert.Equal(t, "dest", readFile(t, fs, "/b"))
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		fs := New()
		writeFile(t, fs, "/s", "source")
		writeFile(t, fs, "/d", "dest")

		assert.ErrorIs(t, fs.ReplaceFile(p("/s"), p("/s"), upath.Null, false), unifs.ErrIO)
		assert.ErrorIs(t, fs.ReplaceFile(p("/s"), p("/d"), p("/s"), false), unifs.ErrIO)
		assert.ErrorIs(t, fs.ReplaceFile(p("/s"), p("/d"), p("/d"), false), unifs.ErrIO)
		assert.ErrorIs(t, fs.ReplaceFile(p("/x"), p("/d"), upath.Null, false), unifs.ErrFileNotFound)
		assert.ErrorIs(t, fs.ReplaceFile(p("/s"), p("/x"), upath.Null, false), unifs.ErrFileNotFound)
		assert.ErrorIs(t, fs.ReplaceFile(p("/s"), p("/d"), p("/no/b"), false), unifs.ErrDirectoryNotFound)

		// nothing moved
		assert.Equal(t, "source", readFile(t, fs, "/s"))
		assert.Equal(t, "dest", readFile(t, fs, "/d"))
	})
}

func TestDeleteFile(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/f", "x")
	require.NoError(t, fs.CreateDirectory(p("/dir")))

	assert.ErrorIs(t, fs.DeleteFile(p("/missing")), unifs.ErrFileNotFound)
	assert.ErrorIs(t, fs.DeleteFile(p("/no/f")), unifs.ErrDirectoryNotFound)
	assert.ErrorIs(t, fs.DeleteFile(p("/dir")), unifs.ErrUnauthorizedAccess)

	require.NoError(t, fs.SetAttributes(p("/f"), unifs.AttrReadOnly))
	assert.ErrorIs(t, fs.DeleteFile(p("/f")), unifs.ErrUnauthorizedAccess)
	require.NoError(t, fs.SetAttributes(p("/f"), unifs.AttrNormal))
	require.NoError(t, fs.DeleteFile(p("/f")))

	file, _ := exists(t, fs, "/f")
	assert.False(t, file)
}

func TestOpenFile_Modes(t *testing.T) {
	t.Parallel()
	fs := New()

	_, err := fs.OpenFile(p("/f"), unifs.ModeOpen, unifs.AccessRead, unifs.ShareNone)
	assert.ErrorIs(t, err, unifs.ErrFileNotFound)
	_, err = fs.OpenFile(p("/f"), unifs.ModeTruncate, unifs.AccessWrite, unifs.ShareNone)
	assert.ErrorIs(t, err, unifs.ErrFileNotFound)
	_, err = fs.OpenFile(p("/no/f"), unifs.ModeCreate, unifs.AccessWrite, unifs.ShareNone)
	assert.ErrorIs(t, err, unifs.ErrDirectoryNotFound)

	s, err := fs.OpenFile(p("/f"), unifs.ModeCreateNew, unifs.AccessWrite, unifs.ShareNone)
	require.NoError(t, err)
	_, err = s.Write([]byte("12345"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = fs.OpenFile(p("/f"), unifs.ModeCreateNew, unifs.AccessWrite, unifs.ShareNone)
	assert.ErrorIs(t, err, unifs.ErrExist)

	require.NoError(t, unifs.AppendAllText(fs, p("/f"), "67"))
	assert.Equal(t, "1234567", readFile(t, fs, "/f"))

	s, err = fs.OpenFile(p("/f"), unifs.ModeTruncate, unifs.AccessWrite, unifs.ShareNone)
	require.NoError(t, err)
	n, err := s.Length()
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, s.Close())

	require.NoError(t, fs.CreateDirectory(p("/dir")))
	_, err = fs.OpenFile(p("/dir"), unifs.ModeOpen, unifs.AccessRead, unifs.ShareRead)
	assert.ErrorIs(t, err, unifs.ErrUnauthorizedAccess)

	writeFile(t, fs, "/ro", "x")
	require.NoError(t, fs.SetAttributes(p("/ro"), unifs.AttrReadOnly))
	_, err = fs.OpenFile(p("/ro"), unifs.ModeOpen, unifs.AccessWrite, unifs.ShareNone)
	assert.ErrorIs(t, err, unifs.ErrUnauthorizedAccess)
	s, err = fs.OpenFile(p("/ro"), unifs.ModeOpen, unifs.AccessRead, unifs.ShareRead)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpenFile_ShareModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		access1        unifs.FileAccess
		share1         unifs.FileShare
		access2        unifs.FileAccess
		share2         unifs.FileShare
		secondConflict bool
	}{
		{"exclusive read-write twice", unifs.AccessReadWrite, unifs.ShareNone, unifs.AccessReadWrite, unifs.ShareNone, true},
		{"read exclusive twice", unifs.AccessRead, unifs.ShareNone, unifs.AccessRead, unifs.ShareNone, true},
		{"shared readers", unifs.AccessRead, unifs.ShareRead, unifs.AccessRead, unifs.ShareRead, false},
		{"reader then writer without write share", unifs.AccessRead, unifs.ShareRead, unifs.AccessWrite, unifs.ShareRead, true},
		{"reader sharing write then writer", unifs.AccessRead, unifs.ShareReadWrite, unifs.AccessWrite, unifs.ShareRead, false},
		{"writer then reader not sharing write", unifs.AccessWrite, unifs.ShareRead, unifs.AccessRead, unifs.ShareRead, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs := New()
			writeFile(t, fs, "/f", "data")

			s1, err := fs.OpenFile(p("/f"), unifs.ModeOpen, tt.access1, tt.share1)
			require.NoError(t, err)
			defer s1.Close()

			s2, err := fs.OpenFile(p("/f"), unifs.ModeOpen, tt.access2, tt.share2)
			if tt.secondConflict {
				assert.ErrorIs(t, err, unifs.ErrInUse)
				assert.ErrorIs(t, err, unifs.ErrIO)
				return
			}
			require.NoError(t, err)
			require.NoError(t, s2.Close())
		})
	}
}

func TestOpenFile_ConcurrentExclusive(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/f", "data")

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		opened  []unifs.Stream
		inUse   int
		unknown []error
	)
	for range workers {
		wg.Go(func() {
			s, err := fs.OpenFile(p("/f"), unifs.ModeOpen, unifs.AccessReadWrite, unifs.ShareNone)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				opened = append(opened, s)
			case errors.Is(err, unifs.ErrInUse):
				inUse++
			default:
				unknown = append(unknown, err)
			}
		})
	}
	wg.Wait()

	assert.Empty(t, unknown)
	assert.Len(t, opened, 1)
	assert.Equal(t, workers-1, inUse)
	for _, s := range opened {
		require.NoError(t, s.Close())
	}
	assert.Equal(t, "data", readFile(t, fs, "/f"))
}

func TestStream(t *testing.T) {
	t.Parallel()
	fs := New()

	s, err := fs.OpenFile(p("/f"), unifs.ModeCreate, unifs.AccessReadWrite, unifs.ShareNone)
	require.NoError(t, err)
	assert.True(t, s.CanRead())
	assert.True(t, s.CanWrite())
	assert.True(t, s.CanSeek())

	_, err = s.Write([]byte("hello world"))
	require.NoError(t, err)
	pos, err := s.Position()
	require.NoError(t, err)
	assert.Equal(t, int64(11), pos)

	_, err = s.Seek(6, 0)
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))

	buf = make([]byte, 4)
	n, err = s.ReadAt(buf, 9)
	assert.Equal(t, 2, n)
	assert.Error(t, err, "short ReadAt returns io.EOF")

	// writing past the end zero fills
	_, err = s.Seek(13, 0)
	require.NoError(t, err)
	_, err = s.Write([]byte("!"))
	require.NoError(t, err)
	length, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(14), length)

	require.NoError(t, s.SetLength(5))
	pos, err = s.Position()
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)

	_, err = s.Seek(-1, 0)
	assert.ErrorIs(t, err, unifs.ErrInvalidArgument)

	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "double close is a no-op")

	_, err = s.Read(buf)
	assert.ErrorIs(t, err, unifs.ErrDisposed)
	_, err = s.Write(buf)
	assert.ErrorIs(t, err, unifs.ErrDisposed)
	_, err = s.Length()
	assert.ErrorIs(t, err, unifs.ErrDisposed)

	assert.Equal(t, "hello", readFile(t, fs, "/f"))
}

func TestStream_AccessLimits(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/f", "abc")

	r, err := fs.OpenFile(p("/f"), unifs.ModeOpen, unifs.AccessRead, unifs.ShareRead)
	require.NoError(t, err)
	_, err = r.Write([]byte("x"))
	assert.ErrorIs(t, err, unifs.ErrNotSupported)
	require.NoError(t, r.Close())

	a, err := fs.OpenFile(p("/f"), unifs.ModeAppend, unifs.AccessWrite, unifs.ShareNone)
	require.NoError(t, err)
	_, err = a.Read(make([]byte, 1))
	assert.ErrorIs(t, err, unifs.ErrNotSupported)
	_, err = a.Seek(0, 0)
	assert.ErrorIs(t, err, unifs.ErrIO)
	require.NoError(t, a.Close())
}

func TestAttributes(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/dir/f", "x")

	attrs, err := fs.Attributes(p("/dir"))
	require.NoError(t, err)
	assert.True(t, attrs.Has(unifs.AttrDirectory))

	assert.ErrorIs(t, fs.SetAttributes(p("/dir"), unifs.AttrHidden), unifs.ErrUnauthorizedAccess)
	require.NoError(t, fs.SetAttributes(p("/dir"), unifs.AttrDirectory|unifs.AttrHidden))
	assert.ErrorIs(t, fs.SetAttributes(p("/dir/f"), unifs.AttrDirectory), unifs.ErrUnauthorizedAccess)

	require.NoError(t, fs.SetAttributes(p("/dir/f"), 0))
	attrs, err = fs.Attributes(p("/dir/f"))
	require.NoError(t, err)
	assert.Equal(t, unifs.AttrNormal, attrs)

	_, err = fs.Attributes(p("/missing"))
	assert.ErrorIs(t, err, unifs.ErrFileNotFound)
	assert.ErrorIs(t, fs.SetAttributes(p("/missing"), unifs.AttrNormal), unifs.ErrFileNotFound)
}

func TestTimestamps(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/f", "x")
	stamp := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)

	require.NoError(t, fs.SetCreationTime(p("/f"), stamp))
	require.NoError(t, fs.SetLastAccessTime(p("/f"), stamp.Add(time.Hour)))
	require.NoError(t, fs.SetLastWriteTime(p("/f"), stamp.Add(2*time.Hour)))

	c, err := fs.CreationTime(p("/f"))
	require.NoError(t, err)
	a, err := fs.LastAccessTime(p("/f"))
	require.NoError(t, err)
	w, err := fs.LastWriteTime(p("/f"))
	require.NoError(t, err)
	assert.True(t, stamp.Equal(c))
	assert.True(t, stamp.Add(time.Hour).Equal(a))
	assert.True(t, stamp.Add(2*time.Hour).Equal(w))

	_, err = fs.LastWriteTime(p("/missing"))
	assert.ErrorIs(t, err, unifs.ErrFileNotFound)
}

func TestEnumeratePaths(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/a.txt", "")
	writeFile(t, fs, "/b.bin", "")
	writeFile(t, fs, "/sub/c.txt", "")
	writeFile(t, fs, "/sub/deep/d.txt", "")

	got := list(t, fs, "/", "*.txt", unifs.AllDirectories, unifs.TargetFile)
	assert.ElementsMatch(t, []string{"/a.txt", "/sub/c.txt", "/sub/deep/d.txt"}, got)

	got = list(t, fs, "/", "*.txt", unifs.TopDirectoryOnly, unifs.TargetFile)
	assert.Equal(t, []string{"/a.txt"}, got)

	got = list(t, fs, "/", "*", unifs.AllDirectories, unifs.TargetDirectory)
	assert.Equal(t, []string{"/sub", "/sub/deep"}, got)

	got = list(t, fs, "/", "*", unifs.TopDirectoryOnly, unifs.TargetBoth)
	assert.Equal(t, []string{"/a.txt", "/b.bin", "/sub"}, got)

	got = list(t, fs, "/", "sub/*.txt", unifs.TopDirectoryOnly, unifs.TargetFile)
	assert.Equal(t, []string{"/sub/c.txt"}, got)

	_, err := unifs.Collect(fs.EnumeratePaths(p("/missing"), "*", unifs.TopDirectoryOnly, unifs.TargetBoth))
	assert.ErrorIs(t, err, unifs.ErrDirectoryNotFound)
}

func TestEnumeratePaths_RestartableAndStoppable(t *testing.T) {
	t.Parallel()
	fs := New()
	for i := range 5 {
		writeFile(t, fs, fmt.Sprintf("/f%d", i), "")
	}
	seq := fs.EnumeratePaths(upath.Root, "*", unifs.TopDirectoryOnly, unifs.TargetFile)

	first, err := unifs.Collect(seq)
	require.NoError(t, err)
	second, err := unifs.Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestEnumeratePaths_SkipsEntriesDeletedBeforeYield(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/a", "")
	writeFile(t, fs, "/b", "")
	writeFile(t, fs, "/c", "")

	var got []string
	for q, err := range fs.EnumeratePaths(upath.Root, "*", unifs.TopDirectoryOnly, unifs.TargetFile) {
		require.NoError(t, err)
		got = append(got, q.String())
		if q.Name() == "a" {
			require.NoError(t, fs.DeleteFile(p("/b")))
		}
	}
	assert.Equal(t, []string{"/a", "/c"}, got)
}

func TestClone_IsIndependent(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/dir/f.txt", "original")
	require.NoError(t, fs.SetAttributes(p("/dir/f.txt"), unifs.AttrHidden))

	clone := fs.Clone()
	assert.Equal(t, "original", readFile(t, clone, "/dir/f.txt"))
	attrs, err := clone.Attributes(p("/dir/f.txt"))
	require.NoError(t, err)
	assert.Equal(t, unifs.AttrHidden, attrs)

	require.NoError(t, unifs.WriteAllText(clone, p("/dir/f.txt"), "changed"))
	require.NoError(t, clone.CreateDirectory(p("/only-in-clone")))
	require.NoError(t, fs.DeleteFile(p("/dir/f.txt")))

	assert.Equal(t, "changed", readFile(t, clone, "/dir/f.txt"))
	_, dir := exists(t, fs, "/only-in-clone")
	assert.False(t, dir)
}

func TestConvertPath_RoundTrip(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/a/b.txt", "")

	native, err := fs.ConvertPathToNative(p("/a/b.txt"))
	require.NoError(t, err)
	back, err := fs.ConvertPathFromNative(native)
	require.NoError(t, err)
	assert.Equal(t, p("/a/b.txt"), back)
}

func TestWatch(t *testing.T) {
	t.Parallel()
	fs := New()
	require.NoError(t, fs.CreateDirectory(p("/w")))

	_, err := fs.Watch(p("/missing"))
	assert.ErrorIs(t, err, unifs.ErrDirectoryNotFound)

	w, err := fs.Watch(p("/w"))
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, unifs.FileSystem(fs), w.FileSystem())

	writeFile(t, fs, "/w/a.txt", "x")
	require.NoError(t, fs.MoveFile(p("/w/a.txt"), p("/w/b.txt")))
	require.NoError(t, fs.DeleteFile(p("/w/b.txt")))
	writeFile(t, fs, "/elsewhere.txt", "x")

	var kinds []unifs.ChangeKind
	timeout := time.After(2 * time.Second)
	for len(kinds) < 4 {
		select {
		case ev := <-w.Events():
			kinds = append(kinds, ev.Kind)
		case <-timeout:
			t.Fatalf("timed out, got %v", kinds)
		}
	}
	assert.Equal(t, []unifs.ChangeKind{unifs.Created, unifs.Changed, unifs.Renamed, unifs.Deleted}, kinds)
}

func TestConcurrentOppositeMoves(t *testing.T) {
	t.Parallel()
	fs := New()
	require.NoError(t, fs.CreateDirectory(p("/x")))
	require.NoError(t, fs.CreateDirectory(p("/y")))
	for i := range 50 {
		writeFile(t, fs, fmt.Sprintf("/x/f%d", i), "x")
		writeFile(t, fs, fmt.Sprintf("/y/g%d", i), "y")
	}

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			assert.NoError(t, fs.MoveFile(p(fmt.Sprintf("/x/f%d", i)), p(fmt.Sprintf("/y/f%d", i))))
		})
		wg.Go(func() {
			assert.NoError(t, fs.MoveFile(p(fmt.Sprintf("/y/g%d", i)), p(fmt.Sprintf("/x/g%d", i))))
		})
		wg.Go(func() {
			_, err := unifs.Collect(fs.EnumeratePaths(upath.Root, "*", unifs.AllDirectories, unifs.TargetBoth))
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	xs := list(t, fs, "/x", "*", unifs.TopDirectoryOnly, unifs.TargetFile)
	ys := list(t, fs, "/y", "*", unifs.TopDirectoryOnly, unifs.TargetFile)
	assert.Len(t, xs, 50)
	assert.Len(t, ys, 50)
	assert.True(t, slices.IsSorted(xs))
}

func TestConcurrentRenameIsAtomicForReaders(t *testing.T) {
	t.Parallel()
	fs := New()
	writeFile(t, fs, "/a/f", "content")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			// a directory listing is taken under the directory lock, so a
			// rename is seen either before or after, never halfway
			paths, err := unifs.Collect(fs.EnumeratePaths(p("/a"), "*", unifs.TopDirectoryOnly, unifs.TargetFile))
			assert.NoError(t, err)
			assert.Len(t, paths, 1)
		}
	})

	for range 100 {
		require.NoError(t, fs.MoveFile(p("/a/f"), p("/a/g")))
		require.NoError(t, fs.MoveFile(p("/a/g"), p("/a/f")))
	}
	close(stop)
	wg.Wait()
	assert.Equal(t, "content", readFile(t, fs, "/a/f"))
}

func TestConcurrentCreateAndDelete(t *testing.T) {
	t.Parallel()
	fs := New()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			dir := p(fmt.Sprintf("/tree/%d/a/b", i%4))
			for range 20 {
				_ = fs.CreateDirectory(dir)
				_ = unifs.WriteAllText(fs, child(dir, "f"), "x")
				_ = fs.DeleteDirectory(p(fmt.Sprintf("/tree/%d", i%4)), true)
			}
		})
	}
	wg.Wait()

	// the tree is still consistent: every listed entry can be stat'ed
	for q, err := range fs.EnumeratePaths(upath.Root, "*", unifs.AllDirectories, unifs.TargetBoth) {
		require.NoError(t, err)
		_, err := unifs.EntryAt(fs, q)
		require.NoError(t, err)
	}
}
