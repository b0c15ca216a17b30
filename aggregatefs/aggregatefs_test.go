package aggregatefs

import (
	"testing"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/memfs"
	"github.com/brettbedarf/unifs/readonlyfs"
	"github.com/brettbedarf/unifs/upath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(s string) upath.Path { return upath.MustParse(s) }

func write(t *testing.T, fs unifs.FileSystem, path, content string) {
	t.Helper()
	if dir := p(path).Directory(); !dir.IsRoot() {
		require.NoError(t, fs.CreateDirectory(dir))
	}
	require.NoError(t, unifs.WriteAllText(fs, p(path), content))
}

func TestPriority(t *testing.T) {
	t.Parallel()
	a, b := memfs.New(), memfs.New()
	write(t, a, "/a.txt", "1")
	write(t, b, "/a.txt", "2")
	write(t, a, "/dir/x", "only in a")

	fs := New(nil)
	require.NoError(t, fs.AddFileSystem(a))
	require.NoError(t, fs.AddFileSystem(b))

	text, err := unifs.ReadAllText(fs, p("/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "2", text)

	ok, err := fs.DirectoryExists(p("/dir"))
	require.NoError(t, err)
	assert.True(t, ok)

	text, err = unifs.ReadAllText(fs, p("/dir/x"))
	require.NoError(t, err)
	assert.Equal(t, "only in a", text)

	require.True(t, fs.RemoveFileSystem(b))
	text, err = unifs.ReadAllText(fs, p("/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1", text)
	assert.False(t, fs.RemoveFileSystem(b))
}

func TestFallbackIsConsultedLast(t *testing.T) {
	t.Parallel()
	fallback, a := memfs.New(), memfs.New()
	write(t, fallback, "/f", "fallback")
	write(t, fallback, "/g", "fallback")
	write(t, a, "/f", "a")

	fs := New(fallback)
	require.NoError(t, fs.AddFileSystem(a))

	for path, want := range map[string]string{"/f": "a", "/g": "fallback"} {
		text, err := unifs.ReadAllText(fs, p(path))
		require.NoError(t, err)
		assert.Equal(t, want, text, path)
	}

	fs.ClearFileSystems()
	assert.Empty(t, fs.FileSystems())
	text, err := unifs.ReadAllText(fs, p("/f"))
	require.NoError(t, err)
	assert.Equal(t, "fallback", text)
}

func TestAddFileSystem_Rejects(t *testing.T) {
	t.Parallel()
	a := memfs.New()
	fs := New(nil)
	require.NoError(t, fs.AddFileSystem(a))

	assert.ErrorIs(t, fs.AddFileSystem(nil), unifs.ErrInvalidArgument)
	assert.ErrorIs(t, fs.AddFileSystem(a), unifs.ErrInvalidArgument)
	assert.ErrorIs(t, fs.AddFileSystem(fs), unifs.ErrInvalidArgument)
	assert.ErrorIs(t, fs.AddFileSystem(readonlyfs.New(fs)), unifs.ErrInvalidArgument)
	assert.Len(t, fs.FileSystems(), 1)
}

func TestMutationsAreRejected(t *testing.T) {
	t.Parallel()
	a := memfs.New()
	write(t, a, "/f", "x")
	fs := New(a)

	assert.ErrorIs(t, fs.CreateDirectory(p("/d")), unifs.ErrReadOnlyFS)
	assert.ErrorIs(t, fs.DeleteFile(p("/f")), unifs.ErrReadOnlyFS)
	assert.ErrorIs(t, fs.MoveFile(p("/f"), p("/g")), unifs.ErrReadOnlyFS)
	assert.ErrorIs(t, fs.CopyFile(p("/f"), p("/g"), false), unifs.ErrReadOnlyFS)
	assert.ErrorIs(t, fs.SetAttributes(p("/f"), unifs.AttrHidden), unifs.ErrReadOnlyFS)
	assert.ErrorIs(t, fs.SetLastWriteTime(p("/f"), time.Now()), unifs.ErrReadOnlyFS)
	assert.ErrorIs(t, unifs.WriteAllText(fs, p("/f"), "y"), unifs.ErrReadOnlyFS)

	attrs, err := fs.Attributes(p("/f"))
	require.NoError(t, err)
	assert.True(t, attrs.Has(unifs.AttrReadOnly))
}

func TestNotFoundKinds(t *testing.T) {
	t.Parallel()
	a := memfs.New()
	write(t, a, "/dir/f", "x")
	fs := New(a)

	_, err := fs.FileLength(p("/dir/missing"))
	assert.ErrorIs(t, err, unifs.ErrFileNotFound)
	_, err = fs.FileLength(p("/nodir/missing"))
	assert.ErrorIs(t, err, unifs.ErrDirectoryNotFound)
	_, err = fs.FileLength(p("/dir"))
	assert.ErrorIs(t, err, unifs.ErrFileNotFound)
}

func TestEnumeratePaths_MergesLevels(t *testing.T) {
	t.Parallel()
	a, b := memfs.New(), memfs.New()
	write(t, a, "/a.txt", "")
	write(t, a, "/shared/from-a.txt", "")
	write(t, b, "/b.bin", "")
	write(t, b, "/shared/from-b.txt", "")
	write(t, b, "/shared/deep/c.txt", "")
	// b wins: "clash" is a directory
	write(t, a, "/clash", "")
	write(t, b, "/clash/inner.txt", "")

	fs := New(nil)
	require.NoError(t, fs.AddFileSystem(a))
	require.NoError(t, fs.AddFileSystem(b))

	paths, err := unifs.Collect(fs.EnumeratePaths(upath.Root, "*.txt", unifs.AllDirectories, unifs.TargetFile))
	require.NoError(t, err)
	assert.Equal(t, []upath.Path{
		p("/a.txt"),
		p("/clash/inner.txt"),
		p("/shared/deep/c.txt"),
		p("/shared/from-a.txt"),
		p("/shared/from-b.txt"),
	}, paths)

	paths, err = unifs.Collect(fs.EnumeratePaths(upath.Root, "*", unifs.TopDirectoryOnly, unifs.TargetDirectory))
	require.NoError(t, err)
	assert.Equal(t, []upath.Path{p("/clash"), p("/shared")}, paths)

	_, err = unifs.Collect(fs.EnumeratePaths(p("/nowhere"), "*", unifs.TopDirectoryOnly, unifs.TargetBoth))
	assert.ErrorIs(t, err, unifs.ErrDirectoryNotFound)
}

func TestFindFileSystemEntries(t *testing.T) {
	t.Parallel()
	fallback, a, b := memfs.New(), memfs.New(), memfs.New()
	write(t, fallback, "/x", "")
	write(t, a, "/x", "")
	require.NoError(t, b.CreateDirectory(p("/x")))

	fs := New(fallback)
	require.NoError(t, fs.AddFileSystem(a))
	require.NoError(t, fs.AddFileSystem(b))

	entries, err := fs.FindFileSystemEntries(p("/x"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, unifs.FileSystem(b), entries[0].FileSystem)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, unifs.FileSystem(a), entries[1].FileSystem)
	assert.False(t, entries[1].IsDir)
	assert.Equal(t, unifs.FileSystem(fallback), entries[2].FileSystem)

	first, ok, err := fs.FindFirstFileSystemEntry(p("/x"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, unifs.FileSystem(b), first.FileSystem)

	_, ok, err = fs.FindFirstFileSystemEntry(p("/none"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = fs.FindFileSystemEntries(p("rel"))
	assert.ErrorIs(t, err, unifs.ErrInvalidArgument)
}

func recv(t *testing.T, w unifs.Watcher) unifs.WatchEvent {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return unifs.WatchEvent{}
}

func TestWatch_FansInAndAttachesLateBackers(t *testing.T) {
	t.Parallel()
	a, b := memfs.New(), memfs.New()
	require.NoError(t, a.CreateDirectory(p("/dir")))
	require.NoError(t, b.CreateDirectory(p("/dir")))

	fs := New(nil)
	_, err := fs.Watch(p("/dir"))
	assert.ErrorIs(t, err, unifs.ErrDirectoryNotFound)

	require.NoError(t, fs.AddFileSystem(a))
	w, err := fs.Watch(p("/dir"))
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, unifs.FileSystem(fs), w.FileSystem())

	write(t, a, "/dir/from-a", "x")
	ev := recv(t, w)
	assert.Equal(t, unifs.Created, ev.Kind)
	assert.Equal(t, p("/dir/from-a"), ev.Path)
	ev = recv(t, w)
	assert.Equal(t, unifs.Changed, ev.Kind)
	assert.Equal(t, p("/dir/from-a"), ev.Path)

	require.NoError(t, fs.AddFileSystem(b))
	require.NoError(t, fs.AddFileSystem(memfs.New()), "backers without the directory are skipped")

	require.True(t, fs.RemoveFileSystem(a))
	write(t, a, "/dir/ignored", "")

	w2, err := fs.Watch(p("/dir"))
	require.NoError(t, err)
	defer w2.Close()
	write(t, b, "/dir/from-b", "")
	ev = recv(t, w2)
	assert.Equal(t, unifs.Created, ev.Kind)
	assert.Equal(t, p("/dir/from-b"), ev.Path)

	// the first watcher picked up b when it was added
	ev = recv(t, w)
	assert.Equal(t, p("/dir/from-b"), ev.Path)
}
