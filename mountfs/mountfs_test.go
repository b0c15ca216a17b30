package mountfs

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
		ok, err := fs.DirectoryExists(dir)
		require.NoError(t, err)
		if !ok {
			require.NoError(t, fs.CreateDirectory(dir))
		}
	}
	require.NoError(t, unifs.WriteAllText(fs, p(path), content))
}

func read(t *testing.T, fs unifs.FileSystem, path string) string {
	t.Helper()
	s, err := unifs.ReadAllText(fs, p(path))
	require.NoError(t, err)
	return s
}

func all(t *testing.T, fs unifs.FileSystem, dir string, option unifs.SearchOption) []upath.Path {
	t.Helper()
	paths, err := unifs.Collect(fs.EnumeratePaths(p(dir), "*", option, unifs.TargetBoth))
	require.NoError(t, err)
	return paths
}

func TestMount_Rejects(t *testing.T) {
	t.Parallel()
	fs := New(nil)
	a := memfs.New()
	require.NoError(t, fs.Mount(p("/a"), a))

	tests := []struct {
		name string
		at   upath.Path
		fs   unifs.FileSystem
	}{
		{"root", upath.Root, memfs.New()},
		{"relative", p("a"), memfs.New()},
		{"null", upath.Null, memfs.New()},
		{"duplicate", p("/a"), memfs.New()},
		{"nil filesystem", p("/b"), nil},
		{"itself", p("/b"), fs},
		{"cycle", p("/b"), readonlyfs.New(fs)},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, fs.Mount(tt.at, tt.fs), unifs.ErrInvalidArgument, tt.name)
	}
	assert.Len(t, fs.Mounts(), 1)
}

func TestMountTableBookkeeping(t *testing.T) {
	t.Parallel()
	fs := New(nil)
	a, b := memfs.New(), memfs.New()
	require.NoError(t, fs.Mount(p("/a"), a))
	require.NoError(t, fs.Mount(p("/a/b"), b))

	assert.True(t, fs.IsMounted(p("/a/b")))
	assert.False(t, fs.IsMounted(p("/a/c")))
	at, ok := fs.MountPoint(b)
	require.True(t, ok)
	assert.Equal(t, p("/a/b"), at)
	assert.Equal(t, []unifs.FileSystem{a, b}, fs.Sources())

	assert.True(t, fs.Unmount(p("/a/b")))
	assert.False(t, fs.Unmount(p("/a/b")))
	_, ok = fs.MountPoint(b)
	assert.False(t, ok)
}

func TestRouting_LongestPrefixWins(t *testing.T) {
	t.Parallel()
	fallback, outer, inner := memfs.New(), memfs.New(), memfs.New()
	write(t, fallback, "/top.txt", "fallback")
	write(t, outer, "/x/file.txt", "outer")
	write(t, inner, "/file.txt", "inner")

	fs := New(fallback)
	require.NoError(t, fs.Mount(p("/mnt"), outer))
	require.NoError(t, fs.Mount(p("/mnt/x"), inner))

	assert.Equal(t, "fallback", read(t, fs, "/top.txt"))
	assert.Equal(t, "inner", read(t, fs, "/mnt/x/file.txt"))

	write(t, fs, "/mnt/new.txt", "routed")
	assert.Equal(t, "routed", read(t, outer, "/new.txt"))

	err := fs.DeleteFile(p("/mnt/missing"))
	require.ErrorIs(t, err, unifs.ErrFileNotFound)
	var pe *unifs.PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, p("/mnt/missing"), pe.Path)
}

func TestVirtualDirectories(t *testing.T) {
	t.Parallel()
	fs := New(nil)
	require.NoError(t, fs.Mount(p("/a/b/c"), memfs.New()))

	for _, d := range []string{"/", "/a", "/a/b", "/a/b/c"} {
		ok, err := fs.DirectoryExists(p(d))
		require.NoError(t, err)
		assert.True(t, ok, d)
	}
	ok, err := fs.DirectoryExists(p("/a/x"))
	require.NoError(t, err)
	assert.False(t, ok)

	for _, d := range []string{"/", "/a", "/a/b", "/a/b/c"} {
		assert.ErrorIs(t, fs.CreateDirectory(p(d)), unifs.ErrUnauthorizedAccess, d)
	}
	require.NoError(t, fs.CreateDirectory(p("/a/b/c/inside")), "paths below a mount point reach the backer")
	assert.ErrorIs(t, fs.DeleteDirectory(p("/a"), true), unifs.ErrUnauthorizedAccess)
	assert.ErrorIs(t, fs.DeleteDirectory(p("/a/b/c"), true), unifs.ErrUnauthorizedAccess)
	assert.ErrorIs(t, fs.MoveDirectory(p("/a/b"), p("/z")), unifs.ErrUnauthorizedAccess)
	assert.ErrorIs(t, fs.CreateDirectory(p("/a/x")), unifs.ErrUnauthorizedAccess)
	assert.ErrorIs(t, unifs.WriteAllText(fs, p("/a/f.txt"), "x"), unifs.ErrUnauthorizedAccess)
	assert.ErrorIs(t, fs.SetAttributes(p("/a"), unifs.AttrDirectory), unifs.ErrUnauthorizedAccess)

	attrs, err := fs.Attributes(p("/a"))
	require.NoError(t, err)
	assert.True(t, attrs.Has(unifs.AttrDirectory))

	assert.Equal(t, []upath.Path{p("/a"), p("/a/b"), p("/a/b/c"), p("/a/b/c/inside")}, all(t, fs, "/", unifs.AllDirectories))
}

func TestRootListing_UnionsFallbackAndMounts(t *testing.T) {
	t.Parallel()
	fallback, m := memfs.New(), memfs.New()
	write(t, fallback, "/f.txt", "")
	write(t, fallback, "/dir/g.txt", "")
	write(t, fallback, "/data", "shadowed by the mount")
	write(t, m, "/inside.txt", "")

	fs := New(fallback)
	require.NoError(t, fs.Mount(p("/data"), m))
	require.NoError(t, fs.Mount(p("/deep/mount"), memfs.New()))

	assert.Equal(t, []upath.Path{p("/data"), p("/deep"), p("/dir"), p("/f.txt")}, all(t, fs, "/", unifs.TopDirectoryOnly))
	assert.Equal(t, []upath.Path{
		p("/data"), p("/data/inside.txt"),
		p("/deep"), p("/deep/mount"),
		p("/dir"), p("/dir/g.txt"),
		p("/f.txt"),
	}, all(t, fs, "/", unifs.AllDirectories))

	ok, err := fs.FileExists(p("/data"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCrossMountMove(t *testing.T) {
	t.Parallel()
	a, b := memfs.New(), memfs.New()
	write(t, a, "/file.txt", "payload")
	write(t, a, "/tree/sub/x.txt", "x")
	stamp := time.Date(2022, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, a.SetLastWriteTime(p("/file.txt"), stamp))

	fs := New(nil)
	require.NoError(t, fs.Mount(p("/a"), a))
	require.NoError(t, fs.Mount(p("/b"), b))

	require.NoError(t, fs.MoveFile(p("/a/file.txt"), p("/b/moved.txt")))
	ok, err := a.FileExists(p("/file.txt"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "payload", read(t, b, "/moved.txt"))
	mtime, err := fs.LastWriteTime(p("/b/moved.txt"))
	require.NoError(t, err)
	assert.True(t, stamp.Equal(mtime))

	require.NoError(t, fs.MoveDirectory(p("/a/tree"), p("/b/tree")))
	ok, err = a.DirectoryExists(p("/tree"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "x", read(t, fs, "/b/tree/sub/x.txt"))

	write(t, a, "/again.txt", "1")
	assert.ErrorIs(t, fs.MoveFile(p("/a/again.txt"), p("/b/moved.txt")), unifs.ErrExist)
	assert.ErrorIs(t, fs.MoveFile(p("/a/missing"), p("/b/x")), unifs.ErrFileNotFound)
	assert.ErrorIs(t, fs.MoveFile(p("/a/again.txt"), p("/b/no/x")), unifs.ErrDirectoryNotFound)
	assert.Equal(t, "1", read(t, a, "/again.txt"))
}

func TestCrossMountMove_RollsBackCopyWhenSourceStays(t *testing.T) {
	t.Parallel()
	a, b := memfs.New(), memfs.New()
	write(t, a, "/locked.txt", "data")
	s, err := a.OpenFile(p("/locked.txt"), unifs.ModeOpen, unifs.AccessRead, unifs.ShareRead)
	require.NoError(t, err)
	defer s.Close()

	fs := New(nil)
	require.NoError(t, fs.Mount(p("/a"), a))
	require.NoError(t, fs.Mount(p("/b"), b))

	err = fs.MoveFile(p("/a/locked.txt"), p("/b/locked.txt"))
	assert.ErrorIs(t, err, unifs.ErrInUse)
	ok, err := b.FileExists(p("/locked.txt"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCrossMountMoveDirectory_RollsBackCopyWhenSourceStays(t *testing.T) {
	t.Parallel()
	a, b := memfs.New(), memfs.New()
	write(t, a, "/tree/free.txt", "free")
	write(t, a, "/tree/sub/busy.txt", "busy")
	s, err := a.OpenFile(p("/tree/sub/busy.txt"), unifs.ModeOpen, unifs.AccessRead, unifs.ShareRead)
	require.NoError(t, err)
	defer s.Close()

	fs := New(nil)
	require.NoError(t, fs.Mount(p("/a"), a))
	require.NoError(t, fs.Mount(p("/b"), b))

	err = fs.MoveDirectory(p("/a/tree"), p("/b/tree"))
	assert.ErrorIs(t, err, unifs.ErrInUse)

	ok, err := b.DirectoryExists(p("/tree"))
	require.NoError(t, err)
	assert.False(t, ok, "the copied tree is removed")
	assert.Equal(t, "free", read(t, a, "/tree/free.txt"))
	assert.Equal(t, "busy", read(t, a, "/tree/sub/busy.txt"))
}

func TestCrossMountCopyAndReplace(t *testing.T) {
	t.Parallel()
	a, b := memfs.New(), memfs.New()
	write(t, a, "/src", "source")
	write(t, b, "/dest", "dest")

	fs := New(nil)
	require.NoError(t, fs.Mount(p("/a"), a))
	require.NoError(t, fs.Mount(p("/b"), b))

	require.NoError(t, fs.CopyFile(p("/a/src"), p("/b/copy"), false))
	assert.Equal(t, "source", read(t, b, "/copy"))
	assert.Equal(t, "source", read(t, a, "/src"))
	assert.ErrorIs(t, fs.CopyFile(p("/a/src"), p("/b/copy"), false), unifs.ErrExist)
	require.NoError(t, fs.CopyFile(p("/a/src"), p("/b/copy"), true))

	err := fs.ReplaceFile(p("/a/src"), p("/b/dest"), upath.Null, false)
	assert.ErrorIs(t, err, unifs.ErrNotSupported)
	err = fs.ReplaceFile(p("/b/copy"), p("/b/dest"), p("/a/backup"), false)
	assert.ErrorIs(t, err, unifs.ErrNotSupported)

	require.NoError(t, fs.ReplaceFile(p("/b/copy"), p("/b/dest"), p("/b/backup"), false))
	assert.Equal(t, "source", read(t, b, "/dest"))
	assert.Equal(t, "dest", read(t, b, "/backup"))
}

func TestNativePaths(t *testing.T) {
	t.Parallel()
	fallback, m := memfs.New(), memfs.New()
	write(t, m, "/f.txt", "")
	fs := New(fallback)
	require.NoError(t, fs.Mount(p("/m"), m))

	native, err := fs.ConvertPathToNative(p("/m/f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "/f.txt", native)

	// both backers accept "/f.txt"; the mount is asked first
	back, err := fs.ConvertPathFromNative(native)
	require.NoError(t, err)
	assert.Equal(t, p("/m/f.txt"), back)

	_, err = New(nil).ConvertPathToNative(p("/x"))
	assert.ErrorIs(t, err, unifs.ErrNotSupported)
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

func TestWatch_FansInMountsBelow(t *testing.T) {
	t.Parallel()
	fallback, m, late := memfs.New(), memfs.New(), memfs.New()
	fs := New(fallback)
	require.NoError(t, fs.Mount(p("/m"), m))

	w, err := fs.Watch(upath.Root)
	require.NoError(t, err)
	defer w.Close()
	w.SetIncludeSubdirectories(true)
	w.SetNotifyFilter(unifs.NotifyFileName | unifs.NotifyDirectoryName)

	require.NoError(t, fallback.CreateDirectory(p("/plain")))
	ev := recv(t, w)
	assert.Equal(t, unifs.Created, ev.Kind)
	assert.Equal(t, p("/plain"), ev.Path)

	write(t, m, "/in-mount.txt", "")
	ev = recv(t, w)
	assert.Equal(t, p("/m/in-mount.txt"), ev.Path)

	require.NoError(t, fs.Mount(p("/late"), late))
	write(t, late, "/x", "")
	ev = recv(t, w)
	assert.Equal(t, p("/late/x"), ev.Path)

	require.True(t, fs.Unmount(p("/late")))
	write(t, late, "/y", "")
	require.NoError(t, fallback.CreateDirectory(p("/after")))
	ev = recv(t, w)
	assert.Equal(t, p("/after"), ev.Path, "unmounted filesystems are detached")
}

func TestWatch_DropsShadowedFallbackEvents(t *testing.T) {
	t.Parallel()
	fallback, m := memfs.New(), memfs.New()
	require.NoError(t, fallback.CreateDirectory(p("/m")))
	fs := New(fallback)
	require.NoError(t, fs.Mount(p("/m"), m))

	w, err := fs.Watch(upath.Root)
	require.NoError(t, err)
	defer w.Close()
	w.SetIncludeSubdirectories(true)
	w.SetNotifyFilter(unifs.NotifyFileName | unifs.NotifyDirectoryName)

	write(t, fallback, "/m/hidden.txt", "")
	write(t, fallback, "/visible.txt", "")
	ev := recv(t, w)
	assert.Equal(t, p("/visible.txt"), ev.Path)
}
