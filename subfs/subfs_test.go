package subfs

import (
	"testing"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/memfs"
	"github.com/brettbedarf/unifs/upath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(s string) upath.Path { return upath.MustParse(s) }

func setup(t *testing.T) (*memfs.FS, *FS) {
	t.Helper()
	source := memfs.New()
	require.NoError(t, source.CreateDirectory(p("/base/dir")))
	require.NoError(t, unifs.WriteAllText(source, p("/base/dir/f.txt"), "inside"))
	require.NoError(t, unifs.WriteAllText(source, p("/outside.txt"), "outside"))
	fs, err := New(source, p("/base"))
	require.NoError(t, err)
	return source, fs
}

func TestNew_RequiresExistingDirectory(t *testing.T) {
	t.Parallel()
	source := memfs.New()
	require.NoError(t, unifs.WriteAllText(source, p("/file"), "x"))

	_, err := New(source, p("/missing"))
	assert.ErrorIs(t, err, unifs.ErrDirectoryNotFound)
	_, err = New(source, p("/file"))
	assert.ErrorIs(t, err, unifs.ErrDirectoryNotFound)
	_, err = New(source, p("relative"))
	assert.ErrorIs(t, err, unifs.ErrInvalidArgument)
	_, err = New(nil, upath.Root)
	assert.ErrorIs(t, err, unifs.ErrInvalidArgument)
}

func TestPathsAreRebased(t *testing.T) {
	t.Parallel()
	source, fs := setup(t)

	text, err := unifs.ReadAllText(fs, p("/dir/f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "inside", text)

	ok, err := fs.FileExists(p("/outside.txt"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fs.MoveFile(p("/dir/f.txt"), p("/g.txt")))
	ok, err = source.FileExists(p("/base/g.txt"))
	require.NoError(t, err)
	assert.True(t, ok)

	paths, err := unifs.Collect(fs.EnumeratePaths(upath.Root, "*", unifs.AllDirectories, unifs.TargetBoth))
	require.NoError(t, err)
	assert.Equal(t, []upath.Path{p("/dir"), p("/g.txt")}, paths)

	ok, err = fs.DirectoryExists(upath.Root)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestErrorsNameTheSubRootedPath(t *testing.T) {
	t.Parallel()
	_, fs := setup(t)

	err := fs.DeleteFile(p("/dir/missing"))
	require.ErrorIs(t, err, unifs.ErrFileNotFound)
	var pe *unifs.PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, p("/dir/missing"), pe.Path)
}

func TestNativePaths(t *testing.T) {
	t.Parallel()
	_, fs := setup(t)

	native, err := fs.ConvertPathToNative(p("/dir/f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "/base/dir/f.txt", native)

	back, err := fs.ConvertPathFromNative(native)
	require.NoError(t, err)
	assert.Equal(t, p("/dir/f.txt"), back)

	_, err = fs.ConvertPathFromNative("/outside.txt")
	assert.ErrorIs(t, err, unifs.ErrInvalidOperation)
}

func TestWatchRebasesEvents(t *testing.T) {
	t.Parallel()
	source, fs := setup(t)

	w, err := fs.Watch(p("/dir"))
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, p("/dir"), w.Path())

	require.NoError(t, unifs.WriteAllText(source, p("/outside2.txt"), "x"))
	require.NoError(t, source.MoveFile(p("/base/dir/f.txt"), p("/base/dir/h.txt")))

	select {
	case ev := <-w.Events():
		assert.Equal(t, unifs.Renamed, ev.Kind)
		assert.Equal(t, p("/dir/h.txt"), ev.Path)
		assert.Equal(t, p("/dir/f.txt"), ev.OldPath)
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
}

func TestNestedSubRoots(t *testing.T) {
	t.Parallel()
	_, fs := setup(t)

	inner, err := New(fs, p("/dir"))
	require.NoError(t, err)
	text, err := unifs.ReadAllText(inner, p("/f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "inside", text)
}
