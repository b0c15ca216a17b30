package server

import (
	"context"
	"syscall"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/internal/compose"
	"github.com/brettbedarf/unifs/upath"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// renameNoReplace is RENAME_NOREPLACE from renameat2(2).
const renameNoReplace = 0x1

// node is one directory or file. Its path is recomputed from the inode
// tree on every call so kernel renames are picked up.
type node struct {
	fs.Inode
	srv *Server
}

var (
	_ fs.NodeGetattrer = (*node)(nil)
	_ fs.NodeSetattrer = (*node)(nil)
	_ fs.NodeLookuper  = (*node)(nil)
	_ fs.NodeReaddirer = (*node)(nil)
	_ fs.NodeMkdirer   = (*node)(nil)
	_ fs.NodeCreater   = (*node)(nil)
	_ fs.NodeOpener    = (*node)(nil)
	_ fs.NodeUnlinker  = (*node)(nil)
	_ fs.NodeRmdirer   = (*node)(nil)
	_ fs.NodeRenamer   = (*node)(nil)
)

func (n *node) path() upath.Path {
	p, err := upath.Parse("/" + n.Path(nil))
	if err != nil {
		return upath.Root
	}
	return p
}

func (n *node) child(name string) (upath.Path, syscall.Errno) {
	p, err := upath.Join(n.path(), name)
	if err != nil {
		return upath.Null, syscall.EINVAL
	}
	return p, 0
}

// fail logs err and maps it to an errno.
func (n *node) fail(op string, p upath.Path, err error) syscall.Errno {
	errno := Errno(err)
	n.srv.logger.Debug().Err(err).Str("op", op).Str("path", p.String()).Int("errno", int(errno)).Msg("Request failed")
	return errno
}

// fillAttr copies entry metadata into a FUSE attribute block.
func fillAttr(out *fuse.Attr, e unifs.Entry) {
	mode := uint32(syscall.S_IFREG | 0o644)
	if e.IsDir() {
		mode = syscall.S_IFDIR | 0o755
	}
	if e.Attributes.Has(unifs.AttrReadOnly) {
		mode &^= 0o222
	}
	out.Mode = mode
	out.Size = uint64(e.Length)
	out.Nlink = 1
	out.SetTimes(&e.LastAccessTime, &e.LastWriteTime, &e.LastWriteTime)
}

func stableMode(e unifs.Entry) fs.StableAttr {
	if e.IsDir() {
		return fs.StableAttr{Mode: syscall.S_IFDIR}
	}
	return fs.StableAttr{Mode: syscall.S_IFREG}
}

func (n *node) newChild(ctx context.Context, e unifs.Entry, out *fuse.EntryOut) *fs.Inode {
	fillAttr(&out.Attr, e)
	return n.NewInode(ctx, &node{srv: n.srv}, stableMode(e))
}

func (n *node) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	p := n.path()
	e, err := unifs.EntryAt(n.srv.fs, p)
	if err != nil {
		return n.fail("getattr", p, err)
	}
	fillAttr(&out.Attr, e)
	return 0
}

func (n *node) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	p := n.path()
	fsys := n.srv.fs

	if mode, ok := in.GetMode(); ok {
		attrs, err := fsys.Attributes(p)
		if err != nil {
			return n.fail("chmod", p, err)
		}
		if mode&0o200 == 0 {
			attrs |= unifs.AttrReadOnly
		} else {
			attrs &^= unifs.AttrReadOnly
		}
		if err := fsys.SetAttributes(p, attrs); err != nil {
			return n.fail("chmod", p, err)
		}
	}

	if size, ok := in.GetSize(); ok {
		if err := n.truncate(fh, p, int64(size)); err != nil {
			return n.fail("truncate", p, err)
		}
	}

	now := time.Now()
	if atime, ok := in.GetATime(); ok {
		if in.Valid&fuse.FATTR_ATIME_NOW != 0 {
			atime = now
		}
		if err := fsys.SetLastAccessTime(p, atime); err != nil {
			return n.fail("utimens", p, err)
		}
	}
	if mtime, ok := in.GetMTime(); ok {
		if in.Valid&fuse.FATTR_MTIME_NOW != 0 {
			mtime = now
		}
		if err := fsys.SetLastWriteTime(p, mtime); err != nil {
			return n.fail("utimens", p, err)
		}
	}
	return n.Getattr(ctx, fh, out)
}

// truncate resizes through the open handle when there is one.
func (n *node) truncate(fh fs.FileHandle, p upath.Path, size int64) error {
	if h, ok := fh.(*handle); ok {
		return h.stream.SetLength(size)
	}
	s, err := n.srv.fs.OpenFile(p, unifs.ModeOpen, unifs.AccessWrite, unifs.ShareReadWrite|unifs.ShareDelete)
	if err != nil {
		return err
	}
	if err := s.SetLength(size); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p, errno := n.child(name)
	if errno != 0 {
		return nil, errno
	}
	e, err := unifs.EntryAt(n.srv.fs, p)
	if err != nil {
		return nil, Errno(err)
	}
	return n.newChild(ctx, e, out), 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	p := n.path()
	children, ok, err := compose.ListDir(n.srv.fs, p)
	if err != nil {
		return nil, n.fail("readdir", p, err)
	}
	if !ok {
		return nil, syscall.ENOENT
	}
	entries := make([]fuse.DirEntry, 0, len(children))
	for _, c := range children {
		mode := uint32(syscall.S_IFREG)
		if c.IsDir {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: c.Name, Mode: mode})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p, errno := n.child(name)
	if errno != 0 {
		return nil, errno
	}
	// CreateDirectory succeeds on existing directories; mkdir(2) must not.
	if _, err := unifs.EntryAt(n.srv.fs, p); err == nil {
		return nil, syscall.EEXIST
	}
	if err := n.srv.fs.CreateDirectory(p); err != nil {
		return nil, n.fail("mkdir", p, err)
	}
	e, err := unifs.EntryAt(n.srv.fs, p)
	if err != nil {
		return nil, n.fail("mkdir", p, err)
	}
	return n.newChild(ctx, e, out), 0
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	p, errno := n.child(name)
	if errno != 0 {
		return nil, nil, 0, errno
	}
	fmode, access := openMode(flags, true)
	s, err := n.srv.fs.OpenFile(p, fmode, access, handleShare)
	if err != nil {
		return nil, nil, 0, n.fail("create", p, err)
	}
	e, err := unifs.EntryAt(n.srv.fs, p)
	if err != nil {
		s.Close()
		return nil, nil, 0, n.fail("create", p, err)
	}
	return n.newChild(ctx, e, out), &handle{stream: s, path: p}, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	p := n.path()
	fmode, access := openMode(flags, false)
	s, err := n.srv.fs.OpenFile(p, fmode, access, handleShare)
	if err != nil {
		return nil, 0, n.fail("open", p, err)
	}
	return &handle{stream: s, path: p}, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	p, errno := n.child(name)
	if errno != 0 {
		return errno
	}
	if err := n.srv.fs.DeleteFile(p); err != nil {
		return n.fail("unlink", p, err)
	}
	return 0
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	p, errno := n.child(name)
	if errno != 0 {
		return errno
	}
	if err := n.srv.fs.DeleteDirectory(p, false); err != nil {
		return n.fail("rmdir", p, err)
	}
	return 0
}

// Rename moves files over existing files like rename(2). Directories never
// replace an existing entry.
func (n *node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	parent, ok := newParent.(*node)
	if !ok {
		return syscall.EXDEV
	}
	src, errno := n.child(name)
	if errno != 0 {
		return errno
	}
	dest, errno := parent.child(newName)
	if errno != 0 {
		return errno
	}

	fsys := n.srv.fs
	isDir, err := fsys.DirectoryExists(src)
	if err != nil {
		return n.fail("rename", src, err)
	}
	if isDir {
		err = fsys.MoveDirectory(src, dest)
	} else if exists, _ := fsys.FileExists(dest); exists && flags&renameNoReplace == 0 {
		err = fsys.ReplaceFile(src, dest, upath.Null, true)
	} else {
		err = fsys.MoveFile(src, dest)
	}
	if err != nil {
		return n.fail("rename", src, err)
	}
	return 0
}
