package memfs

import (
	"slices"
	"time"

	"github.com/brettbedarf/unifs/internal/util"
)

// Clone returns an independent deep copy of the tree: structure, content and
// metadata. Open handles are not carried over. The source is read-locked
// while it is copied so the snapshot is consistent.
func (fs *FS) Clone() *FS {
	e := fs.e
	ctx := e.ctx()
	defer ctx.Close()
	ctx.acquire(e.root, false)
	ctx.lockSubtree(e.root, false)

	var bytes int
	root := cloneNode(e.root, nil, &bytes)
	ctx.Close()

	e.logger.Debug().Str("content", util.Bytes(bytes)).Msg("Cloned filesystem")
	return newFS(e.cfg, root, e.now)
}

func cloneNode(src, parent *node, total *int) *node {
	var n *node
	if src.isDir {
		n = newDirNode(src.name(), parent, time.Time{})
	} else {
		n = newFileNode(src.name(), parent, time.Time{})
		n.content = slices.Clone(src.content)
		*total += len(src.content)
	}
	n.attrs = src.attrs
	n.ctime, n.atime, n.mtime = src.ctime, src.atime, src.mtime
	if src.isDir {
		src.children.Range(func(name string, ch *node) bool {
			n.children.Store(name, cloneNode(ch, n, total))
			return true
		})
	}
	return n
}
