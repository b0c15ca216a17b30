package memfs

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
	"github.com/puzpuzpuz/xsync/v4"
)

// link is a node's position in the tree. It is replaced as a whole on move so
// event paths can be computed without taking any lock.
type link struct {
	name   string
	parent *node
}

type node struct {
	mu       sync.RWMutex              // protects the inode and writes to children
	link     atomic.Pointer[link]      // written only under the parent's write lock
	isDir    bool                      // immutable
	children *xsync.Map[string, *node] // nil for files
	isDel    atomic.Bool
	open     atomic.Int32 // open handle count, readable without mu
	*inode
}

// inode holds the metadata and content of a node. Protected by node.mu.
type inode struct {
	attrs   unifs.FileAttributes
	ctime   time.Time
	atime   time.Time
	mtime   time.Time
	content []byte
	handles []*handle
}

// handle is the share reservation of one open stream.
type handle struct {
	access unifs.FileAccess
	share  unifs.FileShare
}

func newDirNode(name string, parent *node, now time.Time) *node {
	n := &node{
		isDir:    true,
		children: xsync.NewMap[string, *node](),
		inode:    &inode{attrs: unifs.AttrDirectory, ctime: now, atime: now, mtime: now},
	}
	n.link.Store(&link{name: name, parent: parent})
	return n
}

func newFileNode(name string, parent *node, now time.Time) *node {
	n := &node{
		inode: &inode{attrs: unifs.AttrArchive, ctime: now, atime: now, mtime: now},
	}
	n.link.Store(&link{name: name, parent: parent})
	return n
}

func (n *node) name() string { return n.link.Load().name }

// path rebuilds the node's path by walking parent links.
func (n *node) path() upath.Path {
	var segs []string
	for cur := n; ; {
		l := cur.link.Load()
		if l.parent == nil {
			break
		}
		segs = append(segs, l.name)
		cur = l.parent
	}
	slices.Reverse(segs)
	p, _ := upath.Join(upath.Root, segs...)
	return p
}

// addChild links child under n. Caller holds n.mu for writing.
func (n *node) addChild(name string, child *node) {
	child.link.Store(&link{name: name, parent: n})
	n.children.Store(name, child)
}

// removeChild unlinks name from n. Caller holds n.mu for writing.
func (n *node) removeChild(name string) (*node, bool) {
	return n.children.LoadAndDelete(name)
}

// sortedChildren snapshots the children ordered by name. Caller holds n.mu.
func (n *node) sortedChildren() []*node {
	out := make([]*node, 0, n.children.Size())
	n.children.Range(func(_ string, ch *node) bool {
		out = append(out, ch)
		return true
	})
	slices.SortFunc(out, func(a, b *node) int {
		switch an, bn := a.name(), b.name(); {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	})
	return out
}

// del marks the node and, for directories, its whole subtree as deleted.
func (n *node) del() {
	n.isDel.Store(true)
	if n.children != nil {
		n.children.Range(func(_ string, ch *node) bool {
			ch.del()
			return true
		})
	}
}

// touch updates the write and access times. Caller holds n.mu for writing.
func (n *node) touch(now time.Time) {
	n.mtime = now
	n.atime = now
}

// shareConflict reports whether a new handle conflicts with any open one.
// Caller holds n.mu.
func (n *node) shareConflict(access unifs.FileAccess, share unifs.FileShare) bool {
	for _, h := range n.handles {
		if !h.share.Allows(access) || !share.Allows(h.access) {
			return true
		}
	}
	return false
}

// addHandle registers a share reservation. Caller holds n.mu for writing.
func (n *node) addHandle(h *handle) {
	n.handles = append(n.handles, h)
	n.open.Add(1)
}

// releaseHandle drops a share reservation. Caller holds n.mu for writing.
func (n *node) releaseHandle(h *handle) {
	if i := slices.Index(n.handles, h); i >= 0 {
		n.handles = slices.Delete(n.handles, i, i+1)
		n.open.Add(-1)
	}
}
