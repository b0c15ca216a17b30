package memfs

import (
	"slices"
	"strings"

	"github.com/brettbedarf/unifs/upath"
)

// lockReq asks a nodeContext to lock the node at p and read-lock every
// ancestor of it.
type lockReq struct {
	p     upath.Path
	write bool
}

func readLock(p upath.Path) lockReq  { return lockReq{p: p} }
func writeLock(p upath.Path) lockReq { return lockReq{p: p, write: true} }

type lockEntry struct {
	key   string
	segs  []string
	write bool
}

// nodeContext holds the locks taken by one operation.
//
// All locks of an operation are acquired in a single call to lock, in tree
// pre-order with siblings ordered by name, so two operations can never wait
// on each other in a cycle. A node is locked at most once per context. Close
// unwinds the locks in reverse order.
//
// NOTE: nodeContext is not thread-safe; do not share it between goroutines.
type nodeContext struct {
	root     *node
	nodes    map[string]*node
	closeFns []func()
}

func newNodeContext(root *node) *nodeContext {
	return &nodeContext{root: root, nodes: make(map[string]*node)}
}

func keyOf(segs []string) string {
	return "/" + strings.Join(segs, "/")
}

// lock resolves and locks every requested path together with its ancestors.
// Paths that do not exist are skipped; use get to see what was found.
func (c *nodeContext) lock(reqs ...lockReq) {
	want := make(map[string]*lockEntry)
	for _, r := range reqs {
		segs := r.p.Split()
		for i := 0; i <= len(segs); i++ {
			key := keyOf(segs[:i])
			w := r.write && i == len(segs)
			if e, ok := want[key]; ok {
				e.write = e.write || w
				continue
			}
			want[key] = &lockEntry{key: key, segs: segs[:i], write: w}
		}
	}

	order := make([]*lockEntry, 0, len(want))
	for _, e := range want {
		order = append(order, e)
	}
	slices.SortFunc(order, func(a, b *lockEntry) int { return slices.Compare(a.segs, b.segs) })

	for _, e := range order {
		n := c.root
		if len(e.segs) > 0 {
			parent, ok := c.nodes[keyOf(e.segs[:len(e.segs)-1])]
			if !ok || !parent.isDir {
				continue
			}
			if n, ok = parent.children.Load(e.segs[len(e.segs)-1]); !ok {
				continue
			}
		}
		c.acquire(n, e.write)
		c.nodes[e.key] = n
	}
}

func (c *nodeContext) acquire(n *node, write bool) {
	if write {
		n.mu.Lock()
		c.AddClose(n.mu.Unlock)
	} else {
		n.mu.RLock()
		c.AddClose(n.mu.RUnlock)
	}
}

// get returns the locked node at p, or nil when it does not exist.
func (c *nodeContext) get(p upath.Path) *node {
	return c.nodes[keyOf(p.Split())]
}

// deepest returns the deepest existing node on the way to p and how many
// segments of p it covers.
func (c *nodeContext) deepest(p upath.Path) (*node, int) {
	segs := p.Split()
	for i := len(segs); i >= 0; i-- {
		if n, ok := c.nodes[keyOf(segs[:i])]; ok {
			return n, i
		}
	}
	return nil, 0
}

// lockSubtree locks every descendant of n in pre-order and returns them in
// that order. n must already be locked by c.
func (c *nodeContext) lockSubtree(n *node, write bool) []*node {
	var out []*node
	if !n.isDir {
		return out
	}
	for _, ch := range n.sortedChildren() {
		c.acquire(ch, write)
		out = append(out, ch)
		out = append(out, c.lockSubtree(ch, write)...)
	}
	return out
}

// AddClose pushes a cleanup callback (e.g., unlock) onto the end of the stack.
func (c *nodeContext) AddClose(fn func()) {
	c.closeFns = append(c.closeFns, fn)
}

// Close unwinds all cleanup callbacks in reverse order.
// Safe to call even if c is nil or nothing was locked, so you can
// `defer ctx.Close()` unconditionally.
func (c *nodeContext) Close() {
	if c == nil {
		return
	}
	for i := len(c.closeFns) - 1; i >= 0; i-- {
		c.closeFns[i]()
	}
	c.closeFns = nil
}
