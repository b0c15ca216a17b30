package memfs

import (
	"iter"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/glob"
	"github.com/brettbedarf/unifs/upath"
)

type snapshotEntry struct {
	n     *node
	name  string
	isDir bool
}

// snapshot lists the children of the directory at p under its read lock.
// The lock is released before returning.
func (e *engine) snapshot(p upath.Path) (*node, []snapshotEntry, bool) {
	ctx := e.ctx()
	defer ctx.Close()
	ctx.lock(readLock(p))
	dir := ctx.get(p)
	if dir == nil || !dir.isDir {
		return nil, nil, false
	}
	children := dir.sortedChildren()
	out := make([]snapshotEntry, len(children))
	for i, ch := range children {
		out[i] = snapshotEntry{n: ch, name: ch.name(), isDir: ch.isDir}
	}
	return dir, out, true
}

func (e *engine) EnumeratePaths(p upath.Path, pattern string, option unifs.SearchOption, target unifs.SearchTarget) iter.Seq2[upath.Path, error] {
	return func(yield func(upath.Path, error) bool) {
		root, matcher, err := glob.Parse(p, pattern)
		if err != nil {
			yield(upath.Null, unifs.NewPathError("readdir", p, err))
			return
		}
		if _, _, ok := e.snapshot(root); !ok {
			yield(upath.Null, unifs.PathErrorf("readdir", root, unifs.ErrDirectoryNotFound, "no such directory"))
			return
		}
		e.walk(root, nil, matcher, option == unifs.AllDirectories, target, yield)
	}
}

// walk yields matching entries of dir depth first. Each directory is read
// under its own lock which is released before descending; entries deleted
// before they are yielded are skipped. want, when set, is the node dir must
// still resolve to.
func (e *engine) walk(dir upath.Path, want *node, m *glob.Pattern, recursive bool, target unifs.SearchTarget, yield func(upath.Path, error) bool) bool {
	n, entries, ok := e.snapshot(dir)
	if !ok || (want != nil && n != want) {
		// moved or removed since its parent was listed
		return true
	}
	for _, ent := range entries {
		if ent.n.isDel.Load() {
			continue
		}
		p := child(dir, ent.name)
		if target.Accepts(ent.isDir) && m.Match(ent.name) {
			if !yield(p, nil) {
				return false
			}
		}
		if recursive && ent.isDir {
			if !e.walk(p, ent.n, m, recursive, target, yield) {
				return false
			}
		}
	}
	return true
}
