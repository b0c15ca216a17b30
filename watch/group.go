package watch

import (
	"sync"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// Group tracks the live fan-in watchers of a composite engine so backing
// filesystems that come and go can be attached to or detached from watchers
// that already exist. K identifies a backing filesystem within the
// composite.
type Group[K comparable] struct {
	bufSize int
	fans    *xsync.Map[uuid.UUID, *Fan[K]]
}

func NewGroup[K comparable](bufSize int) *Group[K] {
	return &Group[K]{
		bufSize: bufSize,
		fans:    xsync.NewMap[uuid.UUID, *Fan[K]](),
	}
}

// Fan is a forwarding watcher whose children are keyed by backing
// filesystem.
type Fan[K comparable] struct {
	*Forwarder
	mu   sync.Mutex
	keys map[K]uuid.UUID
}

// Watch registers a new fan-in watcher on p. Closing it deregisters it.
func (g *Group[K]) Watch(fs unifs.FileSystem, p upath.Path) *Fan[K] {
	f := &Fan[K]{
		Forwarder: NewForwarder(fs, p, g.bufSize),
		keys:      make(map[K]uuid.UUID),
	}
	g.fans.Store(f.ID(), f)
	f.OnClose(func() { g.fans.Delete(f.ID()) })
	return f
}

// Range calls fn for every live watcher until fn returns false.
func (g *Group[K]) Range(fn func(*Fan[K]) bool) {
	g.fans.Range(func(_ uuid.UUID, f *Fan[K]) bool { return fn(f) })
}

// Len returns the number of live watchers.
func (g *Group[K]) Len() int { return g.fans.Size() }

// Close closes every live watcher.
func (g *Group[K]) Close() {
	g.Range(func(f *Fan[K]) bool {
		f.Close()
		return true
	})
}

// Attach forwards w under key, replacing any child already attached under it.
func (f *Fan[K]) Attach(key K, w unifs.Watcher, translate Translate) {
	f.Detach(key)
	id := f.Add(w, translate)
	f.mu.Lock()
	f.keys[key] = id
	f.mu.Unlock()
}

// Detach stops forwarding the child attached under key.
func (f *Fan[K]) Detach(key K) bool {
	f.mu.Lock()
	id, ok := f.keys[key]
	delete(f.keys, key)
	f.mu.Unlock()
	if ok {
		f.Remove(id)
	}
	return ok
}

// Attached reports whether a child is attached under key.
func (f *Fan[K]) Attached(key K) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keys[key]
	return ok
}
