package watch

import (
	"sync"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/upath"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// Translate maps a child watcher path into the parent's path space. It
// returns false for paths the parent cannot express.
type Translate func(upath.Path) (upath.Path, bool)

type child struct {
	w    unifs.Watcher
	done chan struct{}
}

// Forwarder is a watcher fed by the watchers of backing filesystems.
//
// Each child is drained by its own goroutine which translates paths and
// re-raises the event through the embedded Base, so the Forwarder's own
// scope and filters apply after translation.
type Forwarder struct {
	*Base
	mu       sync.Mutex // serializes Add against Close
	closing  bool
	children *xsync.Map[uuid.UUID, *child]
}

// NewForwarder creates a forwarding watcher for p on fs.
func NewForwarder(fs unifs.FileSystem, p upath.Path, bufSize int) *Forwarder {
	return &Forwarder{
		Base:     NewBase(fs, p, bufSize),
		children: xsync.NewMap[uuid.UUID, *child](),
	}
}

// Add starts forwarding events from w. The child is widened to report every
// change in its subtree. The returned id removes it again.
func (f *Forwarder) Add(w unifs.Watcher, translate Translate) uuid.UUID {
	w.SetIncludeSubdirectories(true)
	w.SetFilter("*") // nolint:errcheck
	w.SetNotifyFilter(^unifs.NotifyFilters(0))
	w.SetEnabled(true)

	id := uuid.New()
	c := &child{w: w, done: make(chan struct{})}

	f.mu.Lock()
	if f.closing {
		f.mu.Unlock()
		w.Close()
		return id
	}
	f.children.Store(id, c)
	f.mu.Unlock()

	go f.drain(c, translate)
	return id
}

func (f *Forwarder) drain(c *child, translate Translate) {
	defer close(c.done)
	for ev := range c.w.Events() {
		if ev.Kind != unifs.Error {
			p, ok := translate(ev.Path)
			if !ok {
				continue
			}
			ev.Path = p
			if !ev.OldPath.IsNull() {
				if ev.OldPath, ok = translate(ev.OldPath); !ok {
					// renamed in from outside what the parent can see
					ev = unifs.WatchEvent{Kind: unifs.Created, Path: p}
				}
			}
		}
		f.Raise(ev)
	}
}

// Remove stops forwarding the child registered under id and closes it.
func (f *Forwarder) Remove(id uuid.UUID) {
	c, ok := f.children.LoadAndDelete(id)
	if !ok {
		return
	}
	c.w.Close()
	<-c.done
}

// Len returns the number of children.
func (f *Forwarder) Len() int { return f.children.Size() }

// Close closes every child, waits for their goroutines and closes the
// forwarder's own channel.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	if f.closing {
		f.mu.Unlock()
		return nil
	}
	f.closing = true
	var ids []uuid.UUID
	f.children.Range(func(id uuid.UUID, _ *child) bool {
		ids = append(ids, id)
		return true
	})
	f.mu.Unlock()

	for _, id := range ids {
		f.Remove(id)
	}
	logger := util.GetLogger("watch")
	logger.Trace().Str("path", f.Path().String()).Int("children", len(ids)).Msg("Closed forwarding watcher")
	return f.Base.Close()
}
