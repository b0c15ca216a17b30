package watch

import (
	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// Dispatcher tracks the live watchers of one engine and raises events to them.
type Dispatcher struct {
	bufSize  int
	watchers *xsync.Map[uuid.UUID, *Base]
}

func NewDispatcher(bufSize int) *Dispatcher {
	return &Dispatcher{
		bufSize:  bufSize,
		watchers: xsync.NewMap[uuid.UUID, *Base](),
	}
}

// Watch registers a new watcher on p. Closing it deregisters it.
func (d *Dispatcher) Watch(fs unifs.FileSystem, p upath.Path) *Base {
	b := NewBase(fs, p, d.bufSize)
	d.watchers.Store(b.ID(), b)
	b.OnClose(func() { d.watchers.Delete(b.ID()) })
	return b
}

// Len returns the number of live watchers.
func (d *Dispatcher) Len() int { return d.watchers.Size() }

// Raise offers ev to every live watcher.
func (d *Dispatcher) Raise(ev unifs.WatchEvent) {
	if d.watchers.Size() == 0 {
		return
	}
	d.watchers.Range(func(_ uuid.UUID, b *Base) bool {
		b.Raise(ev)
		return true
	})
}

func (d *Dispatcher) RaiseCreated(p upath.Path) {
	d.Raise(unifs.WatchEvent{Kind: unifs.Created, Path: p})
}

func (d *Dispatcher) RaiseDeleted(p upath.Path) {
	d.Raise(unifs.WatchEvent{Kind: unifs.Deleted, Path: p})
}

func (d *Dispatcher) RaiseChanged(p upath.Path, change unifs.NotifyFilters) {
	d.Raise(unifs.WatchEvent{Kind: unifs.Changed, Path: p, Change: change})
}

func (d *Dispatcher) RaiseRenamed(newPath, oldPath upath.Path) {
	d.Raise(unifs.WatchEvent{Kind: unifs.Renamed, Path: newPath, OldPath: oldPath})
}

// RaiseError delivers err to every watcher regardless of filters.
func (d *Dispatcher) RaiseError(err error) {
	d.Raise(unifs.WatchEvent{Kind: unifs.Error, Err: err})
}

// Close closes every live watcher.
func (d *Dispatcher) Close() {
	d.watchers.Range(func(_ uuid.UUID, b *Base) bool {
		b.Close()
		return true
	})
}
