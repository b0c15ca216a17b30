// Package watch provides the watcher plumbing shared by unifs engines.
//
// [Base] filters and buffers events for one watcher, [Dispatcher] fans an
// engine's change notifications out to every live Base, and [Forwarder]
// drains child watchers of backing filesystems into a single watcher with
// translated paths.
package watch

import (
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/glob"
	"github.com/brettbedarf/unifs/internal/util"
	"github.com/brettbedarf/unifs/upath"
	"github.com/google/uuid"
)

// DefaultBufferSize is the event channel capacity used when none is given.
const DefaultBufferSize = 256

// Base is a buffered, filtering [unifs.Watcher].
//
// Delivery never blocks the raising engine. When the channel is full the
// event is dropped and an Error event carrying [unifs.ErrBufferOverflow] is
// queued as soon as there is room.
type Base struct {
	id     uuid.UUID
	fs     unifs.FileSystem
	path   upath.Path
	events chan unifs.WatchEvent

	mu       sync.RWMutex // guards everything below and sends on events
	filter   string
	pattern  *glob.Pattern
	notify   unifs.NotifyFilters
	subdirs  bool
	enabled  bool
	closed   bool
	onClose  []func()

	overflow atomic.Bool
}

var _ unifs.Watcher = (*Base)(nil)

// NewBase creates an enabled watcher for direct children of p.
func NewBase(fs unifs.FileSystem, p upath.Path, bufSize int) *Base {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Base{
		id:      uuid.New(),
		fs:      fs,
		path:    p,
		events:  make(chan unifs.WatchEvent, bufSize),
		filter:  "*",
		notify:  unifs.NotifyDefault,
		enabled: true,
	}
}

func (b *Base) ID() uuid.UUID { return b.id }

func (b *Base) FileSystem() unifs.FileSystem { return b.fs }

func (b *Base) Path() upath.Path { return b.path }

func (b *Base) Events() <-chan unifs.WatchEvent { return b.events }

func (b *Base) Filter() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter
}

// SetFilter sets the name pattern events must match. "" and "*" match all.
func (b *Base) SetFilter(pattern string) error {
	p, err := glob.Compile(pattern)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter = pattern
	b.pattern = p
	return nil
}

func (b *Base) NotifyFilter() unifs.NotifyFilters {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.notify
}

func (b *Base) SetNotifyFilter(f unifs.NotifyFilters) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notify = f
}

func (b *Base) IncludeSubdirectories() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subdirs
}

func (b *Base) SetIncludeSubdirectories(include bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subdirs = include
}

func (b *Base) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

func (b *Base) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// OnClose registers fn to run once when the watcher is closed.
func (b *Base) OnClose(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onClose = append(b.onClose, fn)
}

// Closed reports whether Close has been called.
func (b *Base) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Close closes the events channel. Further calls are no-ops.
func (b *Base) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.events)
	fns := b.onClose
	b.onClose = nil
	b.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
	return nil
}

// matchesLocked applies scope, name and notify filters. Caller holds b.mu.
func (b *Base) matchesLocked(ev unifs.WatchEvent) bool {
	if ev.Kind == unifs.Error {
		return true
	}
	inScope := ev.Path.IsInDirectory(b.path, b.subdirs)
	if ev.Kind == unifs.Renamed && !inScope {
		inScope = ev.OldPath.IsInDirectory(b.path, b.subdirs)
	}
	if !inScope || !b.pattern.Match(ev.Path.Name()) {
		return false
	}
	switch ev.Kind {
	case unifs.Changed:
		change := ev.Change
		if change == 0 {
			change = unifs.NotifyLastWrite
		}
		return b.notify&change != 0
	default:
		return b.notify&(unifs.NotifyFileName|unifs.NotifyDirectoryName) != 0
	}
}

// Raise delivers ev if it passes the filters. It reports whether ev was queued.
func (b *Base) Raise(ev unifs.WatchEvent) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed || !b.enabled || !b.matchesLocked(ev) {
		return false
	}
	return b.sendLocked(ev)
}

func (b *Base) sendLocked(ev unifs.WatchEvent) bool {
	if b.overflow.Load() {
		select {
		case b.events <- unifs.WatchEvent{Kind: unifs.Error, Path: b.path, Err: unifs.ErrBufferOverflow}:
			b.overflow.Store(false)
		default:
			return false
		}
	}
	select {
	case b.events <- ev:
		return true
	default:
		if b.overflow.CompareAndSwap(false, true) {
			logger := util.GetLogger("watch")
			logger.Debug().Str("path", b.path.String()).Str("event", ev.Kind.String()).Msg("Watcher buffer full; dropping events")
		}
		return false
	}
}
