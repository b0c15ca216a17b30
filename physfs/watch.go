package physfs

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/upath"
	"github.com/brettbedarf/unifs/watch"
	"github.com/fsnotify/fsnotify"
)

// nativeWatcher feeds fsnotify events for one directory tree into a Base.
// fsnotify cannot pair the two halves of a rename, so renames surface as
// Deleted for the old name and Created for the new one.
type nativeWatcher struct {
	e    *engine
	base *watch.Base
	fsw  *fsnotify.Watcher
}

func (e *engine) Watch(p upath.Path) (unifs.Watcher, error) {
	const op = "watch"
	native, info, err := e.stat(p)
	if err != nil {
		return nil, err
	}
	if info == nil || !info.IsDir() {
		return nil, unifs.PathErrorf(op, p, unifs.ErrDirectoryNotFound, "no such directory")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, unifs.PathErrorf(op, p, unifs.ErrIO, "%v", err)
	}

	w := &nativeWatcher{e: e, base: watch.NewBase(e.owner, p, e.cfg.WatcherBufferSize), fsw: fsw}
	if err := w.addTree(native); err != nil {
		fsw.Close()
		return nil, e.translate(op, p, err, unifs.ErrDirectoryNotFound)
	}
	w.base.OnClose(func() { fsw.Close() })
	go w.run()

	e.logger.Debug().Str("path", p.String()).Msg("Watching native directory")
	return w.base, nil
}

// addTree watches dir and every directory below it. fsnotify is not
// recursive.
func (w *nativeWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil && path == dir:
			return err
		case err != nil:
			return nil // vanished while walking
		case !d.IsDir():
			return nil
		}
		if err := w.fsw.Add(path); err != nil && path == dir {
			return err
		}
		return nil
	})
}

func (w *nativeWatcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				err = unifs.ErrBufferOverflow
			}
			w.base.Raise(unifs.WatchEvent{Kind: unifs.Error, Path: w.base.Path(), Err: err})
		}
	}
}

func (w *nativeWatcher) handle(ev fsnotify.Event) {
	p, ok := w.e.uniform(ev.Name)
	if !ok {
		return
	}
	if ev.Has(fsnotify.Create) {
		if _, info, err := w.e.stat(p); err == nil && info != nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.e.logger.Debug().Err(err).Str("path", p.String()).Msg("Could not watch new directory")
			}
		}
		w.base.Raise(unifs.WatchEvent{Kind: unifs.Created, Path: p})
	}
	if ev.Has(fsnotify.Write) {
		w.base.Raise(unifs.WatchEvent{Kind: unifs.Changed, Path: p, Change: unifs.NotifyLastWrite | unifs.NotifySize})
	}
	if ev.Has(fsnotify.Chmod) {
		w.base.Raise(unifs.WatchEvent{Kind: unifs.Changed, Path: p, Change: unifs.NotifyAttributes})
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.base.Raise(unifs.WatchEvent{Kind: unifs.Deleted, Path: p})
	}
}
