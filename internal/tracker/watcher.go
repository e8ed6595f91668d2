package tracker

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc"

	"github.com/pders01/repowatch/internal/config"
)

// fsWatcher is a recursive fsnotify watch over one work tree. A single
// monitor goroutine owns the event channel.
type fsWatcher struct {
	root     string
	fsw      *fsnotify.Watcher
	ignore   config.WatchConfig
	logger   *slog.Logger
	onChange func(path string)

	done      chan struct{}
	monitor   conc.WaitGroup
	closeOnce sync.Once
}

func startFSWatcher(root string, ignore config.WatchConfig, logger *slog.Logger, onChange func(string)) (*fsWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &fsWatcher{
		root:     root,
		fsw:      fsw,
		ignore:   ignore,
		logger:   logger,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	w.monitor.Go(w.loop)
	return w, nil
}

func (w *fsWatcher) Root() string {
	return w.root
}

// addRecursive watches dir and every directory below it that is not
// ignored. Only a failure on dir itself is returned.
func (w *fsWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			if p == dir {
				return err
			}
			w.logger.Debug("skipping directory", "path", p, "error", err)
		}
		return nil
	})
}

func (w *fsWatcher) ignored(p string) bool {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || rel == "." {
		return false
	}
	return w.ignore.Ignored(rel)
}

func (w *fsWatcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// a broken watch only loses live invalidation
			w.logger.Warn("filesystem watcher error", "root", w.root, "error", err)
		}
	}
}

func (w *fsWatcher) handle(ev fsnotify.Event) {
	if w.ignored(ev.Name) {
		return
	}

	// new directories are not covered by the existing watches
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Debug("failed to watch new directory", "path", ev.Name, "error", err)
			}
		}
	}

	w.onChange(ev.Name)
}

// Close stops delivery and waits for the monitor goroutine
func (w *fsWatcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		if err := w.fsw.Close(); err != nil {
			w.logger.Debug("failed to close watcher", "root", w.root, "error", err)
		}
		if r := w.monitor.WaitAndRecover(); r != nil {
			w.logger.Error("watch monitor panicked", "root", w.root, "panic", r.Value)
		}
	})
}
