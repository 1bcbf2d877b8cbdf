// Package watcher implements wb-grep's filesystem watcher (C7): a thin
// fsnotify wrapper that debounces add/change events and surfaces deletes
// immediately, leaving ignore-rule evaluation and reconciliation to the
// caller.
package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wb200/wb-grep/internal/walker"
)

// DefaultDebounce is the fixed debounce window for add/change coalescing.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches root recursively and classifies fsnotify events into
// debounced add/change batches and immediate unlink notifications.
type Watcher struct {
	root string
	fsw  *fsnotify.Watcher
	deb  *debouncer

	batches chan []string
	unlinks chan string
	errs    chan error
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Watcher rooted at root. Call Start to begin watching.
func New(root string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:    root,
		fsw:     fsw,
		batches: make(chan []string, 32),
		unlinks: make(chan string, 32),
		errs:    make(chan error, 8),
		stopCh:  make(chan struct{}),
	}
	w.deb = newDebouncer(debounce, w.batches)
	return w, nil
}

// Start registers every non-ignored directory under root and begins
// processing fsnotify events. It does not emit events for the files that
// already exist — the caller is expected to have indexed the initial tree
// before calling Start.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Batches yields debounced sets of paths that were created or modified.
func (w *Watcher) Batches() <-chan []string { return w.batches }

// Unlinks yields paths as soon as a delete/rename-away is observed,
// bypassing the debounce window entirely.
func (w *Watcher) Unlinks() <-chan string { return w.unlinks }

// Errors yields fsnotify errors encountered while watching.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Stop halts the event loop and the debounce timer.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.deb.Stop()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (walker.IsAlwaysIgnoredDir(name) || walker.IsHidden(name)) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			slog.Debug("watcher: failed to register directory", slog.String("path", path), slog.String("error", addErr.Error()))
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		select {
		case w.unlinks <- event.Name:
		default:
			slog.Warn("watcher: unlink channel full, dropping event", slog.String("path", event.Name))
		}

	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				slog.Debug("watcher: failed to register new directory", slog.String("path", event.Name), slog.String("error", err.Error()))
			}
			return
		}
		w.deb.Add(event.Name)

	case event.Op&fsnotify.Write != 0:
		w.deb.Add(event.Name)
	}
}
