package config

import (
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher holds the live configuration and reloads it on an explicit
// filesystem signal: either file under watch being written or renamed
// into place (the same atomic temp+rename convention this module uses for
// its own persisted state, see internal/router/store). Reads never block
// on a reload in progress; they observe either the old or the new
// snapshot, never a partially-applied one, via an atomic.Pointer swap.
type Watcher struct {
	configPath  string
	secretsPath string
	current     atomic.Pointer[Snapshot]
	watcher     *fsnotify.Watcher
	onReload    func(*Snapshot)
}

// NewWatcher performs the initial Load and starts watching both files'
// parent directories (watching the directory, not the file, survives
// editors that replace the file via rename rather than in-place write).
func NewWatcher(configPath, secretsPath string, onReload func(*Snapshot)) (*Watcher, error) {
	snap, err := Load(configPath, secretsPath)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range uniqueDirs(configPath, secretsPath) {
		if err := fw.Add(dir); err != nil {
			slog.Warn("config: failed to watch directory", "dir", dir, "error", err)
		}
	}

	w := &Watcher{configPath: configPath, secretsPath: secretsPath, watcher: fw, onReload: onReload}
	w.current.Store(snap)
	return w, nil
}

func uniqueDirs(paths ...string) []string {
	seen := map[string]struct{}{}
	var dirs []string
	for _, p := range paths {
		d := filepath.Dir(p)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dirs = append(dirs, d)
	}
	return dirs
}

// Current returns the most recently loaded, fully-validated snapshot.
func (w *Watcher) Current() *Snapshot {
	return w.current.Load()
}

// Run watches for filesystem events and reloads on any write/create/rename
// touching the watched files, debounced by a short settle window so a
// multi-write editor save doesn't trigger several reloads in a row. It
// blocks until stop is closed.
func (w *Watcher) Run(stop <-chan struct{}) {
	defer w.watcher.Close()

	var pending *time.Timer
	reload := func() {
		snap, err := Load(w.configPath, w.secretsPath)
		if err != nil {
			slog.Error("config: reload failed, keeping previous snapshot", "error", err)
			return
		}
		w.current.Store(snap)
		slog.Info("config: reloaded")
		if w.onReload != nil {
			w.onReload(snap)
		}
	}

	for {
		select {
		case <-stop:
			if pending != nil {
				pending.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(event, w.configPath, w.secretsPath) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config: watch error", "error", err)
		}
	}
}

func relevantEvent(ev fsnotify.Event, watched ...string) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	for _, p := range watched {
		if filepath.Clean(ev.Name) == filepath.Clean(p) {
			return true
		}
	}
	return false
}
