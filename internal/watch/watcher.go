// Package watch observes a journal inbox directory and reports journal files
// once their writes settle.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/chronicle/internal/checksum"
)

// DefaultDebounce is how long a path must stay quiet before cb fires.
const DefaultDebounce = 300 * time.Millisecond

// Callback receives the absolute path of a journal file whose content
// changed.
type Callback func(path string)

// Watcher delivers settled journal changes from one directory.
type Watcher struct {
	dir      string
	exts     map[string]bool
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	lastSum map[string]string
}

// New creates a Watcher for dir accepting files with the given extensions
// (case-insensitive, leading dot optional). No extensions accepts every file.
func New(dir string, exts []string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return &Watcher{
		dir:      dir,
		exts:     set,
		debounce: DefaultDebounce,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		lastSum:  make(map[string]string),
	}
}

// Accepts reports whether path has a journal extension.
func (w *Watcher) Accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(base))]
}

// Scan returns the journal files currently in the directory, sorted.
func (w *Watcher) Scan() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !w.Accepts(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(w.dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Run watches the directory until ctx is cancelled. cb runs on its own
// goroutine after a path has been quiet for the debounce interval and its
// content differs from the last delivery.
func (w *Watcher) Run(ctx context.Context, cb Callback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("dir", w.dir))

	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.Accepts(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				w.schedule(ctx, ev.Name, cb)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.forget(ev.Name)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string, cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.deliver(path, cb)
	})
}

func (w *Watcher) deliver(path string, cb Callback) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	sum := checksum.Sum(data)

	w.mu.Lock()
	unchanged := w.lastSum[path] == sum
	w.lastSum[path] = sum
	w.mu.Unlock()
	if unchanged {
		w.logger.Debug("watcher: content unchanged", slog.String("path", path))
		return
	}
	w.logger.Debug("watcher: journal changed", slog.String("path", path))
	if cb != nil {
		cb(path)
	}
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
	delete(w.lastSum, path)
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
}
