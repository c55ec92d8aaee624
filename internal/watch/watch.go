// Package watch reruns work when synthesis artifacts change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/synthcheck/internal/inventory"
	"github.com/dshills/synthcheck/internal/logging"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to
// settle before calling the handler.
const DefaultDebounce = 500 * time.Millisecond

// Handler receives the sorted, de-duplicated paths of one settled batch. An
// error stops the watcher.
type Handler func(ctx context.Context, changed []string) error

// Options configures a Watcher.
type Options struct {
	// Dirs are watched recursively for summaries and netlists.
	Dirs []string
	// Files are watched individually through their parent directories.
	Files []string
	// Ignore lists directory names left out of the recursive watch.
	Ignore []string
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher batches filesystem events on synthesis artifacts.
type Watcher struct {
	w        *fsnotify.Watcher
	dirs     map[string]bool
	files    map[string]bool
	ignore   []string
	debounce time.Duration
	log      *slog.Logger
}

// New creates a watcher over every non-ignored directory below opts.Dirs and
// the parents of opts.Files. The caller must Close it.
func New(opts Options) (*Watcher, error) {
	if len(opts.Dirs) == 0 && len(opts.Files) == 0 {
		return nil, errors.New("watch: nothing to watch")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		w:        fw,
		dirs:     make(map[string]bool),
		files:    make(map[string]bool),
		ignore:   opts.Ignore,
		debounce: opts.Debounce,
		log:      logging.OrDiscard(opts.Logger),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	add := func(dir string) error {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return fmt.Errorf("watch: add %s: %w", dir, err)
		}
		return nil
	}
	for _, root := range opts.Dirs {
		tree, err := inventory.Dirs(filepath.Clean(root), opts.Ignore)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch: %w", err)
		}
		for _, d := range tree {
			if w.dirs[d] {
				continue
			}
			if err := add(d); err != nil {
				return nil, err
			}
			w.dirs[d] = true
		}
	}
	watchedParents := make(map[string]bool)
	for _, f := range opts.Files {
		f = filepath.Clean(f)
		w.files[f] = true
		parent := filepath.Dir(f)
		if w.dirs[parent] || watchedParents[parent] {
			continue
		}
		if err := add(parent); err != nil {
			return nil, err
		}
		watchedParents[parent] = true
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.w.Close()
}

// relevant reports whether an event on path concerns a watched artifact.
func (w *Watcher) relevant(path string) bool {
	path = filepath.Clean(path)
	if w.files[path] {
		return true
	}
	if !w.dirs[filepath.Dir(path)] {
		return false
	}
	if inventory.IsNetlist(path) {
		return true
	}
	_, ok := inventory.ModuleName(path)
	return ok
}

// addTree starts watching a directory created below a watched one, along
// with anything already inside it.
func (w *Watcher) addTree(dir string) {
	if !w.dirs[filepath.Dir(dir)] || w.dirs[dir] {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return
	}
	if inventory.Ignored(filepath.Base(dir), w.ignore) {
		return
	}
	tree, err := inventory.Dirs(dir, w.ignore)
	if err != nil {
		w.log.Warn("watch: scan new directory", "path", dir, "error", err)
		return
	}
	for _, d := range tree {
		if w.dirs[d] {
			continue
		}
		if err := w.w.Add(d); err != nil {
			w.log.Warn("watch: add directory", "path", d, "error", err)
			continue
		}
		w.dirs[d] = true
		w.log.Debug("watching new directory", "path", d)
	}
}

// Run delivers settled batches to h until ctx is cancelled, the handler
// fails or the underlying watcher is closed. Cancellation returns nil.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.addTree(filepath.Clean(ev.Name))
			}
			if !w.relevant(ev.Name) {
				continue
			}
			w.log.Debug("artifact changed", "path", ev.Name, "op", ev.Op.String())
			pending[filepath.Clean(ev.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		case <-timerC:
			timerC = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)
			if err := h(ctx, changed); err != nil {
				return err
			}
		}
	}
}
