package syncbridge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of file
// events to settle before syncing.
const DefaultDebounce = 200 * time.Millisecond

// Syncer runs one sync cycle.
type Syncer interface {
	Sync(ctx context.Context) (Result, error)
}

// Watcher runs a sync whenever another device's file in the shared
// directory changes.
type Watcher struct {
	syncer   Syncer
	dir      string
	ownFile  string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher watches the directory of t and syncs through s. A
// non-positive debounce uses DefaultDebounce.
func NewWatcher(s Syncer, t *FileTransport, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		syncer:   s,
		dir:      t.Dir(),
		ownFile:  filepath.Base(t.OwnFile()),
		debounce: debounce,
		logger:   logger,
	}
}

// Run syncs once, then after every settled burst of relevant file events,
// until ctx is cancelled. Sync failures are logged and do not stop the
// watcher.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", w.dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching sync directory", "dir", w.dir)

	w.runSync(ctx)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			w.runSync(ctx)
		}
	}
}

// relevant reports whether ev touches another device's record file.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	name := filepath.Base(ev.Name)
	if filepath.Ext(name) != FileExt || name[0] == '.' {
		return false
	}
	return name != w.ownFile
}

func (w *Watcher) runSync(ctx context.Context) {
	if _, err := w.syncer.Sync(ctx); err != nil && ctx.Err() == nil {
		w.logger.Warn("sync from watcher failed", "error", err)
	}
}
