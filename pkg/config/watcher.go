package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the configuration file and delivers freshly loaded,
// validated configurations to a callback. Editors commonly replace files
// via rename, so the parent directory is watched rather than the file
// itself.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		path:     path,
		debounce: 200 * time.Millisecond,
		logger:   logger.With("component", "config_watcher"),
		watcher:  fsw,
	}, nil
}

// Watch blocks, delivering each successfully reloaded configuration to
// onReload, until ctx is cancelled. Reload failures are logged and the
// previous configuration stays in effect.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Config)) error {
	defer w.watcher.Close()

	w.logger.Info("config watcher started", "path", w.path)

	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			// Debounce: editors fire several events per save.
			pending = time.After(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("config watch error", "error", err)

		case <-pending:
			pending = nil
			cfg, err := LoadWithEnvOverrides(w.path)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous configuration", "error", err)
				continue
			}
			w.logger.Info("configuration reloaded", "path", w.path)
			onReload(cfg)
		}
	}
}

// relevant reports whether the event concerns the watched file and could
// have changed its contents.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
