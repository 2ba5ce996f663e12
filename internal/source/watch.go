package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultWatchDebounce = 150 * time.Millisecond

// Watch reloads path whenever it changes and hands the result to fn. It
// blocks until ctx is done. The parent directory is watched so that editors
// replacing the file are noticed too.
func Watch(ctx context.Context, path string, opts Options, debounce time.Duration, fn func([]Record, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve source path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Source watcher error", "path", path, "error", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case <-timer.C:
			records, err := LoadFile(ctx, abs, opts)
			if err != nil {
				slog.Warn("Failed to reload source", "path", path, "error", err)
			} else {
				slog.Info("Reloaded source", "path", path, "records", len(records))
			}
			fn(records, err)
		}
	}
}
