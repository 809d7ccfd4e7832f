package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/straja-ai/adaware/internal/logger"
)

// Watch reloads the catalog at path whenever the file changes and passes
// every successfully parsed version to apply. A file that fails to parse
// keeps the previous catalog in service. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file so editors that
// save by rename are picked up.
func Watch(ctx context.Context, path string, debounce time.Duration, apply func(*Catalog)) error {
	if path == "" {
		return fmt.Errorf("catalog: watch needs a file path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Log.Warnf("catalog: watch error: %v", err)
		case <-timer.C:
			if _, err := os.Stat(abs); err != nil {
				continue
			}
			c, err := Load(abs)
			if err != nil {
				logger.Log.Warnf("catalog: reload failed, keeping previous list: %v", err)
				continue
			}
			apply(c)
		}
	}
}
