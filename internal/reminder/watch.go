package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce absorbs the burst of events editors emit for one save.
const reloadDebounce = 250 * time.Millisecond

// WatchCopy reloads the copy file at path whenever it changes and hands each
// valid result to apply. Invalid files are logged and ignored so the last
// good copy stays in use. It blocks until ctx is done.
func WatchCopy(ctx context.Context, path string, apply func(Copy), log *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating copy watcher: %w", err)
	}
	defer w.Close() //nolint:errcheck

	// Watch the directory: editors often replace the file instead of writing it.
	dir, file := filepath.Dir(path), filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %q: %w", dir, err)
	}
	log.Info("watching reminder copy", "path", path)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		c, err := LoadCopy(path)
		if err != nil {
			log.Warn("reminder copy rejected, keeping previous", "path", path, "error", err)
			return
		}
		apply(c)
		log.Info("reminder copy reloaded", "path", path)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("reminder copy watcher error", "error", err)
		}
	}
}
