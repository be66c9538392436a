package projects

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// watchQuiet is how long the projects tree must stay quiet before onChange fires.
const watchQuiet = 300 * time.Millisecond

// Watch calls onChange after bursts of changes under the projects directory
// until ctx is cancelled. Project folders created later are watched too.
func (c *Catalog) Watch(ctx context.Context, onChange func()) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create projects dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("add watch path: %w", err)
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read projects dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			c.addWatch(watcher, entry.Name())
		}
	}

	debounced := debounce.New(watchQuiet)
	c.logger.InfoContext(ctx, "watching projects", "dir", c.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Create == fsnotify.Create && filepath.Dir(event.Name) == filepath.Clean(c.dir) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					c.addWatch(watcher, info.Name())
				}
			}
			debounced(onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			c.logger.ErrorContext(ctx, "projects watcher error", "error", err)
		}
	}
}

func (c *Catalog) addWatch(watcher *fsnotify.Watcher, id string) {
	if err := watcher.Add(filepath.Join(c.dir, id)); err != nil {
		c.logger.Debug("cannot watch project", "id", id, "error", err)
	}
}
