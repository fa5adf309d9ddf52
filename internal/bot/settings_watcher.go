package bot

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchSettings reloads the settings file after it changes on disk. Edits arrive in
// bursts (editors write, rename and chmod), so reloads wait for debounce of quiet.
// The returned error only covers setting up the watch.
func (c *Controller) WatchSettings(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	path := filepath.Clean(c.store.Path())
	// Watch the directory: atomic saves replace the file and drop a file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch settings dir: %w", err)
	}
	go c.watchLoop(ctx, watcher, path, debounce)
	log.Printf("Watching %s for settings changes", path)
	return nil
}

func (c *Controller) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration) {
	defer watcher.Close()

	var timerMu sync.Mutex
	var timer *time.Timer
	trigger := func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, c.reloadFromDisk)
		timerMu.Unlock()
	}

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if isSettingsEvent(evt, path) {
				trigger()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Warning: settings watcher error: %v", err)
		case <-ctx.Done():
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timerMu.Unlock()
			return
		}
	}
}

func isSettingsEvent(evt fsnotify.Event, path string) bool {
	if filepath.Clean(evt.Name) != path {
		return false
	}
	return evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (c *Controller) reloadFromDisk() {
	changed, err := c.ReloadSettings()
	if err != nil {
		log.Printf("ERROR: [ReloadSettings] %v", err)
		return
	}
	if changed {
		log.Println("Settings file changed, queued for the next checkpoint")
	}
}
