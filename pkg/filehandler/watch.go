package filehandler

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long a file must stay unchanged before it is handed over
const DefaultSettleDelay = 250 * time.Millisecond

// Watch calls fn for every image file created or written in dir once it has
// stopped changing for settle. fn runs on the watching goroutine, one file at
// a time. Watch returns nil when ctx is done.
func Watch(ctx context.Context, dir string, settle time.Duration, fn func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	if settle <= 0 {
		settle = DefaultSettleDelay
	}

	// Debounce per file: editors and copies emit several writes
	timers := make(map[string]*time.Timer)
	ready := make(chan string, 16)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !IsImageFile(event.Name) {
				continue
			}
			name := event.Name
			if t, exists := timers[name]; exists {
				t.Reset(settle)
				continue
			}
			timers[name] = time.AfterFunc(settle, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})

		case name := <-ready:
			delete(timers, name)
			fn(name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}
