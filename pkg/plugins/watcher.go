package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a reload.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the manager's plugin directory when a manifest or module
// changes and then calls onReload, typically Transpiler.Rebuild.
type Watcher struct {
	manager  *Manager
	onReload func(ctx context.Context) error
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher. A zero debounce uses DefaultDebounce.
func NewWatcher(manager *Manager, debounce time.Duration, onReload func(ctx context.Context) error) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		manager:  manager,
		onReload: onReload,
		debounce: debounce,
	}
}

// Start watches dir and its plugin subdirectories until ctx is done.
func (w *Watcher) Start(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go w.processEvents(ctx, watcher)

	w.manager.logger.Info().Str("dir", dir).Msg("Watching plugin directory")
	return nil
}

func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}

			// New plugin directories need their own watch.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if !relevant(event.Name) {
				continue
			}

			w.manager.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Plugin file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.debounce, func() {
				if err := w.reload(ctx); err != nil {
					w.manager.logger.Error().Err(err).Msg("Failed to reload plugins")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.manager.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// relevant reports whether a changed path can affect loaded plugins.
func relevant(path string) bool {
	base := filepath.Base(path)
	return base == ManifestFile || strings.HasSuffix(base, ".wasm")
}

func (w *Watcher) reload(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := w.manager.Reload(ctx); err != nil {
		w.manager.logger.Warn().Err(err).Msg("Plugin reload finished with errors")
	}
	if w.onReload != nil {
		return w.onReload(ctx)
	}
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
