package files

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"apphost/pkg/log"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher reports filesystem changes below a set of paths. Bursts of events
// are collapsed: onChange fires once per path after the debounce window.
type Watcher struct {
	paths    []string
	onChange func(string)
	filter   func(fsnotify.Event) bool
	debounce time.Duration

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewWatcher watches the given directories (or files) for changes.
func NewWatcher(onChange func(string), paths ...string) *Watcher {
	return &Watcher{
		paths:    paths,
		onChange: onChange,
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
	}
}

// NewFileWatcher watches a single file. The parent directory is watched so
// that atomic replacements by editors are seen too.
func NewFileWatcher(filePath string, onChange func(string)) *Watcher {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		abs = filePath
	}
	w := NewWatcher(onChange, filepath.Dir(abs))
	w.filter = func(ev fsnotify.Event) bool {
		return filepath.Clean(ev.Name) == abs &&
			ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
	}
	return w
}

// SetFilter limits which events trigger onChange.
func (w *Watcher) SetFilter(filter func(fsnotify.Event) bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filter = filter
}

// SetDebounce sets the quiet period before onChange fires.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start begins watching. It returns once the watches are registered.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return log.Errorf("failed to create watcher: %w", err)
	}
	for _, p := range w.paths {
		if err := fw.Add(p); err != nil {
			fw.Close()
			return log.Errorf("failed to watch %s: %w", p, err)
		}
	}

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watchLoop(ctx)
	log.Debug("File watcher started", "paths", w.paths)
	return nil
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	select {
	case <-w.stopCh:
		w.mu.Unlock()
		return
	default:
		close(w.stopCh)
	}
	w.mu.Unlock()

	w.wg.Wait()
	log.Debug("File watcher stopped", "paths", w.paths)
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()
	defer w.watcher.Close()

	pending := map[string]struct{}{}
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.accept(ev) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounceWindow())

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("File watcher error", "error", err)

		case <-timer.C:
			for path := range pending {
				delete(pending, path)
				if w.onChange != nil {
					w.onChange(path)
				}
			}

		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) accept(ev fsnotify.Event) bool {
	w.mu.Lock()
	filter := w.filter
	w.mu.Unlock()

	if filter != nil {
		return filter(ev)
	}
	return ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0
}

func (w *Watcher) debounceWindow() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.debounce
}

// Paths returns the watched paths.
func (w *Watcher) Paths() []string {
	return w.paths
}
