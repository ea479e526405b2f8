// Package watch turns new files below a local object store into object keys.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/olegiv/logwatch-alerts-go/internal/logging"
)

// DefaultSettle is how long a file must stay quiet before it is reported.
const DefaultSettle = 500 * time.Millisecond

// Store maps file paths to object keys.
type Store interface {
	Root() string
	KeyFor(path string) (string, error)
}

// Handler is called once per settled file with its object key.
type Handler func(ctx context.Context, key string)

// Watcher watches a store root recursively. New directories are added to the
// watch as they appear.
type Watcher struct {
	store   Store
	handler Handler
	log     *logging.SecureLogger
	settle  time.Duration
	fsw     *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	done    chan struct{}
}

// New creates a watcher and registers every directory below the store root.
func New(store Store, handler Handler, log *logging.SecureLogger) (*Watcher, error) {
	if log == nil {
		log = logging.Nop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		store:   store,
		handler: handler,
		log:     log,
		settle:  DefaultSettle,
		fsw:     fsw,
		pending: make(map[string]*time.Timer),
		ready:   make(chan string, 64),
		done:    make(chan struct{}),
	}

	if _, err := w.addTree(store.Root(), false); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run dispatches settled files to the handler until ctx is done. Handlers run
// one at a time on the calling goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	w.log.Info().Str("root", w.store.Root()).Msg("Watching local store")

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Str("root", w.store.Root()).Msg("Watcher error")

		case p := <-w.ready:
			key, err := w.store.KeyFor(p)
			if err != nil {
				w.log.Warn().Err(err).Msg("Ignoring file outside the store")
				continue
			}
			w.log.Info().Str("key", key).Msg("New log object detected")
			w.handler(ctx, key)

		case <-ctx.Done():
			w.log.Info().Msg("Context cancelled, stopping local store watcher")
			return nil
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if shouldIgnoreFile(event.Name) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			// Files may land in the new directory before it is watched.
			files, err := w.addTree(event.Name, true)
			if err != nil {
				w.log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
			}
			for _, f := range files {
				w.schedule(f)
			}
		}
		return
	}
	w.schedule(event.Name)
}

// schedule reports p once it has been quiet for the settle delay.
func (w *Watcher) schedule(p string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[p]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		if w.pending[p] == t {
			delete(w.pending, p)
		}
		w.mu.Unlock()
		select {
		case w.ready <- p:
		case <-w.done:
		}
	})
	w.pending[p] = t
}

// addTree watches dir and its subdirectories. With collect set it also
// returns the files found.
func (w *Watcher) addTree(dir string, collect bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && shouldIgnoreFile(p) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(p); err != nil {
				return fmt.Errorf("failed to watch directory %s: %w", p, err)
			}
			return nil
		}
		if collect && !shouldIgnoreFile(p) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func (w *Watcher) close() {
	w.mu.Lock()
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
	w.mu.Unlock()
	close(w.done)
	_ = w.fsw.Close()
}

// shouldIgnoreFile reports hidden, swap, temporary and backup files.
func shouldIgnoreFile(p string) bool {
	base := filepath.Base(p)
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, "~")
}
