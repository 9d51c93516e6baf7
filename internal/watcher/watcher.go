// Package watcher triggers regeneration when source files change. Events
// are debounced so a burst of saves produces one run.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codescribe-dev/codescribe/internal/scanner"
)

// DefaultDebounce is the quiet period before a change burst fires.
const DefaultDebounce = 500 * time.Millisecond

// Watcher observes a project root recursively and invokes a callback with
// the batch of changed paths after each quiet period.
type Watcher struct {
	rootDir    string
	ignoreDirs map[string]bool
	debounce   time.Duration
	fs         *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a watcher for rootDir. ignoreDirs are root-relative directory
// paths that never trigger runs; the tool's own work directory is always
// ignored.
func New(rootDir string, ignoreDirs []string, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ignore := map[string]bool{scanner.WorkDir: true, ".git": true}
	for _, dir := range ignoreDirs {
		ignore[filepath.ToSlash(dir)] = true
	}

	w := &Watcher{
		rootDir:    rootDir,
		ignoreDirs: ignore,
		debounce:   debounce,
		fs:         fs,
		pending:    make(map[string]bool),
		done:       make(chan struct{}),
	}
	if err := w.addRecursive(rootDir); err != nil {
		fs.Close()
		return nil, err
	}
	return w, nil
}

// Start begins watching. The callback runs on the watcher's goroutine; it
// receives root-relative slash paths and must return before the next batch
// fires.
func (w *Watcher) Start(ctx context.Context, callback func(files []string)) {
	go w.loop(ctx, callback)
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.fs.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) loop(ctx context.Context, callback func(files []string)) {
	defer close(w.done)

	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event, fire)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("Warning: watcher error: %v\n", err)

		case <-fire:
			w.mu.Lock()
			files := make([]string, 0, len(w.pending))
			for f := range w.pending {
				files = append(files, f)
			}
			w.pending = make(map[string]bool)
			w.mu.Unlock()

			if len(files) > 0 {
				callback(files)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, fire chan struct{}) {
	relPath, err := filepath.Rel(w.rootDir, event.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)
	if w.ignored(relPath) {
		return
	}

	// New directories need watches of their own.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				log.Printf("Warning: failed to watch new directory %s: %v\n", relPath, err)
			}
			return
		}
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	w.pending[relPath] = true
	w.resetTimerLocked(fire)
	w.mu.Unlock()
}

// resetTimerLocked restarts the debounce window. Caller holds mu.
func (w *Watcher) resetTimerLocked(fire chan struct{}) {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) ignored(relPath string) bool {
	for dir := range w.ignoreDirs {
		if relPath == dir || strings.HasPrefix(relPath, dir+"/") {
			return true
		}
	}
	return false
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return err
		}
		relPath, rerr := filepath.Rel(w.rootDir, path)
		if rerr != nil {
			return rerr
		}
		if relPath != "." && w.ignored(filepath.ToSlash(relPath)) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}
