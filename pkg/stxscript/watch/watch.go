// Package watch rebuilds stxscript sources when they change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sambeau/stxscript/pkg/stxscript/compile"
	perrors "github.com/sambeau/stxscript/pkg/stxscript/errors"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// Builder compiles one source file.
type Builder interface {
	BuildFile(path string) (compile.Result, error)
}

// Options configures a Watcher.
type Options struct {
	Dirs     []string
	Debounce time.Duration
	Stdout   io.Writer
	Stderr   io.Writer
	// OnBuild, when set, is called after each build attempt.
	OnBuild func(compile.Result, error)
}

// Watcher monitors source directories and rebuilds changed files
type Watcher struct {
	watcher  *fsnotify.Watcher
	builder  Builder
	dirs     []string
	debounce time.Duration
	stdout   io.Writer
	stderr   io.Writer
	onBuild  func(compile.Result, error)

	mu     sync.Mutex
	builds uint64 // Incremented on each build attempt
	failed uint64

	done chan struct{}
}

// New creates a watcher for the given directories
func New(b Builder, opts Options) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fsWatcher,
		builder:  b,
		dirs:     opts.Dirs,
		debounce: opts.Debounce,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
		onBuild:  opts.OnBuild,
		done:     make(chan struct{}),
	}
	if len(w.dirs) == 0 {
		w.dirs = []string{"."}
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.stdout == nil {
		w.stdout = io.Discard
	}
	if w.stderr == nil {
		w.stderr = io.Discard
	}
	return w, nil
}

// BuildAll builds every source under the watched directories once.
// It returns the number of failed builds.
func (w *Watcher) BuildAll() int {
	failed := 0
	for _, dir := range w.dirs {
		files, err := compile.FindSources(dir)
		if err != nil {
			w.logError("%v", err)
			failed++
			continue
		}
		for _, f := range files {
			if !w.build(f) {
				failed++
			}
		}
	}
	return failed
}

// Start begins watching for file changes. The event loop stops when ctx
// is cancelled; Done is closed once it has.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.dirs {
		if err := w.watchDirRecursive(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.logInfo("watching %s", dir)
	}

	go w.eventLoop(ctx)
	return nil
}

// Done is closed when the event loop has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// watchDirRecursive adds a directory and its subdirectories to the watch list
func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // Skip errors below the root
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

// eventLoop collects changed sources and builds them once no event has
// arrived for the debounce period.
func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.done)
	defer w.watcher.Close()

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.handleEvent(event, pending) {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			for _, p := range paths {
				w.build(p)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logError("watcher error: %v", err)
		}
	}
}

// handleEvent records a changed source in pending and reports whether a
// build should be scheduled.
func (w *Watcher) handleEvent(event fsnotify.Event, pending map[string]bool) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchDirRecursive(event.Name); err != nil {
				w.logError("failed to watch %s: %v", event.Name, err)
			}
			return false
		}
	}

	if !compile.IsSource(event.Name) {
		return false
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		delete(pending, event.Name)
		w.logInfo("removed: %s", event.Name)
		return false
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	pending[event.Name] = true
	return true
}

func (w *Watcher) build(path string) bool {
	res, err := w.builder.BuildFile(path)

	w.mu.Lock()
	w.builds++
	if err != nil {
		w.failed++
	}
	w.mu.Unlock()

	if err != nil {
		w.logError("%s", describe(err))
	} else if res.Cached {
		w.logInfo("%s -> %s (cached)", res.Source, res.Output)
	} else {
		w.logInfo("%s -> %s", res.Source, res.Output)
	}

	if w.onBuild != nil {
		w.onBuild(res, err)
	}
	return err == nil
}

// Close stops watching. It is safe to call after the context is cancelled.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Stats returns the number of build attempts and failures so far
func (w *Watcher) Stats() (builds, failed uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.builds, w.failed
}

// describe prefers the structured error's own formatting.
func describe(err error) string {
	var se *perrors.StxError
	if errors.As(err, &se) {
		return se.String()
	}
	return err.Error()
}

func (w *Watcher) logInfo(format string, args ...interface{}) {
	fmt.Fprintf(w.stdout, "[WATCH] "+format+"\n", args...)
}

func (w *Watcher) logError(format string, args ...interface{}) {
	fmt.Fprintf(w.stderr, "[WATCH ERROR] "+format+"\n", args...)
}
