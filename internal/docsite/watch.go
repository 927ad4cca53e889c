package docsite

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/greq/internal/logfields"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors the navigation file and the docs directory and calls
// OnChange when their combined fingerprint changes.
type Watcher struct {
	navPath  string
	docsDir  string
	onChange func(ctx context.Context) error
	debounce time.Duration

	watcher    *fsnotify.Watcher
	mu         sync.Mutex
	stopChan   chan struct{}
	changeChan chan struct{}
	stopOnce   sync.Once
	last       string
}

// NewWatcher creates a watcher. Either navPath or docsDir may be empty.
func NewWatcher(navPath, docsDir string, debounce time.Duration, onChange func(ctx context.Context) error) (*Watcher, error) {
	if navPath == "" && docsDir == "" {
		return nil, fmt.Errorf("nothing to watch: no navigation file or docs directory")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		docsDir:    docsDir,
		onChange:   onChange,
		debounce:   debounce,
		watcher:    watcher,
		stopChan:   make(chan struct{}),
		changeChan: make(chan struct{}, 1),
	}
	if navPath != "" {
		abs, err := filepath.Abs(navPath)
		if err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to resolve navigation path: %w", err)
		}
		w.navPath = abs
	}
	return w, nil
}

// Start registers the watches, records the initial fingerprint and begins
// processing events in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.navPath != "" {
		// The directory is watched because editors replace files on save.
		if err := w.watcher.Add(filepath.Dir(w.navPath)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.navPath), err)
		}
	}
	if w.docsDir != "" {
		if err := w.addTree(w.docsDir); err != nil {
			return err
		}
	}

	fp, err := w.Fingerprint()
	if err != nil {
		return err
	}
	w.last = fp

	slog.Info("Starting docs watcher", logfields.Path(w.navPath), slog.String("docs_dir", w.docsDir))
	go w.watchLoop(ctx)
	go w.changeLoop(ctx)
	return nil
}

// Stop ends event processing and releases the watcher.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) relevant(name string) bool {
	if w.navPath != "" && name == w.navPath {
		return true
	}
	if w.docsDir == "" {
		return false
	}
	abs, err := filepath.Abs(w.docsDir)
	if err != nil {
		return false
	}
	return strings.HasPrefix(name, abs+string(filepath.Separator))
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !w.relevant(name) {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(name); err == nil && info.IsDir() {
					if err := w.addTree(name); err != nil {
						slog.Warn("Failed to watch new directory", logfields.Path(name), logfields.Error(err))
					}
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				slog.Debug("Docs change detected", logfields.Path(name), slog.String("op", event.Op.String()))
				w.trigger()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Docs watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) changeLoop(ctx context.Context) {
	var timer *time.Timer
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-w.stopChan:
			stop()
			return
		case <-w.changeChan:
			stop()
			timer = time.AfterFunc(w.debounce, func() {
				if err := w.check(ctx); err != nil {
					slog.Error("Failed to rebuild docs", logfields.Error(err))
				}
			})
		}
	}
}

func (w *Watcher) trigger() {
	select {
	case w.changeChan <- struct{}{}:
	default:
	}
}

// check calls OnChange when the fingerprint moved since the last call.
// A debounce timer that fires after Stop is a no-op.
func (w *Watcher) check(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stopChan:
		return nil
	default:
	}

	fp, err := w.Fingerprint()
	if err != nil {
		return err
	}
	if fp == w.last {
		slog.Debug("Docs unchanged")
		return nil
	}
	w.last = fp
	if w.onChange == nil {
		return nil
	}
	return w.onChange(ctx)
}

// Fingerprint summarises the navigation file and every page.
func (w *Watcher) Fingerprint() (string, error) {
	var nav string
	if w.navPath != "" {
		data, err := os.ReadFile(w.navPath)
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read navigation file: %w", err)
		}
		nav = string(data)
	}

	var pages strings.Builder
	if w.docsDir != "" {
		found, err := ScanPages(w.docsDir)
		if err != nil {
			return "", err
		}
		for _, p := range found {
			pages.WriteString(p.Path)
			pages.WriteByte(' ')
			pages.WriteString(p.Fingerprint)
			pages.WriteByte('\n')
		}
	}
	return mdfp.CalculateFingerprintFromParts(nav, pages.String()), nil
}
