// Package watch triggers a callback when files of a repository change.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thiagokokada/gitstage/internal/debounce"
)

const DefaultDelay = 350 * time.Millisecond

// Watcher observes the work tree and the .git directory of a repository and
// calls onChange, debounced, after relevant file-system events.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	debounce *debounce.Debouncer

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func New(root string, delay time.Duration, onChange func()) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	for path := range watchPaths(root) {
		slog.Debug("adding path to FS watcher", slog.String("path", path))
		if err := fw.Add(path); err != nil {
			err := errors.Join(err, fw.Close())
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
	}
	w := &Watcher{
		root:     root,
		watcher:  fw,
		debounce: debounce.New(delay, onChange),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops watching; a pending callback is dropped.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.watcher.Close()
		<-w.done
		w.debounce.Stop()
	})
	return w.closeErr
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if shouldIgnoreWatchPath(w.root, ev.Name) {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			if ev.Op&fsnotify.Create != 0 {
				w.addCreatedDir(ev.Name)
			}
			w.debounce.Trigger()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

// addCreatedDir starts watching directories created after New, since
// fsnotify watches are not recursive.
func (w *Watcher) addCreatedDir(name string) {
	info, err := os.Lstat(name)
	if err != nil || !info.IsDir() {
		return
	}
	for path := range watchPaths(name) {
		if err := w.watcher.Add(path); err != nil {
			slog.Debug("watch new directory", slog.String("path", path), slog.Any("error", err))
		}
	}
}

// watchPaths yields root, every directory below it and the .git directory
// itself. Nothing inside .git besides its top level is watched: the index,
// HEAD and refs updates land there.
func watchPaths(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if root == "" {
			return
		}
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return err
				}
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if !yield(path) {
				return fs.SkipAll
			}
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		})
	}
}

func shouldIgnoreWatchPath(root, name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".lock" || ext == ".ipc" {
		return true
	}
	rel, err := filepath.Rel(root, name)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	// Object writes and logs never change what the index shows.
	if len(parts) >= 2 && parts[0] == ".git" {
		switch parts[1] {
		case "objects", "logs", "COMMIT_EDITMSG", "hooks":
			return true
		}
	}
	return false
}
