package main

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// changeBatch collects the paths touched during one quiet period.
type changeBatch map[string]bool

func (b changeBatch) drain() []string {
	paths := make([]string, 0, len(b))
	for p := range b {
		paths = append(paths, p)
		delete(b, p)
	}
	sort.Strings(paths)
	return paths
}

// watchFiles calls onChange with the files that changed, once the writes
// have been quiet for debounce. Parent directories are watched so editors
// that save by rename are still seen.
func watchFiles(ctx context.Context, files []string, debounce time.Duration, onChange func(changedPaths []string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	targets, err := watchTargets(files)
	if err != nil {
		return err
	}
	dirs := map[string]bool{}
	for abs := range targets {
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	if debounce <= 0 {
		debounce = defaultDebounce
	}

	batch := changeBatch{}
	// fire is nil while nothing is pending, which disables its select case.
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			file, watched := targets[filepath.Clean(event.Name)]
			if !watched || shouldIgnoreWatchPath(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			batch[file] = true
			fire = time.After(debounce)
		case <-fire:
			fire = nil
			if len(batch) > 0 {
				onChange(batch.drain())
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return watchErr
		}
	}
}

// watchTargets maps the absolute form of each file to the name it was given.
func watchTargets(files []string) (map[string]string, error) {
	targets := make(map[string]string, len(files))
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, err
		}
		targets[filepath.Clean(abs)] = filepath.Clean(file)
	}
	return targets, nil
}

// shouldIgnoreWatchPath skips editor swap and backup files.
func shouldIgnoreWatchPath(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, "~") ||
		strings.HasPrefix(base, ".#")
}
