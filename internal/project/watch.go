package project

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/devboot/internal/errors"
)

// DefaultWatchDebounce coalesces the bursts of events editors produce when
// saving.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watch reloads the store whenever the file changes on disk and calls
// onChange after each reload that altered the content. Writes made through
// this store do not trigger onChange. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file, since atomic
// replacement (ours and most editors') swaps the inode.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewIOError("failed to create file watcher", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return errors.NewIOError("failed to watch config directory", err).WithPath(dir)
	}

	target := filepath.Clean(s.path)
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			changed, err := s.Reload()
			if err != nil {
				s.logger.Warn("failed to reload project file", "error", err)
				continue
			}
			if changed {
				s.logger.Info("project file changed on disk, reloaded")
				if onChange != nil {
					onChange()
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("file watcher error", "error", err)
		}
	}
}
