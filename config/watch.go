package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joeycumines/logiface"
)

// debounceDelay coalesces the burst of events editors produce for one save.
const debounceDelay = 50 * time.Millisecond

// Watch reloads path into s each time it is written, until ctx is done.
// The file's directory is watched rather than the file, so replacing the
// file by rename is seen too. Reload failures are logged and do not stop the
// watch. Watch returns nil once ctx is done.
func (s *Store) Watch(ctx context.Context, path string, logger *logiface.Logger[logiface.Event]) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	debounce := time.NewTimer(0)
	<-debounce.C
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce.Reset(debounceDelay)

		case <-debounce.C:
			if err := s.LoadFile(path); err != nil {
				logger.Err().
					Err(err).
					Str("path", path).
					Log("config reload failed")
				continue
			}
			logger.Debug().
				Str("path", path).
				Log("config reloaded")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warning().
				Err(err).
				Str("path", path).
				Log("config watch error")
		}
	}
}
