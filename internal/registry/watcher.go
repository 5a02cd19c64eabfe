package registry

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"mcpdock/pkg/logging"
)

// WatchFile reloads a file source whenever its backing file changes, so
// edits to the custom catalog show up without waiting for the next
// scheduled refresh. Blocks until the context is cancelled.
func WatchFile(ctx context.Context, refresher *Refresher, src *FileSource) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files via rename, which drops
	// a watch on the file itself.
	dir := filepath.Dir(src.Path())
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(src.Path())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logging.Info("Refresher", "Catalog file %s changed, reloading", src.Path())
			if err := refresher.Refresh(ctx, src.Name(), true); err != nil {
				logging.Warn("Refresher", "Reload of %s failed: %v", src.Name(), err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Refresher", "Catalog watcher error: %v", err)
		}
	}
}
