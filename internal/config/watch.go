package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchInstances reloads path on change and hands every valid result to onChange.
// Invalid rewrites are logged and the previous set stays active. Blocks until ctx is done.
func WatchInstances(ctx context.Context, log *zap.Logger, path string, onChange func([]Instance)) error {
	if log == nil {
		log = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Editors replace files by rename, so watch the directory.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)
	log.Info("watching instances file", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			list, err := LoadInstances(path)
			if err != nil {
				log.Error("instances reload failed, keeping previous set", zap.String("path", path), zap.Error(err))
				continue
			}
			log.Info("instances reloaded", zap.String("path", path), zap.Int("count", len(list)))
			onChange(list)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("instances watcher error", zap.Error(err))
		}
	}
}
