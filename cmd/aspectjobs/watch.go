package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watchFile calls onChange once, then again every time path is written or
// replaced, until ctx is done. Errors from onChange are logged, not returned.
func watchFile(ctx context.Context, path string, logger zerolog.Logger, onChange func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(path)
	// Watch the directory: editors often save by renaming over the file.
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	rerun := func() {
		if err := onChange(); err != nil {
			logger.Error().Err(err).Str("file", path).Msg("workload run failed")
		}
	}
	rerun()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			logger.Info().Str("file", path).Msg("workload changed, rerunning")
			rerun()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watch error")
		}
	}
}
