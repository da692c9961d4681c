package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads engine.yaml whenever it changes on disk and invokes onReload
// with the freshly validated Config. A reload that fails validation is
// logged and discarded — the previous Config keeps serving. The watcher
// stops when ctx is cancelled.
func Watch(ctx context.Context, configDir string, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(configDir); err != nil {
		_ = watcher.Close()
		return err
	}

	target := filepath.Join(configDir, "engine.yaml")
	log := slog.With("component", "config.watch", "path", target)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Initialize(ctx, configDir)
				if err != nil {
					log.Warn("Config reload failed, keeping previous configuration", "error", err)
					continue
				}
				log.Info("Configuration reloaded")
				onReload(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("Config watcher error", "error", err)
			}
		}
	}()

	return nil
}
