package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"modpack/internal/core/config"
	"modpack/internal/core/watcher"
)

// WatchRoots are the directories whose changes can alter the archives of
// reqs: core search paths, collection paths and each script's directory.
func WatchRoots(cfg *config.Config, reqs []Request) []string {
	seen := make(map[string]bool)
	var roots []string
	add := func(p string) {
		p = filepath.Clean(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		roots = append(roots, p)
	}
	for _, p := range cfg.Core.SearchPaths {
		add(p)
	}
	for _, p := range cfg.Collections.Paths {
		add(p)
	}
	for _, r := range reqs {
		add(filepath.Dir(r.Script))
	}
	return roots
}

// Watch re-assembles reqs whenever a watched source changes, or when the
// configuration file at configPath changes (empty disables that). Every
// round is reported through onResult. Watch blocks until ctx is done.
func (a *App) Watch(ctx context.Context, reqs []Request, configPath string, onResult func([]*Assembly, error)) error {
	var mu sync.Mutex
	rebuild := func(reason string, paths []string) {
		mu.Lock()
		defer mu.Unlock()
		slog.Info("re-assembling", "reason", reason, "changed", len(paths))
		a.Invalidate()
		results, err := a.AssembleBatch(ctx, reqs)
		if onResult != nil {
			onResult(results, err)
		}
	}

	cfg := a.snapshot().cfg
	w, err := watcher.NewWatcher(
		cfg.Watch.Debounce,
		cfg.Watch.ExcludeDirs,
		cfg.Watch.ExcludeFiles,
		func(paths []string) { rebuild("sources changed", paths) },
	)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Watch(WatchRoots(cfg, reqs)); err != nil {
		return err
	}

	if configPath != "" {
		cw := config.NewWatcher(configPath, func(next *config.Config) {
			if err := a.Reload(next); err != nil {
				slog.Error("failed to apply reloaded configuration", "error", err)
				return
			}
			rebuild("configuration changed", []string{configPath})
		})
		if err := cw.Start(ctx); err != nil {
			return err
		}
		defer cw.Stop()
	}

	<-ctx.Done()
	return nil
}
