// Package app wires configuration, the resource indexes, the closure builder
// and the history store into assemble operations the CLI drives.
package app

import (
	"fmt"
	"log/slog"
	"sync"

	"modpack/internal/core/config"
	"modpack/internal/data/history"
	"modpack/internal/engine/archive"
	"modpack/internal/engine/locator"
	"modpack/internal/engine/module"
	"modpack/internal/engine/parser"
)

// HistoryStore persists completed assemblies.
type HistoryStore interface {
	Save(rec history.Record) (string, error)
	List(entry string, limit int) ([]history.Record, error)
	Close() error
}

type App struct {
	Config    *config.Config
	Extractor *parser.Extractor

	mu      sync.RWMutex
	index   locator.ResourceIndex
	cache   *locator.CachedIndex
	builtin *locator.Routing
	roots   []module.Resolved
	history HistoryStore

	lastMu sync.RWMutex
	last   map[string]string
}

func New(cfg *config.Config) (*App, error) {
	extractor, err := parser.NewExtractor(parser.NewGrammarLoader())
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Extractor: extractor,
		last:      make(map[string]string),
	}
	if err := a.configure(cfg); err != nil {
		return nil, err
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.history = store
	}
	return a, nil
}

// configure builds everything derived from cfg except the history store.
func (a *App) configure(cfg *config.Config) error {
	index, cache, err := buildIndex(cfg)
	if err != nil {
		return err
	}
	builtin, err := locator.LoadRoutingFile(cfg.Core.BuiltinRuntime)
	if err != nil {
		return err
	}
	roots := archive.SyntheticRoots(cfg.Archive.Version, cfg.Archive.Author)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Config = cfg
	a.index = index
	a.cache = cache
	a.builtin = builtin
	a.roots = roots
	return nil
}

func buildIndex(cfg *config.Config) (locator.ResourceIndex, *locator.CachedIndex, error) {
	var backends locator.MultiIndex
	if len(cfg.Collections.Paths) > 0 {
		backends = append(backends, locator.NewFSIndex(cfg.Collections.Paths))
	}
	if s3 := cfg.Collections.S3; s3.Enabled() {
		remote, err := locator.NewS3Index(locator.S3Config{
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			UseSSL:    s3.UseSSL,
			RateLimit: s3.RateLimit,
			Burst:     s3.Burst,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect collection store: %w", err)
		}
		backends = append(backends, remote)
	}

	cache, err := locator.NewCachedIndex(backends, cfg.Collections.CacheEntries)
	if err != nil {
		return nil, nil, err
	}
	return cache, cache, nil
}

// Reload swaps in a new configuration. Assemblies already running keep the
// indexes they started with; the history store is not reopened.
func (a *App) Reload(cfg *config.Config) error {
	if err := a.configure(cfg); err != nil {
		return err
	}
	slog.Info("configuration reloaded",
		"search_paths", len(cfg.Core.SearchPaths),
		"collection_paths", len(cfg.Collections.Paths),
		"s3", cfg.Collections.S3.Enabled(),
	)
	return nil
}

// Invalidate drops cached collection resources so the next assembly sees
// fresh content.
func (a *App) Invalidate() {
	a.mu.RLock()
	cache := a.cache
	a.mu.RUnlock()
	if cache != nil {
		cache.Purge()
	}
}

// History returns the history store, or nil when history is disabled.
func (a *App) History() HistoryStore {
	return a.history
}

func (a *App) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}

type snapshot struct {
	cfg     *config.Config
	index   locator.ResourceIndex
	builtin *locator.Routing
	roots   []module.Resolved
}

func (a *App) snapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{cfg: a.Config, index: a.index, builtin: a.builtin, roots: a.roots}
}

func (a *App) recordOutcome(entry, outcome string) {
	a.lastMu.Lock()
	a.last[entry] = outcome
	a.lastMu.Unlock()
}

func (a *App) outcomes() map[string]string {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	out := make(map[string]string, len(a.last))
	for k, v := range a.last {
		out[k] = v
	}
	return out
}
