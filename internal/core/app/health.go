package app

import (
	"context"
	"fmt"
	"os"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.Extractor == nil {
		status.Status = "degraded"
		status.Components["extractor"] = "missing"
	} else {
		status.Components["extractor"] = "ok"
	}

	snap := s.app.snapshot()
	missing := 0
	for _, p := range snap.cfg.Core.SearchPaths {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			missing++
		}
	}
	if missing > 0 {
		status.Status = "degraded"
		status.Components["search_paths"] = fmt.Sprintf("%d of %d missing", missing, len(snap.cfg.Core.SearchPaths))
	} else {
		status.Components["search_paths"] = fmt.Sprintf("ok (%d)", len(snap.cfg.Core.SearchPaths))
	}

	s.app.mu.RLock()
	cache := s.app.cache
	s.app.mu.RUnlock()
	if cache != nil {
		status.Components["resource_cache"] = fmt.Sprintf("ok (%d entries)", cache.Len())
	}

	if s.app.history != nil {
		status.Components["history"] = "ok"
	} else if snap.cfg.History.Enabled {
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	}

	failed := 0
	outcomes := s.app.outcomes()
	for _, outcome := range outcomes {
		if outcome != "success" {
			failed++
		}
	}
	if failed > 0 {
		status.Status = "degraded"
	}
	status.Components["assemblies"] = fmt.Sprintf("%d entries, %d failing", len(outcomes), failed)

	return status
}
