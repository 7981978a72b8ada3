package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modpack/internal/data/history"
)

type HistoryTrendRequest struct {
	Entry  string
	Window time.Duration
	Limit  int
}

type HistoryTrendResult struct {
	RecordsEvaluated int
	Report           *history.TrendReport
}

// HistoryTrend loads the recorded assemblies of an entry and summarizes how
// their size and module count moved over time.
func (a *App) HistoryTrend(ctx context.Context, req HistoryTrendRequest) (HistoryTrendResult, error) {
	if err := ctx.Err(); err != nil {
		return HistoryTrendResult{}, err
	}
	if a.history == nil {
		return HistoryTrendResult{}, fmt.Errorf("history is disabled")
	}

	window := req.Window
	if window <= 0 {
		window = 24 * time.Hour
	}
	entry := strings.TrimSpace(req.Entry)

	records, err := a.history.List(entry, req.Limit)
	if err != nil {
		return HistoryTrendResult{}, fmt.Errorf("load history: %w", err)
	}
	result := HistoryTrendResult{RecordsEvaluated: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	report, err := history.BuildTrendReport(entry, records, window)
	if err != nil {
		return HistoryTrendResult{}, fmt.Errorf("build trend report: %w", err)
	}
	result.Report = &report
	return result, nil
}
