package history

import (
	"fmt"
	"math"
	"time"
)

// TrendPoint is one assembly with its change relative to the previous one.
type TrendPoint struct {
	ID            string    `yaml:"id"`
	Timestamp     time.Time `yaml:"timestamp"`
	Digest        string    `yaml:"digest"`
	ModuleCount   int       `yaml:"module_count"`
	Size          int64     `yaml:"size"`
	DeltaModules  int       `yaml:"delta_modules"`
	DeltaSize     int64     `yaml:"delta_size"`
	SizeGrowthPct float64   `yaml:"size_growth_pct"`
	DigestChanged bool      `yaml:"digest_changed"`
	AvgSize       float64   `yaml:"avg_size"`
	WindowHours   float64   `yaml:"window_hours"`
}

type TrendReport struct {
	Entry      string       `yaml:"entry"`
	Since      time.Time    `yaml:"since"`
	Until      time.Time    `yaml:"until"`
	Window     string       `yaml:"window"`
	BuildCount int          `yaml:"build_count"`
	Points     []TrendPoint `yaml:"points"`
}

// BuildTrendReport summarizes records, oldest first, as returned by List.
func BuildTrendReport(entry string, records []Record, window time.Duration) (TrendReport, error) {
	if len(records) == 0 {
		return TrendReport{}, fmt.Errorf("no assemblies recorded")
	}

	points := make([]TrendPoint, 0, len(records))
	for i, current := range records {
		point := TrendPoint{
			ID:          current.ID,
			Timestamp:   current.Timestamp,
			Digest:      current.Digest,
			ModuleCount: current.ModuleCount,
			Size:        current.Size,
		}

		if i > 0 {
			prev := records[i-1]
			point.DeltaModules = current.ModuleCount - prev.ModuleCount
			point.DeltaSize = current.Size - prev.Size
			point.DigestChanged = current.Digest != prev.Digest
			if prev.Size > 0 {
				point.SizeGrowthPct = round2(float64(point.DeltaSize) / float64(prev.Size) * 100)
			}
		}

		point.AvgSize = round2(movingAverageSize(records, i, window))
		point.WindowHours = round2(window.Hours())
		points = append(points, point)
	}

	return TrendReport{
		Entry:      entry,
		Since:      records[0].Timestamp,
		Until:      records[len(records)-1].Timestamp,
		Window:     window.String(),
		BuildCount: len(points),
		Points:     points,
	}, nil
}

func movingAverageSize(records []Record, index int, window time.Duration) float64 {
	if window <= 0 {
		return float64(records[index].Size)
	}

	cutoff := records[index].Timestamp.Add(-window)
	var total int64
	count := 0
	for i := index; i >= 0; i-- {
		if records[i].Timestamp.Before(cutoff) {
			break
		}
		total += records[i].Size
		count++
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
