package report

import (
	"fmt"
	"strings"

	"modpack/internal/data/history"

	"gopkg.in/yaml.v3"
)

func RenderTrendTSV(report history.TrendReport) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Timestamp\tID\tDigest\tModules\tSize\tDeltaModules\tDeltaSize\tSizeGrowthPct\tDigestChanged\tAvgSize\tWindowHours\n")
	for _, point := range report.Points {
		buf.WriteString(fmt.Sprintf(
			"%s\t%s\t%s\t%d\t%d\t%d\t%d\t%.2f\t%t\t%.2f\t%.2f\n",
			point.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			point.ID,
			shortDigest(point.Digest),
			point.ModuleCount,
			point.Size,
			point.DeltaModules,
			point.DeltaSize,
			point.SizeGrowthPct,
			point.DigestChanged,
			point.AvgSize,
			point.WindowHours,
		))
	}

	return []byte(buf.String()), nil
}

func RenderTrendYAML(report history.TrendReport) ([]byte, error) {
	return yaml.Marshal(report)
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
