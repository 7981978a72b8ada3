package report

import (
	"strings"
	"testing"
	"time"

	"modpack/internal/data/history"
)

func sampleReport() history.TrendReport {
	return history.TrendReport{
		Entry:      "ansible.modules.ping",
		Since:      time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC),
		Until:      time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
		Window:     "24h0m0s",
		BuildCount: 1,
		Points: []history.TrendPoint{
			{
				ID:            "a1",
				Timestamp:     time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
				Digest:        "0123456789abcdef0123",
				ModuleCount:   12,
				Size:          4096,
				DeltaModules:  2,
				DeltaSize:     512,
				SizeGrowthPct: 14.29,
				DigestChanged: true,
				AvgSize:       3840,
				WindowHours:   24,
			},
		},
	}
}

func TestRenderTrendTSV(t *testing.T) {
	out, err := RenderTrendTSV(sampleReport())
	if err != nil {
		t.Fatalf("render tsv: %v", err)
	}
	text := string(out)
	if !strings.Contains(text, "Timestamp\tID\tDigest\tModules\tSize") {
		t.Fatalf("expected tsv header, got %q", text)
	}
	if !strings.Contains(text, "2026-02-13T00:00:00Z\ta1\t0123456789ab\t12\t4096\t2\t512\t14.29\ttrue\t3840.00\t24.00") {
		t.Fatalf("expected tsv row, got %q", text)
	}
}

func TestRenderTrendYAML(t *testing.T) {
	out, err := RenderTrendYAML(sampleReport())
	if err != nil {
		t.Fatalf("render yaml: %v", err)
	}
	text := string(out)
	for _, want := range []string{"entry: ansible.modules.ping", "build_count: 1", "digest_changed: true"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in yaml output, got %q", want, text)
		}
	}
}
