package report

import (
	"fmt"
	"strings"
	"time"

	"modpack/internal/core/app"
	"modpack/internal/engine/archive"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// RenderSummary describes one assembly for the terminal. verbose adds the
// full module list.
func RenderSummary(asm *app.Assembly, verbose bool) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(asm.Entry))
	b.WriteString(" ")
	b.WriteString(successStyle.Render("✓"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  archive   %s\n", asm.Output))
	b.WriteString(fmt.Sprintf("  modules   %d\n", len(asm.Modules)))
	b.WriteString(fmt.Sprintf("  size      %s\n", humanBytes(asm.Summary.Size)))
	b.WriteString(fmt.Sprintf("  digest    %s\n", shortDigest(asm.Summary.Digest)))
	b.WriteString(fmt.Sprintf("  date_time %s\n", asm.Summary.DateTime))
	if asm.ID != "" {
		b.WriteString(fmt.Sprintf("  history   %s\n", asm.ID))
	}

	if len(asm.DroppedOptional) > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  %d optional imports not found", len(asm.DroppedOptional))))
		b.WriteString("\n")
		for _, name := range asm.DroppedOptional {
			b.WriteString(fmt.Sprintf("    - %s\n", name))
		}
	}
	if len(asm.Ignored) > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  %d references under unknown roots", len(asm.Ignored))))
		b.WriteString("\n")
		for _, name := range asm.Ignored {
			b.WriteString(fmt.Sprintf("    - %s\n", name))
		}
	}

	if verbose {
		for _, m := range asm.Modules {
			line := "    " + m.ArchivePath
			if m.Redirected {
				line += " " + statusStyle.Render("(redirect)")
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString(statusStyle.Render(fmt.Sprintf("  assembled in %s", asm.Duration.Round(time.Millisecond))))
	b.WriteString("\n")
	return b.String()
}

// RenderFailure describes a failed assembly.
func RenderFailure(script string, err error) string {
	return failureStyle.Render("✗ "+script) + "\n  " + err.Error() + "\n"
}

// RenderEntries lists the records of an existing archive.
func RenderEntries(path string, entries []archive.EntryInfo) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(path))
	b.WriteString("\n")
	var total uint64
	for _, e := range entries {
		total += e.Size
		b.WriteString(fmt.Sprintf("  %8d  %s  %s\n", e.Size, e.Modified.UTC().Format("2006-01-02 15:04:05"), e.Name))
	}
	b.WriteString(statusStyle.Render(fmt.Sprintf("  %d entries, %s uncompressed", len(entries), humanBytes(int64(total)))))
	b.WriteString("\n")
	return b.String()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
