package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"contmon/internal/collector"
)

// PrintSection prints a section header
func PrintSection(w io.Writer, title string) {
	fmt.Fprintln(w, RenderSectionStart(title))
}

// PrintSectionEnd prints a section footer
func PrintSectionEnd(w io.Writer) {
	fmt.Fprintln(w, RenderSectionEnd())
}

// PrintStatus prints a status message
func PrintStatus(w io.Writer, status, message string) {
	fmt.Fprintln(w, RenderStatus(status, message))
}

// CreateList renders key-value pairs sorted by key.
func CreateList(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(RenderKeyValue(k, data[k]))
		b.WriteString("\n")
	}
	return b.String()
}

// ReportSummary renders the cycle counters of r.
func ReportSummary(r *collector.Report) string {
	data := map[string]string{
		"Cycle":        fmt.Sprintf("#%d", r.Cycle),
		"Duration":     r.Duration.String(),
		"Listed":       fmt.Sprintf("%d", r.Listed),
		"In scope":     fmt.Sprintf("%d (%d running, %d not running)", r.InScope, r.Running, r.NotRunning),
		"Fetch errors": fmt.Sprintf("%d", r.FetchErrors),
		"Tracked":      fmt.Sprintf("%d (%d pruned)", r.Tracked, r.Pruned),
	}
	if !r.StartedAt.IsZero() {
		data["Started"] = r.StartedAt.Local().Format("2006-01-02 15:04:05")
	}
	return CreateList(data)
}

var containerColumns = []string{"NAME", "IMAGE", "CPU", "MEMORY", "NET RX/TX", "BLOCK R/W", "PIDS"}

// ContainerTable renders one row per container of a cycle, in report order.
func ContainerTable(rows []collector.ContainerReport) string {
	cells := make([][]string, 0, len(rows)+1)
	cells = append(cells, containerColumns)
	for _, r := range rows {
		cells = append(cells, []string{
			truncateString(r.Name, 24),
			truncateString(r.Image, 28),
			fmt.Sprintf("%.1f%%", r.Usage.CPUPercent),
			RenderProgressBar(r.Usage.MemoryPercent, 8) + " " +
				fmt.Sprintf("%s / %s (%.1f%%)", FormatBytes(r.Usage.MemoryUsedBytes), FormatBytes(r.Usage.MemoryLimitBytes), r.Usage.MemoryPercent),
			FormatBytes(r.NetRxDelta) + " / " + FormatBytes(r.NetTxDelta),
			FormatBytes(r.BlockReadDelta) + " / " + FormatBytes(r.BlockWriteDelta),
			fmt.Sprintf("%d", r.Usage.ProcessCount),
		})
	}

	widths := make([]int, len(containerColumns))
	for _, row := range cells {
		for i, c := range row {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	var b strings.Builder
	for n, row := range cells {
		b.WriteString(" ")
		for i, c := range row {
			cell := lipgloss.NewStyle().Width(widths[i] + 2).Render(c)
			if n == 0 {
				cell = HeaderCellStyle.Width(widths[i] + 2).Render(c)
			}
			b.WriteString(cell)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
