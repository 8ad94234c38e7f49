package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	taskStyle      = lipgloss.NewStyle().Bold(true).Width(16)
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	succeededStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
)

func stateStyle(s TaskState) lipgloss.Style {
	switch s {
	case TaskSucceeded:
		return succeededStyle
	case TaskFailed:
		return failedStyle
	default:
		return runningStyle
	}
}

// Render formats a snapshot as a short multi-line report.
func Render(snap Snapshot) string {
	totals := snap.Totals()
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("blocks %d/%d", totals.Done+totals.Skipped, totals.Total())))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  workers %d (idle %d)  rate %.2f/s  eta %s",
		snap.Workers, snap.Idle, snap.Rate, FormatETA(snap.ETA))))
	for _, ts := range snap.Tasks {
		c := ts.Counts
		b.WriteString("\n  ")
		b.WriteString(taskStyle.Render(ts.TaskID))
		b.WriteString(stateStyle(ts.State).Render(fmt.Sprintf("%-9s", ts.State)))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" pending %d  ready %d  running %d  done %d  skipped %d  failed %d",
			c.Pending, c.Ready, c.Assigned+c.Running, c.Done, c.Skipped, c.Failed)))
	}
	return b.String()
}
