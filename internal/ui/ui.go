// Package ui renders notices and tables for the terminal. It is the only
// place that styles output; everything upstream works with plain data.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/campusops/gradeport/internal/grades"
)

var (
	noteStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

// Note renders a yellow NOTE banner above the message.
func Note(message string) string {
	return "\n" + noteStyle.Render("NOTE") + "\n" + message + "\n"
}

// Warning renders a red WARNING banner above the message.
func Warning(message string) string {
	return "\n" + warningStyle.Render("WARNING") + "\n" + message + "\n"
}

// Success renders a bold green confirmation line.
func Success(message string) string {
	return successStyle.Render(message)
}

// Table renders headers and rows with a rounded border.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

// RenderNotice formats one collected notice, table included.
func RenderNotice(n grades.Notice) string {
	var b strings.Builder
	if n.Level == grades.LevelWarning {
		b.WriteString(Warning(n.Message))
	} else {
		b.WriteString(Note(n.Message))
	}
	if len(n.Rows) > 0 {
		b.WriteString(Table(n.Header, n.Rows))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderNotices formats the end-of-run summary.
func RenderNotices(notices []grades.Notice) string {
	var b strings.Builder
	for _, n := range notices {
		b.WriteString(RenderNotice(n))
	}
	return b.String()
}
