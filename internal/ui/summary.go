package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// AppFailure is one application that failed to build. It mirrors the fields
// of build.AppResult the summary needs, to avoid an import cycle.
type AppFailure struct {
	Name    string
	AppRoot string
	Message string
}

// BuildSummary holds per-status application counts for one build run.
type BuildSummary struct {
	Built     int
	Extracted int
	Skipped   int
	Failures  []AppFailure
}

// Total returns how many applications the run looked at.
func (s *BuildSummary) Total() int {
	return s.Built + s.Extracted + s.Skipped + len(s.Failures)
}

// SummaryRenderer formats build summaries for terminal display.
type SummaryRenderer struct {
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
	pathStyle    lipgloss.Style
	mutedStyle   lipgloss.Style
}

// NewSummaryRenderer creates a new summary renderer with default styles.
func NewSummaryRenderer() *SummaryRenderer {
	return &SummaryRenderer{
		errorStyle:   lipgloss.NewStyle().Foreground(ColorError),
		successStyle: lipgloss.NewStyle().Foreground(ColorSuccess),
		pathStyle:    lipgloss.NewStyle().Foreground(ColorInfo),
		mutedStyle:   lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// RenderSummary generates a formatted build summary. It returns an empty
// string for a nil summary or one with no applications.
func RenderSummary(summary *BuildSummary) string {
	return NewSummaryRenderer().Render(summary)
}

// Render generates the formatted summary string.
func (r *SummaryRenderer) Render(summary *BuildSummary) string {
	if summary == nil || summary.Total() == 0 {
		return ""
	}

	var sb strings.Builder
	if len(summary.Failures) == 0 {
		sb.WriteString(r.successStyle.Render(fmt.Sprintf("%s %s", SymbolSuccess, r.counts(summary))))
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString(r.errorStyle.Render(fmt.Sprintf("%s %d of %d %s failed",
		SymbolFail, len(summary.Failures), summary.Total(), plural(summary.Total(), "application"))))
	sb.WriteString("\n")
	if c := r.counts(summary); c != "" {
		sb.WriteString("  ")
		sb.WriteString(r.mutedStyle.Render(c))
		sb.WriteString("\n")
	}

	for _, f := range summary.Failures {
		sb.WriteString("\n")
		name := f.Name
		if name == "" {
			name = "(default)"
		}
		sb.WriteString("  ")
		sb.WriteString(name)
		if f.AppRoot != "" {
			sb.WriteString(" ")
			sb.WriteString(r.pathStyle.Render(f.AppRoot))
		}
		sb.WriteString("\n")

		for _, line := range strings.Split(strings.TrimSpace(f.Message), "\n") {
			if line == "" {
				continue
			}
			sb.WriteString("    ")
			sb.WriteString(r.mutedStyle.Render(strings.TrimSpace(line)))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// counts lists the non-zero successful outcomes, e.g. "2 built, 1 extracted".
func (r *SummaryRenderer) counts(s *BuildSummary) string {
	var parts []string
	if s.Built > 0 {
		parts = append(parts, fmt.Sprintf("%d built", s.Built))
	}
	if s.Extracted > 0 {
		parts = append(parts, fmt.Sprintf("%d extracted", s.Extracted))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
