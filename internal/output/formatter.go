// Package output formats the output of build tools (composer, drush) as it
// streams into the build's progress log.
package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/platformsh/platform-cli/internal/ui"
)

// Formatter processes command output lines for display.
type Formatter interface {
	// Name returns the formatter identifier.
	Name() string

	// ProcessLine transforms a single line of output.
	// ANSI codes should pass through unchanged.
	ProcessLine(line string) string
}

// GenericFormatter provides simple passthrough with error highlighting.
type GenericFormatter struct {
	errorStyle lipgloss.Style
}

// NewGenericFormatter creates a formatter with default error styling.
func NewGenericFormatter() *GenericFormatter {
	return &GenericFormatter{
		errorStyle: lipgloss.NewStyle().Foreground(ui.ColorError),
	}
}

// Name returns "generic".
func (f *GenericFormatter) Name() string {
	return "generic"
}

// ProcessLine highlights error lines in red.
func (f *GenericFormatter) ProcessLine(line string) string {
	if isErrorLine(line) {
		return f.errorStyle.Render(line)
	}
	return line
}

// isErrorLine checks if a line appears to be an error message.
func isErrorLine(line string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(line))

	errorPrefixes := []string{
		"error:",
		"error ",
		"fatal:",
		"fatal ",
		"php fatal error",
		"exception:",
	}
	for _, prefix := range errorPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}

	// Check for all-caps ERROR anywhere in the line
	return strings.Contains(line, "ERROR")
}

// ComposerFormatter dims package operations and highlights problems in
// composer install output.
type ComposerFormatter struct {
	GenericFormatter
	mutedStyle   lipgloss.Style
	warningStyle lipgloss.Style
}

// NewComposerFormatter creates a formatter for composer output.
func NewComposerFormatter() *ComposerFormatter {
	return &ComposerFormatter{
		GenericFormatter: *NewGenericFormatter(),
		mutedStyle:       ui.MutedStyle(),
		warningStyle:     ui.WarningStyle(),
	}
}

// Name returns "composer".
func (f *ComposerFormatter) Name() string {
	return "composer"
}

// ProcessLine styles one line of composer output.
func (f *ComposerFormatter) ProcessLine(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "- Installing"),
		strings.HasPrefix(trimmed, "- Downloading"),
		strings.HasPrefix(trimmed, "- Updating"),
		strings.HasPrefix(trimmed, "Loading from cache"):
		return f.mutedStyle.Render(line)
	case strings.HasPrefix(trimmed, "Problem "),
		strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "Exception]"):
		return f.errorStyle.Render(line)
	case strings.HasPrefix(trimmed, "Warning:"),
		strings.Contains(trimmed, "is abandoned"):
		return f.warningStyle.Render(line)
	}
	return f.GenericFormatter.ProcessLine(line)
}

// DrushFormatter colors drush log levels such as "[error]" and "[ok]".
type DrushFormatter struct {
	GenericFormatter
	warningStyle lipgloss.Style
	successStyle lipgloss.Style
}

// NewDrushFormatter creates a formatter for drush output.
func NewDrushFormatter() *DrushFormatter {
	return &DrushFormatter{
		GenericFormatter: *NewGenericFormatter(),
		warningStyle:     ui.WarningStyle(),
		successStyle:     ui.SuccessStyle(),
	}
}

// Name returns "drush".
func (f *DrushFormatter) Name() string {
	return "drush"
}

// ProcessLine styles one line of drush output by its trailing log level.
func (f *DrushFormatter) ProcessLine(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasSuffix(trimmed, "[error]"):
		return f.errorStyle.Render(line)
	case strings.HasSuffix(trimmed, "[warning]"):
		return f.warningStyle.Render(line)
	case strings.HasSuffix(trimmed, "[ok]"), strings.HasSuffix(trimmed, "[success]"):
		return f.successStyle.Render(line)
	}
	return f.GenericFormatter.ProcessLine(line)
}

// IndentFormatter prefixes every line after passing it through Inner, so
// tool output sits under the phase that started it.
type IndentFormatter struct {
	Inner  Formatter
	Prefix string
}

// Name returns the inner formatter's name.
func (f *IndentFormatter) Name() string {
	return f.Inner.Name()
}

// ProcessLine indents the processed line. Blank lines stay blank.
func (f *IndentFormatter) ProcessLine(line string) string {
	if strings.TrimSpace(line) == "" {
		return ""
	}
	return f.Prefix + f.Inner.ProcessLine(line)
}

// ForTool returns the formatter for the named executable.
func ForTool(name string) Formatter {
	switch name {
	case "composer":
		return NewComposerFormatter()
	case "drush":
		return NewDrushFormatter()
	default:
		return NewGenericFormatter()
	}
}
