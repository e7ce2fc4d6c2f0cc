package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/platformsh/platform-cli/internal/build"
	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/doctor"
	"github.com/platformsh/platform-cli/internal/exec"
	"github.com/platformsh/platform-cli/internal/toolstack"
	"github.com/platformsh/platform-cli/internal/ui"
	"github.com/spf13/afero"
)

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

// doctorCommand implements the doctor command logic.
func doctorCommand(out io.Writer, fix, jsonOut bool) error {
	// A missing project is reported by the checks, not returned.
	root, _ := config.FindProjectRoot(projectFlag)

	checks := collectChecks(root, afero.NewOsFs(), exec.NewLocalRunner())
	results := doctor.RunAllParallel(checks)

	if fix {
		// Failed fixes leave their result unchanged, which already reports the issue.
		results, _ = doctor.FixAll(checks, results)
	}

	if jsonOut {
		return WriteJSONSuccess(out, doctorOutput(results))
	}
	outputDoctorText(out, results, fix)
	return nil
}

// collectChecks gathers the project checks and one check per build tool.
// Tools needed by the project's applications fail when missing.
func collectChecks(root string, fs afero.Fs, runner exec.Runner) []doctor.Check {
	checks := doctor.ProjectChecks(root, fs, runner)

	var required []string
	if root != "" {
		repo := filepath.Join(root, config.RepositoryDir)
		if apps, err := build.New(build.Options{ProjectRoot: root, FS: fs, Runner: runner}).Applications(repo); err == nil {
			reg := toolstack.Default(toolstack.Env{FS: fs, Runner: runner})
			required = doctor.RequiredTools(reg, apps)
		}
	}
	return append(checks, doctor.NewToolChecks(runner, required)...)
}

func doctorOutput(results []doctor.CheckResult) DoctorOutput {
	grouped := make(map[string][]doctor.CheckResult)
	categoryOrder := []string{}
	for _, r := range results {
		if _, exists := grouped[r.Category]; !exists {
			categoryOrder = append(categoryOrder, r.Category)
		}
		grouped[r.Category] = append(grouped[r.Category], r)
	}

	output := DoctorOutput{Categories: make([]CategoryOutput, 0, len(categoryOrder))}
	for _, cat := range categoryOrder {
		output.Categories = append(output.Categories, CategoryOutput{
			Name:    cat,
			Results: grouped[cat],
		})
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Fixable:  doctor.FixableCount(results),
		AllClear: !doctor.HasIssues(results),
	}
	return output
}

// outputDoctorText outputs results in human-readable format.
func outputDoctorText(out io.Writer, results []doctor.CheckResult, fixed bool) {
	successStyle := ui.SuccessStyle()
	errorStyle := ui.ErrorStyle()
	mutedStyle := ui.MutedStyle()
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("Local build diagnostics"))
	fmt.Fprintln(out)

	// Categories render in the order their first check ran.
	fmt.Fprint(out, ui.RenderDoctorTable(doctor.Rows(results)))
	ui.NewPhaseDisplay(out).Divider()

	if !doctor.HasIssues(results) {
		fmt.Fprintf(out, "%s %s\n", successStyle.Render(ui.SymbolSuccess), doctor.Summary(results))
	} else {
		fmt.Fprintf(out, "%s %s\n", errorStyle.Render(ui.SymbolFail), doctor.Summary(results))

		if doctor.FixableCount(results) > 0 && !fixed {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  Run with %s to attempt automatic fixes where possible.\n",
				mutedStyle.Render("--fix"))
		}
	}
	fmt.Fprintln(out)
}
