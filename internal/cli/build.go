package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/platformsh/platform-cli/internal/build"
	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/exec"
	"github.com/platformsh/platform-cli/internal/logger"
	"github.com/platformsh/platform-cli/internal/ui"
)

// BuildOptions holds the build command's flags.
type BuildOptions struct {
	AbsLinks    bool
	AbsLinksSet bool
	Environment string
	WorkingCopy bool
	Concurrency int
	NoCache     bool
	NoClean     bool
	NoArchive   bool
	JSON        bool

	// Runner overrides the process runner. Tests only.
	Runner exec.Runner
}

// BuildReportJSON is the --json form of a build report.
type BuildReportJSON struct {
	Environment string    `json:"environment"`
	Apps        []AppJSON `json:"apps"`
	Cleaned     bool      `json:"cleaned"`
	Removed     []string  `json:"removed,omitempty"`
}

// AppJSON is one application in BuildReportJSON.
type AppJSON struct {
	Name       string  `json:"name"`
	Toolstack  string  `json:"toolstack,omitempty"`
	Status     string  `json:"status"`
	BuildDir   string  `json:"build_dir,omitempty"`
	DocRoot    string  `json:"doc_root,omitempty"`
	TreeID     string  `json:"tree_id,omitempty"`
	Archive    string  `json:"archive,omitempty"`
	Seconds    float64 `json:"seconds"`
	Error      string  `json:"error,omitempty"`
	Suggestion string  `json:"suggestion,omitempty"`
}

// buildCommand builds the project found from --project or the working
// directory. It returns an error when any application failed.
func buildCommand(ctx context.Context, out io.Writer, opts BuildOptions) error {
	project, err := loadProject()
	if err != nil {
		return err
	}

	runner := opts.Runner
	if runner == nil {
		runner = exec.NewLocalRunner()
	}

	settings := applyBuildFlags(project.Config.Settings(), opts)
	settings.Verbosity = Verbosity()
	settings.EnvironmentID, err = environmentID(ctx, runner, project, opts.Environment)
	if err != nil {
		return err
	}

	progress := out
	if opts.JSON || settings.Verbosity == config.VerbosityQuiet {
		progress = io.Discard
	}

	b := build.New(build.Options{
		ProjectRoot: project.Root,
		Settings:    settings,
		Runner:      runner,
		Out:         progress,
		Logger:      logger.Default(),
	})
	report, buildErr := b.BuildProject(ctx)
	if report == nil {
		return buildErr
	}

	if opts.JSON {
		data := reportJSON(settings.EnvironmentID, report)
		if buildErr != nil {
			if err := WriteJSONFailure(out, buildErr, data); err != nil {
				return err
			}
			return buildErr
		}
		return WriteJSONSuccess(out, data)
	}
	if settings.Verbosity > config.VerbosityQuiet {
		if s := ui.RenderSummary(summarize(report)); s != "" {
			fmt.Fprintln(progress)
			fmt.Fprint(progress, s)
		}
	}
	return buildErr
}

// applyBuildFlags lets flags override the project's local defaults.
func applyBuildFlags(s config.BuildSettings, opts BuildOptions) config.BuildSettings {
	if opts.AbsLinksSet {
		s.AbsoluteLinks = opts.AbsLinks
	}
	if opts.Concurrency > 0 {
		s.DrushConcurrency = opts.Concurrency
	}
	s.DrushWorkingCopy = opts.WorkingCopy
	s.NoCache = opts.NoCache
	s.NoClean = opts.NoClean
	s.NoArchive = s.NoArchive || opts.NoArchive
	return s
}

func summarize(r *build.Report) *ui.BuildSummary {
	s := &ui.BuildSummary{
		Built:     r.Count(build.StatusBuilt),
		Extracted: r.Count(build.StatusExtracted),
		Skipped:   r.Count(build.StatusSkipped),
	}
	for _, app := range r.Failed() {
		f := ui.AppFailure{Name: app.Name, AppRoot: app.AppRoot}
		if app.Err != nil {
			f.Message = app.Err.Error()
		}
		s.Failures = append(s.Failures, f)
	}
	return s
}

func reportJSON(env string, r *build.Report) BuildReportJSON {
	out := BuildReportJSON{
		Environment: env,
		Apps:        make([]AppJSON, 0, len(r.Apps)),
		Cleaned:     r.Cleaned,
	}
	for _, app := range r.Apps {
		a := AppJSON{
			Name:      app.Name,
			Toolstack: app.Toolstack,
			Status:    string(app.Status),
			BuildDir:  app.BuildDir,
			DocRoot:   app.DocRoot,
			TreeID:    app.TreeID,
			Archive:   app.Archive,
			Seconds:   app.Duration.Seconds(),
		}
		if app.Err != nil {
			e := ErrorToJSON(app.Err)
			a.Error, a.Suggestion = e.Message, e.Suggestion
		}
		out.Apps = append(out.Apps, a)
	}
	out.Removed = append(out.Removed, r.Builds.Removed...)
	out.Removed = append(out.Removed, r.Archives.Removed...)
	return out
}
