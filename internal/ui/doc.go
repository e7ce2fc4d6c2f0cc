// Package ui renders the build pipeline's terminal output.
//
// Everything writes to an io.Writer passed in by the caller so that commands
// can be tested against a bytes.Buffer. Colors come from Lip Gloss and are
// plain ANSI codes; DisableColors switches to monochrome for --no-color and
// for output that is not a terminal.
//
// # Components
//
//	PhaseDisplay  - step, success, failure and warning lines for a build
//	Spinner       - animated indicator for long-running steps on a TTY
//	BuildSummary  - the end-of-run tally of built, extracted and failed apps
//	Table         - simple tables for `builds` and `doctor`
//
// A typical build renders:
//
//	pd := ui.NewPhaseDisplay(os.Stdout)
//	pd.RenderStep("Building application app using the toolstack php:drupal")
//	pd.RenderSuccess("Build complete for app", elapsed)
package ui
