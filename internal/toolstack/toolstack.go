// Package toolstack holds the per-framework build strategies. A Registry
// picks one for an application, either from the key declared in
// .platform.app.yaml or by detection.
package toolstack

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/exec"
	"github.com/platformsh/platform-cli/internal/fsutil"
	"github.com/platformsh/platform-cli/internal/logger"
	"github.com/platformsh/platform-cli/internal/output"
	"github.com/platformsh/platform-cli/internal/require"
	"github.com/platformsh/platform-cli/internal/vcs"
	"github.com/spf13/afero"
)

// Toolstack builds and installs one application.
type Toolstack interface {
	// Key is the identifier used in .platform.app.yaml, e.g. "php:drupal".
	Key() string

	// Detect reports whether appRoot looks like this toolstack. It only reads.
	Detect(appRoot string) bool

	// Prepare records paths and settings. It validates but never writes.
	Prepare(paths Paths, settings config.BuildSettings) error

	// Build produces the build output in BuildDir.
	Build(ctx context.Context) error

	// Install wires the build into docRoot and materializes local settings.
	Install(ctx context.Context, docRoot string) error

	// BuildDir is where the build output lives. Some modes build in place,
	// so this may differ from Paths.BuildDir after Build.
	BuildDir() string

	// Archivable reports whether the build output may be cached.
	Archivable() bool

	// Requirements lists executables the toolstack shells out to.
	Requirements() []string
}

// Paths locates one application build.
type Paths struct {
	AppRoot     string
	ProjectRoot string
	BuildDir    string
}

// SharedDir holds files that persist across builds.
func (p Paths) SharedDir() string { return filepath.Join(p.ProjectRoot, config.SharedDir) }

// RepositoryDir is the project's git checkout.
func (p Paths) RepositoryDir() string { return filepath.Join(p.ProjectRoot, config.RepositoryDir) }

// Env carries the collaborators a toolstack needs. Zero values fall back to
// the real filesystem, local processes and the default logger.
type Env struct {
	FS     afero.Fs
	Runner exec.Runner
	Logger logger.Logger

	// Out receives the output of package managers. Nil discards it.
	Out io.Writer

	// Tools checks build tools are installed. Share one between
	// toolstacks so each tool is looked up once per run.
	Tools *require.Checker
}

func (e Env) withDefaults() Env {
	if e.FS == nil {
		e.FS = afero.NewOsFs()
	}
	if e.Runner == nil {
		e.Runner = exec.NewLocalRunner()
	}
	e.Logger = logger.OrDefault(e.Logger)
	if e.Out == nil {
		e.Out = io.Discard
	}
	if e.Tools == nil {
		e.Tools = require.NewChecker(e.Runner)
	}
	return e
}

// Base holds the state shared by every toolstack.
type Base struct {
	env      Env
	fs       *fsutil.Helper
	git      *vcs.Git
	paths    Paths
	settings config.BuildSettings

	buildDir     string
	preventCache bool
}

func newBase(env Env) Base {
	env = env.withDefaults()
	return Base{
		env: env,
		fs:  fsutil.New(env.FS),
		git: vcs.New(env.Runner),
	}
}

// Prepare implements Toolstack.
func (b *Base) Prepare(paths Paths, settings config.BuildSettings) error {
	for _, p := range []struct{ name, path string }{
		{"application root", paths.AppRoot},
		{"project root", paths.ProjectRoot},
		{"build directory", paths.BuildDir},
	} {
		if !filepath.IsAbs(p.path) {
			return errors.New(errors.ErrBuild,
				fmt.Sprintf("The %s must be an absolute path, got %q", p.name, p.path),
				"")
		}
	}
	if !b.fs.IsDir(paths.AppRoot) {
		return errors.New(errors.ErrBuild,
			"Application directory not found: "+paths.AppRoot,
			"")
	}
	if !b.fs.IsDir(paths.ProjectRoot) {
		return errors.New(errors.ErrBuild,
			"Project directory not found: "+paths.ProjectRoot,
			"")
	}

	b.paths = paths
	b.settings = settings
	b.buildDir = paths.BuildDir
	b.preventCache = false
	b.fs.RelativeLinks = !settings.AbsoluteLinks
	return nil
}

// BuildDir implements Toolstack.
func (b *Base) BuildDir() string {
	return b.buildDir
}

// Archivable implements Toolstack.
func (b *Base) Archivable() bool {
	return !b.preventCache
}

// Settings returns the settings recorded by Prepare.
func (b *Base) Settings() config.BuildSettings {
	return b.settings
}

// requireTools checks that every named executable is on PATH.
func (b *Base) requireTools(tools ...string) error {
	missing := require.FilterMissing(b.env.Tools.CheckAll(tools))
	if len(missing) == 0 {
		return nil
	}
	if len(missing) > 1 {
		return errors.New(errors.ErrBuild,
			"Tools required for this build were not found: "+require.FormatMissing(missing),
			"Install them and make sure they are on your PATH, or run 'platform doctor'.")
	}

	tool := missing[0].Name
	suggestion := fmt.Sprintf("Install '%s' and make sure it is on your PATH.", tool)
	if hint, ok := exec.Hint(tool); ok {
		suggestion = hint.Install
	}
	return errors.New(errors.ErrBuild,
		fmt.Sprintf("'%s' is required for this build but was not found", tool),
		suggestion)
}

// run executes an external build tool, streaming its output.
func (b *Base) run(ctx context.Context, dir, name string, args ...string) error {
	b.env.Logger.Debug("running %s in %s", exec.Command{Name: name, Args: args}, dir)
	stream := output.NewToolStream(b.env.Out, name)
	err := b.env.Runner.Run(ctx, exec.Command{
		Name:   name,
		Args:   args,
		Dir:    dir,
		Stdout: stream.Stdout(),
		Stderr: stream.Stderr(),
	})
	_ = stream.Flush()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrBuild,
			fmt.Sprintf("%s failed", name),
			fmt.Sprintf("Check the %s output above, or run it by hand in %s.", name, dir))
	}
	return nil
}

// copyApp copies the application into the build directory, leaving out
// platform metadata.
func (b *Base) copyApp() error {
	if err := b.env.FS.MkdirAll(b.buildDir, 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrBuild,
			"Couldn't create build directory "+b.buildDir,
			"Check permissions on the builds directory.")
	}
	if err := b.fs.CopyAll(b.paths.AppRoot, b.buildDir, ".platform"); err != nil {
		return errors.WrapWithCode(err, errors.ErrBuild,
			"Couldn't copy the application into the build directory",
			"")
	}
	return nil
}

// linkWebRoot points docRoot at the build directory.
func (b *Base) linkWebRoot(docRoot string) error {
	if err := b.fs.SymlinkDir(b.buildDir, docRoot); err != nil {
		if errors.IsCode(err, errors.ErrInstall) {
			return err
		}
		return errors.WrapWithCode(err, errors.ErrInstall,
			"Couldn't link the web root "+docRoot,
			"")
	}
	return nil
}

// writeResource materializes an embedded template at dst unless dst exists.
func (b *Base) writeResource(name, dst string) error {
	data, err := resource(name)
	if err != nil {
		return err
	}
	written, err := b.fs.WriteIfMissing(dst, data, 0644)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrInstall,
			"Couldn't create "+dst,
			"")
	}
	if written {
		b.env.Logger.Debug("created %s from %s", dst, name)
	}
	return nil
}
