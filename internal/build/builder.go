// Package build runs local builds of every application in a project
// checkout. For each application it resolves a toolstack, reuses a cached
// archive when the source tree is unchanged, and otherwise builds from
// scratch. It then links the result into the project's web root.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/platformsh/platform-cli/internal/archive"
	"github.com/platformsh/platform-cli/internal/clean"
	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/exec"
	"github.com/platformsh/platform-cli/internal/lock"
	"github.com/platformsh/platform-cli/internal/logger"
	"github.com/platformsh/platform-cli/internal/toolstack"
	"github.com/platformsh/platform-cli/internal/treeid"
	"github.com/platformsh/platform-cli/internal/ui"
	"github.com/spf13/afero"
)

// TimeFormat is the timestamp prefix of build directory names. Names sort in
// build order.
const TimeFormat = "2006-01-02--15-04-05"

// maxAppDepth bounds the search for nested applications.
const maxAppDepth = 3

// Fingerprinter computes the cache key for an application's source tree.
type Fingerprinter interface {
	Compute(ctx context.Context, appRoot string) (string, error)
}

// Options configures a Builder. Only ProjectRoot is required.
type Options struct {
	ProjectRoot string
	Settings    config.BuildSettings

	Registry *toolstack.Registry
	Runner   exec.Runner
	FS       afero.Fs
	Hasher   Fingerprinter

	// Out receives progress lines and the output of build tools.
	Out    io.Writer
	Logger logger.Logger

	Now func() time.Time

	// Command is recorded in the build lock for other builds to report.
	Command string
}

// Builder builds the applications of one project.
type Builder struct {
	opts    Options
	fs      afero.Fs
	log     logger.Logger
	display *ui.PhaseDisplay
	cache   *archive.Cache
}

// New creates a Builder, filling unset options with real implementations.
func New(opts Options) *Builder {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Runner == nil {
		opts.Runner = exec.NewLocalRunner()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Command == "" {
		opts.Command = "platform build"
	}
	opts.Logger = logger.OrDefault(opts.Logger)
	if opts.Registry == nil {
		opts.Registry = toolstack.Default(toolstack.Env{
			FS:     opts.FS,
			Runner: opts.Runner,
			Logger: opts.Logger,
			Out:    opts.Out,
		})
	}
	if opts.Hasher == nil {
		opts.Hasher = treeid.New(opts.Runner, opts.FS)
	}

	return &Builder{
		opts:    opts,
		fs:      opts.FS,
		log:     opts.Logger,
		display: ui.NewPhaseDisplay(opts.Out),
		cache: &archive.Cache{
			Dir: filepath.Join(opts.ProjectRoot, config.ArchiveDir),
			FS:  opts.FS,
			Now: opts.Now,
		},
	}
}

// BuildProject builds every application in the project's repository, then
// runs the retention sweeps unless NoClean is set. The returned error is
// non-nil if and only if at least one application failed; the report is
// returned either way.
func (b *Builder) BuildProject(ctx context.Context) (*Report, error) {
	root := b.opts.ProjectRoot
	if !filepath.IsAbs(root) {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("The project root must be an absolute path, got %q", root), "")
	}
	if b.opts.Settings.EnvironmentID == "" {
		return nil, errors.New(errors.ErrConfig,
			"No environment ID for the build",
			"Check out a branch in the repository, or pass --environment.")
	}
	repoRoot := filepath.Join(root, config.RepositoryDir)
	if ok, _ := afero.DirExists(b.fs, repoRoot); !ok {
		return nil, errors.New(errors.ErrConfig,
			"Repository not found: "+repoRoot,
			"The project folder must contain a 'repository' checkout.")
	}

	l, err := lock.Acquire(ctx, filepath.Join(root, config.LockFile), lock.Options{
		Timeout: b.opts.Settings.LockTimeout,
		Command: b.opts.Command,
		Logger:  b.log,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := l.Release(); err != nil {
			b.log.Warn("%v", err)
		}
	}()

	apps, err := b.Applications(repoRoot)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	multi := len(apps) > 1
	for _, appRoot := range apps {
		if ctx.Err() != nil {
			break
		}
		report.Apps = append(report.Apps, b.buildApp(ctx, appRoot, repoRoot, multi))
	}

	if !b.opts.Settings.NoClean && ctx.Err() == nil {
		b.sweep(report)
	}

	if failed := report.Failed(); len(failed) > 0 {
		errs := make([]error, 0, len(failed))
		for _, app := range failed {
			errs = append(errs, app.Err)
		}
		return report, &errors.Error{
			Code:    errors.ErrBuild,
			Message: fmt.Sprintf("%d of %d application(s) failed to build", len(failed), len(report.Apps)),
			Cause:   errors.Join(errs...),
		}
	}
	if err := ctx.Err(); err != nil {
		return report, errors.WrapWithCode(err, errors.ErrBuild, "Build cancelled", "")
	}
	return report, nil
}

// Applications lists the application roots in repoRoot: every directory up
// to three levels deep holding a .platform.app.yaml, or repoRoot itself when
// there are none.
func (b *Builder) Applications(repoRoot string) ([]string, error) {
	var apps []string
	err := afero.Walk(b.fs, repoRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == repoRoot {
				return err
			}
			return nil
		}
		if info.IsDir() {
			rel, _ := filepath.Rel(repoRoot, path)
			depth := 0
			if rel != "." {
				depth = strings.Count(rel, string(filepath.Separator)) + 1
			}
			switch {
			case depth > maxAppDepth:
				return filepath.SkipDir
			case info.Name() == ".git" || info.Name() == "vendor" || info.Name() == "node_modules":
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() == config.AppConfigFile {
			apps = append(apps, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't search for applications in "+repoRoot, "")
	}
	if len(apps) == 0 {
		return []string{repoRoot}, nil
	}
	sort.Strings(apps)
	return apps, nil
}

// AppName is the declared name, or the application's path inside the
// repository. An application at the repository root may have no name.
func AppName(cfg *config.AppConfig, appRoot, repoRoot string) string {
	if cfg != nil && cfg.Name != "" {
		return cfg.Name
	}
	rel, err := filepath.Rel(repoRoot, appRoot)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// BuildName names a build directory.
func BuildName(now time.Time, environmentID, appName string) string {
	name := now.Format(TimeFormat) + "--" + environmentID
	if appName != "" {
		name += "--" + appName
	}
	return strings.ReplaceAll(name, "/", "-")
}

func (b *Builder) buildApp(ctx context.Context, appRoot, repoRoot string, multi bool) AppResult {
	start := b.opts.Now()
	res := AppResult{AppRoot: appRoot}
	done := func(status Status, err error) AppResult {
		res.Status = status
		res.Err = err
		res.Duration = b.opts.Now().Sub(start)
		return res
	}
	fail := func(stage string, err error) AppResult {
		res = done(StatusFailed, stageError(stage, res.Name, err))
		b.display.RenderFailed(label("Build failed", res.Name, "for"), res.Duration, res.Err)
		return res
	}

	cfg, err := config.LoadApp(appRoot)
	if err != nil {
		return fail("read the configuration of", err)
	}
	res.Name = AppName(cfg, appRoot, repoRoot)

	ts, err := b.opts.Registry.Resolve(appRoot, cfg.Toolstack)
	if err != nil {
		return fail("resolve the toolstack of", err)
	}
	if ts == nil {
		b.display.RenderSkipped("Could not detect toolstack for directory: "+appRoot, "skipped")
		b.log.Warn("no toolstack detected for %s", appRoot)
		return done(StatusSkipped, nil)
	}
	res.Toolstack = ts.Key()

	settings := b.opts.Settings
	var suffix, docRoot string
	if multi {
		suffix = res.Name
		docRoot = filepath.Join(b.opts.ProjectRoot, config.WebRootDir, strings.ReplaceAll(res.Name, "/", "-"))
	} else {
		docRoot = filepath.Join(b.opts.ProjectRoot, config.WebRootDir)
	}
	res.DocRoot = docRoot
	buildDir := filepath.Join(b.opts.ProjectRoot, config.BuildsDir, BuildName(start, settings.EnvironmentID, suffix))

	err = ts.Prepare(toolstack.Paths{
		AppRoot:     appRoot,
		ProjectRoot: b.opts.ProjectRoot,
		BuildDir:    buildDir,
	}, settings)
	if err != nil {
		return fail("prepare", err)
	}

	useCache := !settings.NoArchive && ts.Archivable()
	if useCache {
		id, err := b.opts.Hasher.Compute(ctx, appRoot)
		if err != nil {
			b.log.Debug("no tree ID for %s, building without the archive cache: %v", appRoot, err)
		} else {
			res.TreeID = id
			if settings.Verbosity >= config.VerbosityVerbose {
				b.display.RenderSubStatus(ui.SymbolPending, "Tree ID:", id)
			}
		}
	}

	status := StatusBuilt
	if res.TreeID != "" {
		if p, ok := b.cache.Lookup(res.TreeID); ok {
			b.display.RenderStep(label("Extracting archive", res.Name, "for application"))
			if err := b.fs.MkdirAll(filepath.Dir(buildDir), 0755); err != nil {
				return fail("create the build directory of", err)
			}
			if err := b.cache.Restore(res.TreeID, buildDir); err != nil {
				b.display.RenderWarning("Couldn't extract the archive, building instead")
				b.log.Warn("%v", err)
			} else {
				status = StatusExtracted
				res.Archive = p
			}
		}
	}

	if status == StatusBuilt {
		b.display.RenderStep(label("Building application", res.Name) + " using the toolstack " + ts.Key())
		if err := b.fs.MkdirAll(filepath.Dir(buildDir), 0755); err != nil {
			return fail("create the build directory of", err)
		}
		if err := ts.Build(ctx); err != nil {
			return fail("build", err)
		}
		if res.TreeID != "" && ts.Archivable() {
			if settings.Verbosity >= config.VerbosityVerbose {
				b.display.RenderSubStatus(ui.SymbolPending, "Saving archive to:", b.cache.Path(res.TreeID))
			}
			if p, err := b.cache.Save(ts.BuildDir(), res.TreeID); err != nil {
				b.display.RenderWarning("Couldn't save the build archive; the build is still usable")
				b.log.Warn("%v", err)
			} else {
				res.Archive = p
			}
		}
	}
	res.BuildDir = ts.BuildDir()

	if settings.Verbosity >= config.VerbosityVerbose {
		b.display.RenderStep("Installing...")
	}
	if multi {
		if err := b.webRootDir(); err != nil {
			return fail("install", err)
		}
	}
	if err := ts.Install(ctx, docRoot); err != nil {
		return fail("install", err)
	}

	b.warnAboutHooks(cfg)

	res = done(status, nil)
	b.display.RenderSuccess(label("Build complete", res.Name, "for"), res.Duration)
	if settings.Verbosity >= config.VerbosityVerbose {
		b.display.RenderSubStatus(ui.SymbolComplete, "The application has been symlinked to:", docRoot)
	}
	return res
}

// webRootDir makes www a real directory holding one link per application.
func (b *Builder) webRootDir() error {
	www := filepath.Join(b.opts.ProjectRoot, config.WebRootDir)
	if lst, ok := b.fs.(afero.Lstater); ok {
		if info, _, err := lst.LstatIfPossible(www); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if err := b.fs.Remove(www); err != nil {
				return errors.WrapWithCode(err, errors.ErrInstall, "Couldn't replace "+www, "")
			}
		}
	}
	if err := b.fs.MkdirAll(www, 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrInstall, "Couldn't create "+www, "")
	}
	return nil
}

// warnAboutHooks prints hooks that only run on the platform.
func (b *Builder) warnAboutHooks(cfg *config.AppConfig) {
	if cfg.Hooks.Build.Empty() {
		return
	}
	const indent = "        "
	b.display.RenderWarning("You have defined the following hook(s). The CLI cannot run them locally.")
	for _, hook := range []struct {
		name  string
		lines config.StringList
	}{
		{"build", cfg.Hooks.Build},
		{"deploy", cfg.Hooks.Deploy},
	} {
		if hook.lines.Empty() {
			continue
		}
		trimmed := make([]string, 0, len(hook.lines))
		for _, l := range hook.lines {
			trimmed = append(trimmed, strings.TrimSpace(l))
		}
		body := strings.Join(trimmed, "\n")
		fmt.Fprintf(b.opts.Out, "    %s: |\n%s%s\n", hook.name, indent, strings.ReplaceAll(body, "\n", "\n"+indent))
	}
}

// sweep prunes old builds and expired archives. Failures are warnings.
func (b *Builder) sweep(report *Report) {
	s := b.opts.Settings
	b.display.RenderStep("Cleaning up...")

	// Never prune a build made by this run.
	keep := s.KeepBuilds
	if made := report.Count(StatusBuilt) + report.Count(StatusExtracted); made > keep {
		keep = made
	}

	sweeper := &clean.Sweeper{FS: b.fs, Logger: b.log}
	var err error
	report.Builds, err = sweeper.Builds(filepath.Join(b.opts.ProjectRoot, config.BuildsDir), keep)
	if err != nil {
		b.log.Warn("cleaning builds: %v", err)
	}
	report.Archives, err = sweeper.Archives(b.cache.Dir, s.ArchiveTTL, b.opts.Now())
	if err != nil {
		b.log.Warn("cleaning archives: %v", err)
	}
	report.Cleaned = true
}

// stageError names the application and the failing stage. The cause's error
// code is kept so callers can still classify it.
func stageError(stage, name string, err error) error {
	code := errors.ErrBuild
	var e *errors.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	what := "the application"
	if name != "" {
		what = "application '" + name + "'"
	}
	return errors.WrapWithCode(err, code, fmt.Sprintf("Failed to %s %s", stage, what), "")
}

// label appends an application name to msg: "Build complete for app".
func label(msg, name string, preposition ...string) string {
	if name == "" {
		return msg
	}
	if len(preposition) > 0 {
		return msg + " " + preposition[0] + " " + name
	}
	return msg + " " + name
}
