package doctor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/platformsh/platform-cli/internal/archive"
	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/exec"
	"github.com/platformsh/platform-cli/internal/lock"
	"github.com/platformsh/platform-cli/internal/vcs"
	"github.com/spf13/afero"
)

// gitTimeout bounds the repository probe.
const gitTimeout = 10 * time.Second

// ProjectConfigCheck verifies that the project config loads and validates.
type ProjectConfigCheck struct {
	Root string
}

func (c *ProjectConfigCheck) Name() string     { return "project_config" }
func (c *ProjectConfigCheck) Category() string { return CategoryProject }

func (c *ProjectConfigCheck) Run() CheckResult {
	if c.Root == "" {
		return CheckResult{
			Status:     StatusFail,
			Message:    "Not inside a project folder",
			Suggestion: "Change into a directory created by 'platform get', or pass --project.",
		}
	}

	_, err := config.LoadProjectConfig(filepath.Join(c.Root, config.ProjectConfigFile))
	if err != nil {
		r := CheckResult{Status: StatusFail, Message: err.Error()}
		var e *errors.Error
		if errors.As(err, &e) {
			r.Message = e.Message
			r.Suggestion = e.Suggestion
		}
		return r
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("Project config: %s", c.Root),
	}
}

func (c *ProjectConfigCheck) Fix() error { return nil }

// RepositoryCheck verifies that the project has a git checkout. Without
// git the archive cache can't compute tree IDs.
type RepositoryCheck struct {
	Root   string
	FS     afero.Fs
	Runner exec.Runner
}

func (c *RepositoryCheck) Name() string     { return "repository" }
func (c *RepositoryCheck) Category() string { return CategoryProject }

func (c *RepositoryCheck) Run() CheckResult {
	dir := filepath.Join(c.Root, config.RepositoryDir)
	if ok, _ := afero.DirExists(c.FS, dir); !ok {
		return CheckResult{
			Status:     StatusFail,
			Message:    "Repository not found: " + dir,
			Suggestion: "The project folder must contain a 'repository' checkout.",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()
	if !vcs.New(c.Runner).IsRepository(ctx, dir) {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "Repository is not a git checkout",
			Suggestion: "Build archives are disabled without git; every build starts from scratch.",
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: "Repository: " + dir,
	}
}

func (c *RepositoryCheck) Fix() error { return nil }

// DirectoriesCheck verifies the builds and shared directories exist.
type DirectoriesCheck struct {
	Root string
	FS   afero.Fs
}

func (c *DirectoriesCheck) Name() string     { return "directories" }
func (c *DirectoriesCheck) Category() string { return CategoryProject }

func (c *DirectoriesCheck) missing() []string {
	var missing []string
	for _, name := range []string{config.BuildsDir, config.SharedDir} {
		if ok, _ := afero.DirExists(c.FS, filepath.Join(c.Root, name)); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func (c *DirectoriesCheck) Run() CheckResult {
	if missing := c.missing(); len(missing) > 0 {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Missing directories: %v", missing),
			Suggestion: "Run 'platform doctor --fix' to create them.",
			Fixable:    true,
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: "builds/ and shared/ present",
	}
}

// Fix creates the missing directories.
func (c *DirectoriesCheck) Fix() error {
	for _, name := range c.missing() {
		if err := c.FS.MkdirAll(filepath.Join(c.Root, name), 0755); err != nil {
			return err
		}
	}
	return nil
}

// LockCheck reports a build currently holding the project lock.
type LockCheck struct {
	Root string
}

func (c *LockCheck) Name() string     { return "build_lock" }
func (c *LockCheck) Category() string { return CategoryBuild }

func (c *LockCheck) Run() CheckResult {
	path := filepath.Join(c.Root, config.LockFile)
	l, err := lock.TryAcquire(path, "platform doctor")
	if errors.Is(err, lock.ErrLocked) {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "A build is running: " + lock.Holder(path),
			Suggestion: "New builds will wait for it to finish.",
		}
	}
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    "Can't take the build lock",
			Suggestion: err.Error(),
		}
	}
	_ = l.Release()
	return CheckResult{
		Status:  StatusPass,
		Message: "No build running",
	}
}

func (c *LockCheck) Fix() error { return nil }

// ArchiveCacheCheck reports how much disk the build archives use.
type ArchiveCacheCheck struct {
	Root string
	FS   afero.Fs
}

func (c *ArchiveCacheCheck) Name() string     { return "archive_cache" }
func (c *ArchiveCacheCheck) Category() string { return CategoryBuild }

func (c *ArchiveCacheCheck) Run() CheckResult {
	cache := &archive.Cache{Dir: filepath.Join(c.Root, config.ArchiveDir), FS: c.FS}
	entries, err := cache.List()
	if err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "Can't read the archive cache",
			Suggestion: err.Error(),
		}
	}

	var total uint64
	for _, e := range entries {
		total += uint64(e.Size)
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d build archive%s (%s)", len(entries), pluralize(len(entries)), humanize.Bytes(total)),
	}
}

func (c *ArchiveCacheCheck) Fix() error { return nil }

// ProjectChecks returns the checks for a project folder. root may be empty
// when no project was found.
func ProjectChecks(root string, fs afero.Fs, runner exec.Runner) []Check {
	checks := []Check{&ProjectConfigCheck{Root: root}}
	if root == "" {
		return checks
	}
	return append(checks,
		&RepositoryCheck{Root: root, FS: fs, Runner: runner},
		&DirectoriesCheck{Root: root, FS: fs},
		&LockCheck{Root: root},
		&ArchiveCacheCheck{Root: root, FS: fs},
	)
}
