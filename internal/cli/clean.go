package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/platformsh/platform-cli/internal/clean"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/lock"
	"github.com/platformsh/platform-cli/internal/logger"
	"github.com/platformsh/platform-cli/internal/ui"
	"github.com/platformsh/platform-cli/internal/util"
	"github.com/spf13/afero"
)

// CleanOptions holds options for the clean command.
type CleanOptions struct {
	Keep     int           // Builds to keep
	Archives bool          // Also sweep the archive cache
	TTL      time.Duration // Archive lifetime; negative uses the project default
	DryRun   bool          // Show what would be removed without deleting
	Yes      bool          // Skip the confirmation prompt

	// Confirm asks the user to go ahead. Nil prompts on a terminal.
	Confirm func(title string) (bool, error)
}

// cleanCommand removes old builds, and expired archives with --archives.
func cleanCommand(out io.Writer, opts CleanOptions) error {
	if opts.Keep < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("--keep can't be negative (got %d)", opts.Keep),
			"Use --keep 0 to remove every build.")
	}

	project, err := loadProject()
	if err != nil {
		return err
	}

	l, err := lock.TryAcquire(project.LockPath(), "platform clean")
	if errors.Is(err, lock.ErrLocked) {
		return errors.New(errors.ErrLock,
			"A build is running: "+lock.Holder(project.LockPath()),
			"Wait for it to finish and try again.")
	}
	if err != nil {
		return err
	}
	defer l.Release()

	ttl := opts.TTL
	if ttl < 0 {
		ttl = project.Config.Local.ArchiveTTL
	}
	now := time.Now()
	fs := afero.NewOsFs()

	sweep := func(dryRun bool) (clean.Result, clean.Result, error) {
		s := &clean.Sweeper{FS: fs, Logger: logger.Default(), DryRun: dryRun}
		builds, err := s.Builds(project.BuildsDir(), opts.Keep)
		var archives clean.Result
		if opts.Archives {
			var archErr error
			archives, archErr = s.Archives(project.ArchiveDir(), ttl, now)
			err = errors.Join(err, archErr)
		}
		return builds, archives, err
	}

	builds, archives, err := sweep(true)
	if err != nil {
		return err
	}

	total := builds.Deleted + archives.Deleted
	mutedStyle := ui.MutedStyle()
	if total == 0 {
		fmt.Fprintf(out, "%s Nothing to clean %s\n", ui.SymbolSuccess,
			mutedStyle.Render(fmt.Sprintf("(%d build%s kept)", builds.Kept, pluralSuffix(builds.Kept))))
		return nil
	}

	fmt.Fprintln(out)
	for _, p := range append(builds.Removed, archives.Removed...) {
		fmt.Fprintf(out, "  %s\n", relativeTo(project.Root, p))
	}
	fmt.Fprintln(out)

	if opts.DryRun {
		fmt.Fprintf(out, "%s Dry run: would remove %s\n", ui.SymbolPending, describeCounts(builds.Deleted, archives.Deleted))
		return nil
	}

	if !opts.Yes {
		confirm := opts.Confirm
		if confirm == nil {
			if !isTerminal(os.Stdin) {
				return errors.New(errors.ErrConfig,
					"Refusing to delete without confirmation",
					"Pass --yes to clean from a script.")
			}
			confirm = promptConfirm
		}
		ok, err := confirm(fmt.Sprintf("Remove %s?", describeCounts(builds.Deleted, archives.Deleted)))
		if err != nil || !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	var spinner *ui.Spinner
	if isTerminal(out) {
		spinner = ui.NewSpinner("Removing " + describeCounts(builds.Deleted, archives.Deleted))
		spinner.SetOutput(func(s string) { fmt.Fprint(out, s) })
		spinner.Start()
	}
	builds, archives, err = sweep(false)
	if spinner != nil {
		if err != nil {
			spinner.Fail()
		} else {
			spinner.Success()
		}
	}
	if removed := builds.Deleted + archives.Deleted; removed > 0 {
		fmt.Fprintf(out, "%s Removed %s\n", ui.SymbolSuccess, describeCounts(builds.Deleted, archives.Deleted))
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Some builds or archives could not be removed",
			"Check permissions on the project folder.")
	}
	return nil
}

func promptConfirm(title string) (bool, error) {
	var confirm bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description("This cannot be undone").
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirm, nil
}

// describeCounts renders "2 builds and 1 archive".
func describeCounts(builds, archives int) string {
	s := fmt.Sprintf("%d build%s", builds, pluralSuffix(builds))
	if archives > 0 {
		s += fmt.Sprintf(" and %d archive%s", archives, pluralSuffix(archives))
	}
	return s
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}

func pluralSuffix(n int) string {
	return util.Pluralize(n, "", "s")
}
