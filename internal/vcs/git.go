// Package vcs answers the handful of git questions the build pipeline asks:
// what is tracked, what is untracked, what has been edited, and which
// branch is checked out.
package vcs

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/exec"
)

// Git runs git commands through a Runner.
type Git struct {
	runner exec.Runner
}

// New creates a Git client. A nil runner uses the local machine.
func New(runner exec.Runner) *Git {
	if runner == nil {
		runner = exec.NewLocalRunner()
	}
	return &Git{runner: runner}
}

// IsRepository reports whether dir is inside a git work tree.
func (g *Git) IsRepository(ctx context.Context, dir string) bool {
	out, err := g.output(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// TopLevel returns the root of the work tree containing dir.
func (g *Git) TopLevel(ctx context.Context, dir string) (string, error) {
	return g.output(ctx, dir, "rev-parse", "--show-toplevel")
}

// CurrentBranch returns the checked out branch. A detached HEAD is an error
// because it can't name an environment.
func (g *Git) CurrentBranch(ctx context.Context, dir string) (string, error) {
	branch, err := g.output(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if branch == "HEAD" {
		return "", errors.New(errors.ErrVCS,
			"Not on a branch (detached HEAD) in "+dir,
			"Check out a branch, or pass --environment.")
	}
	return branch, nil
}

// TrackedTree returns `git ls-tree HEAD .` run in dir, one entry per line:
// "<mode> <type> <object>\t<path>", paths relative to dir.
func (g *Git) TrackedTree(ctx context.Context, dir string) ([]string, error) {
	return g.lines(ctx, dir, "ls-tree", "HEAD", ".")
}

// Modified returns files under dir whose working copy differs from HEAD,
// relative to dir. Staged and unstaged changes both count, as do staged new
// files and deletions. Renames are reported as a delete plus an add.
func (g *Git) Modified(ctx context.Context, dir string) ([]string, error) {
	return g.nulSeparated(ctx, dir, "diff", "--name-only", "--relative", "--no-renames", "-z", "HEAD", "--", ".")
}

// Untracked returns files under dir that git doesn't track and doesn't
// ignore, relative to dir.
func (g *Git) Untracked(ctx context.Context, dir string) ([]string, error) {
	return g.nulSeparated(ctx, dir, "ls-files", "--others", "--exclude-standard", "-z")
}

// CheckIgnored reports whether path (relative to dir) is ignored by git.
func (g *Git) CheckIgnored(ctx context.Context, dir, path string) (bool, error) {
	_, err := g.runner.Output(ctx, exec.Command{
		Name: "git",
		Args: []string{"check-ignore", "-q", path},
		Dir:  dir,
	})
	if err == nil {
		return true, nil
	}

	// check-ignore exits 1 when the path is not ignored.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode == 1 {
		return false, nil
	}
	return false, g.wrap(err, "check-ignore", dir)
}

// output runs a git command and returns trimmed stdout.
func (g *Git) output(ctx context.Context, dir string, args ...string) (string, error) {
	out, err := g.runner.Output(ctx, exec.Command{Name: "git", Args: args, Dir: dir})
	if err != nil {
		return "", g.wrap(err, args[0], dir)
	}
	return strings.TrimSpace(string(out)), nil
}

// lines runs a git command and returns non-empty lines from stdout.
func (g *Git) lines(ctx context.Context, dir string, args ...string) ([]string, error) {
	out, err := g.runner.Output(ctx, exec.Command{Name: "git", Args: args, Dir: dir})
	if err != nil {
		return nil, g.wrap(err, args[0], dir)
	}

	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// nulSeparated runs a git command with -z output and splits on NUL, so paths
// containing newlines or quotes come through untouched.
func (g *Git) nulSeparated(ctx context.Context, dir string, args ...string) ([]string, error) {
	out, err := g.runner.Output(ctx, exec.Command{Name: "git", Args: args, Dir: dir})
	if err != nil {
		return nil, g.wrap(err, args[0], dir)
	}

	var paths []string
	for _, p := range strings.Split(string(out), "\x00") {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (g *Git) wrap(err error, sub, dir string) error {
	if errors.IsCode(err, errors.ErrExec) {
		return err
	}
	return errors.WrapWithCode(err, errors.ErrVCS,
		fmt.Sprintf("git %s failed in %s", sub, dir),
		"Make sure the directory is a git repository with at least one commit.")
}
