package exec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/util"
)

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds KEY=VALUE overrides appended to the parent environment.
	Env []string

	// Stdout and Stderr receive streamed output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for display and error messages.
func (c Command) String() string {
	return util.JoinArgs(append([]string{c.Name}, c.Args...))
}

// Runner executes external commands. LocalRunner is the production
// implementation; tests use the recording fake in exec/testing.
type Runner interface {
	// Run executes the command and waits for it. A nonzero exit is
	// returned as an *ExitError.
	Run(ctx context.Context, cmd Command) error

	// Output executes the command and returns its stdout.
	Output(ctx context.Context, cmd Command) ([]byte, error)

	// LookPath reports where an executable lives on PATH.
	LookPath(name string) (string, error)
}

// ExitError reports a command that ran but exited nonzero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// LocalRunner runs commands on this machine.
type LocalRunner struct{}

// NewLocalRunner returns a Runner backed by os/exec.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// Run executes cmd, streaming output to cmd.Stdout and cmd.Stderr.
func (r *LocalRunner) Run(ctx context.Context, cmd Command) error {
	var stderr bytes.Buffer
	c := r.command(ctx, cmd)
	c.Stdout = cmd.Stdout
	if cmd.Stderr != nil {
		c.Stderr = io.MultiWriter(cmd.Stderr, &stderr)
	} else {
		c.Stderr = &stderr
	}
	return r.wait(cmd, c.Run(), stderr.String())
}

// Output executes cmd and captures stdout. Stderr is kept for error reporting.
func (r *LocalRunner) Output(ctx context.Context, cmd Command) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	c := r.command(ctx, cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := r.wait(cmd, c.Run(), stderr.String())
	return stdout.Bytes(), err
}

// LookPath wraps exec.LookPath.
func (r *LocalRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (r *LocalRunner) command(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if cmd.Dir != "" {
		c.Dir = cmd.Dir
	}
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	return c
}

func (r *LocalRunner) wait(cmd Command, runErr error, stderr string) error {
	if runErr == nil {
		return nil
	}

	stderr = strings.TrimSpace(stderr)
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		if handled := HandleExecError(cmd.Name, stderr, exitErr.ExitCode()); handled != nil {
			return handled
		}
		return &ExitError{
			Command:  cmd.String(),
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr,
		}
	}

	if errors.Is(runErr, exec.ErrNotFound) {
		return MissingTool(cmd.Name)
	}

	return errors.WrapWithCode(runErr, errors.ErrExec,
		fmt.Sprintf("Couldn't run %s", cmd.Name),
		"Make sure the command exists and is executable.")
}
