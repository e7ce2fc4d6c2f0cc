// Package testing provides test doubles for the exec package.
package testing

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/platformsh/platform-cli/internal/exec"
)

// Handler simulates a command. It may write into cmd.Dir (e.g. to mimic a
// package manager populating a build directory) and returns the command's
// stdout and error.
type Handler func(cmd exec.Command) ([]byte, error)

// FakeRunner records commands instead of running them.
type FakeRunner struct {
	mu sync.Mutex

	// Calls records every command in invocation order.
	Calls []exec.Command

	// Handlers maps a command name to its simulated behaviour.
	Handlers map[string]Handler

	// Missing lists executables LookPath should fail for.
	Missing map[string]bool

	// Fallback runs commands with no handler. Nil means succeed silently.
	Fallback exec.Runner
}

// NewFakeRunner creates a runner where every command succeeds with no output.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Handlers: make(map[string]Handler),
		Missing:  make(map[string]bool),
	}
}

// On registers a handler for a command name.
func (f *FakeRunner) On(name string, h Handler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Handlers[name] = h
	return f
}

// Run implements exec.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd exec.Command) error {
	out, err := f.dispatch(ctx, cmd)
	if cmd.Stdout != nil && len(out) > 0 {
		_, _ = cmd.Stdout.Write(out)
	}
	return err
}

// Output implements exec.Runner.
func (f *FakeRunner) Output(ctx context.Context, cmd exec.Command) ([]byte, error) {
	return f.dispatch(ctx, cmd)
}

// LookPath implements exec.Runner.
func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Missing[name] {
		return "", exec.MissingTool(name)
	}
	return "/usr/bin/" + name, nil
}

func (f *FakeRunner) dispatch(ctx context.Context, cmd exec.Command) ([]byte, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, cmd)
	h := f.Handlers[cmd.Name]
	fallback := f.Fallback
	f.mu.Unlock()

	if h != nil {
		return h(cmd)
	}
	if fallback != nil {
		return fallback.Output(ctx, cmd)
	}
	return nil, nil
}

// CallsTo returns recorded invocations of the named command.
func (f *FakeRunner) CallsTo(name string) []exec.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var calls []exec.Command
	for _, c := range f.Calls {
		if c.Name == name {
			calls = append(calls, c)
		}
	}
	return calls
}

// CommandLines renders every recorded call, one string per call.
func (f *FakeRunner) CommandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		lines[i] = c.String()
	}
	return lines
}

// Fail returns a handler that exits with the given code and stderr.
func Fail(code int, stderr string) Handler {
	return func(cmd exec.Command) ([]byte, error) {
		if cmd.Stderr != nil {
			_, _ = io.WriteString(cmd.Stderr, stderr)
		}
		return nil, &exec.ExitError{
			Command:  cmd.String(),
			ExitCode: code,
			Stderr:   strings.TrimSpace(stderr),
		}
	}
}

// Stdout returns a handler that succeeds and prints out.
func Stdout(out string) Handler {
	return func(exec.Command) ([]byte, error) {
		return []byte(out), nil
	}
}

// String summarizes recorded calls for assertion messages.
func (f *FakeRunner) String() string {
	return fmt.Sprintf("FakeRunner%v", f.CommandLines())
}
