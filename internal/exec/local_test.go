package exec

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRunner_Output(t *testing.T) {
	r := NewLocalRunner()
	out, err := r.Output(context.Background(), Command{Name: "echo", Args: []string{"hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestLocalRunner_WorkingDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	r := NewLocalRunner()

	out, err := r.Output(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "pwd; echo $BUILD_FLAG"},
		Dir:  dir,
		Env:  []string{"BUILD_FLAG=on"},
	})
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, string(out), resolved)
	assert.Contains(t, string(out), "on")
}

func TestLocalRunner_RunStreamsOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := NewLocalRunner()

	err := r.Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "echo out; echo err >&2"},
		Stdout: &stdout,
		Stderr: &stderr,
	})
	require.NoError(t, err)
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "err\n", stderr.String())
}

func TestLocalRunner_NonZeroExit(t *testing.T) {
	r := NewLocalRunner()
	err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo nope >&2; exit 3"}})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "nope", exitErr.Stderr)
	assert.Contains(t, exitErr.Error(), "exited with code 3")
}

func TestLocalRunner_MissingExecutable(t *testing.T) {
	r := NewLocalRunner()
	err := r.Run(context.Background(), Command{Name: "definitely-not-a-real-binary-xyz"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
	assert.Contains(t, err.Error(), "not found in PATH")
}

func TestLocalRunner_LookPath(t *testing.T) {
	r := NewLocalRunner()
	path, err := r.LookPath("sh")
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestCommand_String(t *testing.T) {
	c := Command{Name: "composer", Args: []string{"install", "--no-progress"}}
	assert.Equal(t, "composer install --no-progress", c.String())

	c = Command{Name: "drush", Args: []string{"make", "/p/My Site/project.make"}}
	assert.Equal(t, "drush make '/p/My Site/project.make'", c.String())
}
