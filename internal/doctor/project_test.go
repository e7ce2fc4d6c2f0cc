package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/platformsh/platform-cli/internal/config"
	exectest "github.com/platformsh/platform-cli/internal/exec/testing"
	"github.com/platformsh/platform-cli/internal/lock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProject(t *testing.T, projectConfig string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.ProjectConfigFile), []byte(projectConfig), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, config.RepositoryDir), 0755))
	return root
}

func TestProjectConfigCheck(t *testing.T) {
	root := newProject(t, "id: abc123\n")
	r := (&ProjectConfigCheck{Root: root}).Run()
	assert.Equal(t, StatusPass, r.Status)

	bad := newProject(t, "local:\n  keep_builds: 0\n")
	r = (&ProjectConfigCheck{Root: bad}).Run()
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Message, "keep_builds must be at least 1")
	assert.NotEmpty(t, r.Suggestion)

	r = (&ProjectConfigCheck{}).Run()
	assert.Equal(t, StatusFail, r.Status)
	assert.Equal(t, "Not inside a project folder", r.Message)
}

func TestRepositoryCheck(t *testing.T) {
	root := newProject(t, "id: abc\n")
	fs := afero.NewOsFs()

	runner := exectest.NewFakeRunner().On("git", exectest.Stdout("true\n"))
	r := (&RepositoryCheck{Root: root, FS: fs, Runner: runner}).Run()
	assert.Equal(t, StatusPass, r.Status)

	notGit := exectest.NewFakeRunner().On("git", exectest.Fail(128, "fatal: not a git repository"))
	r = (&RepositoryCheck{Root: root, FS: fs, Runner: notGit}).Run()
	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Suggestion, "archives are disabled")

	r = (&RepositoryCheck{Root: t.TempDir(), FS: fs, Runner: runner}).Run()
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Message, "Repository not found")
}

func TestDirectoriesCheck_Fix(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/p/builds", 0755))
	c := &DirectoriesCheck{Root: "/p", FS: fs}

	r := c.Run()
	assert.Equal(t, StatusWarn, r.Status)
	assert.True(t, r.Fixable)
	assert.Contains(t, r.Message, "shared")
	assert.NotContains(t, r.Message, "builds")

	require.NoError(t, c.Fix())
	assert.Equal(t, StatusPass, c.Run().Status)
}

func TestLockCheck(t *testing.T) {
	root := newProject(t, "id: abc\n")
	c := &LockCheck{Root: root}
	assert.Equal(t, StatusPass, c.Run().Status)
	assert.Equal(t, StatusPass, c.Run().Status, "the check must release the lock")

	held, err := lock.TryAcquire(filepath.Join(root, config.LockFile), "platform build")
	require.NoError(t, err)
	defer held.Release()

	r := c.Run()
	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Message, "running 'platform build'")
}

func TestArchiveCacheCheck(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := &ArchiveCacheCheck{Root: "/p", FS: fs}

	r := c.Run()
	assert.Equal(t, StatusPass, r.Status)
	assert.Equal(t, "0 build archives (0 B)", r.Message)

	require.NoError(t, afero.WriteFile(fs, "/p/.build-archives/abc.tar.gz", make([]byte, 2000), 0644))
	r = c.Run()
	assert.Equal(t, "1 build archive (2.0 kB)", r.Message)
}

func TestProjectChecks(t *testing.T) {
	assert.Len(t, ProjectChecks("", afero.NewMemMapFs(), exectest.NewFakeRunner()), 1)
	assert.Len(t, ProjectChecks("/p", afero.NewMemMapFs(), exectest.NewFakeRunner()), 5)
}
