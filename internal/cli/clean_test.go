package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedBuilds creates n build directories with ascending timestamps and
// returns their paths, oldest first.
func seedBuilds(t *testing.T, root string, n int) []string {
	t.Helper()
	var paths []string
	for i := 1; i <= n; i++ {
		path := filepath.Join(root, config.BuildsDir, fmt.Sprintf("2024-01-0%d--main", i))
		writeFile(t, filepath.Join(path, "index.html"), "x")
		paths = append(paths, path)
	}
	return paths
}

func seedArchive(t *testing.T, root, treeID string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(root, config.ArchiveDir, treeID+".tar.gz")
	writeFile(t, path, "archive")
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestCleanCommand_DryRun(t *testing.T) {
	root, _ := newTestProject(t)
	builds := seedBuilds(t, root, 4)

	var out bytes.Buffer
	err := cleanCommand(&out, CleanOptions{Keep: 2, TTL: -1, DryRun: true})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Dry run: would remove 2 builds")
	assert.Contains(t, out.String(), filepath.Join(config.BuildsDir, "2024-01-01--main"))
	for _, b := range builds {
		assert.DirExists(t, b)
	}
}

func TestCleanCommand_Yes(t *testing.T) {
	root, _ := newTestProject(t)
	builds := seedBuilds(t, root, 4)

	var out bytes.Buffer
	err := cleanCommand(&out, CleanOptions{Keep: 2, TTL: -1, Yes: true})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Removed 2 builds")
	assert.NoDirExists(t, builds[0])
	assert.NoDirExists(t, builds[1])
	assert.DirExists(t, builds[2])
	assert.DirExists(t, builds[3])
}

func TestCleanCommand_Confirm(t *testing.T) {
	root, _ := newTestProject(t)
	builds := seedBuilds(t, root, 2)

	var asked string
	var out bytes.Buffer
	err := cleanCommand(&out, CleanOptions{Keep: 1, TTL: -1, Confirm: func(title string) (bool, error) {
		asked = title
		return false, nil
	}})
	require.NoError(t, err)

	assert.Equal(t, "Remove 1 build?", asked)
	assert.Contains(t, out.String(), "Cancelled.")
	assert.DirExists(t, builds[0])

	out.Reset()
	err = cleanCommand(&out, CleanOptions{Keep: 1, TTL: -1, Confirm: func(string) (bool, error) { return true, nil }})
	require.NoError(t, err)
	assert.NoDirExists(t, builds[0])
}

func TestCleanCommand_Archives(t *testing.T) {
	root, _ := newTestProject(t)
	seedBuilds(t, root, 1)
	stale := seedArchive(t, root, "stale", 48*time.Hour)
	fresh := seedArchive(t, root, "fresh", time.Minute)

	var out bytes.Buffer
	err := cleanCommand(&out, CleanOptions{Keep: 5, Archives: true, TTL: 24 * time.Hour, Yes: true})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Removed 0 builds and 1 archive")
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestCleanCommand_ArchivesUseProjectTTL(t *testing.T) {
	root, _ := newTestProject(t)
	old := seedArchive(t, root, "old", config.DefaultArchiveTTL+time.Hour)

	var out bytes.Buffer
	require.NoError(t, cleanCommand(&out, CleanOptions{Keep: 5, Archives: true, TTL: -1, Yes: true}))
	assert.NoFileExists(t, old)
}

func TestCleanCommand_NothingToClean(t *testing.T) {
	root, _ := newTestProject(t)
	seedBuilds(t, root, 1)

	var out bytes.Buffer
	err := cleanCommand(&out, CleanOptions{Keep: 5, TTL: -1, Confirm: func(string) (bool, error) {
		t.Fatal("should not ask")
		return false, nil
	}})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Nothing to clean")
	assert.Contains(t, out.String(), "(1 build kept)")
}

func TestCleanCommand_NegativeKeep(t *testing.T) {
	err := cleanCommand(&bytes.Buffer{}, CleanOptions{Keep: -1})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestCleanCommand_LockHeld(t *testing.T) {
	root, _ := newTestProject(t)
	seedBuilds(t, root, 3)

	held, err := lock.TryAcquire(filepath.Join(root, config.LockFile), "platform build")
	require.NoError(t, err)
	defer held.Release()

	err = cleanCommand(&bytes.Buffer{}, CleanOptions{Keep: 1, TTL: -1, Yes: true})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrLock))
	assert.Contains(t, err.Error(), "platform build")
}

func TestDescribeCounts(t *testing.T) {
	assert.Equal(t, "1 build", describeCounts(1, 0))
	assert.Equal(t, "0 builds", describeCounts(0, 0))
	assert.Equal(t, "3 builds and 1 archive", describeCounts(3, 1))
	assert.Equal(t, "1 build and 2 archives", describeCounts(1, 2))
}

func TestRelativeTo(t *testing.T) {
	assert.Equal(t, filepath.Join("builds", "x"), relativeTo("/p", "/p/builds/x"))
	assert.Equal(t, "x", relativeTo("", "x"))
}

func TestPluralSuffix(t *testing.T) {
	assert.Equal(t, "s", pluralSuffix(0))
	assert.Equal(t, "", pluralSuffix(1))
	assert.Equal(t, "s", pluralSuffix(2))
}
