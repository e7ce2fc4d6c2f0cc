package toolstack

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/exec"
	exectesting "github.com/platformsh/platform-cli/internal/exec/testing"
	"github.com/platformsh/platform-cli/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const symfonyComposerJSON = `{"require": {"symfony/symfony": "2.6.*"}}`

// fakeComposerInstall mimics composer creating vendor/ in the working dir.
func fakeComposerInstall(cmd exec.Command) ([]byte, error) {
	vendor := filepath.Join(cmd.Dir, "vendor")
	if err := os.MkdirAll(vendor, 0755); err != nil {
		return nil, err
	}
	return []byte("Generating autoload files\n"), os.WriteFile(filepath.Join(vendor, "autoload.php"), []byte("<?php"), 0644)
}

func TestSymfony_Build(t *testing.T) {
	p := newProject(t, map[string]string{
		"composer.json":         symfonyComposerJSON,
		"app/config/config.yml": "framework: ~",
		"web/app.php":           "<?php",
		".platform/routes.yaml": "routes",
		".git/HEAD":             "ref: refs/heads/main",
		".platform.app.yaml":    "name: app",
	})
	runner := exectesting.NewFakeRunner().On("composer", fakeComposerInstall)
	var out bytes.Buffer
	s := NewSymfony(Env{Runner: runner, Logger: logger.Noop(), Out: &out})
	require.NoError(t, s.Prepare(p.paths(), config.BuildSettings{}))

	require.NoError(t, s.Build(context.Background()))
	buildDir := p.paths().BuildDir
	assert.Contains(t, out.String(), "    Generating autoload files\n", "composer output is indented under the build")

	calls := runner.CallsTo("composer")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"install", "--no-progress", "--no-interaction", "--working-dir", buildDir}, calls[0].Args)
	assert.Equal(t, buildDir, calls[0].Dir)

	assert.FileExists(t, filepath.Join(buildDir, "composer.json"))
	assert.FileExists(t, filepath.Join(buildDir, "web", "app.php"))
	assert.FileExists(t, filepath.Join(buildDir, "vendor", "autoload.php"))
	assert.FileExists(t, filepath.Join(buildDir, ".platform.app.yaml"))
	assert.NoDirExists(t, filepath.Join(buildDir, ".git"))
	assert.NoDirExists(t, filepath.Join(buildDir, ".platform"))

	// The source tree is untouched.
	assert.NoDirExists(t, filepath.Join(p.repo, "vendor"))
	assert.True(t, s.Archivable())
}

func TestSymfony_Build_NoComposerJSON(t *testing.T) {
	p := newProject(t, map[string]string{"index.php": "<?php"})
	runner := exectesting.NewFakeRunner()
	s := NewSymfony(Env{Runner: runner})
	require.NoError(t, s.Prepare(p.paths(), config.BuildSettings{}))

	err := s.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Couldn't find a composer.json")
	assert.Empty(t, runner.Calls)
}

func TestSymfony_Build_ComposerMissing(t *testing.T) {
	p := newProject(t, map[string]string{"composer.json": symfonyComposerJSON})
	runner := exectesting.NewFakeRunner()
	runner.Missing["composer"] = true
	s := NewSymfony(Env{Runner: runner})
	require.NoError(t, s.Prepare(p.paths(), config.BuildSettings{}))

	err := s.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "getcomposer.org")
	assert.NoDirExists(t, p.paths().BuildDir)
}

func TestSymfony_Build_ComposerFails(t *testing.T) {
	p := newProject(t, map[string]string{"composer.json": symfonyComposerJSON})
	runner := exectesting.NewFakeRunner().On("composer", exectesting.Fail(2, "Your requirements could not be resolved"))
	s := NewSymfony(Env{Runner: runner})
	require.NoError(t, s.Prepare(p.paths(), config.BuildSettings{}))

	err := s.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composer failed")
	assert.Contains(t, err.Error(), "could not be resolved")
	assert.Contains(t, err.Error(), "run it by hand in "+p.paths().BuildDir)
}

func TestSymfony_Install(t *testing.T) {
	p := newProject(t, map[string]string{
		"composer.json":              symfonyComposerJSON,
		"app/config/config.yml":      "framework: ~",
		"app/config/routing_dev.yml": "custom: ~",
	})
	s := NewSymfony(Env{Runner: exectesting.NewFakeRunner()})
	require.NoError(t, s.Prepare(p.paths(), config.BuildSettings{}))
	require.NoError(t, s.Build(context.Background()))

	docRoot := filepath.Join(p.root, config.WebRootDir)
	require.NoError(t, s.Install(context.Background(), docRoot))

	configDir := filepath.Join(p.paths().BuildDir, "app", "config")
	data, err := os.ReadFile(filepath.Join(configDir, "config_dev.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "routing_dev.yml")

	data, err = os.ReadFile(filepath.Join(configDir, "routing_dev.yml"))
	require.NoError(t, err)
	assert.Equal(t, "custom: ~", string(data))

	assert.Equal(t, "builds/2024-01-02--03-04-05--main", readLink(t, docRoot))
}

func TestSymfony_Install_NoAppConfig(t *testing.T) {
	p := newProject(t, map[string]string{"composer.json": symfonyComposerJSON})
	s := NewSymfony(Env{Runner: exectesting.NewFakeRunner()})
	require.NoError(t, s.Prepare(p.paths(), config.BuildSettings{AbsoluteLinks: true}))
	require.NoError(t, s.Build(context.Background()))

	docRoot := filepath.Join(p.root, config.WebRootDir)
	require.NoError(t, s.Install(context.Background(), docRoot))

	assert.NoDirExists(t, filepath.Join(p.paths().BuildDir, "app"))
	assert.Equal(t, p.paths().BuildDir, readLink(t, docRoot))
}

func TestGeneric(t *testing.T) {
	p := newProject(t, map[string]string{
		"index.html":      "<h1>hi</h1>",
		"assets/site.css": "body{}",
		".platform/app":   "x",
	})
	g := NewGeneric(Env{})
	assert.False(t, g.Detect(p.repo))
	assert.Empty(t, g.Requirements())

	require.NoError(t, g.Prepare(p.paths(), config.BuildSettings{}))
	require.NoError(t, g.Build(context.Background()))

	buildDir := p.paths().BuildDir
	assert.FileExists(t, filepath.Join(buildDir, "index.html"))
	assert.FileExists(t, filepath.Join(buildDir, "assets", "site.css"))
	assert.NoDirExists(t, filepath.Join(buildDir, ".platform"))

	docRoot := filepath.Join(p.root, config.WebRootDir)
	require.NoError(t, g.Install(context.Background(), docRoot))
	assert.Equal(t, "builds/2024-01-02--03-04-05--main", readLink(t, docRoot))
}

func TestResources(t *testing.T) {
	for _, name := range []string{
		"drupal/settings.php",
		"drupal/settings.local.php",
		"drupal/gitignore-vanilla",
		"symfony/config_dev.yml",
		"symfony/routing_dev.yml",
	} {
		data, err := resource(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}

	_, err := resource("nope/missing.txt")
	assert.Error(t, err)
}
