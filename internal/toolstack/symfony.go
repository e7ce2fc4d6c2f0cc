package toolstack

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/spf13/afero"
)

// SymfonyKey identifies the Symfony toolstack.
const SymfonyKey = "php:symfony"

// symfonyPackages mark a composer.json as a Symfony application.
var symfonyPackages = []string{"symfony/symfony", "symfony/framework-bundle"}

// Symfony builds Symfony applications with composer.
type Symfony struct {
	Base
}

// NewSymfony creates a Symfony toolstack.
func NewSymfony(env Env) *Symfony {
	return &Symfony{Base: newBase(env)}
}

// Key implements Toolstack.
func (s *Symfony) Key() string { return SymfonyKey }

// Requirements implements Toolstack.
func (s *Symfony) Requirements() []string { return []string{"composer"} }

// Detect implements Toolstack. A composer.json that fails to parse is not
// a match.
func (s *Symfony) Detect(appRoot string) bool {
	data, err := afero.ReadFile(s.env.FS, filepath.Join(appRoot, "composer.json"))
	if err != nil {
		return false
	}

	var manifest struct {
		Require map[string]json.RawMessage `json:"require"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return false
	}
	for _, pkg := range symfonyPackages {
		if _, ok := manifest.Require[pkg]; ok {
			return true
		}
	}
	return false
}

// Build implements Toolstack: copy the app and run composer install in the copy.
func (s *Symfony) Build(ctx context.Context) error {
	if !s.fs.Exists(filepath.Join(s.paths.AppRoot, "composer.json")) {
		return errors.New(errors.ErrBuild,
			"Couldn't find a composer.json in "+s.paths.AppRoot,
			"Symfony applications are built with composer.")
	}
	if err := s.requireTools("composer"); err != nil {
		return err
	}

	if err := s.copyApp(); err != nil {
		return err
	}

	return s.run(ctx, s.buildDir, "composer", "install",
		"--no-progress", "--no-interaction", "--working-dir", s.buildDir)
}

// Install implements Toolstack. Development config files are added when the
// application doesn't ship its own.
func (s *Symfony) Install(ctx context.Context, docRoot string) error {
	configDir := filepath.Join(s.buildDir, "app", "config")
	if s.fs.IsDir(configDir) {
		for _, name := range []string{"config_dev.yml", "routing_dev.yml"} {
			if err := s.writeResource("symfony/"+name, filepath.Join(configDir, name)); err != nil {
				return err
			}
		}
	}

	return s.linkWebRoot(docRoot)
}
