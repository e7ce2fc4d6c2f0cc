package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// PLATFORM_LOCAL_KEEP_BUILDS=10.
const EnvPrefix = "PLATFORM"

// Project is a located project checkout and its parsed config.
type Project struct {
	Root   string
	Config *ProjectConfig
}

// RepositoryDir is the git checkout inside the project.
func (p *Project) RepositoryDir() string { return filepath.Join(p.Root, RepositoryDir) }

// BuildsDir holds one directory per build.
func (p *Project) BuildsDir() string { return filepath.Join(p.Root, BuildsDir) }

// SharedDir holds files that persist across builds.
func (p *Project) SharedDir() string { return filepath.Join(p.Root, SharedDir) }

// WebRoot is the symlink pointing at the current build.
func (p *Project) WebRoot() string { return filepath.Join(p.Root, WebRootDir) }

// ArchiveDir holds cached build archives.
func (p *Project) ArchiveDir() string { return filepath.Join(p.Root, ArchiveDir) }

// LockPath is the file serializing builds of this project.
func (p *Project) LockPath() string { return filepath.Join(p.Root, LockFile) }

// FindProjectRoot walks up from start looking for .platform-project.
// Returns an empty string if none is found before the filesystem root.
func FindProjectRoot(start string) (string, error) {
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot determine current directory",
				"Check directory permissions")
		}
		start = cwd
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot resolve path: "+start,
			"Check the path is correct")
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ProjectConfigFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// LoadProject finds the project containing start and reads its config.
func LoadProject(start string) (*Project, error) {
	root, err := FindProjectRoot(start)
	if err != nil {
		return nil, err
	}
	if root == "" {
		return nil, errors.New(errors.ErrConfig,
			"You must run this command from a project folder",
			"Change into a directory created by 'platform get', or pass --project.")
	}

	cfg, err := LoadProjectConfig(filepath.Join(root, ProjectConfigFile))
	if err != nil {
		return nil, err
	}

	return &Project{Root: root, Config: cfg}, nil
}

// LoadProjectConfig reads a .platform-project file. Values missing from the
// file fall back to defaults; PLATFORM_* environment variables override both.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Project config not found: "+path,
				"Check that the project folder contains "+ProjectConfigFile)
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read project config",
			"Check that "+path+" is valid YAML")
	}

	cfg := DefaultProjectConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid project config format",
			"Check the YAML syntax in "+path)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("id", "")
	v.SetDefault("host", "")
	v.SetDefault("local.keep_builds", DefaultKeepBuilds)
	v.SetDefault("local.archive_ttl", DefaultArchiveTTL.String())
	v.SetDefault("local.absolute_links", false)
	v.SetDefault("local.drush_concurrency", DefaultDrushConcurrency)
	v.SetDefault("local.lock_timeout", DefaultLockTimeout.String())
	v.SetDefault("local.no_archive", false)
}
