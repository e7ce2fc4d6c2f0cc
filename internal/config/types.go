package config

import "time"

// File and directory names that make up a local project checkout:
//
//	<project root>/
//	  .platform-project     project config
//	  repository/           git checkout with one or more applications
//	  builds/               one directory per build
//	  shared/               files that persist across builds
//	  www -> builds/<...>   web root symlink to the latest build
//	  .build-archives/      cached build output, keyed by tree ID
const (
	ProjectConfigFile = ".platform-project"
	AppConfigFile     = ".platform.app.yaml"
	RepositoryDir     = "repository"
	BuildsDir         = "builds"
	SharedDir         = "shared"
	WebRootDir        = "www"
	ArchiveDir        = ".build-archives"
	LockFile          = ".build.lock"
)

// ProjectConfig is the content of .platform-project.
type ProjectConfig struct {
	// ID is the remote project identifier.
	ID string `yaml:"id" mapstructure:"id"`

	// Host is the API host the project lives on.
	Host string `yaml:"host" mapstructure:"host"`

	// Local holds defaults for local builds.
	Local LocalConfig `yaml:"local" mapstructure:"local"`
}

// LocalConfig controls local build behavior. Command-line flags override it.
type LocalConfig struct {
	// KeepBuilds is how many build directories survive the post-build sweep.
	KeepBuilds int `yaml:"keep_builds" mapstructure:"keep_builds"`

	// ArchiveTTL is how long an unused build archive is kept.
	ArchiveTTL time.Duration `yaml:"archive_ttl" mapstructure:"archive_ttl"`

	// AbsoluteLinks makes build symlinks absolute instead of relative.
	AbsoluteLinks bool `yaml:"absolute_links" mapstructure:"absolute_links"`

	// DrushConcurrency is passed to drush make as --concurrency.
	DrushConcurrency int `yaml:"drush_concurrency" mapstructure:"drush_concurrency"`

	// LockTimeout is how long a build waits for another build to finish.
	LockTimeout time.Duration `yaml:"lock_timeout" mapstructure:"lock_timeout"`

	// NoArchive disables the build archive cache.
	NoArchive bool `yaml:"no_archive" mapstructure:"no_archive"`
}

// AppConfig is the subset of .platform.app.yaml used by local builds.
type AppConfig struct {
	Name      string `yaml:"name"`
	Toolstack string `yaml:"toolstack"`
	Hooks     Hooks  `yaml:"hooks"`
}

// Hooks are shell snippets that run on the remote platform. Local builds
// only report them.
type Hooks struct {
	Build  StringList `yaml:"build"`
	Deploy StringList `yaml:"deploy"`
}

// Verbosity mirrors the global -q/-v flags. The zero value is normal output.
type Verbosity int

const (
	VerbosityQuiet Verbosity = iota - 1
	VerbosityNormal
	VerbosityVerbose
	VerbosityVeryVerbose
	VerbosityDebug
)

// BuildSettings carries every option a build needs. It is passed by value
// into the orchestrator and each toolstack.
type BuildSettings struct {
	// EnvironmentID names the build directory and usually matches the git branch.
	EnvironmentID string

	Verbosity        Verbosity
	AbsoluteLinks    bool
	DrushConcurrency int
	DrushWorkingCopy bool

	// NoCache disables the drush download cache.
	NoCache bool

	// NoClean skips the retention sweeps after building.
	NoClean bool

	// NoArchive skips both reading and writing build archives.
	NoArchive bool

	KeepBuilds  int
	ArchiveTTL  time.Duration
	LockTimeout time.Duration
}

// Defaults for local builds.
const (
	DefaultKeepBuilds       = 3
	DefaultArchiveTTL       = 7 * 24 * time.Hour
	DefaultDrushConcurrency = 3
	DefaultLockTimeout      = 5 * time.Minute
)

// DefaultProjectConfig returns a ProjectConfig with defaults applied.
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Local: LocalConfig{
			KeepBuilds:       DefaultKeepBuilds,
			ArchiveTTL:       DefaultArchiveTTL,
			DrushConcurrency: DefaultDrushConcurrency,
			LockTimeout:      DefaultLockTimeout,
		},
	}
}

// Settings converts the project's local defaults into BuildSettings.
// The environment ID and verbosity are left for the caller to fill.
func (c *ProjectConfig) Settings() BuildSettings {
	return BuildSettings{
		Verbosity:        VerbosityNormal,
		AbsoluteLinks:    c.Local.AbsoluteLinks,
		DrushConcurrency: c.Local.DrushConcurrency,
		NoArchive:        c.Local.NoArchive,
		KeepBuilds:       c.Local.KeepBuilds,
		ArchiveTTL:       c.Local.ArchiveTTL,
		LockTimeout:      c.Local.LockTimeout,
	}
}
