package config

import (
	"fmt"
	"regexp"

	"github.com/platformsh/platform-cli/internal/errors"
)

// toolstackKeyPattern matches keys like "php:drupal" or "generic".
var toolstackKeyPattern = regexp.MustCompile(`^[a-z0-9_-]+(:[a-z0-9_-]+)?$`)

// Validate checks the project config for values a build cannot work with.
func Validate(cfg *ProjectConfig) error {
	local := cfg.Local

	if local.KeepBuilds < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("local.keep_builds must be at least 1 (got %d)", local.KeepBuilds),
			"The current build is always kept; set keep_builds to 1 or more.")
	}

	if local.ArchiveTTL < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("local.archive_ttl can't be negative (got %s)", local.ArchiveTTL),
			"Use a duration like 168h, or 0 to expire archives on every sweep.")
	}

	if local.DrushConcurrency < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("local.drush_concurrency must be at least 1 (got %d)", local.DrushConcurrency),
			"Try the default of 3.")
	}

	if local.LockTimeout < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("local.lock_timeout can't be negative (got %s)", local.LockTimeout),
			"Use a duration like 5m.")
	}

	return nil
}

// ValidateApp checks an application config.
func ValidateApp(cfg *AppConfig, path string) error {
	if cfg.Toolstack != "" && !toolstackKeyPattern.MatchString(cfg.Toolstack) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid toolstack '%s' in %s", cfg.Toolstack, path),
			"Toolstack keys look like 'php:drupal' or 'php:symfony'.")
	}
	return nil
}
