package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/exec"
	"github.com/platformsh/platform-cli/internal/vcs"
)

// ParseDurationFlag parses a duration flag. An empty value returns def.
func ParseDurationFlag(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid --%s", value, name),
			"Try something like 30s, 5m, or 168h.")
	}
	if duration < 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("--%s can't be negative", name),
			"")
	}
	return duration, nil
}

// loadProject finds the project from --project or the working directory.
func loadProject() (*config.Project, error) {
	return config.LoadProject(projectFlag)
}

// environmentID returns flag if set, else the checked-out branch of the
// project's repository. Slashes become dashes so the ID can name a directory.
func environmentID(ctx context.Context, runner exec.Runner, project *config.Project, flag string) (string, error) {
	id := flag
	if id == "" {
		branch, err := vcs.New(runner).CurrentBranch(ctx, project.RepositoryDir())
		if err != nil {
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't determine the environment from the repository",
				"Check out a branch in the repository, or pass --environment.")
		}
		id = branch
	}
	id = strings.ReplaceAll(strings.TrimSpace(id), "/", "-")
	if id == "" {
		return "", errors.New(errors.ErrConfig,
			"The environment ID can't be empty",
			"Pass --environment with a name.")
	}
	return id, nil
}
