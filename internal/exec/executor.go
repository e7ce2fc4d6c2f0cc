package exec

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/platformsh/platform-cli/internal/errors"
)

// commandNotFoundPatterns detect "command not found" output from shells and
// wrapper scripts. They only apply with exit code 127.
var commandNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)zsh: command not found: (\S+)`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
}

// dependencyNotFoundPatterns detect a tool failing because something it
// shells out to is missing (e.g. drush calling a missing php binary).
var dependencyNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)env: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)/bin/sh: (\S+): not found`),
	regexp.MustCompile(`(?i)'(\S+)' is not recognized`),
}

// ToolHint tells the user how to get a build tool.
type ToolHint struct {
	Name    string
	Purpose string
	Install string
}

// toolHints covers the external tools the toolstacks shell out to.
var toolHints = map[string]ToolHint{
	"git": {
		Name:    "git",
		Purpose: "tree IDs and .gitignore checks",
		Install: "Install git from https://git-scm.com/downloads",
	},
	"composer": {
		Name:    "composer",
		Purpose: "php:symfony dependency installs",
		Install: "Install Composer from https://getcomposer.org/download/",
	},
	"drush": {
		Name:    "drush",
		Purpose: "php:drupal make files",
		Install: "Install Drush: composer global require drush/drush:6.*",
	},
}

// KnownTools returns the names of tools with install hints, sorted.
func KnownTools() []string {
	names := make([]string, 0, len(toolHints))
	for name := range toolHints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hint returns the install hint for a tool, if one is known.
func Hint(tool string) (ToolHint, bool) {
	h, ok := toolHints[tool]
	return h, ok
}

// MissingTool builds the error reported when a required executable is not on PATH.
func MissingTool(tool string) *errors.Error {
	suggestion := fmt.Sprintf("Make sure '%s' is installed and on your PATH.", tool)
	if h, ok := toolHints[tool]; ok {
		suggestion = h.Install
	}
	return errors.New(errors.ErrExec,
		fmt.Sprintf("'%s' not found in PATH", tool),
		suggestion)
}

// IsCommandNotFound checks if the error output indicates a missing command.
// Returns the command name (if extractable) and whether it's a command-not-found error.
func IsCommandNotFound(stderr string, exitCode int) (string, bool) {
	if exitCode != 127 {
		return "", false
	}

	for _, pattern := range commandNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return matches[1], true
		}
	}

	return "", true
}

// IsDependencyNotFound checks if a tool failed because a dependency command is missing.
func IsDependencyNotFound(stderr string) (string, bool) {
	for _, pattern := range dependencyNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return matches[1], true
		}
	}
	return "", false
}

// HandleExecError turns a missing-command failure into a structured error
// with install advice. It returns nil for ordinary failures.
func HandleExecError(name string, stderr string, exitCode int) error {
	cmdName, notFound := IsCommandNotFound(stderr, exitCode)
	if !notFound {
		cmdName, notFound = IsDependencyNotFound(stderr)
	}
	if !notFound {
		return nil
	}
	if cmdName == "" {
		cmdName = name
	}
	return MissingTool(cmdName)
}
