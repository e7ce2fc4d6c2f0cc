// Package require checks that the executables a build shells out to are
// installed, before any build directory is created.
package require

import (
	"regexp"
)

// validToolName matches safe tool names: alphanumeric, hyphens, underscores, and periods.
// Examples: git, composer, drush, php7.4
var validToolName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*$`)

// ValidateToolName checks if a tool name is a plain executable name.
func ValidateToolName(name string) bool {
	return validToolName.MatchString(name)
}

// CheckResult represents the result of checking a single requirement.
type CheckResult struct {
	// Name is the tool/requirement name.
	Name string
	// Satisfied is true if the tool is available.
	Satisfied bool
	// Path is where the tool was found (if satisfied).
	Path string
	// HasHint is true if exec knows how to install this tool.
	HasHint bool
}

// Merge combines requirements from multiple sources (e.g. several toolstacks).
// Returns a deduplicated list preserving order of first occurrence.
func Merge(sources ...[]string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, source := range sources {
		for _, req := range source {
			if req != "" && !seen[req] {
				seen[req] = true
				result = append(result, req)
			}
		}
	}

	return result
}
