package require

import (
	"fmt"
	"strings"
	"sync"

	"github.com/platformsh/platform-cli/internal/exec"
)

// Checker looks tools up on PATH through an exec.Runner.
type Checker struct {
	runner exec.Runner
	cache  *Cache
}

// NewChecker creates a checker with its own cache.
func NewChecker(runner exec.Runner) *Checker {
	return &Checker{runner: runner, cache: NewCache()}
}

// Check verifies a single tool, consulting the cache first.
func (c *Checker) Check(tool string) CheckResult {
	if cached, ok := c.cache.Get(tool); ok {
		return cached
	}

	_, hasHint := exec.Hint(tool)
	result := CheckResult{Name: tool, HasHint: hasHint}

	// Names with path separators or shell syntax are never looked up.
	if ValidateToolName(tool) {
		if path, err := c.runner.LookPath(tool); err == nil {
			result.Satisfied = true
			result.Path = path
		}
	}

	c.cache.Set(tool, result)
	return result
}

// CheckAll checks all requirements in parallel. Results keep the order of
// reqs. Individual failures are recorded in CheckResult.Satisfied.
func (c *Checker) CheckAll(reqs []string) []CheckResult {
	if len(reqs) == 0 {
		return nil
	}

	results := make([]CheckResult, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req string) {
			defer wg.Done()
			results[i] = c.Check(req)
		}(i, req)
	}
	wg.Wait()

	return results
}

// FilterMissing returns only the unsatisfied requirements.
func FilterMissing(results []CheckResult) []CheckResult {
	var missing []CheckResult
	for _, r := range results {
		if !r.Satisfied {
			missing = append(missing, r)
		}
	}
	return missing
}

// FormatMissing creates a human-readable list of missing requirements.
func FormatMissing(missing []CheckResult) string {
	if len(missing) == 0 {
		return ""
	}

	var parts []string
	for _, m := range missing {
		if m.HasHint {
			h, _ := exec.Hint(m.Name)
			parts = append(parts, fmt.Sprintf("%s (for %s)", m.Name, h.Purpose))
		} else {
			parts = append(parts, m.Name)
		}
	}
	return strings.Join(parts, ", ")
}
