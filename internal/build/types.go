package build

import (
	"time"

	"github.com/platformsh/platform-cli/internal/clean"
)

// Status is the outcome of building one application.
type Status string

const (
	StatusBuilt     Status = "built"
	StatusExtracted Status = "extracted"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// AppResult describes what happened to one application.
type AppResult struct {
	Name      string
	AppRoot   string
	Toolstack string
	BuildDir  string
	DocRoot   string
	TreeID    string
	Status    Status

	// Archive is the cache file written or read, if any.
	Archive string

	// Err is set when Status is StatusFailed.
	Err      error
	Duration time.Duration
}

// Report summarizes a BuildProject run.
type Report struct {
	Apps []AppResult

	// Cleaned is false when the retention sweeps were skipped.
	Cleaned  bool
	Builds   clean.Result
	Archives clean.Result
}

// Failed returns the applications that failed to build.
func (r *Report) Failed() []AppResult {
	var failed []AppResult
	for _, app := range r.Apps {
		if app.Status == StatusFailed {
			failed = append(failed, app)
		}
	}
	return failed
}

// Count returns how many applications ended with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, app := range r.Apps {
		if app.Status == s {
			n++
		}
	}
	return n
}
