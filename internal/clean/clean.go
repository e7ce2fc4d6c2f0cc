// Package clean prunes old build directories and expired build archives.
package clean

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/platformsh/platform-cli/internal/archive"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/logger"
	"github.com/spf13/afero"
)

// Result summarizes one sweep. Total is always Deleted + Kept; an entry that
// could not be removed counts as kept.
type Result struct {
	Total   int
	Deleted int
	Kept    int

	// Removed lists the deleted paths (or, in a dry run, the paths that
	// would be deleted).
	Removed []string
}

// Sweeper removes entries from build and archive directories.
type Sweeper struct {
	FS     afero.Fs
	Logger logger.Logger

	// DryRun reports what would be removed without touching anything.
	DryRun bool
}

// New creates a Sweeper on the real filesystem.
func New() *Sweeper {
	return &Sweeper{FS: afero.NewOsFs(), Logger: logger.Default()}
}

// Builds keeps the keep most recent build directories in dir and removes the
// rest. Build names start with a timestamp, so name order is age order.
// Failures to remove one entry are collected and the sweep continues.
func (s *Sweeper) Builds(dir string, keep int) (Result, error) {
	if keep < 0 {
		keep = 0
	}
	entries, err := s.entries(dir)
	if err != nil || len(entries) == 0 {
		return Result{}, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	res := Result{Total: len(names)}
	var errs []error
	for i, name := range names {
		if len(names)-i <= keep {
			res.Kept++
			continue
		}
		path := filepath.Join(dir, name)
		if err := s.remove(path); err != nil {
			errs = append(errs, err)
			res.Kept++
			continue
		}
		res.Deleted++
		res.Removed = append(res.Removed, path)
	}
	return res, errors.Join(errs...)
}

// Archives removes entries in dir last modified more than ttl before now,
// including archives left half-written by an interrupted build.
// An unreadable directory or entry never aborts the sweep.
func (s *Sweeper) Archives(dir string, ttl time.Duration, now time.Time) (Result, error) {
	entries, err := s.entries(dir, archive.TempPrefix)
	if err != nil || len(entries) == 0 {
		return Result{}, err
	}

	res := Result{Total: len(entries)}
	var errs []error
	for _, info := range entries {
		path := filepath.Join(dir, info.Name())
		if now.Sub(info.ModTime()) <= ttl {
			res.Kept++
			continue
		}
		if err := s.remove(path); err != nil {
			errs = append(errs, err)
			res.Kept++
			continue
		}
		res.Deleted++
		res.Removed = append(res.Removed, path)
	}
	return res, errors.Join(errs...)
}

// entries lists dir without dotfiles, except those starting with one of
// the hidden prefixes. A missing directory has no entries.
func (s *Sweeper) entries(dir string, hidden ...string) ([]os.FileInfo, error) {
	infos, err := afero.ReadDir(s.fs(), dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		s.log().Warn("Couldn't read %s: %v", dir, err)
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't read %s", dir), "Check permissions on the project folder")
	}

	kept := infos[:0]
	for _, info := range infos {
		if strings.HasPrefix(info.Name(), ".") && !hasAnyPrefix(info.Name(), hidden) {
			continue
		}
		kept = append(kept, info)
	}
	return kept, nil
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func (s *Sweeper) remove(path string) error {
	if s.DryRun {
		s.log().Debug("Would delete %s", path)
		return nil
	}
	s.log().Debug("Deleting %s", path)
	if err := s.fs().RemoveAll(path); err != nil {
		s.log().Warn("Couldn't delete %s: %v", path, err)
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func (s *Sweeper) fs() afero.Fs {
	if s.FS == nil {
		s.FS = afero.NewOsFs()
	}
	return s.FS
}

func (s *Sweeper) log() logger.Logger {
	return logger.OrDefault(s.Logger)
}
