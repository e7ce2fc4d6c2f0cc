// Package treeid computes a fingerprint of an application's source state.
// Two checkouts with the same committed tree, the same uncommitted edits
// and the same untracked files get the same ID, so a build archive keyed by
// it can be reused.
package treeid

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/exec"
	"github.com/platformsh/platform-cli/internal/vcs"
	"github.com/spf13/afero"
)

// metadataDir is platform configuration that doesn't affect the build.
const metadataDir = ".platform"

// Hasher computes tree IDs.
type Hasher struct {
	git *vcs.Git
	fs  afero.Fs
}

// New creates a Hasher. Nil arguments use git on this machine and the real
// filesystem.
func New(runner exec.Runner, fs afero.Fs) *Hasher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Hasher{git: vcs.New(runner), fs: fs}
}

// Compute returns the tree ID for appRoot. Any git failure is returned as an
// error; callers treat that as "no cache key" and rebuild.
func (h *Hasher) Compute(ctx context.Context, appRoot string) (string, error) {
	tree, err := h.git.TrackedTree(ctx, appRoot)
	if err != nil {
		return "", err
	}
	hashes := []string{hashString(strings.Join(withoutMetadata(tree), "\n"))}

	modified, err := h.git.Modified(ctx, appRoot)
	if err != nil {
		return "", err
	}
	entries := make(map[string]string)
	for _, path := range dedupe(modified) {
		if isMetadata(path) {
			continue
		}
		sum, err := h.hashFile(appRoot, path)
		if os.IsNotExist(err) {
			entries[path] = hashString("deleted:" + path)
			continue
		}
		if err != nil {
			return "", err
		}
		if sum != "" {
			entries[path] = sum
		}
	}

	untracked, err := h.git.Untracked(ctx, appRoot)
	if err != nil {
		return "", err
	}
	for _, path := range untracked {
		if isMetadata(path) {
			continue
		}
		sum, err := h.hashFile(appRoot, path)
		if err != nil {
			return "", err
		}
		if sum != "" {
			entries[path] = sum
		}
	}

	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		hashes = append(hashes, entries[p])
	}

	return hashString(strings.Join(hashes, " ")), nil
}

// hashFile hashes a file's path and content. Directories (e.g. nested
// repositories reported by ls-files) hash to "".
func (h *Hasher) hashFile(appRoot, rel string) (string, error) {
	full := filepath.Join(appRoot, filepath.FromSlash(rel))
	info, err := h.fs.Stat(full)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", nil
	}

	f, err := h.fs.Open(full)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrVCS,
			"Couldn't read "+full+" for the tree ID", "")
	}
	defer f.Close()

	sum := sha1.New()
	fmt.Fprintf(sum, "%s\x00", rel)
	if _, err := io.Copy(sum, f); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrVCS,
			"Couldn't read "+full+" for the tree ID", "")
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// withoutMetadata drops ls-tree entries for the .platform directory.
func withoutMetadata(lines []string) []string {
	kept := lines[:0:0]
	for _, line := range lines {
		_, path, ok := strings.Cut(line, "\t")
		if ok && path == metadataDir {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

func isMetadata(path string) bool {
	return path == metadataDir || strings.HasPrefix(path, metadataDir+"/")
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0:0]
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func hashString(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
