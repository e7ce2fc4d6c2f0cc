// Package fsutil is the filesystem helper used by toolstacks and the build
// orchestrator. Everything goes through an afero.Fs so detection and copy
// logic can run against an in-memory filesystem; symlinks need a backing
// filesystem that supports them (afero.OsFs).
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/spf13/afero"
)

// alwaysSkipped are never copied or symlinked.
var alwaysSkipped = []string{".git", ".DS_Store"}

// Helper wraps an afero.Fs with the copy and link operations builds need.
type Helper struct {
	fs afero.Fs

	// RelativeLinks makes Symlink targets relative to the link's directory.
	RelativeLinks bool
}

// New creates a Helper. A nil fs means the real filesystem.
func New(fs afero.Fs) *Helper {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Helper{fs: fs, RelativeLinks: true}
}

// Fs returns the underlying filesystem.
func (h *Helper) Fs() afero.Fs {
	return h.fs
}

// Exists reports whether path exists, without following a final symlink.
func (h *Helper) Exists(path string) bool {
	_, err := h.lstat(path)
	return err == nil
}

// IsDir reports whether path is a directory, following symlinks.
func (h *Helper) IsDir(path string) bool {
	ok, err := afero.DirExists(h.fs, path)
	return err == nil && ok
}

// Copy copies a single file to dst unless dst already exists.
// It returns true when a copy was made.
func (h *Helper) Copy(src, dst string) (bool, error) {
	if h.Exists(dst) {
		return false, nil
	}
	if err := h.copyFile(src, dst); err != nil {
		return false, err
	}
	return true, nil
}

// CopyFile copies a single file to dst, replacing whatever is there.
func (h *Helper) CopyFile(src, dst string) error {
	return h.copyFile(src, dst)
}

// WriteIfMissing writes data to path unless the path exists.
func (h *Helper) WriteIfMissing(path string, data []byte, perm os.FileMode) (bool, error) {
	if h.Exists(path) {
		return false, nil
	}
	if err := h.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, err
	}
	if err := afero.WriteFile(h.fs, path, data, perm); err != nil {
		return false, err
	}
	return true, nil
}

// CopyAll recursively copies src into dst. Entries whose name matches one of
// skip (or the built-in .git/.DS_Store list) are not copied. Symlinks are
// recreated as symlinks.
func (h *Helper) CopyAll(src, dst string, skip ...string) error {
	info, err := h.fs.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return h.copyFile(src, dst)
	}

	if err := h.fs.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}

	entries, err := afero.ReadDir(h.fs, src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if matchAny(name, alwaysSkipped) || matchAny(name, skip) {
			continue
		}
		from := filepath.Join(src, name)
		to := filepath.Join(dst, name)

		linfo, err := h.lstat(from)
		if err != nil {
			return err
		}
		switch {
		case linfo.Mode()&os.ModeSymlink != 0:
			target, err := h.readlink(from)
			if err != nil {
				return err
			}
			if err := h.symlink(target, to); err != nil {
				return err
			}
		case linfo.IsDir():
			// Skip patterns apply to the top level only.
			if err := h.CopyAll(from, to); err != nil {
				return err
			}
		default:
			if err := h.copyFile(from, to); err != nil {
				return err
			}
		}
	}
	return nil
}

// SymlinkOptions controls SymlinkAll.
type SymlinkOptions struct {
	// SkipExisting leaves existing destination entries alone. When false they
	// are removed and replaced by a link.
	SkipExisting bool

	// Recursive descends into source directories whose destination is an
	// existing real directory, linking their contents instead.
	Recursive bool

	// Ignore lists doublestar patterns matched against entry names.
	Ignore []string
}

// SymlinkAll links every entry of src into dst. dst is created if needed.
func (h *Helper) SymlinkAll(src, dst string, opts SymlinkOptions) error {
	if !h.IsDir(src) {
		return errors.New(errors.ErrInstall,
			"Symlink source is not a directory: "+src,
			"")
	}
	if err := h.fs.MkdirAll(dst, 0755); err != nil {
		return err
	}

	entries, err := afero.ReadDir(h.fs, src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if matchAny(name, alwaysSkipped) || matchAny(name, opts.Ignore) {
			continue
		}

		from := filepath.Join(src, name)
		to := filepath.Join(dst, name)

		if linfo, err := h.lstat(to); err == nil {
			isLink := linfo.Mode()&os.ModeSymlink != 0

			if opts.Recursive && !isLink && linfo.IsDir() && h.IsDir(from) {
				if err := h.SymlinkAll(from, to, opts); err != nil {
					return err
				}
				continue
			}

			switch {
			case isLink && !h.targetExists(to):
				// Broken links are always replaced.
				if err := h.fs.Remove(to); err != nil {
					return err
				}
			case opts.SkipExisting:
				continue
			default:
				if err := h.fs.RemoveAll(to); err != nil {
					return err
				}
			}
		}

		if err := h.Symlink(from, to); err != nil {
			return err
		}
	}
	return nil
}

// SymlinkDir points link at target, replacing an existing link or empty
// directory at that path. It is used for the web root.
func (h *Helper) SymlinkDir(target, link string) error {
	if linfo, err := h.lstat(link); err == nil {
		if linfo.Mode()&os.ModeSymlink == 0 && linfo.IsDir() {
			entries, err := afero.ReadDir(h.fs, link)
			if err != nil {
				return err
			}
			if len(entries) > 0 {
				return errors.New(errors.ErrInstall,
					fmt.Sprintf("Can't replace %s: it is a non-empty directory", link),
					"Move it out of the way and build again.")
			}
		}
		if err := h.fs.RemoveAll(link); err != nil {
			return err
		}
	}
	return h.Symlink(target, link)
}

// Symlink creates link pointing at target, relative or absolute per
// RelativeLinks.
func (h *Helper) Symlink(target, link string) error {
	if h.RelativeLinks {
		rel, err := MakePathRelative(target, filepath.Dir(link))
		if err != nil {
			return err
		}
		target = rel
	}
	return h.symlink(target, link)
}

// MakePathRelative returns the path of target relative to base. Both are
// cleaned first; the result never has a trailing separator.
func MakePathRelative(target, base string) (string, error) {
	if !filepath.IsAbs(target) || !filepath.IsAbs(base) {
		return "", fmt.Errorf("make path relative: both paths must be absolute (%q, %q)", target, base)
	}
	return filepath.Rel(filepath.Clean(base), filepath.Clean(target))
}

// Match reports whether name matches any of the doublestar patterns.
func Match(name string, patterns []string) bool {
	return matchAny(name, patterns)
}

func matchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (h *Helper) copyFile(src, dst string) error {
	in, err := h.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := h.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := h.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (h *Helper) lstat(path string) (os.FileInfo, error) {
	if l, ok := h.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return h.fs.Stat(path)
}

func (h *Helper) symlink(target, link string) error {
	l, ok := h.fs.(afero.Linker)
	if !ok {
		return &os.LinkError{Op: "symlink", Old: target, New: link, Err: afero.ErrNoSymlink}
	}
	return l.SymlinkIfPossible(target, link)
}

func (h *Helper) readlink(path string) (string, error) {
	r, ok := h.fs.(afero.LinkReader)
	if !ok {
		return "", &os.PathError{Op: "readlink", Path: path, Err: afero.ErrNoReadlink}
	}
	return r.ReadlinkIfPossible(path)
}

// targetExists follows the link at path.
func (h *Helper) targetExists(path string) bool {
	_, err := h.fs.Stat(path)
	return err == nil
}

// IsInside reports whether path is base or lies beneath it.
func IsInside(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
