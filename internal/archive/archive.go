// Package archive stores build directories as gzip-compressed tarballs.
// The archive root is the content of the build directory, with no
// enclosing folder, so an archive can be extracted under any name.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/fsutil"
	"github.com/spf13/afero"
)

// Create writes srcDir into a new archive at dest. The archive is written to
// a temporary file next to dest and renamed into place, so readers never see
// a partial archive.
func Create(fs afero.Fs, srcDir, dest string) (err error) {
	info, err := fs.Stat(srcDir)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Build incomplete: "+srcDir, "")
	}
	if !info.IsDir() {
		return errors.New(errors.ErrArchive,
			"Not a directory: "+srcDir, "")
	}

	if err := fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't create archive directory", "Check permissions on "+filepath.Dir(dest))
	}

	tmp, err := afero.TempFile(fs, filepath.Dir(dest), TempPrefix+"*"+Extension)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't create archive file", "Check permissions on "+filepath.Dir(dest))
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			_ = fs.Remove(tmpName)
		}
	}()

	gz, err := gzip.NewWriterLevel(tmp, gzip.DefaultCompression)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(gz)

	if err := writeTree(fs, tw, srcDir); err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't archive "+srcDir, "")
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := fs.Rename(tmpName, dest); err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't move archive into place", "")
	}
	return nil
}

func writeTree(fs afero.Fs, tw *tar.Writer, root string) error {
	return afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			reader, ok := fs.(afero.LinkReader)
			if !ok {
				return fmt.Errorf("can't read symlink %s: %w", p, afero.ErrNoReadlink)
			}
			if link, err = reader.ReadlinkIfPossible(p); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}
		// Ownership isn't restored, so don't record it.
		hdr.Uid, hdr.Gid, hdr.Uname, hdr.Gname = 0, 0, "", ""

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := fs.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

// Extract unpacks src into destDir, which must not exist yet; its parent
// must. Entries that would land outside destDir are refused. On failure
// destDir is removed again.
func Extract(fs afero.Fs, src, destDir string) (err error) {
	if _, err := fs.Stat(src); err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Archive not found: "+src, "")
	}
	if _, err := fs.Stat(destDir); err == nil {
		return errors.New(errors.ErrArchive,
			"Can't extract archive: "+destDir+" already exists", "")
	}
	if parent, err := fs.Stat(filepath.Dir(destDir)); err != nil || !parent.IsDir() {
		return errors.New(errors.ErrArchive,
			"Can't extract archive to: "+destDir,
			"The parent directory must exist.")
	}

	f, err := fs.Open(src)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't open archive "+src, "")
	}
	defer f.Close()

	if err := fs.Mkdir(destDir, 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't create "+destDir, "")
	}
	defer func() {
		if err != nil {
			_ = fs.RemoveAll(destDir)
		}
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Archive is not gzip-compressed: "+src, "Delete it and build again.")
	}
	defer gz.Close()

	if err := readTree(fs, tar.NewReader(gz), destDir); err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't extract "+src, "Delete the archive and build again.")
	}
	return nil
}

func readTree(fs afero.Fs, tr *tar.Reader, destDir string) error {
	var links []string
	dirTimes := make(map[string]time.Time)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		name := path.Clean(strings.TrimPrefix(hdr.Name, "./"))
		if name == "." {
			continue
		}
		target := filepath.Join(destDir, filepath.FromSlash(name))
		if path.IsAbs(name) || !fsutil.IsInside(target, destDir) || target == destDir {
			return fmt.Errorf("refusing entry %q outside the destination", hdr.Name)
		}
		for _, l := range links {
			if fsutil.IsInside(target, l) {
				return fmt.Errorf("refusing entry %q below symlink %s", hdr.Name, l)
			}
		}

		mode := os.FileMode(hdr.Mode).Perm()
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(target, mode|0700); err != nil {
				return err
			}
			if err := fs.Chmod(target, mode|0700); err != nil {
				return err
			}
			dirTimes[target] = hdr.ModTime

		case tar.TypeReg:
			if err := writeFile(fs, tr, target, mode); err != nil {
				return err
			}
			if err := fs.Chtimes(target, hdr.ModTime, hdr.ModTime); err != nil {
				return err
			}

		case tar.TypeSymlink:
			linker, ok := fs.(afero.Linker)
			if !ok {
				return fmt.Errorf("can't create symlink %s: %w", target, afero.ErrNoSymlink)
			}
			if err := fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := linker.SymlinkIfPossible(hdr.Linkname, target); err != nil {
				return err
			}
			links = append(links, target)

		default:
			// Hard links, devices and fifos never come out of a build.
			continue
		}
	}

	// Directory times go last; writing files into them bumps their mtime.
	dirs := make([]string, 0, len(dirTimes))
	for d := range dirTimes {
		dirs = append(dirs, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		if err := fs.Chtimes(d, dirTimes[d], dirTimes[d]); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(fs afero.Fs, r io.Reader, target string, mode os.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile is subject to the umask.
	return fs.Chmod(target, mode)
}
