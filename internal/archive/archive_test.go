package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	require.NoError(t, os.Chmod(path, mode))
}

// buildTree creates a small build output with files, modes and symlinks.
func buildTree(t *testing.T, dir string) {
	t.Helper()
	writeTestFile(t, filepath.Join(dir, "index.php"), "<?php // Drupal", 0644)
	writeTestFile(t, filepath.Join(dir, "sites", "default", "default.settings.php"), "<?php", 0640)
	writeTestFile(t, filepath.Join(dir, "scripts", "run.sh"), "#!/bin/sh\necho hi\n", 0755)
	writeTestFile(t, filepath.Join(dir, "vendor", "autoload.php"), string(bytes.Repeat([]byte("x"), 100000)), 0644)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0755))
	require.NoError(t, os.Symlink("../../../shared/files", filepath.Join(dir, "sites", "default", "files")))
	require.NoError(t, os.Symlink("index.php", filepath.Join(dir, "home.php")))

	old := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "index.php"), old, old))
}

type snapshot struct {
	mode    os.FileMode
	content string
	link    string
}

// snapshotTree records every entry under dir, without following links.
func snapshotTree(t *testing.T, dir string) map[string]snapshot {
	t.Helper()
	snap := make(map[string]snapshot)
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		rel, _ := filepath.Rel(dir, p)
		if rel == "." {
			return nil
		}
		s := snapshot{mode: info.Mode()}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			s.link, err = os.Readlink(p)
			require.NoError(t, err)
		case info.Mode().IsRegular():
			data, err := os.ReadFile(p)
			require.NoError(t, err)
			s.content = string(data)
		}
		snap[rel] = s
		return nil
	})
	require.NoError(t, err)
	return snap
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "builds", "b1")
	buildTree(t, src)

	fs := afero.NewOsFs()
	dest := filepath.Join(dir, ".build-archives", "abc.tar.gz")
	require.NoError(t, Create(fs, src, dest))
	assert.FileExists(t, dest)

	out := filepath.Join(dir, "builds", "b2")
	require.NoError(t, Extract(fs, dest, out))

	assert.Equal(t, snapshotTree(t, src), snapshotTree(t, out))

	info, err := os.Stat(filepath.Join(out, "index.php"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestCreate_NoEnclosingFolder(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "build")
	writeTestFile(t, filepath.Join(src, "a.txt"), "a", 0644)
	writeTestFile(t, filepath.Join(src, "sub", "b.txt"), "b", 0644)

	dest := filepath.Join(dir, "out.tar.gz")
	require.NoError(t, Create(afero.NewOsFs(), src, dest))

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		names = append(names, hdr.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"a.txt", "sub/", "sub/b.txt"}, names)
}

func TestCreate_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := Create(afero.NewOsFs(), filepath.Join(dir, "nope"), filepath.Join(dir, "a.tar.gz"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrArchive))
	assert.Contains(t, err.Error(), "Build incomplete")
	assert.NoFileExists(t, filepath.Join(dir, "a.tar.gz"))
}

func TestCreate_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "build")
	writeTestFile(t, filepath.Join(src, "a.txt"), "a", 0644)
	archives := filepath.Join(dir, "archives")

	require.NoError(t, Create(afero.NewOsFs(), src, filepath.Join(archives, "x.tar.gz")))

	entries, err := os.ReadDir(archives)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x.tar.gz", entries[0].Name())
}

func TestExtract_Preconditions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "build")
	writeTestFile(t, filepath.Join(src, "a.txt"), "a", 0644)
	archive := filepath.Join(dir, "a.tar.gz")
	fs := afero.NewOsFs()
	require.NoError(t, Create(fs, src, archive))

	t.Run("destination exists", func(t *testing.T) {
		err := Extract(fs, archive, src)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("parent missing", func(t *testing.T) {
		err := Extract(fs, archive, filepath.Join(dir, "missing", "out"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parent directory must exist")
	})

	t.Run("archive missing", func(t *testing.T) {
		err := Extract(fs, filepath.Join(dir, "nope.tar.gz"), filepath.Join(dir, "out"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Archive not found")
	})
}

func TestExtract_CorruptArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "bad.tar.gz")
	writeTestFile(t, archive, "this is not gzip", 0644)

	out := filepath.Join(dir, "out")
	err := Extract(afero.NewOsFs(), archive, out)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrArchive))
	assert.NoDirExists(t, out)
}

// writeRawArchive builds an archive with arbitrary headers.
func writeRawArchive(t *testing.T, path string, entries []tar.Header) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, hdr := range entries {
		hdr := hdr
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len("payload"))
		}
		require.NoError(t, tw.WriteHeader(&hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte("payload"))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestExtract_RefusesEscapes(t *testing.T) {
	tests := []struct {
		name    string
		entries []tar.Header
	}{
		{
			name:    "parent traversal",
			entries: []tar.Header{{Name: "../evil.txt", Typeflag: tar.TypeReg, Mode: 0644}},
		},
		{
			name:    "nested traversal",
			entries: []tar.Header{{Name: "a/../../evil.txt", Typeflag: tar.TypeReg, Mode: 0644}},
		},
		{
			name: "write through symlink",
			entries: []tar.Header{
				{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/tmp", Mode: 0777},
				{Name: "link/evil.txt", Typeflag: tar.TypeReg, Mode: 0644},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			archive := filepath.Join(dir, "evil.tar.gz")
			writeRawArchive(t, archive, tt.entries)

			out := filepath.Join(dir, "sub", "out")
			require.NoError(t, os.MkdirAll(filepath.Dir(out), 0755))
			err := Extract(afero.NewOsFs(), archive, out)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "refusing entry")
			assert.NoDirExists(t, out)
			assert.NoFileExists(t, filepath.Join(dir, "sub", "evil.txt"))
			assert.NoFileExists(t, filepath.Join(dir, "evil.txt"))
		})
	}
}

func TestExtract_DotSlashNames(t *testing.T) {
	// Archives made with `tar -C dir -czf x.tar.gz .` use ./ prefixes.
	dir := t.TempDir()
	archive := filepath.Join(dir, "dot.tar.gz")
	writeRawArchive(t, archive, []tar.Header{
		{Name: "./", Typeflag: tar.TypeDir, Mode: 0755},
		{Name: "./sub/", Typeflag: tar.TypeDir, Mode: 0755},
		{Name: "./sub/file.txt", Typeflag: tar.TypeReg, Mode: 0600},
	})

	out := filepath.Join(dir, "out")
	require.NoError(t, Extract(afero.NewOsFs(), archive, out))

	data, err := os.ReadFile(filepath.Join(out, "sub", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	info, err := os.Stat(filepath.Join(out, "sub", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRoundTrip_MemMapFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p/builds/b1/index.html", []byte("hello"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/p/builds/b1/css/site.css", []byte("body{}"), 0644))

	require.NoError(t, Create(fs, "/p/builds/b1", "/p/.build-archives/t.tar.gz"))
	require.NoError(t, Extract(fs, "/p/.build-archives/t.tar.gz", "/p/builds/b2"))

	data, err := afero.ReadFile(fs, "/p/builds/b2/css/site.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))
}
