package archive

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/spf13/afero"
)

// Extension is the suffix of every cached archive.
const Extension = ".tar.gz"

// TempPrefix starts the name of an archive still being written. A process
// killed mid-write leaves one behind; the TTL sweep removes it.
const TempPrefix = ".tmp-"

// Cache is a directory of build archives named <tree ID>.tar.gz.
type Cache struct {
	Dir string
	FS  afero.Fs

	// Now stamps restored archives so TTL sweeps count from last use.
	Now func() time.Time
}

// NewCache creates a cache in dir on the real filesystem.
func NewCache(dir string) *Cache {
	return &Cache{Dir: dir, FS: afero.NewOsFs(), Now: time.Now}
}

// Entry describes one cached archive.
type Entry struct {
	TreeID  string
	Path    string
	Size    int64
	ModTime time.Time
}

// Path returns where the archive for treeID lives.
func (c *Cache) Path(treeID string) string {
	return filepath.Join(c.Dir, treeID+Extension)
}

// Lookup reports whether an archive exists for treeID.
func (c *Cache) Lookup(treeID string) (string, bool) {
	if treeID == "" {
		return "", false
	}
	p := c.Path(treeID)
	info, err := c.FS.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}

// Save archives srcDir under treeID, replacing any previous archive.
func (c *Cache) Save(srcDir, treeID string) (string, error) {
	if treeID == "" {
		return "", errors.New(errors.ErrArchive, "Can't save an archive without a tree ID", "")
	}
	p := c.Path(treeID)
	if err := Create(c.FS, srcDir, p); err != nil {
		return "", err
	}
	return p, nil
}

// Restore extracts the archive for treeID into destDir, which must not
// exist yet.
func (c *Cache) Restore(treeID, destDir string) error {
	p, ok := c.Lookup(treeID)
	if !ok {
		return errors.New(errors.ErrArchive,
			"No archive for tree "+treeID, "")
	}
	if err := Extract(c.FS, p, destDir); err != nil {
		return err
	}

	if c.Now != nil {
		now := c.Now()
		_ = c.FS.Chtimes(p, now, now)
	}
	return nil
}

// List returns the cached archives, newest first. A missing cache
// directory is an empty list.
func (c *Cache) List() ([]Entry, error) {
	infos, err := afero.ReadDir(c.FS, c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't read archive directory "+c.Dir, "")
	}

	var entries []Entry
	for _, info := range infos {
		name := info.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, Extension) || !info.Mode().IsRegular() {
			continue
		}
		entries = append(entries, Entry{
			TreeID:  strings.TrimSuffix(name, Extension),
			Path:    filepath.Join(c.Dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}
