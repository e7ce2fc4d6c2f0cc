package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/platformsh/platform-cli/internal/archive"
	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/ui"
	"github.com/spf13/afero"
)

// treeIDWidth is how much of a tree ID the table shows.
const treeIDWidth = 12

// BuildEntry describes one build directory.
type BuildEntry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified"`
	Current bool      `json:"current"`
}

// ArchiveEntry describes one cached build archive.
type ArchiveEntry struct {
	TreeID   string    `json:"tree_id"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	LastUsed time.Time `json:"last_used"`
}

// BuildsOutput is the --json form of the builds command.
type BuildsOutput struct {
	Builds   []BuildEntry   `json:"builds"`
	Archives []ArchiveEntry `json:"archives"`
}

func buildsCommand(out io.Writer, jsonOut bool) error {
	project, err := loadProject()
	if err != nil {
		return err
	}

	listing, err := listBuilds(afero.NewOsFs(), project)
	if err != nil {
		return err
	}

	if jsonOut {
		return WriteJSONSuccess(out, listing)
	}
	renderBuilds(out, listing, time.Now())
	return nil
}

// listBuilds collects builds, newest first, and archives, most recently
// used first.
func listBuilds(fs afero.Fs, project *config.Project) (*BuildsOutput, error) {
	listing := &BuildsOutput{Builds: []BuildEntry{}, Archives: []ArchiveEntry{}}

	infos, err := afero.ReadDir(fs, project.BuildsDir())
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read "+project.BuildsDir(),
			"Check permissions on the project folder.")
	}

	current := currentBuilds(project)
	for _, info := range infos {
		if strings.HasPrefix(info.Name(), ".") || !info.IsDir() {
			continue
		}
		path := filepath.Join(project.BuildsDir(), info.Name())
		listing.Builds = append(listing.Builds, BuildEntry{
			Name:    info.Name(),
			Path:    path,
			Size:    dirSize(fs, path),
			ModTime: info.ModTime(),
			Current: current[path],
		})
	}
	sort.Slice(listing.Builds, func(i, j int) bool {
		return listing.Builds[i].Name > listing.Builds[j].Name
	})

	cache := &archive.Cache{Dir: project.ArchiveDir(), FS: fs}
	entries, err := cache.List()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		listing.Archives = append(listing.Archives, ArchiveEntry{
			TreeID:   e.TreeID,
			Path:     e.Path,
			Size:     e.Size,
			LastUsed: e.ModTime,
		})
	}
	return listing, nil
}

// currentBuilds returns the build directories the web root points at:
// www itself for one application, or each link inside www for several.
func currentBuilds(project *config.Project) map[string]bool {
	current := make(map[string]bool)
	www := project.WebRoot()
	builds, err := filepath.EvalSymlinks(project.BuildsDir())
	if err != nil {
		return current
	}

	mark := func(link string) {
		target, err := filepath.EvalSymlinks(link)
		if err != nil {
			return
		}
		// Drupal links www to a subdirectory of the build.
		rel, err := filepath.Rel(builds, target)
		if err != nil || strings.HasPrefix(rel, "..") {
			return
		}
		name := strings.Split(filepath.ToSlash(rel), "/")[0]
		current[filepath.Join(project.BuildsDir(), name)] = true
	}

	info, err := os.Lstat(www)
	if err != nil {
		return current
	}
	if info.Mode()&os.ModeSymlink != 0 {
		mark(www)
		return current
	}
	if entries, err := os.ReadDir(www); err == nil {
		for _, e := range entries {
			mark(filepath.Join(www, e.Name()))
		}
	}
	return current
}

// dirSize sums regular file sizes under dir without following links.
func dirSize(fs afero.Fs, dir string) int64 {
	var total int64
	_ = afero.Walk(fs, dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}

func renderBuilds(out io.Writer, listing *BuildsOutput, now time.Time) {
	mutedStyle := ui.MutedStyle()

	if len(listing.Builds) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No builds yet. Run 'platform build' to create one."))
	} else {
		rows := make([][]string, 0, len(listing.Builds))
		for _, b := range listing.Builds {
			marker := ""
			if b.Current {
				marker = ui.SymbolComplete
			}
			rows = append(rows, []string{
				marker,
				b.Name,
				humanize.Bytes(uint64(b.Size)),
				humanize.RelTime(b.ModTime, now, "ago", "from now"),
			})
		}
		fmt.Fprintln(out, ui.RenderSimpleTable([]ui.TableColumn{
			{Title: "", Width: 1},
			{Title: "Build", Width: 5},
			{Title: "Size", Width: 4},
			{Title: "Age", Width: 3},
		}, rows))
	}

	if len(listing.Archives) == 0 {
		return
	}
	fmt.Fprintln(out)
	rows := make([][]string, 0, len(listing.Archives))
	var total uint64
	for _, a := range listing.Archives {
		id := a.TreeID
		if len(id) > treeIDWidth {
			id = id[:treeIDWidth]
		}
		total += uint64(a.Size)
		rows = append(rows, []string{
			id,
			humanize.Bytes(uint64(a.Size)),
			humanize.RelTime(a.LastUsed, now, "ago", "from now"),
		})
	}
	fmt.Fprintln(out, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "Archive", Width: 7},
		{Title: "Size", Width: 4},
		{Title: "Last used", Width: 9},
	}, rows))
	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d archive%s, %s total",
		len(listing.Archives), pluralSuffix(len(listing.Archives)), humanize.Bytes(total))))
}
