package toolstack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/fsutil"
	"github.com/spf13/afero"
)

// DrupalKey identifies the Drupal toolstack.
const DrupalKey = "php:drupal"

// Make file names recognised by detection and the build modes.
const (
	projectMake       = "project.make"
	projectCoreMake   = "project-core.make"
	drupalOrgMake     = "drupal-org.make"
	drupalOrgCoreMake = "drupal-org-core.make"
)

// indexSniffBytes is how much of index.php detection reads.
const indexSniffBytes = 3178

// releaseXMLCacheSeconds is passed to drush when its cache is enabled.
const releaseXMLCacheSeconds = 300

// DrupalMode is how a Drupal application gets built.
type DrupalMode string

const (
	// ModeProfile builds core, then the app's install profile on top.
	ModeProfile DrupalMode = "profile"
	// ModeProject builds everything from a single project.make.
	ModeProject DrupalMode = "project"
	// ModeVanilla uses the application directory as is.
	ModeVanilla DrupalMode = "vanilla"
)

// specialDestination sends app files matching pattern to a directory
// relative to the build.
type specialDestination struct {
	pattern string
	dir     string
}

// Drupal builds Drupal sites with drush make.
type Drupal struct {
	Base

	drushFlags   []string
	ignoredFiles []string
	special      []specialDestination
}

// NewDrupal creates a Drupal toolstack.
func NewDrupal(env Env) *Drupal {
	return &Drupal{Base: newBase(env)}
}

// Key implements Toolstack.
func (d *Drupal) Key() string { return DrupalKey }

// Requirements implements Toolstack.
func (d *Drupal) Requirements() []string { return []string{"drush"} }

// Detect implements Toolstack. Only the top level of appRoot is inspected.
func (d *Drupal) Detect(appRoot string) bool {
	return IsDrupal(d.env.FS, appRoot, 0)
}

// IsDrupal reports whether dir, or a subdirectory up to maxDepth levels
// down, has a drush make file or an index.php mentioning Drupal near the top.
func IsDrupal(fs afero.Fs, dir string, maxDepth int) bool {
	var indexFiles []string
	found := false

	_ = afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || found {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))

		if info.IsDir() {
			if rel != "." && (info.Name() == ".git" || depth >= maxDepth) {
				return filepath.SkipDir
			}
			return nil
		}

		switch info.Name() {
		case projectMake, projectCoreMake, drupalOrgMake, drupalOrgCoreMake:
			found = true
			return filepath.SkipAll
		case "index.php":
			indexFiles = append(indexFiles, path)
		}
		return nil
	})
	if found {
		return true
	}

	for _, path := range indexFiles {
		if mentionsDrupal(fs, path) {
			return true
		}
	}
	return false
}

func mentionsDrupal(fs afero.Fs, path string) bool {
	f, err := fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, indexSniffBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false
	}
	return bytes.Contains(head[:n], []byte("Drupal"))
}

// Mode works out which build mode applies to the prepared application.
func (d *Drupal) Mode() (DrupalMode, string, error) {
	profiles, err := d.profiles()
	if err != nil {
		return "", "", err
	}
	switch {
	case len(profiles) > 1:
		return "", "", errors.New(errors.ErrBuild,
			"Found multiple files ending in '*.profile' in "+d.paths.AppRoot,
			"Keep a single install profile per application.")
	case len(profiles) == 1:
		name, _, _ := strings.Cut(profiles[0], ".")
		return ModeProfile, name, nil
	case d.fs.Exists(filepath.Join(d.paths.AppRoot, projectMake)):
		return ModeProject, "", nil
	default:
		return ModeVanilla, "", nil
	}
}

// Archivable implements Toolstack. Vanilla builds happen in place and are
// never archived.
func (d *Drupal) Archivable() bool {
	if !d.Base.Archivable() {
		return false
	}
	mode, _, err := d.Mode()
	return err == nil && mode != ModeVanilla
}

// Build implements Toolstack.
func (d *Drupal) Build(ctx context.Context) error {
	d.setUpDrushFlags()
	d.ignoredFiles = nil
	d.special = nil

	mode, profile, err := d.Mode()
	if err != nil {
		return err
	}

	switch mode {
	case ModeProfile:
		err = d.buildProfile(ctx, profile)
	case ModeProject:
		err = d.buildProject(ctx)
	default:
		err = d.buildVanilla(ctx)
	}
	if err != nil {
		return err
	}

	return d.symlinkSpecialDestinations()
}

// DrushFlags returns the flags passed to every drush make call.
func (d *Drupal) DrushFlags() []string {
	return d.drushFlags
}

func (d *Drupal) setUpDrushFlags() {
	s := d.settings
	flags := []string{"--yes"}

	switch {
	case s.Verbosity == config.VerbosityQuiet:
		flags = append(flags, "--quiet")
	case s.Verbosity == config.VerbosityDebug:
		flags = append(flags, "--debug")
	case s.Verbosity >= config.VerbosityVeryVerbose:
		flags = append(flags, "--verbose")
	}

	if s.DrushWorkingCopy {
		flags = append(flags, "--working-copy")
	}

	if s.NoCache {
		flags = append(flags, "--no-cache")
	} else {
		flags = append(flags, "--cache-duration-releasexml="+strconv.Itoa(releaseXMLCacheSeconds))
	}

	concurrency := s.DrushConcurrency
	if concurrency < 1 {
		concurrency = config.DefaultDrushConcurrency
	}
	flags = append(flags, "--concurrency="+strconv.Itoa(concurrency))

	d.drushFlags = flags
}

func (d *Drupal) drush(ctx context.Context, dir string, args ...string) error {
	return d.run(ctx, dir, "drush", append(args, d.drushFlags...)...)
}

// buildProject runs drush make on project.make, then links the app's files
// into sites/default.
func (d *Drupal) buildProject(ctx context.Context) error {
	if err := d.requireTools("drush"); err != nil {
		return err
	}

	makeFile := filepath.Join(d.paths.AppRoot, projectMake)
	if err := d.drush(ctx, "", "make", makeFile, d.buildDir); err != nil {
		return err
	}

	if err := d.processSettingsPhp(); err != nil {
		return err
	}

	d.ignoredFiles = append(d.ignoredFiles, projectMake, "settings.local.php")
	d.special = append(d.special, specialDestination{"sites.php", "sites"})

	// Non-recursive: drush owns everything it just built.
	return d.symlinkApp(filepath.Join(d.buildDir, "sites", "default"), false)
}

// buildProfile builds core from the core make file, then the profile's
// contrib from the project make file into profiles/<name>.
func (d *Drupal) buildProfile(ctx context.Context, profile string) error {
	if err := d.requireTools("drush"); err != nil {
		return err
	}

	contribMake, ok := d.firstExisting(projectMake, drupalOrgMake)
	if !ok {
		return errors.New(errors.ErrBuild,
			"Couldn't find a project.make or drupal-org.make in "+d.paths.AppRoot,
			"Profile builds need a make file for contrib projects.")
	}
	coreMake, ok := d.firstExisting(projectCoreMake, drupalOrgCoreMake)
	if !ok {
		return errors.New(errors.ErrBuild,
			"Couldn't find a project-core.make or drupal-org-core.make in "+d.paths.AppRoot,
			"Profile builds need a make file for Drupal core.")
	}

	if err := d.drush(ctx, "", "make", coreMake, d.buildDir); err != nil {
		return err
	}

	profileDir := filepath.Join(d.buildDir, "profiles", profile)
	if err := d.env.FS.MkdirAll(profileDir, 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrBuild,
			"Couldn't create profile directory "+profileDir, "")
	}

	d.env.Logger.Info("Building the profile: %s", profile)
	if err := d.drush(ctx, profileDir, "make", "--no-core", "--contrib-destination=.", contribMake); err != nil {
		return err
	}

	d.ignoredFiles = append(d.ignoredFiles,
		filepath.Base(contribMake), filepath.Base(coreMake), "settings.local.php")
	d.special = append(d.special,
		specialDestination{"settings*.php", filepath.Join("sites", "default")},
		specialDestination{"sites.php", "sites"},
	)

	if err := d.processSettingsPhp(); err != nil {
		return err
	}

	// Recursive and skipping existing files, so contrib built by drush
	// stays while the app's custom modules are added next to it.
	d.env.Logger.Info("Symlinking existing app files to the profile")
	return d.symlinkApp(profileDir, true)
}

// buildVanilla uses the application as its own build.
func (d *Drupal) buildVanilla(ctx context.Context) error {
	d.env.Logger.Warn("Building in vanilla mode: you are missing out!")
	d.buildDir = d.paths.AppRoot
	d.preventCache = true

	if err := d.writeResource("drupal/gitignore-vanilla", filepath.Join(d.paths.AppRoot, ".gitignore")); err != nil {
		return err
	}

	d.checkIgnored(ctx, "sites/default/settings.local.php")
	d.checkIgnored(ctx, "sites/default/files")
	return nil
}

// checkIgnored warns when an app file that holds local state isn't ignored
// by git. Git failures are not fatal here.
func (d *Drupal) checkIgnored(ctx context.Context, filename string) {
	repo := d.paths.RepositoryDir()
	rel, err := fsutil.MakePathRelative(filepath.Join(d.paths.AppRoot, filename), repo)
	if err != nil {
		return
	}
	ignored, err := d.git.CheckIgnored(ctx, repo, rel)
	if err != nil {
		d.env.Logger.Debug("check-ignore %s: %v", rel, err)
		return
	}
	if !ignored {
		d.env.Logger.Warn("You should exclude this file using .gitignore: %s", rel)
	}
}

// processSettingsPhp copies a custom settings.php into sites/default. A
// symlink would make Drupal look for settings.local.php next to the source.
func (d *Drupal) processSettingsPhp() error {
	src := filepath.Join(d.paths.AppRoot, "settings.php")
	if !d.fs.Exists(src) {
		return nil
	}

	d.env.Logger.Info("Found a custom settings.php file: %s", src)
	dst := filepath.Join(d.buildDir, "sites", "default", "settings.php")
	if err := d.fs.CopyFile(src, dst); err != nil {
		return errors.WrapWithCode(err, errors.ErrBuild,
			"Couldn't copy settings.php into the build", "")
	}
	d.env.Logger.Warn("Your settings.php file has been copied (not symlinked) into the build directory.\n" +
		"You will need to rebuild if you edit this file.")
	d.ignoredFiles = append(d.ignoredFiles, "settings.php")
	return nil
}

func (d *Drupal) symlinkApp(dst string, recursive bool) error {
	ignore := append([]string{}, d.ignoredFiles...)
	for _, s := range d.special {
		ignore = append(ignore, s.pattern)
	}
	err := d.fs.SymlinkAll(d.paths.AppRoot, dst, fsutil.SymlinkOptions{
		SkipExisting: true,
		Recursive:    recursive,
		Ignore:       ignore,
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrBuild,
			"Couldn't link application files into "+dst, "")
	}
	return nil
}

// symlinkSpecialDestinations links files like sites.php to where Drupal
// expects them, replacing whatever drush put there.
func (d *Drupal) symlinkSpecialDestinations() error {
	if len(d.special) == 0 {
		return nil
	}

	entries, err := afero.ReadDir(d.env.FS, d.paths.AppRoot)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrBuild,
			"Couldn't read "+d.paths.AppRoot, "")
	}

	for _, s := range d.special {
		destDir := filepath.Join(d.buildDir, s.dir)
		for _, entry := range entries {
			name := entry.Name()
			if !fsutil.Match(name, []string{s.pattern}) || fsutil.Match(name, d.ignoredFiles) {
				continue
			}
			if err := d.env.FS.MkdirAll(destDir, 0755); err != nil {
				return errors.WrapWithCode(err, errors.ErrBuild,
					"Couldn't create "+destDir, "")
			}
			dst := filepath.Join(destDir, name)
			if d.fs.Exists(dst) {
				if err := d.env.FS.RemoveAll(dst); err != nil {
					return errors.WrapWithCode(err, errors.ErrBuild,
						"Couldn't replace "+dst, "")
				}
			}
			if err := d.fs.Symlink(filepath.Join(d.paths.AppRoot, name), dst); err != nil {
				return errors.WrapWithCode(err, errors.ErrBuild,
					fmt.Sprintf("Couldn't link %s into %s", name, destDir), "")
			}
		}
	}
	return nil
}

// Install implements Toolstack.
func (d *Drupal) Install(ctx context.Context, docRoot string) error {
	sitesDefault := filepath.Join(d.buildDir, "sites", "default")
	shared := d.paths.SharedDir()

	if err := d.writeResource("drupal/settings.php", filepath.Join(sitesDefault, "settings.php")); err != nil {
		return err
	}

	// Everything in shared/ is linked into sites/default, so local settings
	// and user files survive rebuilds.
	if err := d.writeResource("drupal/settings.local.php", filepath.Join(shared, "settings.local.php")); err != nil {
		return err
	}

	files := filepath.Join(shared, "files")
	if !d.fs.Exists(files) {
		if err := d.env.FS.MkdirAll(files, 0775); err != nil {
			return errors.WrapWithCode(err, errors.ErrInstall,
				"Couldn't create "+files, "")
		}
		// Group write is handy when the web server runs as another user.
		if err := d.env.FS.Chmod(files, 0775); err != nil {
			return errors.WrapWithCode(err, errors.ErrInstall,
				"Couldn't set permissions on "+files, "")
		}
	}

	if err := d.fs.SymlinkAll(shared, sitesDefault, fsutil.SymlinkOptions{SkipExisting: true}); err != nil {
		return errors.WrapWithCode(err, errors.ErrInstall,
			"Couldn't link shared files into "+sitesDefault, "")
	}

	return d.linkWebRoot(docRoot)
}

func (d *Drupal) firstExisting(names ...string) (string, bool) {
	for _, name := range names {
		p := filepath.Join(d.paths.AppRoot, name)
		if d.fs.Exists(p) {
			return p, true
		}
	}
	return "", false
}

func (d *Drupal) profiles() ([]string, error) {
	entries, err := afero.ReadDir(d.env.FS, d.paths.AppRoot)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrBuild,
			"Couldn't read "+d.paths.AppRoot, "")
	}
	var profiles []string
	for _, entry := range entries {
		if !entry.IsDir() && fsutil.Match(entry.Name(), []string{"*.profile"}) {
			profiles = append(profiles, entry.Name())
		}
	}
	return profiles, nil
}
