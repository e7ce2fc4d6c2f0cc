package cli

import (
	"os"

	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	buildFlags BuildOptions
	cleanFlags CleanOptions
	buildsJSON bool
	cleanTTL   string
	doctorJSON bool
	doctorFix  bool
)

// buildCmd builds the project's applications into builds/ and links www.
var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"project:build"},
	Short:   "Build the current project locally",
	Long: `Build every application in the project's repository.

Each application gets a new directory under builds/, named after the time and
the environment. When the application's files haven't changed since an
earlier build, the build is extracted from the archive cache instead of being
run again. The web root (www) is then linked to the new build.

Examples:
  platform build
  platform build --environment staging
  platform build --abslinks --no-archive
  platform build -vv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := buildFlags
		opts.AbsLinksSet = cmd.Flags().Changed("abslinks")
		machineMode = opts.JSON
		return buildCommand(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

// cleanCmd removes old builds, and optionally expired archives.
var cleanCmd = &cobra.Command{
	Use:     "clean",
	Aliases: []string{"project:clean"},
	Short:   "Remove old project builds",
	Long: `Remove old builds from builds/, keeping the newest ones.

With --archives, build archives that haven't been used within --ttl are
removed as well.

Examples:
  platform clean
  platform clean --keep 1
  platform clean --archives --ttl 24h
  platform clean --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cleanFlags
		ttl, err := ParseDurationFlag("ttl", cleanTTL, -1)
		if err != nil {
			return err
		}
		opts.TTL = ttl
		return cleanCommand(cmd.OutOrStdout(), opts)
	},
}

// buildsCmd lists builds and archives.
var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "List local builds and build archives",
	Long: `List the project's build directories and cached build archives,
newest first, with their size and age.

Examples:
  platform builds
  platform builds --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		machineMode = buildsJSON
		return buildsCommand(cmd.OutOrStdout(), buildsJSON)
	},
}

// doctorCmd checks the build tools and project folder.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that local builds can run",
	Long: `Run diagnostic checks for local builds.

Checks:
  - git, composer and drush are on PATH
  - the project config loads
  - the repository is a git checkout
  - builds/ and shared/ exist
  - no other build holds the lock

Examples:
  platform doctor
  platform doctor --fix
  platform doctor --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		machineMode = doctorJSON
		return doctorCommand(cmd.OutOrStdout(), doctorFix, doctorJSON)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for platform.

Examples:
  # Bash
  platform completion bash > /etc/bash_completion.d/platform

  # Zsh
  platform completion zsh > "${fpath[1]}/_platform"

  # Fish
  platform completion fish > ~/.config/fish/completions/platform.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrExec,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// build command flags
	buildCmd.Flags().BoolVarP(&buildFlags.AbsLinks, "abslinks", "a", false, "use absolute links")
	buildCmd.Flags().StringVarP(&buildFlags.Environment, "environment", "e", "", "environment ID (default: the current git branch)")
	buildCmd.Flags().BoolVar(&buildFlags.WorkingCopy, "working-copy", false, "drush: use git to clone a repository of each Drupal module rather than simply downloading a version")
	buildCmd.Flags().IntVar(&buildFlags.Concurrency, "concurrency", 0, "drush: set the number of concurrent projects that will be processed at the same time")
	buildCmd.Flags().BoolVar(&buildFlags.NoCache, "no-cache", false, "disable caching")
	buildCmd.Flags().BoolVar(&buildFlags.NoClean, "no-clean", false, "do not remove old builds")
	buildCmd.Flags().BoolVar(&buildFlags.NoArchive, "no-archive", false, "do not create or use a build archive")
	buildCmd.Flags().BoolVar(&buildFlags.JSON, "json", false, "print the build report as JSON")

	// clean command flags
	cleanCmd.Flags().IntVar(&cleanFlags.Keep, "keep", 5, "the number of builds to keep")
	cleanCmd.Flags().BoolVar(&cleanFlags.Archives, "archives", false, "also remove expired build archives")
	cleanCmd.Flags().StringVar(&cleanTTL, "ttl", "", "archive lifetime (default: local.archive_ttl, e.g. 168h)")
	cleanCmd.Flags().BoolVar(&cleanFlags.DryRun, "dry-run", false, "show what would be removed without removing it")
	cleanCmd.Flags().BoolVarP(&cleanFlags.Yes, "yes", "y", false, "don't ask for confirmation")

	// builds command flags
	buildsCmd.Flags().BoolVar(&buildsJSON, "json", false, "output in JSON format")

	// doctor command flags
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output in JSON format")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "attempt automatic fixes where possible")

	// Register all commands
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(buildsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(completionCmd)
}
