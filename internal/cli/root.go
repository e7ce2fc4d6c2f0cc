package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/errors"
	"github.com/platformsh/platform-cli/internal/logger"
	"github.com/platformsh/platform-cli/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Global flags
var (
	verboseCount int
	quietFlag    bool
	noColorFlag  bool
	projectFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "platform",
	Short: "Build Platform.sh projects locally",
	Long: `Build the applications of a Platform.sh project checkout on this machine.

A project folder holds a 'repository' checkout, a 'builds' directory with one
directory per build, and a 'www' link to the latest build.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if quietFlag && verboseCount > 0 {
			return errors.New(errors.ErrConfig,
				"--quiet and --verbose cannot be used together",
				"Pick one.")
		}
		if noColorFlag || os.Getenv("NO_COLOR") != "" || !isTerminal(cmd.OutOrStdout()) {
			ui.DisableColors()
		}
		if Verbosity() >= config.VerbosityDebug {
			_ = os.Setenv(logger.DebugEnv, "1")
		}
		logger.SetDefault(logger.NewEnvLogger("[platform]"))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verboseCount, "verbose", "v", "increase verbosity (-v, -vv, -vvv)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "only print errors")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "project folder (default: search up from the current directory)")
}

// Verbosity maps the -q/-v flags onto config.Verbosity.
func Verbosity() config.Verbosity {
	if quietFlag {
		return config.VerbosityQuiet
	}
	v := config.Verbosity(verboseCount)
	if v > config.VerbosityDebug {
		v = config.VerbosityDebug
	}
	return v
}

// Execute runs the root command and exits non-zero on error. Interrupts
// cancel the command's context so builds stop between applications.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// A failed --json run still owes stdout an envelope.
		if MachineMode() && !envelopeWritten {
			_ = WriteJSONFromError(os.Stdout, err)
		}
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	if isUnknownCommandError(err) {
		msg := err.Error()
		if name := extractUnknownCommand(err); name != "" {
			msg = fmt.Sprintf("Unknown command '%s'", name)
		}
		fmt.Fprintf(w, "%s\n\n  Run 'platform --help' to see the available commands.\n", ui.ErrorStyle().Render(ui.SymbolFail+" "+msg))
		return
	}
	var e *errors.Error
	if errors.As(err, &e) {
		fmt.Fprint(w, e.Error())
		return
	}
	fmt.Fprintf(w, "%s %v\n", ui.SymbolFail, err)
}

// isUnknownCommandError reports cobra's errors for unknown commands and flags.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "platform"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start == -1 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end == -1 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
