// Package cli implements the platform command-line interface for local
// builds.
//
// Each Cobra command is a thin wrapper: it parses flags into an options
// struct and hands off to a command function (buildCommand, cleanCommand,
// buildsCommand, doctorCommand) that takes an io.Writer, so tests can run
// commands without a terminal.
//
// # Commands
//
//	platform build     - Build every application in the project (alias project:build)
//	platform clean     - Remove old builds and expired archives (alias project:clean)
//	platform builds    - List builds and cached archives
//	platform doctor    - Check build tools and the project folder
//	platform version   - Print version information
//
// # Project Discovery
//
// Commands search up from the working directory, or from --project, for a
// .platform-project file. The folder holding it is the project root.
//
// # Output
//
// Global flags (--verbose, --quiet, --no-color, --project) live on the root
// command. Commands that support --json write a single JSONEnvelope to
// stdout; when such a command fails before writing one, Execute writes an
// error envelope instead.
package cli
