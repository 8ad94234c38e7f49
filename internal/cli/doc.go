// Package cli turns the command line into an app.Config. It knows the two
// subcommands, run and worker, and their flags, and reports bad input as an
// ExitError carrying the process exit code.
package cli
