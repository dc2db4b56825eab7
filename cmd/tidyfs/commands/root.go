// Package commands implements the tidyfs command line.
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tidyfs/internal/exitcodes"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	cfgFile      string
	dryRun       bool
	specialFiles string
	metricsPort  int
	dbPath       string
	quiet        bool
}

// NewRootCmd builds the command tree. Each call returns a fresh tree, so
// flag values never leak between invocations.
func NewRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "tidyfs",
		Short: "tidyfs - empty directory trees and sniff text encodings",
		Long: `tidyfs empties and removes directory trees bottom-up, reporting every
entry it could not open, stat or delete, and classifies text files by their
byte-order mark.

Use "tidyfs [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit: %s)", Version, Commit),
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.cfgFile, "config", "", "path to configuration file")
	pf.BoolVar(&o.dryRun, "dry-run", false, "report what would be removed without removing it")
	pf.StringVar(&o.specialFiles, "special-files", "", `policy for symlinks and devices: "skip" or "unlink"`)
	pf.IntVar(&o.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port while running")
	pf.StringVar(&o.dbPath, "db", "", "SQLite history database (overrides database_path)")
	pf.BoolVarP(&o.quiet, "quiet", "q", false, "do not log to the console")

	root.AddCommand(
		newCleanCmd(o),
		newRemoveCmd(o),
		newPrepareCmd(o),
		newDetectCmd(),
		newProcessCmd(o),
		newHistoryCmd(o),
	)
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		return exitcodes.Success
	}
	root.PrintErrf("Error: %v\n", err)
	return exitCode(err)
}

// exitError carries the exit code a failure maps to.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// flag and argument errors from cobra
	return exitcodes.InvalidConfig
}
