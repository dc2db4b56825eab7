package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tidyfs/internal/exitcodes"
	"tidyfs/internal/reap"
	"tidyfs/internal/safety"
)

func newCleanCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clean <dir>",
		Short: "Empty a directory tree and keep the directory",
		Long: `Delete every file and sub-directory below <dir>, leaving <dir> itself in
place and empty. Entries that cannot be opened, stat'ed or removed are
reported and the rest of the tree is still emptied.

Examples:
  tidyfs clean ./ut-testcon
  tidyfs clean --dry-run /tmp/build`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runReap(cmd, args[0], (*reap.Reaper).Reap)
		},
	}
}

func newRemoveCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <dir>",
		Short: "Empty a directory tree and remove the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runReap(cmd, args[0], (*reap.Reaper).RemoveDirectory)
		},
	}
}

func newPrepareCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare <dir>",
		Short: "Create a directory (mode 0770) or empty it when it exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runReap(cmd, args[0], (*reap.Reaper).Prepare)
		},
	}
}

func (o *options) runReap(cmd *cobra.Command, dir string, op func(*reap.Reaper, string) (*reap.Report, error)) error {
	s, err := o.openSession(dir)
	if err != nil {
		return err
	}
	defer s.Close()

	// the raw argument goes to the reaper so ".." is still visible to the
	// safety check
	rep, err := op(s.console.Reaper(), dir)
	if rep != nil {
		printReport(cmd.OutOrStdout(), rep)
	}
	return reapExit(err)
}

// reapExit maps a reaper error onto the exit-code contract.
func reapExit(err error) error {
	if err == nil {
		return nil
	}
	var rerr *reap.Error
	switch {
	case isSafetyError(err):
		return withCode(exitcodes.SafetyViolation, err)
	case errors.As(err, &rerr):
		return withCode(exitcodes.PartialCleanup, err)
	default:
		return withCode(exitcodes.RuntimeError, err)
	}
}

func isSafetyError(err error) bool {
	for _, target := range []error{
		safety.ErrInvalidPath,
		safety.ErrProtectedPath,
		safety.ErrOutsideAllowed,
		safety.ErrTraversal,
		safety.ErrSymlinkEscape,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func printReport(w io.Writer, rep *reap.Report) {
	verb := "Removed"
	if rep.DryRun {
		verb = "Would remove"
	}
	fmt.Fprintf(w, "%s %d file(s) and %d director(ies), %s freed, in %s\n",
		verb, rep.Files, rep.Dirs, formatBytes(rep.Bytes), rep.Root)
	for _, p := range rep.Skipped {
		fmt.Fprintf(w, "  skipped  %s\n", p)
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(w, "  %-13s %s: %v\n", f.Kind, f.Path, f.Err)
	}
}
