package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"tidyfs/internal/exitcodes"
)

func newProcessCmd(o *options) *cobra.Command {
	var (
		workDir  string
		prepare  bool
		teardown bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "process [pattern...]",
		Short: "Load the files under work_dir and report their encodings",
		Long: `Expand each pattern (default: the configured patterns) under work_dir and
load every matching file, decoding UTF-8 BOM and UTF-16 text. Files in a
UTF-32 encoding are rejected and processing continues with the next file.

Exit code 6 means at least one file was rejected.

Examples:
  tidyfs process --config /etc/tidyfs/config.yaml
  tidyfs process --work-dir ./ut-testcon '*.cpp'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.openSession(workDir)
			if err != nil {
				return err
			}
			defer s.Close()

			if prepare {
				if _, err := s.console.Prepare(); err != nil {
					return reapExit(err)
				}
			}

			sum, err := s.console.ProcessFiles(args...)
			if err != nil {
				return withCode(exitcodes.InvalidConfig, err)
			}

			if asJSON {
				if err := printJSON(cmd.OutOrStdout(), sum.Verdicts); err != nil {
					return withCode(exitcodes.RuntimeError, err)
				}
			} else {
				rows := make([][]string, 0, len(sum.Verdicts))
				for _, v := range sum.Verdicts {
					rows = append(rows, []string{v.Path, v.Encoding, v.Verdict, strconv.FormatInt(v.Size, 10)})
				}
				printTable(cmd.OutOrStdout(), []string{"File", "Encoding", "Verdict", "Size"}, rows)
			}

			if teardown {
				if _, err := s.console.Teardown(); err != nil {
					return reapExit(err)
				}
			}

			switch {
			case len(sum.Rejected) > 0:
				return withCode(exitcodes.UnsupportedEncoding, sum.Err())
			case len(sum.Failed) > 0:
				return withCode(exitcodes.RuntimeError, sum.Err())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workDir, "work-dir", "", "working directory (overrides work_dir)")
	cmd.Flags().BoolVar(&prepare, "prepare", false, "create or empty work_dir before processing")
	cmd.Flags().BoolVar(&teardown, "teardown", false, "remove work_dir after processing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}
