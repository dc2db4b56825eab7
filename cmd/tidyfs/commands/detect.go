package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"tidyfs/internal/bom"
	"tidyfs/internal/exitcodes"
)

type detection struct {
	Path      string `json:"path"`
	Encoding  string `json:"encoding"`
	BOMLength int    `json:"bom_length"`
	Supported bool   `json:"supported"`
}

func newDetectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "detect <file>...",
		Short: "Print the encoding signalled by each file's byte-order mark",
		Long: `Read the first bytes of each file and classify it as 8-bit, UTF-8 BOM,
UTF-16LE, UTF-16BE, UTF-32LE or UTF-32BE. Only the mark is inspected; the
rest of the file is not validated.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := detectFiles(afero.NewOsFs(), args)
			if err != nil {
				return withCode(exitcodes.RuntimeError, err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), results)
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Path, r.Encoding, strconv.Itoa(r.BOMLength), strconv.FormatBool(r.Supported)})
			}
			printTable(cmd.OutOrStdout(), []string{"File", "Encoding", "BOM", "Supported"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func detectFiles(fsys afero.Fs, paths []string) ([]detection, error) {
	out := make([]detection, 0, len(paths))
	for _, p := range paths {
		f, err := fsys.Open(p)
		if err != nil {
			return nil, err
		}
		enc, _, err := bom.DetectReader(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		out = append(out, detection{
			Path:      p,
			Encoding:  enc.String(),
			BOMLength: enc.BOMLen(),
			Supported: enc.Supported(),
		})
	}
	return out, nil
}
