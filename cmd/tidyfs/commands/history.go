package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"tidyfs/internal/config"
	"tidyfs/internal/database"
	"tidyfs/internal/exitcodes"
)

var errNoDatabase = errors.New("no history database: pass --db or set database_path")

type historyFlags struct {
	recent   int
	stats    bool
	days     int
	action   string
	path     string
	run      string
	verdicts bool
	prune    int
	vacuum   bool
	dbInfo   bool
	asJSON   bool
}

func newHistoryCmd(o *options) *cobra.Command {
	f := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the history of reap actions and file verdicts",
		Long: `Query the SQLite history written by clean, remove, prepare and process.

Examples:
  tidyfs history --db /var/lib/tidyfs/history.db --recent 10
  tidyfs history --stats --days 7
  tidyfs history --action ERROR
  tidyfs history --path '/tmp/ut-testcon/%'
  tidyfs history --run 0b6c... --verdicts
  tidyfs history --prune 90 --vacuum
  tidyfs history --db-info`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := o.historyPath()
			if err != nil {
				return err
			}
			db, err := database.NewHistoryDB(dbPath)
			if err != nil {
				return withCode(exitcodes.RuntimeError, fmt.Errorf("open history database: %w", err))
			}
			defer db.Close()

			if err := f.exec(cmd.OutOrStdout(), db); err != nil {
				return withCode(exitcodes.RuntimeError, err)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.recent, "recent", 20, "show the N most recent records")
	fl.BoolVar(&f.stats, "stats", false, "show statistics")
	fl.IntVar(&f.days, "days", 30, "number of days covered by --stats")
	fl.StringVar(&f.action, "action", "", "filter actions (DELETE, DRY_RUN, SKIP, ERROR)")
	fl.StringVar(&f.path, "path", "", "filter actions by path pattern (SQL LIKE syntax)")
	fl.StringVar(&f.run, "run", "", "show the records of one run")
	fl.BoolVar(&f.verdicts, "verdicts", false, "show file verdicts instead of reap actions")
	fl.IntVar(&f.prune, "prune", 0, "delete records older than N days")
	fl.BoolVar(&f.vacuum, "vacuum", false, "compact the database file (after --prune, if given)")
	fl.BoolVar(&f.dbInfo, "db-info", false, "show record counts and the database size")
	fl.BoolVar(&f.asJSON, "json", false, "output in JSON format")
	return cmd
}

func (o *options) historyPath() (string, error) {
	if o.dbPath != "" {
		return filepath.Abs(o.dbPath)
	}
	if o.cfgFile == "" {
		return "", withCode(exitcodes.InvalidConfig, errNoDatabase)
	}
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return "", withCode(exitcodes.InvalidConfig, fmt.Errorf("load config: %w", err))
	}
	if cfg.DatabasePath == "" {
		return "", withCode(exitcodes.InvalidConfig, errNoDatabase)
	}
	return cfg.DatabasePath, nil
}

func (f *historyFlags) exec(w io.Writer, db *database.HistoryDB) error {
	switch {
	case f.prune > 0 || f.vacuum:
		if f.prune > 0 {
			n, err := db.DeleteOldRecords(f.prune)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Deleted %d record(s) older than %d days\n", n, f.prune)
		}
		if f.vacuum {
			if err := db.Vacuum(); err != nil {
				return fmt.Errorf("vacuum: %w", err)
			}
			fmt.Fprintln(w, "Database vacuumed")
		}
		return nil
	case f.dbInfo:
		info, err := db.GetDatabaseStats()
		if err != nil {
			return err
		}
		if f.asJSON {
			return printJSON(w, info)
		}
		printDatabaseInfo(w, info)
		return nil
	case f.stats:
		stats, err := db.GetHistoryStats(f.days)
		if err != nil {
			return err
		}
		if f.asJSON {
			return printJSON(w, stats)
		}
		printStats(w, stats, f.days)
		return nil
	case f.verdicts:
		var (
			records []database.VerdictRecord
			err     error
		)
		if f.run != "" {
			records, err = db.GetVerdictsByRun(f.run)
		} else {
			records, err = db.GetRecentVerdicts(f.recent)
		}
		if err != nil {
			return err
		}
		if f.asJSON {
			return printJSON(w, records)
		}
		printVerdicts(w, records)
		return nil
	}

	var (
		records []database.ActionRecord
		err     error
	)
	switch {
	case f.run != "":
		records, err = db.GetActionsByRun(f.run)
	case f.action != "":
		records, err = db.GetActionsByAction(f.action, f.recent)
	case f.path != "":
		records, err = db.GetActionsByPath(f.path, f.recent)
	default:
		records, err = db.GetRecentActions(f.recent)
	}
	if err != nil {
		return err
	}
	if f.asJSON {
		return printJSON(w, records)
	}
	printActions(w, records)
	return nil
}

func printStats(w io.Writer, stats *database.HistoryStats, days int) {
	fmt.Fprintf(w, "History Statistics (Last %d days)\n", days)
	fmt.Fprintf(w, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Total Deleted:    %d\n", stats.TotalDeleted)
	fmt.Fprintf(w, "Total Skipped:    %d\n", stats.TotalSkipped)
	fmt.Fprintf(w, "Total Errors:     %d\n", stats.TotalErrors)
	fmt.Fprintf(w, "Space Freed:      %s\n", formatBytes(stats.TotalSpaceFreed))

	printCounts(w, "By Failure Kind:", stats.ByFailureKind)
	printCounts(w, "By Encoding:", stats.ByEncoding)
	printCounts(w, "By Verdict:", stats.ByVerdict)
}

func printDatabaseInfo(w io.Writer, info map[string]interface{}) {
	fmt.Fprintf(w, "Runs:             %v\n", info["runs"])
	fmt.Fprintf(w, "Action Records:   %v\n", info["action_records"])
	fmt.Fprintf(w, "Verdict Records:  %v\n", info["verdict_records"])
	if size, ok := info["database_size_bytes"].(int64); ok {
		fmt.Fprintf(w, "Database Size:    %s\n", formatBytes(size))
	}
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "\n%s\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-15s %d\n", k, counts[k])
	}
}

func printActions(w io.Writer, records []database.ActionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		detail := r.FailureKind
		if r.ErrorMessage != "" {
			detail += ": " + r.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Action,
			r.ObjectType,
			formatBytes(r.Size),
			r.Path,
			detail,
		})
	}
	printTable(w, []string{"ID", "Timestamp", "Action", "Object", "Size", "Path", "Detail"}, rows)
}

func printVerdicts(w io.Writer, records []database.VerdictRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Verdict,
			r.Encoding,
			formatBytes(r.Size),
			r.Path,
		})
	}
	printTable(w, []string{"ID", "Timestamp", "Verdict", "Encoding", "Size", "Path"}, rows)
}
