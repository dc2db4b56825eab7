// Package console drives a tidyfs session: it prepares the working
// directory, loads the files that match the configured patterns, and tears
// the working directory down again.
package console

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"tidyfs/internal/config"
	"tidyfs/internal/database"
	"tidyfs/internal/fsops"
	"tidyfs/internal/logging"
	"tidyfs/internal/reap"
	"tidyfs/internal/textfile"
)

// History stores both the reaper's actions and the per-file verdicts.
type History interface {
	reap.HistoryRecorder
	RecordVerdict(database.VerdictRecord) error
}

// ProcessMetrics counts file verdicts.
type ProcessMetrics interface {
	Loaded(encoding string)
	Rejected(encoding string)
	Failed()
	HistoryError()
}

// Deps are the collaborators of a Console. Zero fields fall back to the
// native filesystem, a discarding logger and no history.
type Deps struct {
	FS             fsops.FS
	Files          afero.Fs
	Logger         reap.Logger
	History        History
	ReapMetrics    reap.Metrics
	ProcessMetrics ProcessMetrics
	Validator      reap.RootValidator
}

type Console struct {
	cfg     *config.Config
	files   afero.Fs
	logger  reap.Logger
	history History
	metrics ProcessMetrics
	reaper  *reap.Reaper
}

// New builds a Console for cfg. cfg is expected to have been validated by
// config.Load or config.Default.
func New(cfg *config.Config, deps Deps) (*Console, error) {
	if cfg == nil || cfg.WorkDir == "" {
		return nil, errors.New("console: work_dir is required")
	}
	policy, err := reap.ParseSpecialPolicy(cfg.SpecialFiles)
	if err != nil {
		return nil, fmt.Errorf("console: %w", err)
	}

	if deps.FS == nil {
		deps.FS = fsops.OS()
	}
	if deps.Files == nil {
		deps.Files = afero.NewOsFs()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.ProcessMetrics == nil {
		deps.ProcessMetrics = nopProcessMetrics{}
	}

	opts := []reap.Option{
		reap.WithLogger(deps.Logger),
		reap.WithSpecialPolicy(policy),
		reap.WithDryRun(cfg.DryRun),
	}
	if deps.ReapMetrics != nil {
		opts = append(opts, reap.WithMetrics(deps.ReapMetrics))
	}
	if deps.History != nil {
		opts = append(opts, reap.WithRecorder(deps.History))
	}
	if deps.Validator != nil {
		opts = append(opts, reap.WithValidator(deps.Validator))
	}

	return &Console{
		cfg:     cfg,
		files:   deps.Files,
		logger:  deps.Logger,
		history: deps.History,
		metrics: deps.ProcessMetrics,
		reaper:  reap.New(deps.FS, opts...),
	}, nil
}

// Reaper exposes the configured reaper for one-off runs on other roots.
func (c *Console) Reaper() *reap.Reaper { return c.reaper }

// WorkDir is the directory the console operates on.
func (c *Console) WorkDir() string { return c.cfg.WorkDir }

// Prepare leaves the working directory present and empty.
func (c *Console) Prepare() (*reap.Report, error) {
	return c.reaper.Prepare(c.cfg.WorkDir)
}

// Clean empties the working directory and keeps it.
func (c *Console) Clean() (*reap.Report, error) {
	return c.reaper.Reap(c.cfg.WorkDir)
}

// Teardown removes the working directory and everything in it.
func (c *Console) Teardown() (*reap.Report, error) {
	return c.reaper.RemoveDirectory(c.cfg.WorkDir)
}

// Summary is the result of one ProcessFiles run.
type Summary struct {
	RunID     string
	Processed int
	Loaded    []*textfile.File
	Rejected  []*textfile.UnsupportedError
	Failed    []error

	// Verdicts has one record per file, in processing order.
	Verdicts []database.VerdictRecord
	Elapsed  time.Duration
}

// Err joins every rejection and failure of the run, or returns nil.
func (s *Summary) Err() error {
	errs := make([]error, 0, len(s.Rejected)+len(s.Failed))
	for _, r := range s.Rejected {
		errs = append(errs, r)
	}
	errs = append(errs, s.Failed...)
	return errors.Join(errs...)
}

// ProcessFiles loads every regular file under the working directory that
// matches one of patterns, or the configured patterns when none are given.
// A file in an unsupported encoding is rejected and processing moves on to
// the next one. The returned error is reserved for malformed patterns.
func (c *Console) ProcessFiles(patterns ...string) (*Summary, error) {
	if len(patterns) == 0 {
		patterns = c.cfg.Patterns
	}
	paths, err := c.expand(patterns)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sum := &Summary{RunID: uuid.NewString()}
	c.logger.Info("Processing files", "run_id", sum.RunID, "work_dir", c.cfg.WorkDir, "matches", len(paths))

	for _, p := range paths {
		c.process(sum, p)
	}

	sum.Elapsed = time.Since(start)
	c.logger.Info("Processing complete",
		"run_id", sum.RunID,
		"processed", sum.Processed,
		"rejected", len(sum.Rejected),
		"failed", len(sum.Failed),
	)
	return sum, nil
}

func (c *Console) process(sum *Summary, path string) {
	f, err := textfile.Load(c.files, path)
	var ue *textfile.UnsupportedError
	switch {
	case errors.As(err, &ue):
		sum.Rejected = append(sum.Rejected, ue)
		c.metrics.Rejected(ue.Encoding.String())
		c.logger.Error("Rejected file", "path", path, "error", ue)
		c.record(sum, database.VerdictRecord{
			Path:         path,
			Encoding:     ue.Encoding.String(),
			Verdict:      database.VerdictRejected,
			ErrorMessage: ue.Error(),
		})
	case err != nil:
		sum.Failed = append(sum.Failed, err)
		c.metrics.Failed()
		c.logger.Error("Failed to load file", "path", path, "error", err)
		c.record(sum, database.VerdictRecord{
			Path:         path,
			Verdict:      database.VerdictFailed,
			ErrorMessage: err.Error(),
		})
	default:
		sum.Processed++
		sum.Loaded = append(sum.Loaded, f)
		c.metrics.Loaded(f.Encoding.String())
		c.logger.Info("Loaded file", "path", path, "encoding", f.Encoding, "size", f.Size)
		c.record(sum, database.VerdictRecord{
			Path:     path,
			Encoding: f.Encoding.String(),
			Verdict:  database.VerdictLoaded,
			Size:     f.Size,
		})
	}
}

func (c *Console) record(sum *Summary, rec database.VerdictRecord) {
	rec.RunID = sum.RunID
	rec.Timestamp = time.Now()
	sum.Verdicts = append(sum.Verdicts, rec)
	if c.history == nil {
		return
	}
	if err := c.history.RecordVerdict(rec); err != nil {
		c.metrics.HistoryError()
		c.logger.Error("Failed to record to database", "path", rec.Path, "error", err)
	}
}

// expand resolves patterns relative to the working directory into a sorted,
// de-duplicated list of non-directory paths.
func (c *Console) expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pat := range patterns {
		if _, err := filepath.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pat, err)
		}
		matches, err := afero.Glob(c.files, filepath.Join(c.cfg.WorkDir, pat))
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pat, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			info, err := c.files.Stat(m)
			if err == nil && info.IsDir() {
				continue
			}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

type nopProcessMetrics struct{}

func (nopProcessMetrics) Loaded(string)   {}
func (nopProcessMetrics) Rejected(string) {}
func (nopProcessMetrics) Failed()         {}
func (nopProcessMetrics) HistoryError()   {}
