// Package reap empties directory trees bottom-up.
//
// A Reaper deletes every regular file below a root and removes each
// sub-directory once it is empty. Failures on individual entries do not stop
// the walk: they are collected into the run's Report and returned together
// as an *Error. Entries that are neither files nor directories (symlinks,
// devices, sockets, pipes) are never followed; the SpecialPolicy decides
// whether they are left in place or unlinked.
package reap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tidyfs/internal/database"
	"tidyfs/internal/fsops"
	"tidyfs/internal/logging"
)

// Logger is the leveled logging the reaper writes through.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Metrics receives one observation per entry and one per run.
type Metrics interface {
	ObserveRemoved(object string, size int64)
	ObserveSkipped(object string)
	ObserveFailure(kind string)
	ObserveRun(result string, elapsed time.Duration)
	ObserveHistoryError()
}

// HistoryRecorder persists every action a run takes.
type HistoryRecorder interface {
	RecordAction(database.ActionRecord) error
}

// RootValidator vets a root before anything below it is touched.
type RootValidator interface {
	ValidateRoot(path string) error
}

// SpecialPolicy says what happens to entries that are neither regular files
// nor directories.
type SpecialPolicy int

const (
	// SkipSpecial leaves the entry in place and lists it in Report.Skipped.
	// Its parent directory is then not empty and is not removed.
	SkipSpecial SpecialPolicy = iota
	// UnlinkSpecial removes the entry itself. A symlink's target is never
	// touched.
	UnlinkSpecial
)

func (p SpecialPolicy) String() string {
	if p == UnlinkSpecial {
		return "unlink"
	}
	return "skip"
}

// ParseSpecialPolicy maps the configuration spelling to a policy.
func ParseSpecialPolicy(s string) (SpecialPolicy, error) {
	switch strings.ToLower(s) {
	case "", "skip":
		return SkipSpecial, nil
	case "unlink":
		return UnlinkSpecial, nil
	}
	return SkipSpecial, fmt.Errorf("unknown special-file policy %q", s)
}

var errNotDirectory = errors.New("not a directory")

// Reaper empties directory trees through an fsops.FS. A Reaper holds no
// per-run state, so Reap may run concurrently on disjoint trees.
type Reaper struct {
	fsys      fsops.FS
	logger    Logger
	metrics   Metrics
	history   HistoryRecorder
	validator RootValidator
	policy    SpecialPolicy
	dryRun    bool
}

type Option func(*Reaper)

func WithLogger(l Logger) Option {
	return func(r *Reaper) { r.logger = l }
}

func WithMetrics(m Metrics) Option {
	return func(r *Reaper) { r.metrics = m }
}

func WithRecorder(h HistoryRecorder) Option {
	return func(r *Reaper) { r.history = h }
}

func WithValidator(v RootValidator) Option {
	return func(r *Reaper) { r.validator = v }
}

func WithSpecialPolicy(p SpecialPolicy) Option {
	return func(r *Reaper) { r.policy = p }
}

// WithDryRun walks and reports without calling Remove or RemoveDir.
func WithDryRun(dryRun bool) Option {
	return func(r *Reaper) { r.dryRun = dryRun }
}

// New returns a Reaper over fsys. Without options it logs nowhere, records
// no history, and skips special files.
func New(fsys fsops.FS, opts ...Option) *Reaper {
	r := &Reaper{
		fsys:    fsys,
		logger:  logging.Discard(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reap deletes everything below path and leaves path itself in place. The
// report is returned even when err is non-nil; err is an *Error when
// entries failed, or the validator's error when path was refused.
func (r *Reaper) Reap(path string) (*Report, error) {
	return r.reap(path, false)
}

// RemoveDirectory reaps path and then removes it. path stays when anything
// below it could not be removed.
func (r *Reaper) RemoveDirectory(path string) (*Report, error) {
	return r.reap(path, true)
}

// Prepare makes path an empty directory: it is created with mode 0770 when
// missing and reaped otherwise.
func (r *Reaper) Prepare(path string) (*Report, error) {
	if err := r.validate(path); err != nil {
		return nil, err
	}
	root := filepath.Clean(path)

	info, err := r.fsys.Lstat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return r.create(root)
	case err != nil:
		return nil, fmt.Errorf("prepare %s: %w", root, err)
	case info.Kind != fsops.KindDir:
		return nil, fmt.Errorf("prepare %s: %w", root, errNotDirectory)
	}
	return r.Reap(root)
}

func (r *Reaper) create(root string) (*Report, error) {
	rep := &Report{RunID: uuid.NewString(), Root: root, DryRun: r.dryRun}
	if r.dryRun {
		r.logger.Info("[DRY RUN] Would create directory", "path", root)
		return rep, nil
	}
	dm, ok := r.fsys.(fsops.DirMaker)
	if !ok {
		return nil, fmt.Errorf("prepare %s: backend cannot create directories", root)
	}
	if err := dm.Mkdir(root, 0o770); err != nil {
		return nil, fmt.Errorf("prepare %s: %w", root, err)
	}
	r.logger.Info("Created directory", "path", root, "run_id", rep.RunID)
	return rep, nil
}

// validate sees the path as the caller wrote it, so ".." segments are
// still visible to the traversal check.
func (r *Reaper) validate(path string) error {
	if r.validator == nil {
		return nil
	}
	if err := r.validator.ValidateRoot(path); err != nil {
		r.logger.Error("Refusing to reap", "path", path, "error", err)
		r.metrics.ObserveRun("refused", 0)
		return fmt.Errorf("reap %s: %w", path, err)
	}
	return nil
}

func (r *Reaper) reap(path string, removeRoot bool) (*Report, error) {
	if err := r.validate(path); err != nil {
		return nil, err
	}
	root := filepath.Clean(path)

	start := time.Now()
	rep := &Report{RunID: uuid.NewString(), Root: root, DryRun: r.dryRun}
	w := &walk{Reaper: r, report: rep}

	r.logger.Info("Starting reap", "root", root, "run_id", rep.RunID, "dry_run", r.dryRun, "special_files", r.policy)

	if w.root(root) && removeRoot {
		w.remove(root, fsops.Info{Kind: fsops.KindDir}, r.fsys.RemoveDir)
	}

	rep.Elapsed = time.Since(start)
	result := "clean"
	if len(rep.Failures) > 0 {
		result = "partial"
	}
	r.metrics.ObserveRun(result, rep.Elapsed)

	r.logger.Info("Reap complete",
		"run_id", rep.RunID,
		"files", rep.Files,
		"dirs", rep.Dirs,
		"bytes_freed", rep.Bytes,
		"skipped", len(rep.Skipped),
		"failures", len(rep.Failures),
	)
	return rep, rep.Err()
}

// walk carries the state of one run.
type walk struct {
	*Reaper
	report *Report
}

// root refuses a root that is a symlink or other non-directory, so a link is
// never followed to its target, and otherwise empties it like dir.
func (w *walk) root(path string) bool {
	info, err := w.fsys.Lstat(path)
	if err == nil && info.Kind != fsops.KindDir {
		w.fail(OpenFailed, path, objectType(info.Kind), fsops.WrapPathErr("opendir", path, errNotDirectory))
		return false
	}
	return w.dir(path)
}

// dir empties path and reports whether it ended up empty. The stream is
// closed before dir returns, whatever happened.
func (w *walk) dir(path string) bool {
	d, err := w.fsys.OpenDir(path)
	if err != nil {
		w.fail(OpenFailed, path, "directory", err)
		return false
	}
	defer func() {
		if err := d.Close(); err != nil {
			w.logger.Warn("Failed to close directory", "path", path, "error", err)
		}
	}()

	empty := true
	for {
		name, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.fail(OpenFailed, path, "directory", err)
			return false
		}
		if fsops.IsDot(name) {
			continue
		}
		if !w.entry(fsops.Join(path, name)) {
			empty = false
		}
	}
	return empty
}

// entry disposes of one child and reports whether it is gone.
func (w *walk) entry(path string) bool {
	info, err := w.fsys.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		w.logger.Info("Entry already removed", "path", path)
		return true
	}
	if err != nil {
		w.fail(StatFailed, path, "unknown", err)
		return false
	}

	switch info.Kind {
	case fsops.KindDir:
		if !w.dir(path) {
			return false
		}
		return w.remove(path, info, w.fsys.RemoveDir)
	case fsops.KindFile:
		return w.remove(path, info, w.fsys.Remove)
	default:
		if w.policy == SkipSpecial {
			w.skip(path, info)
			return false
		}
		return w.remove(path, info, w.fsys.Remove)
	}
}

func (w *walk) remove(path string, info fsops.Info, del func(string) error) bool {
	object := objectType(info.Kind)
	size := info.Size
	if info.Kind == fsops.KindDir {
		size = 0
	}

	action := database.ActionDryRun
	if !w.dryRun {
		action = database.ActionDelete
		if err := del(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				w.logger.Info("Entry already removed", "path", path)
				return true
			}
			w.fail(DeleteFailed, path, object, err)
			return false
		}
	}

	if info.Kind == fsops.KindDir {
		w.report.Dirs++
	} else {
		w.report.Files++
		w.report.Bytes += size
	}
	w.metrics.ObserveRemoved(object, size)
	w.logStructured(action, path, object, size, "")
	w.record(database.ActionRecord{Action: action, Path: path, ObjectType: object, Size: size})
	return true
}

func (w *walk) skip(path string, info fsops.Info) {
	w.report.Skipped = append(w.report.Skipped, path)
	w.metrics.ObserveSkipped("other")
	w.logStructured(database.ActionSkip, path, "other", info.Size, "mode="+info.Mode.Type().String())
	w.record(database.ActionRecord{Action: database.ActionSkip, Path: path, ObjectType: "other", Size: info.Size})
}

func (w *walk) fail(kind Kind, path, object string, err error) {
	w.report.Failures = append(w.report.Failures, &Failure{Kind: kind, Path: path, Err: err})
	w.metrics.ObserveFailure(kind.String())
	w.logger.Error("Reap failure", "kind", kind, "path", path, "error", err)
	w.logStructured(database.ActionError, path, object, 0, kind.String())
	w.record(database.ActionRecord{
		Action:       database.ActionError,
		Path:         path,
		ObjectType:   object,
		FailureKind:  kind.String(),
		ErrorMessage: err.Error(),
	})
}

func (w *walk) record(rec database.ActionRecord) {
	if w.history == nil {
		return
	}
	rec.RunID = w.report.RunID
	if err := w.history.RecordAction(rec); err != nil {
		// history never fails the reap
		w.metrics.ObserveHistoryError()
		w.logger.Error("Failed to record to database", "path", rec.Path, "error", err)
	}
}

// logStructured writes one action line:
//
//	[2006-01-02T15:04:05Z] DELETE path=/w/a.cpp object=file size=12
func (w *walk) logStructured(action, path, object string, size int64, detail string) {
	entry := fmt.Sprintf("[%s] %s path=%s object=%s size=%d",
		time.Now().UTC().Format(time.RFC3339),
		action,
		path,
		object,
		size,
	)
	if detail != "" {
		entry += fmt.Sprintf(` detail="%s"`, strings.ReplaceAll(detail, `"`, `\"`))
	}
	w.logger.Info(entry)
}

func objectType(k fsops.Kind) string {
	switch k {
	case fsops.KindFile:
		return "file"
	case fsops.KindDir:
		return "directory"
	default:
		return "other"
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveRemoved(string, int64)     {}
func (nopMetrics) ObserveSkipped(string)            {}
func (nopMetrics) ObserveFailure(string)            {}
func (nopMetrics) ObserveRun(string, time.Duration) {}
func (nopMetrics) ObserveHistoryError()             {}
