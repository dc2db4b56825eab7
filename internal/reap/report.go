package reap

import "time"

// Report describes one run. On a dry run the counts are what would have
// been removed.
type Report struct {
	RunID  string
	Root   string
	DryRun bool

	Files int   // non-directory entries removed
	Dirs  int   // directories removed
	Bytes int64 // size of the removed non-directory entries

	// Skipped lists special files left in place under SkipSpecial.
	Skipped  []string
	Failures []*Failure
	Elapsed  time.Duration
}

// Err returns nil when the run had no failures and an *Error otherwise.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &Error{Root: r.Root, Failures: r.Failures}
}
