package reap

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched with errors.Is against a *Failure or an *Error.
var (
	ErrOpenFailed   = errors.New("open failed")
	ErrStatFailed   = errors.New("stat failed")
	ErrDeleteFailed = errors.New("delete failed")
)

// Kind is the failure taxonomy of a reap.
type Kind int

const (
	// OpenFailed: a directory could not be opened or read. Nothing below it
	// is touched and the directory itself is left in place.
	OpenFailed Kind = iota
	// StatFailed: an entry's type could not be determined. The entry is
	// left alone and the walk continues.
	StatFailed
	// DeleteFailed: a file or an emptied directory could not be removed.
	DeleteFailed
)

func (k Kind) String() string {
	switch k {
	case OpenFailed:
		return "open_failed"
	case StatFailed:
		return "stat_failed"
	case DeleteFailed:
		return "delete_failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case OpenFailed:
		return ErrOpenFailed
	case StatFailed:
		return ErrStatFailed
	default:
		return ErrDeleteFailed
	}
}

// Failure is one entry the reaper could not handle.
type Failure struct {
	Kind Kind
	Path string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Kind.sentinel(), f.Path, f.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause, so
// errors.Is(f, ErrDeleteFailed) and errors.Is(f, fs.ErrPermission) both hold.
func (f *Failure) Unwrap() []error {
	return []error{f.Kind.sentinel(), f.Err}
}

// Error aggregates every failure of one reap.
type Error struct {
	Root     string
	Failures []*Failure
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "reap %s: %d failure(s)", e.Root, len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n\t")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Count returns how many failures are of kind k.
func (e *Error) Count(k Kind) int {
	n := 0
	for _, f := range e.Failures {
		if f.Kind == k {
			n++
		}
	}
	return n
}
