// Package fsops abstracts the filesystem calls the reaper needs so the walk
// itself never branches on the platform.
//
// The native backend for the build target is returned by OS. Tests and
// callers that work on virtual trees use NewAferoFS, and Recorder wraps any
// backend to trace or fail individual calls.
package fsops

import (
	"io/fs"
	"path/filepath"
)

// Kind classifies a directory entry.
type Kind int

const (
	KindFile  Kind = iota // regular file
	KindDir               // directory
	KindSkip              // "." and ".." pseudo entries
	KindOther             // symlink, device, socket, pipe...
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	case KindSkip:
		return "skip"
	default:
		return "other"
	}
}

// Info is what the reaper learns about an entry before acting on it.
type Info struct {
	Kind Kind
	Size int64
	Mode fs.FileMode
}

// DirStream yields the names in one directory. Next returns io.EOF once the
// stream is exhausted. Order is whatever the filesystem hands out.
type DirStream interface {
	Next() (string, error)
	Close() error
}

// FS is the filesystem capability consumed by the reaper.
type FS interface {
	OpenDir(path string) (DirStream, error)
	// Lstat describes path without following a final symlink.
	Lstat(path string) (Info, error)
	// Remove deletes a non-directory entry.
	Remove(path string) error
	// RemoveDir deletes an empty directory.
	RemoveDir(path string) error
}

// DirMaker is implemented by backends that can create a directory. The
// reaper needs it only to prepare a missing work directory.
type DirMaker interface {
	Mkdir(path string, perm fs.FileMode) error
}

// IsDot reports whether name is one of the self/parent pseudo entries.
func IsDot(name string) bool {
	return name == "." || name == ".."
}

// KindOf classifies a directory entry. name is checked first so the pseudo
// entries are skipped whatever their mode says.
func KindOf(name string, mode fs.FileMode) Kind {
	if IsDot(name) {
		return KindSkip
	}
	return ModeKind(mode)
}

// ModeKind maps a file mode to a Kind.
func ModeKind(mode fs.FileMode) Kind {
	switch {
	case mode.IsDir():
		return KindDir
	case mode.IsRegular():
		return KindFile
	default:
		return KindOther
	}
}

// Join resolves an entry name against its parent directory.
func Join(dir, name string) string {
	return filepath.Join(dir, name)
}
