//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package reap

import (
	"errors"
	"os"
	"testing"

	"golang.org/x/sys/unix"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	tfs "gotest.tools/v3/fs"

	"tidyfs/internal/fsops"
)

func specialTree(t *testing.T) (work, outside *tfs.Dir) {
	t.Helper()
	outside = tfs.NewDir(t, "reap-outside", tfs.WithFile("precious", "do not touch"))
	work = tfs.NewDir(t, "reap-work",
		tfs.WithFile("a.cpp", "a"),
		tfs.WithDir("links"),
	)
	assert.NilError(t, os.Symlink(outside.Path(), work.Join("links", "to-dir")))
	assert.NilError(t, os.Symlink(outside.Join("precious"), work.Join("links", "to-file")))
	assert.NilError(t, unix.Mkfifo(work.Join("fifo"), 0o600))
	return work, outside
}

func TestSpecialFilesSkipped(t *testing.T) {
	work, outside := specialTree(t)

	rep, err := New(fsops.OS()).Reap(work.Path())
	assert.NilError(t, err)

	assert.Check(t, is.Len(rep.Skipped, 3))
	assert.Equal(t, rep.Files, 1)
	// links is not empty, so it stays without being a failure
	_, err = os.Lstat(work.Join("links", "to-dir"))
	assert.NilError(t, err)
	_, err = os.Lstat(work.Join("fifo"))
	assert.NilError(t, err)
	_, err = os.Stat(outside.Join("precious"))
	assert.NilError(t, err)
}

func TestSpecialFilesUnlinked(t *testing.T) {
	work, outside := specialTree(t)

	rep, err := New(fsops.OS(), WithSpecialPolicy(UnlinkSpecial)).Reap(work.Path())
	assert.NilError(t, err)

	assert.Check(t, is.Len(rep.Skipped, 0))
	assert.Equal(t, rep.Files, 4)
	assert.Equal(t, rep.Dirs, 1)
	assertEmptyDir(t, work.Path())

	// the link targets survive
	data, err := os.ReadFile(outside.Join("precious"))
	assert.NilError(t, err)
	assert.Equal(t, string(data), "do not touch")
}

func TestPermissionDeniedSubdirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	work := tfs.NewDir(t, "reap-perm",
		tfs.WithDir("sealed", tfs.WithFile("inner", "x")),
		tfs.WithFile("loose", "y"),
	)
	assert.NilError(t, os.Chmod(work.Join("sealed"), 0o000))
	defer os.Chmod(work.Join("sealed"), 0o755)

	rep, err := New(fsops.OS()).Reap(work.Path())
	assert.Assert(t, err != nil)
	assert.Equal(t, len(rep.Failures), 1)
	assert.Equal(t, rep.Failures[0].Kind, OpenFailed)
	assert.Equal(t, rep.Failures[0].Path, work.Join("sealed"))
	_, err = os.Stat(work.Join("loose"))
	assert.Assert(t, os.IsNotExist(err))
}

func TestSymlinkRootNotFollowed(t *testing.T) {
	target := tfs.NewDir(t, "reap-target", tfs.WithFile("precious", "do not touch"))
	holder := tfs.NewDir(t, "reap-holder")
	link := holder.Join("link")
	assert.NilError(t, os.Symlink(target.Path(), link))

	for name, op := range map[string]func(*Reaper, string) (*Report, error){
		"reap":   (*Reaper).Reap,
		"remove": (*Reaper).RemoveDirectory,
	} {
		t.Run(name, func(t *testing.T) {
			rep, err := op(New(fsops.OS()), link)
			assert.ErrorIs(t, err, ErrOpenFailed)

			var rerr *Error
			assert.Assert(t, errors.As(err, &rerr))
			assert.Equal(t, len(rerr.Failures), 1)
			assert.Equal(t, rerr.Failures[0].Path, link)
			assert.Equal(t, rep.Files, 0)
			assert.Equal(t, rep.Dirs, 0)

			_, err = os.Stat(target.Join("precious"))
			assert.NilError(t, err)
			_, err = os.Lstat(link)
			assert.NilError(t, err)
		})
	}
}
