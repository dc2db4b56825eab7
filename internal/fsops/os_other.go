//go:build !windows && !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package fsops

import (
	"io/fs"
	"os"
)

type osFS struct{}

// OS returns a backend built on package os for targets without a native
// implementation.
func OS() FS { return osFS{} }

func (osFS) OpenDir(path string) (DirStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapPathErr("opendir", path, err)
	}
	return &readdirStream{path: path, r: f}, nil
}

func (osFS) Lstat(path string) (Info, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Info{}, WrapPathErr("lstat", path, err)
	}
	return Info{
		Kind: ModeKind(fi.Mode()),
		Size: fi.Size(),
		Mode: fi.Mode(),
	}, nil
}

func (osFS) Remove(path string) error {
	return WrapPathErr("remove", path, os.Remove(path))
}

func (osFS) RemoveDir(path string) error {
	return WrapPathErr("rmdir", path, os.Remove(path))
}

func (osFS) Mkdir(path string, perm fs.FileMode) error {
	return WrapPathErr("mkdir", path, os.Mkdir(path, perm))
}
