package fsops

import (
	"errors"
	"io"
	"io/fs"

	"github.com/spf13/afero"
)

var (
	errNotEmpty  = errors.New("directory not empty")
	errIsDir     = errors.New("is a directory")
	errNotDir    = errors.New("not a directory")
	errNoBackend = errors.New("no backing filesystem")
)

// AferoFS runs the reaper over an afero filesystem. afero's Remove does not
// distinguish files from directories, so the two delete calls check the
// entry kind before delegating.
type AferoFS struct {
	Fs afero.Fs
}

// NewAferoFS wraps fsys.
func NewAferoFS(fsys afero.Fs) *AferoFS {
	return &AferoFS{Fs: fsys}
}

func (a *AferoFS) OpenDir(path string) (DirStream, error) {
	info, err := a.Lstat(path)
	if err != nil {
		return nil, WrapPathErr("opendir", path, err)
	}
	if info.Kind != KindDir {
		return nil, WrapPathErr("opendir", path, errNotDir)
	}
	f, err := a.Fs.Open(path)
	if err != nil {
		return nil, WrapPathErr("opendir", path, err)
	}
	return &readdirStream{path: path, r: f}, nil
}

func (a *AferoFS) Lstat(path string) (Info, error) {
	var (
		fi  fs.FileInfo
		err error
	)
	if lst, ok := a.Fs.(afero.Lstater); ok {
		fi, _, err = lst.LstatIfPossible(path)
	} else {
		fi, err = a.Fs.Stat(path)
	}
	if err != nil {
		return Info{}, WrapPathErr("lstat", path, err)
	}
	return Info{
		Kind: ModeKind(fi.Mode()),
		Size: fi.Size(),
		Mode: fi.Mode(),
	}, nil
}

func (a *AferoFS) Remove(path string) error {
	info, err := a.Lstat(path)
	if err != nil {
		return WrapPathErr("remove", path, err)
	}
	if info.Kind == KindDir {
		return WrapPathErr("remove", path, errIsDir)
	}
	return WrapPathErr("remove", path, a.Fs.Remove(path))
}

func (a *AferoFS) RemoveDir(path string) error {
	info, err := a.Lstat(path)
	if err != nil {
		return WrapPathErr("rmdir", path, err)
	}
	if info.Kind != KindDir {
		return WrapPathErr("rmdir", path, errNotDir)
	}
	f, err := a.Fs.Open(path)
	if err != nil {
		return WrapPathErr("rmdir", path, err)
	}
	names, err := f.Readdirnames(1)
	_ = f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return WrapPathErr("rmdir", path, err)
	}
	if len(names) > 0 {
		return WrapPathErr("rmdir", path, errNotEmpty)
	}
	return WrapPathErr("rmdir", path, a.Fs.Remove(path))
}

func (a *AferoFS) Mkdir(path string, perm fs.FileMode) error {
	return WrapPathErr("mkdir", path, a.Fs.Mkdir(path, perm))
}
