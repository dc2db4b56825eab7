package fsops

import (
	"errors"
	"io/fs"
	"sync"
)

// Recorder wraps an FS and records every mutating call as "rm:<path>",
// "rmdir:<path>" or "mkdir:<path>". Individual calls can be made to fail, which is how tests
// simulate permission errors without depending on the host's privileges.
//
// With a nil Inner the deletes are recorded but never performed, and stat /
// open calls fail.
type Recorder struct {
	Inner FS

	mu         sync.Mutex
	calls      []string
	failOpen   map[string]error
	failStat   map[string]error
	failRemove map[string]error
}

// NewRecorder wraps inner.
func NewRecorder(inner FS) *Recorder {
	return &Recorder{Inner: inner}
}

// FailOpen makes OpenDir(path) return err.
func (r *Recorder) FailOpen(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOpen == nil {
		r.failOpen = make(map[string]error)
	}
	r.failOpen[path] = err
}

// FailStat makes Lstat(path) return err.
func (r *Recorder) FailStat(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failStat == nil {
		r.failStat = make(map[string]error)
	}
	r.failStat[path] = err
}

// FailRemove makes Remove(path) and RemoveDir(path) return err.
func (r *Recorder) FailRemove(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRemove == nil {
		r.failRemove = make(map[string]error)
	}
	r.failRemove[path] = err
}

// Calls returns a copy of the recorded calls in call order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *Recorder) OpenDir(path string) (DirStream, error) {
	if err := r.injected(r.failOpen, path); err != nil {
		return nil, WrapPathErr("opendir", path, err)
	}
	if r.Inner == nil {
		return nil, WrapPathErr("opendir", path, errNoBackend)
	}
	return r.Inner.OpenDir(path)
}

func (r *Recorder) Lstat(path string) (Info, error) {
	if err := r.injected(r.failStat, path); err != nil {
		return Info{}, WrapPathErr("lstat", path, err)
	}
	if r.Inner == nil {
		return Info{}, WrapPathErr("lstat", path, errNoBackend)
	}
	return r.Inner.Lstat(path)
}

func (r *Recorder) Remove(path string) error {
	r.record("rm:" + path)
	if err := r.injected(r.failRemove, path); err != nil {
		return WrapPathErr("remove", path, err)
	}
	if r.Inner == nil {
		return nil
	}
	return r.Inner.Remove(path)
}

func (r *Recorder) RemoveDir(path string) error {
	r.record("rmdir:" + path)
	if err := r.injected(r.failRemove, path); err != nil {
		return WrapPathErr("rmdir", path, err)
	}
	if r.Inner == nil {
		return nil
	}
	return r.Inner.RemoveDir(path)
}

func (r *Recorder) Mkdir(path string, perm fs.FileMode) error {
	r.record("mkdir:" + path)
	if r.Inner == nil {
		return nil
	}
	dm, ok := r.Inner.(DirMaker)
	if !ok {
		return WrapPathErr("mkdir", path, errors.ErrUnsupported)
	}
	return dm.Mkdir(path, perm)
}

func (r *Recorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *Recorder) injected(m map[string]error, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m[path]
}
