//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package fsops

import (
	"errors"
	"io"
	"io/fs"

	"golang.org/x/sys/unix"
)

const direntBufSize = 8192

type osFS struct{}

// OS returns the native POSIX backend.
func OS() FS { return osFS{} }

func (osFS) OpenDir(path string) (DirStream, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, WrapPathErr("opendir", path, err)
	}
	return &unixDirStream{path: path, fd: fd, buf: make([]byte, direntBufSize)}, nil
}

func (osFS) Lstat(path string) (Info, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Info{}, WrapPathErr("lstat", path, err)
	}
	mode := modeFromStat(uint32(st.Mode))
	return Info{
		Kind: ModeKind(mode),
		Size: st.Size,
		Mode: mode,
	}, nil
}

func (osFS) Remove(path string) error {
	return WrapPathErr("unlink", path, unix.Unlink(path))
}

func (osFS) RemoveDir(path string) error {
	return WrapPathErr("rmdir", path, unix.Rmdir(path))
}

// Mkdir applies perm exactly, independent of the process umask.
func (osFS) Mkdir(path string, perm fs.FileMode) error {
	if err := unix.Mkdir(path, uint32(perm.Perm())); err != nil {
		return WrapPathErr("mkdir", path, err)
	}
	return WrapPathErr("chmod", path, unix.Chmod(path, uint32(perm.Perm())))
}

func modeFromStat(m uint32) fs.FileMode {
	mode := fs.FileMode(m & 0o777)
	switch m & unix.S_IFMT {
	case unix.S_IFDIR:
		mode |= fs.ModeDir
	case unix.S_IFLNK:
		mode |= fs.ModeSymlink
	case unix.S_IFIFO:
		mode |= fs.ModeNamedPipe
	case unix.S_IFSOCK:
		mode |= fs.ModeSocket
	case unix.S_IFCHR:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case unix.S_IFBLK:
		mode |= fs.ModeDevice
	}
	return mode
}

// unixDirStream reads raw dirents into buf and hands names out one by one.
type unixDirStream struct {
	path   string
	fd     int
	buf    []byte
	bufp   int
	nbuf   int
	names  []string
	eof    bool
	closed bool
}

func (d *unixDirStream) Next() (string, error) {
	if d.closed {
		return "", WrapPathErr("readdir", d.path, fs.ErrClosed)
	}
	for len(d.names) == 0 {
		if d.eof {
			return "", io.EOF
		}
		if d.bufp >= d.nbuf {
			d.bufp = 0
			n, err := unix.ReadDirent(d.fd, d.buf)
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if err != nil {
				return "", WrapPathErr("readdir", d.path, err)
			}
			if n <= 0 {
				d.eof = true
				continue
			}
			d.nbuf = n
		}
		consumed, _, names := unix.ParseDirent(d.buf[d.bufp:d.nbuf], -1, d.names[:0])
		d.bufp += consumed
		d.names = names
	}
	name := d.names[0]
	d.names = d.names[1:]
	return name, nil
}

func (d *unixDirStream) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return WrapPathErr("closedir", d.path, unix.Close(d.fd))
}
