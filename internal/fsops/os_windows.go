//go:build windows

package fsops

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

type osFS struct{}

// OS returns the native Win32 backend.
func OS() FS { return osFS{} }

func (osFS) OpenDir(path string) (DirStream, error) {
	pattern, err := windows.UTF16PtrFromString(filepath.Join(path, "*"))
	if err != nil {
		return nil, WrapPathErr("FindFirstFile", path, err)
	}
	d := &winDirStream{path: path}
	h, err := windows.FindFirstFile(pattern, &d.data)
	if err != nil {
		return nil, WrapPathErr("FindFirstFile", path, err)
	}
	d.h = h
	d.pending = true
	return d, nil
}

func (osFS) Lstat(path string) (Info, error) {
	attrs, size, err := fileAttributes(path)
	if err != nil {
		return Info{}, WrapPathErr("GetFileAttributesEx", path, err)
	}
	mode := fs.FileMode(0o666)
	if attrs&windows.FILE_ATTRIBUTE_READONLY != 0 {
		mode = 0o444
	}
	switch {
	case attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0:
		// junctions and symlinks are never followed
		mode |= fs.ModeSymlink
	case attrs&windows.FILE_ATTRIBUTE_DIRECTORY != 0:
		mode |= fs.ModeDir | 0o111
	}
	return Info{
		Kind: ModeKind(mode),
		Size: size,
		Mode: mode,
	}, nil
}

func (osFS) Remove(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return WrapPathErr("DeleteFile", path, err)
	}
	// a directory reparse point is unlinked with RemoveDirectory
	if attrs, _, err := fileAttributes(path); err == nil &&
		attrs&windows.FILE_ATTRIBUTE_DIRECTORY != 0 &&
		attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0 {
		return WrapPathErr("RemoveDirectory", path, windows.RemoveDirectory(p))
	}
	return WrapPathErr("DeleteFile", path, windows.DeleteFile(p))
}

func (osFS) RemoveDir(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return WrapPathErr("RemoveDirectory", path, err)
	}
	return WrapPathErr("RemoveDirectory", path, windows.RemoveDirectory(p))
}

func (osFS) Mkdir(path string, _ fs.FileMode) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return WrapPathErr("CreateDirectory", path, err)
	}
	return WrapPathErr("CreateDirectory", path, windows.CreateDirectory(p, nil))
}

func fileAttributes(path string) (uint32, int64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, err
	}
	var fa windows.Win32FileAttributeData
	err = windows.GetFileAttributesEx(p, windows.GetFileExInfoStandard, (*byte)(unsafe.Pointer(&fa)))
	if err != nil {
		return 0, 0, err
	}
	size := int64(fa.FileSizeHigh)<<32 | int64(fa.FileSizeLow)
	return fa.FileAttributes, size, nil
}

// winDirStream walks a FindFirstFile handle. The first entry arrives with
// the handle itself and is held in data until Next is called.
type winDirStream struct {
	path    string
	h       windows.Handle
	data    windows.Win32finddata
	pending bool
	done    bool
	closed  bool
}

func (d *winDirStream) Next() (string, error) {
	if d.closed {
		return "", WrapPathErr("FindNextFile", d.path, fs.ErrClosed)
	}
	if d.done {
		return "", io.EOF
	}
	if !d.pending {
		if err := windows.FindNextFile(d.h, &d.data); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				d.done = true
				return "", io.EOF
			}
			return "", WrapPathErr("FindNextFile", d.path, err)
		}
	}
	d.pending = false
	return windows.UTF16ToString(d.data.FileName[:]), nil
}

func (d *winDirStream) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return WrapPathErr("FindClose", d.path, windows.FindClose(d.h))
}
