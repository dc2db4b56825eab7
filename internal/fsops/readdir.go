package fsops

import (
	"errors"
	"io"
	"io/fs"
)

type namesReader interface {
	Readdirnames(n int) ([]string, error)
	Close() error
}

// readdirStream adapts anything with Readdirnames (an *os.File or an
// afero.File) to DirStream. The whole listing is taken on the first Next:
// afero's in-memory directories page by offset, so entries removed between
// two batches would shift later names out of reach.
type readdirStream struct {
	path   string
	r      namesReader
	names  []string
	read   bool
	closed bool
}

func (d *readdirStream) Next() (string, error) {
	if d.closed {
		return "", WrapPathErr("readdir", d.path, fs.ErrClosed)
	}
	if !d.read {
		names, err := d.r.Readdirnames(-1)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", WrapPathErr("readdir", d.path, err)
		}
		d.names = names
		d.read = true
	}
	if len(d.names) == 0 {
		return "", io.EOF
	}
	name := d.names[0]
	d.names = d.names[1:]
	return name, nil
}

func (d *readdirStream) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return WrapPathErr("closedir", d.path, d.r.Close())
}
