package fsops

import (
	"errors"
	"io/fs"
)

// WrapPathErr wraps err into an [*fs.PathError] so every backend reports
// failures the same way.
//
// A nil err yields nil. When err already is a PathError its Op and Path are
// kept unless op or path are non-empty.
func WrapPathErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		if op != "" {
			pathErr.Op = op
		}
		if path != "" {
			pathErr.Path = path
		}
		return err
	}
	return &fs.PathError{Op: op, Path: path, Err: err}
}
