// Package textfile loads text files and normalizes them to UTF-8 according
// to their byte-order mark.
package textfile

import (
	"fmt"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"tidyfs/internal/bom"
)

// File is a loaded text file. Text is always UTF-8 without a BOM.
type File struct {
	Path     string
	Encoding bom.Encoding
	Size     int64 // size on disk, before decoding
	Text     []byte
}

// UnsupportedError is returned for files whose encoding cannot be decoded.
type UnsupportedError struct {
	Path     string
	Encoding bom.Encoding
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s encoding is not supported: %s", e.Encoding, e.Path)
}

// Load reads path from fsys, detects its encoding and decodes it.
func Load(fsys afero.Fs, path string) (*File, error) {
	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	enc := bom.Detect(raw)
	text, err := Decode(raw, enc)
	if err != nil {
		if ue, ok := err.(*UnsupportedError); ok {
			ue.Path = path
			return nil, ue
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &File{Path: path, Encoding: enc, Size: int64(len(raw)), Text: text}, nil
}

// Decode converts raw, which is in encoding enc, to UTF-8. The mark itself
// is dropped. 8-bit input is returned unchanged.
func Decode(raw []byte, enc bom.Encoding) ([]byte, error) {
	var dec *encoding.Decoder
	switch enc {
	case bom.Bytes8:
		return raw, nil
	case bom.UTF8BOM:
		dec = unicode.UTF8BOM.NewDecoder()
	case bom.UTF16LE:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	case bom.UTF16BE:
		dec = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	default:
		return nil, &UnsupportedError{Encoding: enc}
	}
	return dec.Bytes(raw)
}
