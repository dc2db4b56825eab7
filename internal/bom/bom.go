// Package bom classifies text buffers by their byte-order mark.
package bom

import (
	"bytes"
	"errors"
	"io"
)

// Encoding is the text encoding implied by a buffer's leading bytes.
type Encoding int

const (
	Bytes8 Encoding = iota // no signature: 8-bit or ASCII text
	UTF8BOM
	UTF16LE
	UTF16BE
	UTF32LE
	UTF32BE
)

var (
	sigUTF32LE = []byte{0xFF, 0xFE, 0x00, 0x00}
	sigUTF32BE = []byte{0x00, 0x00, 0xFE, 0xFF}
	sigUTF8    = []byte{0xEF, 0xBB, 0xBF}
	sigUTF16LE = []byte{0xFF, 0xFE}
	sigUTF16BE = []byte{0xFE, 0xFF}
)

// signatures are ordered longest first. FF FE is a prefix of FF FE 00 00,
// so UTF-32LE has to be tried before UTF-16LE.
var signatures = []struct {
	sig []byte
	enc Encoding
}{
	{sigUTF32LE, UTF32LE},
	{sigUTF32BE, UTF32BE},
	{sigUTF8, UTF8BOM},
	{sigUTF16LE, UTF16LE},
	{sigUTF16BE, UTF16BE},
}

// MaxBOMLen is the number of leading bytes Detect ever inspects.
const MaxBOMLen = 4

// Detect returns the encoding signalled by the first bytes of b.
// A buffer without a recognized mark, including an empty one, is Bytes8.
func Detect(b []byte) Encoding {
	for _, s := range signatures {
		if bytes.HasPrefix(b, s.sig) {
			return s.enc
		}
	}
	return Bytes8
}

// DetectN is Detect over the first n bytes of b. n is clamped to len(b),
// so a short buffer never matches a longer signature.
func DetectN(b []byte, n int) Encoding {
	if n < 0 {
		n = 0
	}
	if n > len(b) {
		n = len(b)
	}
	return Detect(b[:n])
}

// DetectReader reads up to MaxBOMLen bytes from r and classifies them.
// The bytes consumed are returned so the caller can stitch them back in
// front of the remaining stream.
func DetectReader(r io.Reader) (Encoding, []byte, error) {
	head := make([]byte, MaxBOMLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Bytes8, head[:n], err
	}
	head = head[:n]
	return Detect(head), head, nil
}

// String returns the conventional display name of e.
func (e Encoding) String() string {
	switch e {
	case Bytes8:
		return "8-bit"
	case UTF8BOM:
		return "UTF-8 BOM"
	case UTF16LE:
		return "UTF-16LE"
	case UTF16BE:
		return "UTF-16BE"
	case UTF32LE:
		return "UTF-32LE"
	case UTF32BE:
		return "UTF-32BE"
	default:
		return "unknown"
	}
}

// BOMLen is the length of the mark that identifies e.
func (e Encoding) BOMLen() int {
	switch e {
	case UTF8BOM:
		return len(sigUTF8)
	case UTF16LE, UTF16BE:
		return 2
	case UTF32LE, UTF32BE:
		return 4
	default:
		return 0
	}
}

// Supported reports whether files in e can be decoded. UTF-32 is rejected.
func (e Encoding) Supported() bool {
	return e != UTF32LE && e != UTF32BE
}
