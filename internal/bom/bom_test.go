package bom

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want Encoding
	}{
		{"8 bit text", []byte("Detect Encoding Test"), Bytes8},
		{"empty", []byte{}, Bytes8},
		{"nil", nil, Bytes8},
		{"single NUL", []byte{0x00}, Bytes8},
		{"utf8 bom", []byte{0xEF, 0xBB, 0xBF}, UTF8BOM},
		{"utf8 bom with text", []byte("\xEF\xBB\xBFint main()"), UTF8BOM},
		{"utf16le", []byte{0xFF, 0xFE}, UTF16LE},
		{"utf16be", []byte{0xFE, 0xFF}, UTF16BE},
		{"utf16le with one NUL", []byte{0xFF, 0xFE, 0x00}, UTF16LE},
		{"utf16le text", []byte{0xFF, 0xFE, 'a', 0x00}, UTF16LE},
		{"utf32le", []byte{0xFF, 0xFE, 0x00, 0x00}, UTF32LE},
		{"utf32be", []byte{0x00, 0x00, 0xFE, 0xFF}, UTF32BE},
		{"truncated utf8 bom", []byte{0xEF, 0xBB}, Bytes8},
		{"truncated utf32be", []byte{0x00, 0x00, 0xFE}, Bytes8},
		{"lone FF", []byte{0xFF}, Bytes8},
		{"swapped utf32be", []byte{0x00, 0x00, 0xFF, 0xFE}, Bytes8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.in))
		})
	}
}

// TestDetectUTF32Precedence checks that a UTF-32LE mark is never reported as
// UTF-16LE, whatever follows it.
func TestDetectUTF32Precedence(t *testing.T) {
	text := []byte("this text will not be readable\x00")
	for _, tail := range [][]byte{nil, text, bytes.Repeat([]byte{0xFF, 0xFE}, 8)} {
		le := append([]byte{0xFF, 0xFE, 0x00, 0x00}, tail...)
		be := append([]byte{0x00, 0x00, 0xFE, 0xFF}, tail...)
		assert.Equal(t, UTF32LE, Detect(le))
		assert.Equal(t, UTF32BE, Detect(be))
	}

	buf := append([]byte{0xFF, 0xFE, 0x00, 0x00}, text...)
	require.Len(t, buf, 35)
	assert.Equal(t, UTF32LE, Detect(buf))
}

func TestDetectN(t *testing.T) {
	buf := []byte{0xFF, 0xFE, 0x00, 0x00, 'x'}

	assert.Equal(t, UTF32LE, DetectN(buf, 4))
	assert.Equal(t, UTF32LE, DetectN(buf, 100))
	assert.Equal(t, UTF16LE, DetectN(buf, 3))
	assert.Equal(t, UTF16LE, DetectN(buf, 2))
	assert.Equal(t, Bytes8, DetectN(buf, 1))
	assert.Equal(t, Bytes8, DetectN(buf, 0))
	assert.Equal(t, Bytes8, DetectN(buf, -1))
}

// TestDetectIsPure interleaves calls over different inputs and checks the
// results never drift.
func TestDetectIsPure(t *testing.T) {
	inputs := [][]byte{
		{0xFF, 0xFE, 0x00, 0x00},
		{0xFF, 0xFE},
		[]byte("plain"),
		{0xEF, 0xBB, 0xBF},
	}
	want := []Encoding{UTF32LE, UTF16LE, Bytes8, UTF8BOM}

	for round := 0; round < 5; round++ {
		for i := len(inputs) - 1; i >= 0; i-- {
			assert.Equal(t, want[i], Detect(inputs[i]))
		}
	}
}

func TestDetectReader(t *testing.T) {
	enc, head, err := DetectReader(strings.NewReader("\xFE\xFFrest"))
	require.NoError(t, err)
	assert.Equal(t, UTF16BE, enc)
	assert.Equal(t, []byte("\xFE\xFFre"), head)

	enc, head, err = DetectReader(strings.NewReader("ab"))
	require.NoError(t, err)
	assert.Equal(t, Bytes8, enc)
	assert.Equal(t, []byte("ab"), head)

	enc, head, err = DetectReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Bytes8, enc)
	assert.Empty(t, head)

	boom := errors.New("boom")
	_, _, err = DetectReader(iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
}

func TestEncodingProperties(t *testing.T) {
	assert.Equal(t, "UTF-32LE", UTF32LE.String())
	assert.Equal(t, "UTF-32BE", UTF32BE.String())
	assert.Equal(t, "8-bit", Bytes8.String())
	assert.Equal(t, "unknown", Encoding(42).String())

	assert.Equal(t, 0, Bytes8.BOMLen())
	assert.Equal(t, 3, UTF8BOM.BOMLen())
	assert.Equal(t, 2, UTF16BE.BOMLen())
	assert.Equal(t, 4, UTF32LE.BOMLen())

	assert.True(t, UTF16LE.Supported())
	assert.True(t, Bytes8.Supported())
	assert.False(t, UTF32LE.Supported())
	assert.False(t, UTF32BE.Supported())
}
