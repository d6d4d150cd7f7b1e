package textload

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

type Encoding string

const (
	UTF8     Encoding = "utf-8"
	UTF8BOM  Encoding = "utf-8-sig"
	UTF16LE  Encoding = "utf-16le"
	UTF16BE  Encoding = "utf-16be"
	Fallback Encoding = "fallback"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Loader decodes files to text. Detection order is UTF-8 BOM, UTF-16 BOM,
// plain UTF-8 and finally the fallback encoding.
type Loader struct {
	Fallback     encoding.Encoding
	FallbackName Encoding
}

var Default = &Loader{Fallback: charmap.ISO8859_1, FallbackName: "iso-8859-1"}

func (l *Loader) ReadText(path string) (string, Encoding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	text, enc, err := l.Decode(data)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return text, enc, nil
}

func (l *Loader) Decode(data []byte) (string, Encoding, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), UTF8BOM, nil
	case bytes.HasPrefix(data, bomUTF16LE):
		return decode(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data, UTF16LE)
	case bytes.HasPrefix(data, bomUTF16BE):
		return decode(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data, UTF16BE)
	case utf8.Valid(data):
		return string(data), UTF8, nil
	}

	fallback, name := l.Fallback, l.FallbackName
	if fallback == nil {
		fallback, name = charmap.ISO8859_1, "iso-8859-1"
	}
	if name == "" {
		name = Fallback
	}
	return decode(fallback, data, name)
}

func decode(enc encoding.Encoding, data []byte, name Encoding) (string, Encoding, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", err
	}
	return string(out), name, nil
}

func ReadText(path string) (string, Encoding, error) {
	return Default.ReadText(path)
}
