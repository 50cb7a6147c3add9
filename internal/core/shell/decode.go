package shell

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

// Encoding names a candidate text encoding for process output.
type Encoding string

const (
	UTF8     Encoding = "utf-8"
	ISO88591 Encoding = "iso-8859-1"
	ASCII    Encoding = "ascii"
	CP866    Encoding = "cp866"
	CP1251   Encoding = "cp1251"
)

// Candidate orders used by the runner variants.
var (
	POSIXEncodings   = []Encoding{UTF8, ISO88591, ASCII}
	WindowsEncodings = []Encoding{CP866, CP1251, UTF8, ASCII}
)

// Decode converts one line of raw process output to text. Each candidate is
// tried strictly in order; when all of them reject the input, a lossy UTF-8
// decode is used and, failing that, a Latin-1 decode that accepts any byte
// sequence. Leading and trailing whitespace is stripped. Decode never fails.
func Decode(raw []byte, candidates []Encoding) string {
	for _, enc := range candidates {
		if text, ok := decodeStrict(raw, enc); ok {
			return strings.TrimSpace(text)
		}
	}

	if text, err := xunicode.UTF8.NewDecoder().Bytes(raw); err == nil {
		return strings.TrimSpace(string(text))
	}
	return strings.TrimSpace(decodeSingleByte(raw, charmap.ISO8859_1))
}

func decodeStrict(raw []byte, enc Encoding) (string, bool) {
	switch enc {
	case UTF8:
		if !utf8.Valid(raw) {
			return "", false
		}
		return string(raw), true
	case ASCII:
		for _, b := range raw {
			if b >= utf8.RuneSelf {
				return "", false
			}
		}
		return string(raw), true
	case ISO88591:
		return decodeCharmapStrict(raw, charmap.ISO8859_1)
	case CP866:
		return decodeCharmapStrict(raw, charmap.CodePage866)
	case CP1251:
		return decodeCharmapStrict(raw, charmap.Windows1251)
	default:
		return "", false
	}
}

// decodeCharmapStrict rejects input containing bytes the code page leaves
// undefined (they decode to U+FFFD).
func decodeCharmapStrict(raw []byte, cm *charmap.Charmap) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		r := cm.DecodeByte(c)
		if r == utf8.RuneError {
			return "", false
		}
		b.WriteRune(r)
	}
	return b.String(), true
}

func decodeSingleByte(raw []byte, cm *charmap.Charmap) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		b.WriteRune(cm.DecodeByte(c))
	}
	return b.String()
}
