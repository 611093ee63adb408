package extract

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Text decodes a plain text file. UTF-8 is tried strictly, then UTF-16 when a
// byte order mark is present, then Latin-1, then Windows-1252 when Latin-1
// would produce C1 control characters.
func Text(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}

	if hasUTF16BOM(data) {
		decoded, err := decode(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data)
		if err == nil {
			return decoded, nil
		}
	}

	latin1, err := decode(charmap.ISO8859_1, data)
	if err == nil && !hasC1Controls(latin1) {
		return latin1, nil
	}

	cp1252, err := decode(charmap.Windows1252, data)
	if err != nil {
		return "", fmt.Errorf("could not decode text file with any supported encoding: %w", err)
	}
	return cp1252, nil
}

func decode(enc encoding.Encoding, data []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func hasUTF16BOM(data []byte) bool {
	return len(data) >= 2 && ((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF))
}

func hasC1Controls(s string) bool {
	for _, r := range s {
		if r >= 0x80 && r <= 0x9F {
			return true
		}
	}
	return false
}
