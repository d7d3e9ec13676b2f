package parse

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Unquote decodes a string or bytes lexeme. Unknown escape sequences are
// kept verbatim; InvalidEscapes reports them.
func Unquote(raw string) string {
	body := stripQuotes(raw)
	var sb strings.Builder
	sb.Grow(len(body))
	for i := 0; i < len(body); {
		if body[i] != '\\' {
			sb.WriteByte(body[i])
			i++
			continue
		}
		decoded, width, ok := decodeEscape(body[i:])
		if !ok {
			sb.WriteByte('\\')
			i++
			continue
		}
		sb.WriteString(decoded)
		i += width
	}
	return sb.String()
}

// InvalidEscapes returns the escape sequences in a string or bytes lexeme
// that do not decode, in order of appearance.
func InvalidEscapes(raw string) []string {
	body := stripQuotes(raw)
	var bad []string
	for i := 0; i < len(body); {
		if body[i] != '\\' {
			i++
			continue
		}
		_, width, ok := decodeEscape(body[i:])
		if ok {
			i += width
			continue
		}
		if i+1 >= len(body) {
			bad = append(bad, `\`)
			break
		}
		_, size := utf8.DecodeRuneInString(body[i+1:])
		bad = append(bad, body[i:i+1+size])
		i += 1 + size
	}
	return bad
}

func stripQuotes(raw string) string {
	body := strings.TrimPrefix(raw, "b")
	if len(body) >= 2 {
		body = body[1 : len(body)-1]
	}
	return body
}

// decodeEscape decodes the escape sequence at the start of s, which begins
// with a backslash.
func decodeEscape(s string) (string, int, bool) {
	if len(s) < 2 {
		return "", 0, false
	}
	switch s[1] {
	case 'n':
		return "\n", 2, true
	case 't':
		return "\t", 2, true
	case 'r':
		return "\r", 2, true
	case '0':
		return "\x00", 2, true
	case '\\', '"', '\'', '`':
		return s[1:2], 2, true
	case 'x':
		if len(s) < 4 {
			return "", 0, false
		}
		b, err := strconv.ParseUint(s[2:4], 16, 8)
		if err != nil {
			return "", 0, false
		}
		return string([]byte{byte(b)}), 4, true
	case 'u':
		if len(s) > 2 && s[2] == '{' {
			end := strings.IndexByte(s, '}')
			if end < 4 || end > 9 {
				return "", 0, false
			}
			return decodeCodePoint(s[3:end], end+1)
		}
		if len(s) < 6 {
			return "", 0, false
		}
		return decodeCodePoint(s[2:6], 6)
	}
	return "", 0, false
}

func decodeCodePoint(hex string, width int) (string, int, bool) {
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || !utf8.ValidRune(rune(n)) {
		return "", 0, false
	}
	return string(rune(n)), width, true
}
