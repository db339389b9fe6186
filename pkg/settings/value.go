package settings

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// decode returns the value of an assignment entry.
func (e *entry) decode() (string, error) {
	if e.err != nil {
		return "", e.err
	}
	switch e.kind {
	case tripleQuotedValue:
		q := e.text[:3]
		end := closingQuote(e.text[3:], q)
		// A newline right after the opening quotes is not part of the value.
		return strings.TrimPrefix(e.text[3:3+end], "\n"), nil
	case jsonValue:
		v := e.text[:jsonEnd(e.text)+1]
		if !gjson.Valid(v) {
			logger.Warn("malformed JSON value", "file", e.file, "line", e.line, "key", e.key)
		}
		return v, nil
	case quotedValue:
		v, _, err := decodeQuoted(e.text)
		return v, err
	default:
		v, _, _ := strings.Cut(e.text, "#")
		return strings.TrimSpace(v), nil
	}
}

// decodeQuoted decodes the quoted string at the start of s and returns it
// together with the rest of s. Double-quoted strings have their escape
// sequences expanded; single-quoted strings are literal.
func decodeQuoted(s string) (string, string, error) {
	q := s[:1]
	end := closingQuote(s[1:], q)
	if end < 0 {
		return "", "", ErrUnterminated
	}
	body, rest := s[1:1+end], s[2+end:]
	if q == "'" {
		return body, rest, nil
	}
	return unescape(body), rest, nil
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'e':
			sb.WriteByte('\x1b')
		case '"', '\\', '\'':
			sb.WriteByte(s[i])
		case 'x':
			if i+2 < len(s) {
				if b, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					sb.WriteByte(byte(b))
					i += 2
					continue
				}
			}
			sb.WriteString(`\x`)
		case 'u':
			if i+4 < len(s) {
				if r, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					sb.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			sb.WriteString(`\u`)
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// formatAssignment formats a fresh "key = value" line.
func formatAssignment(key, value string) string {
	return fmt.Sprintf("%s = %s\n", key, formatValue(value))
}

// formatValue returns the file representation of value. JSON arrays and
// objects, numbers, booleans and already quoted strings are written as they
// are; everything else is written as a double-quoted string.
func formatValue(v string) string {
	switch {
	case isJSON(v), isLiteral(v), isQuoted(v):
		return v
	default:
		return quote(v)
	}
}

func isJSON(v string) bool {
	return (strings.HasPrefix(v, "[") || strings.HasPrefix(v, "{")) &&
		jsonEnd(v) == len(v)-1 && gjson.Valid(v)
}

func isLiteral(v string) bool {
	if v == "true" || v == "false" {
		return true
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

func isQuoted(v string) bool {
	if v == "" || (v[0] != '"' && v[0] != '\'') || strings.ContainsAny(v, "\n") {
		return false
	}
	_, rest, err := decodeQuoted(v)
	if err != nil {
		return false
	}
	rest = strings.TrimSpace(rest)
	return rest == "" || rest[0] == '#'
}

func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			sb.WriteString(`\"`)
		case r == '\\':
			sb.WriteString(`\\`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == utf8.RuneError && size == 1, r < 0x20, r == 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, s[i])
		default:
			sb.WriteString(s[i : i+size])
		}
		i += size
	}
	sb.WriteByte('"')
	return sb.String()
}
