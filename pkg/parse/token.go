package parse

import "strings"

// TokenType classifies a Token.
type TokenType int

// Possible values for TokenType.
const (
	Word TokenType = iota
	Pipe
	RedirIn
	RedirOut
	RedirAppend
)

// Token is one unit of a command line.
type Token struct {
	Type TokenType
	// Text of a Word, with quotes retained. Backslashes are removed, except in
	// front of '$' and '`', which stay escaped until expansion.
	Text string
	// Byte offset of the token in the line.
	Pos int
}

// Tokenize splits a command line into tokens. Quoted strings are not split,
// and neither are command substitutions, which may contain spaces and
// operators of their own. Unquoted '|', '<', '>' and '>>' are operators.
//
// The returned error, if not nil, is always a *Error.
func Tokenize(line string) ([]Token, error) {
	var (
		tokens []Token
		sb     strings.Builder
		start  = -1
	)
	flush := func() {
		if start >= 0 {
			tokens = append(tokens, Token{Word, sb.String(), start})
			sb.Reset()
			start = -1
		}
	}
	mark := func(i int) {
		if start < 0 {
			start = i
		}
	}

	var quote byte
	quoteStart := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote == '\'':
			sb.WriteByte(c)
			if c == '\'' {
				quote = 0
			}
		case c == '\\':
			mark(i)
			if i+1 == len(line) {
				sb.WriteByte(c)
				break
			}
			i++
			if next := line[i]; next == '$' || next == '`' {
				sb.WriteByte('\\')
			}
			sb.WriteByte(line[i])
		case c == '`' || c == '$' && i+1 < len(line) && line[i+1] == '(':
			mark(i)
			end, err := substEnd(line, i)
			if err != nil {
				return nil, err
			}
			sb.WriteString(line[i:end])
			i = end - 1
		case quote == '"':
			sb.WriteByte(c)
			if c == '"' {
				quote = 0
			}
		case c == '"' || c == '\'':
			mark(i)
			quote, quoteStart = c, i
			sb.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		case c == '|':
			flush()
			tokens = append(tokens, Token{Pipe, "|", i})
		case c == '<':
			flush()
			tokens = append(tokens, Token{RedirIn, "<", i})
		case c == '>':
			flush()
			if i+1 < len(line) && line[i+1] == '>' {
				tokens = append(tokens, Token{RedirAppend, ">>", i})
				i++
			} else {
				tokens = append(tokens, Token{RedirOut, ">", i})
			}
		default:
			mark(i)
			sb.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, &Error{"unterminated " + quoteName(quote), quoteStart}
	}
	flush()
	return tokens, nil
}

func quoteName(q byte) string {
	if q == '\'' {
		return "single-quoted string"
	}
	return "double-quoted string"
}

// substEnd returns the index just past the substitution span starting at
// line[i], which is either a backtick or the '$' of "$(". Parentheses inside
// "$(" spans nest; quoted parentheses do not count.
func substEnd(line string, i int) (int, error) {
	if line[i] == '`' {
		for j := i + 1; j < len(line); j++ {
			switch line[j] {
			case '\\':
				j++
			case '`':
				return j + 1, nil
			}
		}
		return 0, &Error{"unterminated backtick substitution", i}
	}
	depth := 0
	var quote byte
	for j := i + 2; j < len(line); j++ {
		c := line[j]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else if c == '\\' && quote == '"' {
				j++
			}
		case c == '\\':
			j++
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return j + 1, nil
			}
			depth--
		}
	}
	return 0, &Error{"unterminated $( substitution", i}
}

// IsQuoted reports whether s is entirely wrapped in a pair of q quotes.
func IsQuoted(s string, q byte) bool {
	return len(s) >= 2 && s[0] == q && s[len(s)-1] == q
}

// Unquote removes one level of single or double quotes wrapping all of s.
func Unquote(s string) string {
	if IsQuoted(s, '\'') || IsQuoted(s, '"') {
		return s[1 : len(s)-1]
	}
	return s
}
