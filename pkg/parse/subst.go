package parse

import (
	"context"
	"strings"
)

// Substitute replaces every command substitution in s that is not inside
// single quotes with the output of running its content through p.Exec, with
// trailing newlines trimmed. Output is spliced in as is and not scanned
// again; substitutions nested inside a command are resolved when that command
// is parsed.
func (p *Parser) Substitute(ctx context.Context, s string) (string, error) {
	if !strings.ContainsAny(s, "`$") {
		return s, nil
	}
	maxDepth := p.MaxDepth
	if maxDepth <= 0 {
		maxDepth = MaxDepth
	}
	var sb strings.Builder
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case inSingle:
		case c == '"':
			inDouble = !inDouble
		case c == '\\' && i+1 < len(s):
			sb.WriteByte(c)
			i++
			c = s[i]
		case c == '`' || c == '$' && i+1 < len(s) && s[i+1] == '(':
			end, err := substEnd(s, i)
			if err != nil {
				return "", err
			}
			var inner string
			if c == '`' {
				inner = s[i+1 : end-1]
			} else {
				inner = s[i+2 : end-1]
			}
			depth := Depth(ctx) + 1
			if depth > maxDepth {
				return "", ErrTooDeep
			}
			if p.Exec != nil {
				out, err := p.Exec.Capture(context.WithValue(ctx, depthKey{}, depth), inner)
				if err != nil {
					return "", err
				}
				sb.WriteString(strings.TrimRight(out, "\r\n"))
			}
			i = end - 1
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}

// Expand replaces variable references in s with their values from env:
//
//   - $NAME, where NAME consists of letters, digits and underscores
//   - ${NAME}
//   - ${!NAME}, which uses the value of NAME as the name to look up
//
// An unresolved reference is left in place. "\$" and "\`" become a literal
// '$' and '`'.
func Expand(s string, env Env) string {
	if !strings.ContainsAny(s, "$\\") {
		return s
	}
	lookup := func(name string) (string, bool) {
		if env == nil {
			return "", false
		}
		return env.Lookup(name)
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && (s[i+1] == '$' || s[i+1] == '`') {
			sb.WriteByte(s[i+1])
			i++
			continue
		}
		if c != '$' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		if s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				sb.WriteByte(c)
				continue
			}
			name := s[i+2 : i+2+end]
			sb.WriteString(expandBraced(name, lookup))
			i += 2 + end
			continue
		}
		j := i + 1
		for j < len(s) && isNameByte(s[j]) {
			j++
		}
		name := s[i+1 : j]
		if name == "" {
			sb.WriteByte(c)
			continue
		}
		if v, ok := lookup(name); ok {
			sb.WriteString(v)
		} else {
			sb.WriteString("$" + name)
		}
		i = j - 1
	}
	return sb.String()
}

func expandBraced(name string, lookup func(string) (string, bool)) string {
	if ref, ok := strings.CutPrefix(name, "!"); ok {
		target, ok := lookup(ref)
		if !ok {
			return "${" + name + "}"
		}
		name = target
	}
	if v, ok := lookup(name); ok {
		return v
	}
	return "${" + name + "}"
}

func isNameByte(b byte) bool {
	return b == '_' || '0' <= b && b <= '9' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}
