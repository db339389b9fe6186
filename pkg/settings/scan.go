package settings

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnterminated is reported for a quoted, triple-quoted or JSON value that
// is not closed before the end of the file.
var ErrUnterminated = errors.New("unterminated value")

const maxIncludeDepth = 8

type frame struct {
	name string
	file *os.File
	br   *bufio.Reader
	line int
}

// reader yields the physical lines of a settings file. When includes are
// enabled, an "#include path" line pushes the named file onto a stack; lines
// are read from it until EOF, and then from the including file again.
type reader struct {
	stack    []*frame
	includes bool
}

func openReader(path string, includes bool) (*reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &reader{[]*frame{{name: path, file: f, br: bufio.NewReader(f)}}, includes}, nil
}

// readLine returns the next physical line including its line terminator,
// together with the name of the file and the line number. It returns io.EOF
// after the last line of the outermost file.
func (r *reader) readLine() (string, string, int, error) {
	for len(r.stack) > 0 {
		top := r.stack[len(r.stack)-1]
		line, err := top.br.ReadString('\n')
		if line != "" {
			top.line++
			if r.includes {
				if path, ok := includePath(line); ok {
					r.push(top.name, path)
					continue
				}
			}
			return line, top.name, top.line, nil
		}
		if err != nil && err != io.EOF {
			return "", top.name, top.line, err
		}
		top.file.Close()
		r.stack = r.stack[:len(r.stack)-1]
	}
	return "", "", 0, io.EOF
}

func (r *reader) push(from, path string) {
	if len(r.stack) >= maxIncludeDepth {
		logger.Warn("include nested too deeply", "file", from, "include", path)
		return
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(from), path)
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("cannot open include", "file", from, "err", err)
		return
	}
	r.stack = append(r.stack, &frame{name: path, file: f, br: bufio.NewReader(f)})
}

func (r *reader) close() {
	for _, fr := range r.stack {
		fr.file.Close()
	}
	r.stack = nil
}

func includePath(line string) (string, bool) {
	s := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(s, "#include")
	if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return "", false
	}
	path := strings.Trim(strings.TrimSpace(rest), `"'`)
	return path, path != ""
}

type valueKind int

const (
	bareValue valueKind = iota
	quotedValue
	tripleQuotedValue
	jsonValue
)

// entry is one logical entry: an assignment, possibly spanning several
// physical lines, or a single line that is not an assignment.
type entry struct {
	raw    string
	file   string
	line   int
	assign bool
	key    string
	text   string
	kind   valueKind
	err    error
}

type scanner struct {
	r *reader
}

func newScanner(r *reader) *scanner { return &scanner{r} }

// next returns the next logical entry, or nil at the end of input. Only I/O
// errors are returned as errors; malformed values are recorded in the entry.
func (sc *scanner) next() (*entry, error) {
	line, file, n, err := sc.r.readLine()
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	e := &entry{raw: line, file: file, line: n}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] == '#' {
		return e, nil
	}
	eq := strings.IndexByte(trimmed, '=')
	if eq <= 0 {
		return e, nil
	}
	e.key = strings.TrimSpace(trimmed[:eq])
	if e.key == "" {
		return e, nil
	}
	e.assign = true
	e.text = strings.TrimLeft(trimmed[eq+1:], " \t")

	switch {
	case strings.HasPrefix(e.text, `"""`) || strings.HasPrefix(e.text, `'''`):
		e.kind = tripleQuotedValue
		q := e.text[:3]
		for closingQuote(e.text[3:], q) < 0 {
			if !sc.continueEntry(e) {
				break
			}
		}
	case strings.HasPrefix(e.text, "[") || strings.HasPrefix(e.text, "{"):
		e.kind = jsonValue
		for jsonEnd(e.text) < 0 {
			if !sc.continueEntry(e) {
				break
			}
		}
	case strings.HasPrefix(e.text, `"`) || strings.HasPrefix(e.text, `'`):
		e.kind = quotedValue
	}
	return e, nil
}

// continueEntry appends the next physical line to a multi-line value. It
// returns false and marks the entry as unterminated at the end of input.
func (sc *scanner) continueEntry(e *entry) bool {
	line, _, _, err := sc.r.readLine()
	if err != nil {
		e.err = ErrUnterminated
		return false
	}
	e.raw += line
	e.text += "\n" + strings.TrimRight(line, "\r\n")
	return true
}

// closingQuote returns the index of the first occurrence of q in s that is
// not preceded by a backslash, or -1.
func closingQuote(s, q string) int {
	for i := 0; i+len(q) <= len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if strings.HasPrefix(s[i:], q) {
			return i
		}
	}
	return -1
}

// jsonEnd returns the index of the bracket that closes the array or object
// starting at s[0], or -1 if brackets do not balance yet. Brackets inside
// JSON strings are ignored.
func jsonEnd(s string) int {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
