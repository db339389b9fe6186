// Package parse implements the command line parser.
//
// A line is tokenized, split into a pipeline of stages at '|', and each
// stage's words are classified into switches, positional arguments and
// redirections. Command substitutions (`...` and $(...)) are run through an
// Executor and variables ($NAME, ${NAME}, ${!NAME}) are looked up in an Env.
package parse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Error is a parse error.
type Error struct {
	Msg string
	// Byte offset in the line where the error was detected.
	Pos int
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at %d: %s", e.Pos, e.Msg)
}

// ErrTooDeep is returned when command substitutions nest deeper than
// MaxDepth.
var ErrTooDeep = errors.New("command substitution nested too deeply")

// MaxDepth is the default limit of nested command substitutions.
const MaxDepth = 16

// True is the value of a switch given without a value.
const True = "true"

// Redirections of a stage.
type Redirections struct {
	Stdin  string
	Stdout string
	Append bool
}

// Stage is one command of a pipeline.
type Stage struct {
	// Line is the stage reassembled from its processed words.
	Line     string
	Switches map[string]string
	Args     []string
	Redir    Redirections
	// The stage whose output feeds this one, or nil.
	PipeFrom *Stage
}

// Verb returns the first argument, or "" if there is none.
func (st *Stage) Verb() string {
	if len(st.Args) == 0 {
		return ""
	}
	return st.Args[0]
}

// Has reports whether the switch is present.
func (st *Stage) Has(name string) bool {
	_, ok := st.Switches[name]
	return ok
}

// Opt returns the value of a switch, or dflt if it is absent or was given
// without a value.
func (st *Stage) Opt(name, dflt string) string {
	if v, ok := st.Switches[name]; ok && v != True {
		return v
	}
	return dflt
}

func (st *Stage) addLine(s string) {
	if st.Line != "" {
		st.Line += " "
	}
	st.Line += s
}

// Pipeline is a sequence of stages, each linked to its predecessor.
type Pipeline []*Stage

// Env resolves variables.
type Env interface {
	Lookup(name string) (string, bool)
}

// Executor runs a command line and returns what it wrote.
type Executor interface {
	Capture(ctx context.Context, line string) (string, error)
}

// EnvFunc adapts a function to Env.
type EnvFunc func(name string) (string, bool)

// Lookup calls f.
func (f EnvFunc) Lookup(name string) (string, bool) { return f(name) }

// Parser parses command lines. Env and Exec may be nil, in which case
// variables stay unresolved and substitutions produce no output.
type Parser struct {
	Env      Env
	Exec     Executor
	MaxDepth int
}

type depthKey struct{}

// Depth returns the substitution depth recorded in ctx.
func Depth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// Parse parses one line. An empty line yields an empty pipeline.
func (p *Parser) Parse(ctx context.Context, line string) (Pipeline, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	cur := newStage(nil)
	pl := Pipeline{cur}
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.Type {
		case Pipe:
			if len(cur.Args) == 0 {
				return nil, &Error{"empty pipeline stage", tok.Pos}
			}
			cur = newStage(cur)
			pl = append(pl, cur)
		case RedirIn, RedirOut, RedirAppend:
			if i+1 == len(tokens) || tokens[i+1].Type != Word {
				return nil, &Error{"missing target for " + tok.Text, tok.Pos}
			}
			i++
			target, err := p.word(ctx, tokens[i].Text)
			if err != nil {
				return nil, err
			}
			if tok.Type == RedirIn {
				cur.Redir.Stdin = target
			} else {
				cur.Redir.Stdout = target
				cur.Redir.Append = tok.Type == RedirAppend
			}
		case Word:
			if err := p.addWord(ctx, cur, tok.Text); err != nil {
				return nil, err
			}
		}
	}
	if len(cur.Args) == 0 && len(pl) > 1 {
		return nil, &Error{"empty pipeline stage", len(line)}
	}
	return pl, nil
}

func newStage(from *Stage) *Stage {
	return &Stage{Switches: map[string]string{}, PipeFrom: from}
}

func (p *Parser) addWord(ctx context.Context, st *Stage, w string) error {
	switch {
	case strings.HasPrefix(w, "--"):
		key, value, hasValue := strings.Cut(w[2:], "=")
		if !hasValue {
			st.Switches[key] = True
			st.addLine(w)
			return nil
		}
		value, err := p.word(ctx, value)
		if err != nil {
			return err
		}
		st.Switches[key] = value
		st.addLine("--" + key + "=" + value)
	case len(w) > 1 && w[0] == '-':
		st.addShortSwitches([]rune(w[1:]))
		st.addLine(w)
	default:
		arg, err := p.word(ctx, w)
		if err != nil {
			return err
		}
		st.Args = append(st.Args, arg)
		st.addLine(arg)
	}
	return nil
}

// addShortSwitches decomposes a single-dash token. Letters are boolean flags
// until one is followed by a non-letter, which starts that flag's value:
// "-abc" sets a, b and c, "-n5" sets n to "5". A token that starts with a
// non-letter, like "-5", is a flag named by that rune, valued by the rest.
func (st *Stage) addShortSwitches(rs []rune) {
	for j, r := range rs {
		rest := string(rs[j+1:])
		switch {
		case !unicode.IsLetter(r) && j == 0:
			if rest == "" {
				rest = True
			}
			st.Switches[string(r)] = rest
			return
		case j+1 < len(rs) && !unicode.IsLetter(rs[j+1]):
			st.Switches[string(r)] = rest
			return
		default:
			st.Switches[string(r)] = True
		}
	}
}

// word applies substitution and expansion to a word, unless it is wrapped in
// single quotes, and then removes its outer quotes.
func (p *Parser) word(ctx context.Context, w string) (string, error) {
	if IsQuoted(w, '\'') {
		return w[1 : len(w)-1], nil
	}
	dq := IsQuoted(w, '"')
	w, err := p.Substitute(ctx, w)
	if err != nil {
		return "", err
	}
	w = Expand(w, p.Env)
	if dq {
		w = w[1 : len(w)-1]
	}
	return w, nil
}
