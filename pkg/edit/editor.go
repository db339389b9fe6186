// Package edit implements the line editor that turns a raw stream of bytes
// from a terminal into edited lines.
//
// An Editor is fed one byte at a time and echoes to the terminal it serves.
// It never blocks; escape sequences are accumulated across calls and
// abandoned if they don't complete in time.
package edit

import (
	"errors"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"src.picosh.dev/pkg/cli/term"
	"src.picosh.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[edit] ")

// ErrInterrupt is the condition raised by Ctrl-C. It aborts the command being
// executed.
var ErrInterrupt = errors.New("interrupted")

// Control bytes with special meaning.
const (
	exitByte  = 0x01 // Ctrl-A
	ctrlC     = 0x03
	backspace = 0x08
	esc       = 0x1b
	del       = 0x7f
)

// Default terminal geometry, used until the terminal reports its size.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// DefaultEscapeTimeout is how long an escape sequence may take to complete.
const DefaultEscapeTimeout = 100 * time.Millisecond

// Escape sequences longer than this are abandoned.
const maxEscapeLen = 32

// Kind is the kind of a Result.
type Kind int

// Possible values of Kind.
const (
	// Nothing to report.
	None Kind = iota
	// A line was submitted with Enter.
	Submit
	// The exit byte was received.
	Exit
	// Ctrl-C was received.
	Interrupt
	// The terminal reported its size.
	Size
	// The terminal reported its attributes.
	Attributes
	// An escape sequence did not complete in time.
	EscapeTimeout
	// The line was discarded; the prompt should be shown again.
	Reprompt
)

var kindNames = [...]string{
	"none", "submit", "exit", "interrupt", "size", "attributes", "esc", "reprompt",
}

func (k Kind) String() string {
	if 0 <= k && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Result is what feeding a byte produced.
type Result struct {
	Kind Kind
	// The submitted line for Submit, the current line for EscapeTimeout.
	Line string
}

// Mode is the editing mode.
type Mode int

// Possible values of Mode.
const (
	Insert Mode = iota
	Overwrite
)

// History gives access to the command history.
type History interface {
	Get(n int) (string, error)
	Search(prefix string, rank int) (string, error)
}

// Config configures an Editor. All fields are optional.
type Config struct {
	History History
	// Commands returns the names of all commands in lookup order, for
	// completion.
	Commands func() []string
	// ListDir returns the entries of the working directory, for completion.
	ListDir func() ([]string, error)
	// Now returns the current time.
	Now           func() time.Time
	EscapeTimeout time.Duration
}

// Editor is the editing state of one terminal.
type Editor struct {
	cfg Config
	out io.Writer

	line   []rune
	cursor int
	mode   Mode
	// Index into the history while browsing it, -1 otherwise.
	histCursor int

	escaping bool
	escSeq   []byte
	escStart time.Time

	// Incomplete UTF-8 sequence.
	partial []byte
	afterCR bool

	width, height int
	termType      string
	termTypeEx    string
}

// New creates an Editor echoing to out.
func New(out io.Writer, cfg Config) *Editor {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.EscapeTimeout <= 0 {
		cfg.EscapeTimeout = DefaultEscapeTimeout
	}
	if cfg.ListDir == nil {
		cfg.ListDir = listWorkingDir
	}
	return &Editor{cfg: cfg, out: out, histCursor: -1,
		width: DefaultWidth, height: DefaultHeight}
}

func listWorkingDir() ([]string, error) {
	entries, err := os.ReadDir(".")
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	return names, nil
}

// Line returns the line being edited.
func (ed *Editor) Line() string { return string(ed.line) }

// Cursor returns the cursor position, in runes.
func (ed *Editor) Cursor() int { return ed.cursor }

// Mode returns the editing mode.
func (ed *Editor) Mode() Mode { return ed.mode }

// HistoryCursor returns the history position being browsed, or -1.
func (ed *Editor) HistoryCursor() int { return ed.histCursor }

// Size returns the terminal geometry.
func (ed *Editor) Size() (width, height int) { return ed.width, ed.height }

// SetSize sets the terminal geometry. Non-positive values are ignored.
func (ed *Editor) SetSize(width, height int) {
	if width > 0 {
		ed.width = width
	}
	if height > 0 {
		ed.height = height
	}
}

// TermType returns the primary and secondary device attributes reported by
// the terminal, or "" if not reported.
func (ed *Editor) TermType() (primary, secondary string) {
	return ed.termType, ed.termTypeEx
}

// Reset clears the line.
func (ed *Editor) Reset() {
	ed.line = nil
	ed.cursor = 0
	ed.histCursor = -1
}

// Feed processes one byte of input.
func (ed *Editor) Feed(b byte) Result {
	if ed.escaping {
		return ed.feedEscape(b)
	}
	if len(ed.partial) > 0 || b >= utf8.RuneSelf {
		ed.partial = append(ed.partial, b)
		if !utf8.FullRune(ed.partial) {
			return Result{}
		}
		r, _ := utf8.DecodeRune(ed.partial)
		ed.partial = ed.partial[:0]
		if r != utf8.RuneError {
			ed.insert(r)
		}
		return Result{}
	}

	afterCR := ed.afterCR
	ed.afterCR = b == '\r'
	switch b {
	case esc:
		ed.escaping = true
		ed.escSeq = ed.escSeq[:0]
		ed.escStart = ed.cfg.Now()
	case ctrlC:
		ed.write("^C\r\n")
		ed.Reset()
		return Result{Kind: Interrupt}
	case exitByte:
		return Result{Kind: Exit}
	case del, backspace:
		ed.backspace()
	case '\n':
		if afterCR {
			// Second half of CR LF.
			return Result{}
		}
		return ed.enter()
	case '\r':
		return ed.enter()
	case '\t':
		ed.complete()
	default:
		if b >= 0x20 {
			ed.insert(rune(b))
		}
	}
	return Result{}
}

// FeedString feeds every byte of s and returns the results that are not None.
func (ed *Editor) FeedString(s string) []Result {
	var results []Result
	for i := 0; i < len(s); i++ {
		if r := ed.Feed(s[i]); r.Kind != None {
			results = append(results, r)
		}
	}
	return results
}

// Tick abandons a pending escape sequence that has timed out. It should be
// called periodically, so that a lone ESC doesn't hold up later input.
func (ed *Editor) Tick() Result {
	if ed.escaping && ed.cfg.Now().Sub(ed.escStart) > ed.cfg.EscapeTimeout {
		return ed.abandonEscape()
	}
	return Result{}
}

func (ed *Editor) feedEscape(b byte) Result {
	if ed.cfg.Now().Sub(ed.escStart) > ed.cfg.EscapeTimeout {
		return ed.abandonEscape()
	}
	ed.escSeq = append(ed.escSeq, b)
	if !term.Complete(string(ed.escSeq)) {
		if len(ed.escSeq) >= maxEscapeLen {
			return ed.abandonEscape()
		}
		return Result{}
	}
	ed.escaping = false
	seq := string(ed.escSeq)
	ev := term.Decode(seq)
	if ev == nil {
		logger.Debug("unknown escape sequence", "seq", seq)
		return Result{}
	}
	return ed.handleEvent(ev)
}

func (ed *Editor) abandonEscape() Result {
	logger.Debug("escape sequence timed out", "seq", string(ed.escSeq))
	ed.escaping = false
	ed.escSeq = ed.escSeq[:0]
	return Result{Kind: EscapeTimeout, Line: string(ed.line)}
}

func (ed *Editor) enter() Result {
	if len(ed.line) > 0 && ed.line[0] == '!' {
		return ed.recall()
	}
	line := string(ed.line)
	ed.write("\r\n")
	ed.Reset()
	return Result{Kind: Submit, Line: line}
}

func (ed *Editor) write(s string) {
	if s != "" {
		ed.out.Write([]byte(s))
	}
}
