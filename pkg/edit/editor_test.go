package edit

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"src.picosh.dev/pkg/histfile"
	"src.picosh.dev/pkg/must"
	"src.picosh.dev/pkg/testutil"
)

type fixture struct {
	ed  *Editor
	out *strings.Builder
	now time.Time
}

func setup(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{out: &strings.Builder{}, now: time.Unix(1000, 0)}
	cfg.Now = func() time.Time { return f.now }
	f.ed = New(f.out, cfg)
	return f
}

// feed feeds s and returns the non-None results and the output it caused.
func (f *fixture) feed(s string) ([]Result, string) {
	f.out.Reset()
	results := f.ed.FeedString(s)
	return results, f.out.String()
}

func (f *fixture) checkLine(t *testing.T, line string, cursor int) {
	t.Helper()
	if got := f.ed.Line(); got != line {
		t.Errorf("line = %q, want %q", got, line)
	}
	if got := f.ed.Cursor(); got != cursor {
		t.Errorf("cursor = %d, want %d", got, cursor)
	}
}

const (
	up       = "\033[A"
	down     = "\033[B"
	right    = "\033[C"
	left     = "\033[D"
	home     = "\033[H"
	end      = "\033[F"
	delKey   = "\033[3~"
	insKey   = "\033[2~"
	ctrlLeft = "\033[1;5D"
	ctrlRght = "\033[1;5C"
)

func TestInsert(t *testing.T) {
	f := setup(t, Config{})
	_, out := f.feed("abc")
	f.checkLine(t, "abc", 3)
	// Appending needs no room to be opened.
	if want := "abc"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	_, out = f.feed("\033[D\033[DX")
	f.checkLine(t, "aXbc", 2)
	if want := "\033[D\033[D\033[@X"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestInsertAndOverwriteLengths(t *testing.T) {
	f := setup(t, Config{})
	f.feed("hello world")
	for pos := 0; pos <= 11; pos++ {
		f.ed.moveTo(pos)
		n, c := len(f.ed.Line()), f.ed.Cursor()
		f.feed("x")
		if len(f.ed.Line()) != n+1 || f.ed.Cursor() != c+1 {
			t.Errorf("insert at %d: length %d cursor %d, want %d %d",
				pos, len(f.ed.Line()), f.ed.Cursor(), n+1, c+1)
		}
	}
	f.feed(insKey)
	if f.ed.Mode() != Overwrite {
		t.Fatalf("mode = %v, want Overwrite", f.ed.Mode())
	}
	f.ed.moveTo(0)
	for f.ed.Cursor() < len(f.ed.Line()) {
		n, c := len(f.ed.Line()), f.ed.Cursor()
		f.feed("y")
		if len(f.ed.Line()) != n || f.ed.Cursor() != c+1 {
			t.Fatalf("overwrite at %d changed length to %d", c, len(f.ed.Line()))
		}
	}
	if strings.Trim(f.ed.Line(), "y") != "" {
		t.Errorf("line = %q, want all y", f.ed.Line())
	}
	f.feed(insKey + "z")
	if f.ed.Mode() != Insert || !strings.HasSuffix(f.ed.Line(), "z") {
		t.Errorf("mode %v line %q after toggling back", f.ed.Mode(), f.ed.Line())
	}
}

func TestBackspace(t *testing.T) {
	f := setup(t, Config{})
	_, out := f.feed("\x7f")
	f.checkLine(t, "", 0)
	if out != "" {
		t.Errorf("backspace at 0 wrote %q", out)
	}

	f.feed("abc" + left)
	_, out = f.feed("\b")
	f.checkLine(t, "ac", 1)
	if want := "\bc \b\b"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	f.feed(end + "\x7f")
	f.checkLine(t, "a", 1)
}

func TestDeleteKey(t *testing.T) {
	f := setup(t, Config{})
	f.feed("abc" + home)
	_, out := f.feed(delKey)
	f.checkLine(t, "bc", 0)
	if out != "\033[1P" {
		t.Errorf("output = %q", out)
	}
	f.feed(end)
	_, out = f.feed(delKey)
	f.checkLine(t, "bc", 2)
	if out != "" {
		t.Errorf("delete at end wrote %q", out)
	}
}

func TestCursorMovement(t *testing.T) {
	f := setup(t, Config{})
	f.feed("abc")
	tests := []struct {
		keys   string
		cursor int
		out    string
	}{
		{home, 0, "\033[3D"},
		{left, 0, ""},
		{right, 1, "\033[C"},
		{end, 3, "\033[2C"},
		{right, 3, ""},
		{left, 2, "\033[D"},
		{"\033[1~", 0, "\033[2D"},
		{"\033[4~", 3, "\033[3C"},
		{"\033OD", 2, "\033[D"},
	}
	for _, test := range tests {
		_, out := f.feed(test.keys)
		if f.ed.Cursor() != test.cursor || out != test.out {
			t.Errorf("after %q: cursor %d output %q, want %d %q",
				test.keys, f.ed.Cursor(), out, test.cursor, test.out)
		}
	}
}

func TestWordMovement(t *testing.T) {
	f := setup(t, Config{})
	f.feed("foo  bar baz")
	for _, step := range []struct {
		keys   string
		cursor int
	}{
		{ctrlLeft, 9}, {ctrlLeft, 5}, {ctrlLeft, 0}, {ctrlLeft, 0},
		{ctrlRght, 5}, {ctrlRght, 9}, {ctrlRght, 12}, {ctrlRght, 12},
	} {
		f.feed(step.keys)
		if f.ed.Cursor() != step.cursor {
			t.Errorf("after %q: cursor %d, want %d", step.keys, f.ed.Cursor(), step.cursor)
		}
	}
}

func TestEnter(t *testing.T) {
	f := setup(t, Config{})
	results, out := f.feed("ls -l\r\n")
	if len(results) != 1 || results[0] != (Result{Submit, "ls -l"}) {
		t.Errorf("results = %v", results)
	}
	if out != "ls -l\r\n" {
		t.Errorf("output = %q", out)
	}
	f.checkLine(t, "", 0)

	results, _ = f.feed("\n\n")
	if len(results) != 2 || results[0].Kind != Submit || results[0].Line != "" {
		t.Errorf("results = %v", results)
	}
}

func TestControlBytes(t *testing.T) {
	f := setup(t, Config{})
	results, _ := f.feed("abc\x01")
	if len(results) != 1 || results[0].Kind != Exit {
		t.Errorf("exit byte -> %v", results)
	}
	results, out := f.feed("\x03")
	if len(results) != 1 || results[0].Kind != Interrupt || out != "^C\r\n" {
		t.Errorf("Ctrl-C -> %v, %q", results, out)
	}
	f.checkLine(t, "", 0)
	f.feed("a\x02\x07b")
	f.checkLine(t, "ab", 2)
}

func TestReports(t *testing.T) {
	f := setup(t, Config{})
	if w, h := f.ed.Size(); w != 80 || h != 24 {
		t.Errorf("default size %dx%d", w, h)
	}
	f.feed("ab")
	results, out := f.feed("\033[40;120R")
	if len(results) != 1 || results[0].Kind != Size || out != "" {
		t.Errorf("CPR -> %v, %q", results, out)
	}
	if w, h := f.ed.Size(); w != 120 || h != 40 {
		t.Errorf("size %dx%d, want 120x40", w, h)
	}
	results, _ = f.feed("\033[?1;2c\033[>0;115;0c")
	if len(results) != 2 || results[0].Kind != Attributes || results[1].Kind != Attributes {
		t.Errorf("DA -> %v", results)
	}
	if p, s := f.ed.TermType(); p != "1;2" || s != "0;115;0" {
		t.Errorf("TermType() = %q, %q", p, s)
	}
	f.checkLine(t, "ab", 2)

	f.ed.SetSize(100, 0)
	if w, h := f.ed.Size(); w != 100 || h != 40 {
		t.Errorf("size after SetSize %dx%d", w, h)
	}
}

func TestEscapeTimeout(t *testing.T) {
	f := setup(t, Config{})
	f.feed("ab\033")
	f.now = f.now.Add(50 * time.Millisecond)
	if r := f.ed.Tick(); r.Kind != None {
		t.Errorf("Tick before timeout -> %v", r)
	}
	f.now = f.now.Add(100 * time.Millisecond)
	results, _ := f.feed("[")
	if len(results) != 1 || results[0] != (Result{EscapeTimeout, "ab"}) {
		t.Errorf("results = %v", results)
	}
	// The editor is back to normal.
	f.feed("c")
	f.checkLine(t, "abc", 3)

	f.feed("\033")
	f.now = f.now.Add(time.Second)
	if r := f.ed.Tick(); r.Kind != EscapeTimeout {
		t.Errorf("Tick after timeout -> %v", r)
	}
	f.feed("d")
	f.checkLine(t, "abcd", 4)
}

func TestUnknownEscapeIsIgnored(t *testing.T) {
	f := setup(t, Config{})
	results, out := f.feed("a\033[x\033[99~b")
	if len(results) != 0 || out != "ab" {
		t.Errorf("results %v output %q", results, out)
	}
}

func TestOverlongEscapeIsAbandoned(t *testing.T) {
	f := setup(t, Config{})
	results, _ := f.feed("\033[" + strings.Repeat("1", 40))
	if len(results) == 0 || results[0].Kind != EscapeTimeout {
		t.Errorf("results = %v", results)
	}
}

func TestUTF8(t *testing.T) {
	f := setup(t, Config{})
	f.feed("é")
	f.checkLine(t, "é", 1)
	_, out := f.feed("世")
	f.checkLine(t, "é世", 2)
	if out != "世" {
		t.Errorf("output = %q", out)
	}
	_, out = f.feed(left)
	if out != "\033[2D" {
		t.Errorf("left over wide char wrote %q", out)
	}
}

func newHistory(t *testing.T, lines ...string) *histfile.Store {
	t.Helper()
	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%d\t%s\n", 100+i, line)
	}
	path := filepath.Join(testutil.TempDir(t), "history")
	must.WriteFile(path, sb.String())
	return histfile.New(path)
}

var historyLines = []string{"ls /", "echo one", "ls -l", "ls -l", "cat x", "ls /tmp"}

func TestHistoryBrowsing(t *testing.T) {
	f := setup(t, Config{History: newHistory(t, historyLines...)})
	f.feed("ls")
	steps := []struct {
		keys       string
		line       string
		histCursor int
	}{
		{up, "ls /tmp", 0},
		{up, "ls -l", 1},
		{up, "ls /", 2},
		{up, "ls /", 2},
		{down, "ls -l", 1},
		{down, "ls /tmp", 0},
		{down, "ls /tmp", 0},
	}
	for i, step := range steps {
		f.feed(step.keys)
		if f.ed.Line() != step.line || f.ed.HistoryCursor() != step.histCursor || f.ed.Cursor() != 2 {
			t.Errorf("step %d: line %q histCursor %d cursor %d, want %q %d 2",
				i, f.ed.Line(), f.ed.HistoryCursor(), f.ed.Cursor(), step.line, step.histCursor)
		}
	}
	results, _ := f.feed("\r")
	if len(results) != 1 || results[0].Line != "ls /tmp" || f.ed.HistoryCursor() != -1 {
		t.Errorf("results %v histCursor %d", results, f.ed.HistoryCursor())
	}
}

func TestHistoryBrowsing_Render(t *testing.T) {
	f := setup(t, Config{History: newHistory(t, "echo hello")})
	f.feed("ec")
	_, out := f.feed(up)
	if want := "\033[2Decho hello\033[K\033[8D"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRecall(t *testing.T) {
	f := setup(t, Config{History: newHistory(t, historyLines...)})

	results, _ := f.feed("!2\r")
	if len(results) != 0 {
		t.Errorf("recall submitted %v", results)
	}
	f.checkLine(t, "echo one", 8)
	results, _ = f.feed("\r")
	if len(results) != 1 || results[0] != (Result{Submit, "echo one"}) {
		t.Errorf("results = %v", results)
	}

	f.feed("!ca\r")
	f.checkLine(t, "cat x", 5)
	f.ed.Reset()

	for _, ref := range []string{"99", "zz"} {
		results, out := f.feed("!" + ref + "\r")
		if len(results) != 1 || results[0].Kind != Reprompt {
			t.Errorf("!%s -> %v", ref, results)
		}
		if want := "sh: !" + ref + ": event not found"; !strings.Contains(out, want) {
			t.Errorf("!%s wrote %q, want it to contain %q", ref, out, want)
		}
		f.checkLine(t, "", 0)
	}
}

func TestRecall_NoHistory(t *testing.T) {
	f := setup(t, Config{})
	results, _ := f.feed("!1\r")
	if len(results) != 1 || results[0].Kind != Reprompt {
		t.Errorf("results = %v", results)
	}
}

type errHistory struct{}

func (errHistory) Get(int) (string, error)            { return "", errors.New("io") }
func (errHistory) Search(string, int) (string, error) { return "", errors.New("io") }

func TestHistoryErrorsKeepLine(t *testing.T) {
	f := setup(t, Config{History: errHistory{}})
	f.feed("abc" + up)
	f.checkLine(t, "abc", 3)
	if f.ed.HistoryCursor() != -1 {
		t.Errorf("histCursor = %d", f.ed.HistoryCursor())
	}
}

func TestCompleteCommand(t *testing.T) {
	cfg := Config{Commands: func() []string { return []string{"echo", "exit", "ls"} }}
	f := setup(t, cfg)
	f.feed("e\t")
	f.checkLine(t, "echo ", 5)
	f.ed.Reset()
	f.feed("ex\t")
	f.checkLine(t, "exit ", 5)
	f.ed.Reset()
	_, out := f.feed("x\t")
	f.checkLine(t, "x", 1)
	if out != "x" {
		t.Errorf("output = %q", out)
	}
}

func TestCompleteFile(t *testing.T) {
	cfg := Config{ListDir: func() ([]string, error) {
		return []string{"alpha.txt", "beta", "alphabet"}, nil
	}}
	f := setup(t, cfg)
	f.feed("cat al\t")
	f.checkLine(t, "cat alpha.txt", 13)
	f.ed.Reset()

	f.feed("ls>b\t")
	f.checkLine(t, "ls>beta", 7)
	f.ed.Reset()

	f.feed("cat al foo" + ctrlLeft + left + "\t")
	f.checkLine(t, "cat alpha.txt foo", 13)
	f.ed.Reset()

	f.feed("cat zz\t")
	f.checkLine(t, "cat zz", 6)
}

func TestCompleteFile_WorkingDir(t *testing.T) {
	testutil.InTempDir(t)
	must.WriteFile("settings.toml", "")
	f := setup(t, Config{})
	f.feed("cat set\t")
	f.checkLine(t, "cat settings.toml", 17)
}

func TestKindString(t *testing.T) {
	if Submit.String() != "submit" || EscapeTimeout.String() != "esc" || Kind(99).String() != "unknown" {
		t.Errorf("bad Kind.String")
	}
}
