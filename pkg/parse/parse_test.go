package parse

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"src.picosh.dev/pkg/tt"
)

func texts(tokens []Token) []string {
	var ts []string
	for _, tok := range tokens {
		ts = append(ts, tok.Text)
	}
	return ts
}

var tokenizeTests = []struct {
	name string
	line string
	want []string
}{
	{"plain words", "ls  -l\t/tmp", []string{"ls", "-l", "/tmp"}},
	{"double quotes keep spaces", `alias dir="ls -Flatr"`, []string{"alias", `dir="ls -Flatr"`}},
	{"quotes kept", `echo 'a b' "c d"`, []string{"echo", "'a b'", `"c d"`}},
	{"operators", "a|b<c>d>>e", []string{"a", "|", "b", "<", "c", ">", "d", ">>", "e"}},
	{"quoted operators", `echo "|" '>'`, []string{"echo", `"|"`, "'>'"}},
	{"backslash escape", `echo a\ b \|`, []string{"echo", "a b", "|"}},
	{"escaped dollar kept", `echo \$HOME`, []string{"echo", `\$HOME`}},
	{"backslash in single quotes", `echo 'a\'`, []string{"echo", `'a\'`}},
	{"substitution not split", "echo $(ls | wc -l) x", []string{"echo", "$(ls | wc -l)", "x"}},
	{"nested substitution", "echo $(a $(b) (c))", []string{"echo", "$(a $(b) (c))"}},
	{"quoted paren in substitution", `echo "$(echo ")")"`, []string{"echo", `"$(echo ")")"`}},
	{"backticks", "echo `date -u`done", []string{"echo", "`date -u`done"}},
	{"empty", "   ", nil},
}

func TestTokenize(t *testing.T) {
	for _, test := range tokenizeTests {
		t.Run(test.name, func(t *testing.T) {
			tokens, err := Tokenize(test.line)
			if err != nil {
				t.Fatalf("got error %v", err)
			}
			if diff := cmp.Diff(test.want, texts(tokens)); diff != "" {
				t.Errorf("Tokenize(%q) (-want +got):\n%s", test.line, diff)
			}
		})
	}
}

func TestTokenize_TypesAndPositions(t *testing.T) {
	tokens, err := Tokenize("cat <in | sort >> out")
	if err != nil {
		t.Fatal(err)
	}
	want := []Token{
		{Word, "cat", 0}, {RedirIn, "<", 4}, {Word, "in", 5}, {Pipe, "|", 8},
		{Word, "sort", 10}, {RedirAppend, ">>", 15}, {Word, "out", 18},
	}
	if diff := cmp.Diff(want, tokens); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestTokenize_Unterminated(t *testing.T) {
	tests := []struct {
		line string
		msg  string
		pos  int
	}{
		{`echo "abc`, "unterminated double-quoted string", 5},
		{`echo x'abc`, "unterminated single-quoted string", 6},
		{"echo `date", "unterminated backtick substitution", 5},
		{"echo $(date (x)", "unterminated $( substitution", 5},
	}
	for _, test := range tests {
		_, err := Tokenize(test.line)
		var perr *Error
		if !errors.As(err, &perr) {
			t.Errorf("Tokenize(%q) -> error %v, want *Error", test.line, err)
			continue
		}
		if perr.Msg != test.msg || perr.Pos != test.pos {
			t.Errorf("Tokenize(%q) -> %q at %d, want %q at %d",
				test.line, perr.Msg, perr.Pos, test.msg, test.pos)
		}
	}
}

func TestParse_AliasDefinitionIsOneToken(t *testing.T) {
	p := &Parser{}
	pl, err := p.Parse(context.Background(), `alias dir="ls -Flatr"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(pl) != 1 {
		t.Fatalf("got %d stages, want 1", len(pl))
	}
	want := []string{"alias", `dir="ls -Flatr"`}
	if diff := cmp.Diff(want, pl[0].Args); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
}

func TestParse_Switches(t *testing.T) {
	p := &Parser{}
	pl, err := p.Parse(context.Background(), "ls -la -n5 --color=auto --all -x1y -kw2c -9q -7 - file")
	if err != nil {
		t.Fatal(err)
	}
	st := pl[0]
	wantSw := map[string]string{
		"l": True, "a": True, "n": "5", "color": "auto", "all": True,
		"x": "1y", "k": True, "w": "2c", "9": "q", "7": True,
	}
	if diff := cmp.Diff(wantSw, st.Switches); diff != "" {
		t.Errorf("switches (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ls", "-", "file"}, st.Args); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
	if want := "ls -la -n5 --color=auto --all -x1y -kw2c -9q -7 - file"; st.Line != want {
		t.Errorf("Line = %q, want %q", st.Line, want)
	}
	if !st.Has("a") || st.Has("z") {
		t.Errorf("Has is wrong")
	}
	if st.Opt("n", "10") != "5" || st.Opt("a", "dflt") != "dflt" || st.Opt("z", "z") != "z" {
		t.Errorf("Opt is wrong")
	}
}

func TestParse_QuotedDashIsArgument(t *testing.T) {
	p := &Parser{}
	pl, err := p.Parse(context.Background(), `sort "-r" '-n'`)
	if err != nil {
		t.Fatal(err)
	}
	if len(pl[0].Switches) != 0 {
		t.Errorf("got switches %v, want none", pl[0].Switches)
	}
	if diff := cmp.Diff([]string{"sort", "-r", "-n"}, pl[0].Args); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
}

func TestParse_PipelineAndRedirections(t *testing.T) {
	p := &Parser{}
	pl, err := p.Parse(context.Background(), "cat < in.txt | sort -r >> out.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(pl) != 2 {
		t.Fatalf("got %d stages, want 2", len(pl))
	}
	if pl[0].PipeFrom != nil || pl[1].PipeFrom != pl[0] {
		t.Errorf("stages not linked")
	}
	if want := (Redirections{Stdin: "in.txt"}); pl[0].Redir != want {
		t.Errorf("stage 0 redirections = %+v, want %+v", pl[0].Redir, want)
	}
	if want := (Redirections{Stdout: "out.txt", Append: true}); pl[1].Redir != want {
		t.Errorf("stage 1 redirections = %+v, want %+v", pl[1].Redir, want)
	}
	if pl[1].Verb() != "sort" || !pl[1].Has("r") {
		t.Errorf("stage 1 = %+v", pl[1])
	}
}

func TestParse_Errors(t *testing.T) {
	p := &Parser{}
	for _, line := range []string{"ls >", "ls > | x", "| ls", "ls |", `echo "x`} {
		_, err := p.Parse(context.Background(), line)
		var perr *Error
		if !errors.As(err, &perr) {
			t.Errorf("Parse(%q) -> %v, want *Error", line, err)
		}
	}
}

func TestParse_Empty(t *testing.T) {
	p := &Parser{}
	pl, err := p.Parse(context.Background(), "  ")
	if pl != nil || err != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", pl, err)
	}
}

var testEnv = EnvFunc(func(name string) (string, bool) {
	v, ok := map[string]string{
		"HOME": "/root",
		"NAME": "HOME",
		"GRN":  "\033[32m",
	}[name]
	return v, ok
})

func TestExpand(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"$HOME", "/root"},
		{"${HOME}/bin", "/root/bin"},
		{"$HOME.bak", "/root.bak"},
		{"${!NAME}", "/root"},
		{"${!MISSING}", "${!MISSING}"},
		{"$MISSING and ${MISSING}", "$MISSING and ${MISSING}"},
		{`\$HOME`, "$HOME"},
		{"cost: $ 5", "cost: $ 5"},
		{"trailing $", "trailing $"},
		{"${unclosed", "${unclosed"},
		{"$GRN", "\033[32m"},
		{"\\`x\\`", "`x`"},
		{`a\b`, `a\b`},
	}
	for _, test := range tests {
		if got := Expand(test.in, testEnv); got != test.want {
			t.Errorf("Expand(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestParse_Expansion(t *testing.T) {
	p := &Parser{Env: testEnv}
	pl, err := p.Parse(context.Background(),
		`echo $HOME ${HOME}/a ${!NAME} $MISSING \$HOME '$HOME' "$HOME x" --dir=$HOME`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"echo", "/root", "/root/a", "/root", "$MISSING", "$HOME", "$HOME", "/root x"}
	if diff := cmp.Diff(want, pl[0].Args); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
	if got := pl[0].Switches["dir"]; got != "/root" {
		t.Errorf("--dir = %q, want /root", got)
	}
}

// miniShell implements echo and sort on top of a Parser.
type miniShell struct {
	p     *Parser
	calls []string
}

func (sh *miniShell) Capture(ctx context.Context, line string) (string, error) {
	sh.calls = append(sh.calls, line)
	pl, err := sh.p.Parse(ctx, line)
	if err != nil {
		return "", err
	}
	st := pl[0]
	switch st.Verb() {
	case "echo":
		_, rest, _ := strings.Cut(st.Line, " ")
		return rest + "\n", nil
	case "sort":
		args := slices.Clone(st.Args[1:])
		sort.Strings(args)
		if st.Has("r") {
			slices.Reverse(args)
		}
		return strings.Join(args, "\n") + "\n", nil
	}
	return "", errors.New("unknown command " + st.Verb())
}

func newMiniShell() *miniShell {
	sh := &miniShell{}
	sh.p = &Parser{Env: testEnv, Exec: sh}
	return sh
}

func TestParse_NestedSubstitution(t *testing.T) {
	sh := newMiniShell()
	pl, err := sh.p.Parse(context.Background(),
		"echo $(sort $(echo \"-r\" `echo - -n`) -n)")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"echo", "-r - -n"}
	if diff := cmp.Diff(want, pl[0].Args); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
	for _, arg := range pl[0].Args {
		if strings.Contains(arg, "$(") || strings.Contains(arg, "`") {
			t.Errorf("unresolved substitution in %q", arg)
		}
	}
	wantCalls := []string{"sort $(echo \"-r\" `echo - -n`) -n", "echo \"-r\" `echo - -n`", "echo - -n"}
	if diff := cmp.Diff(wantCalls, sh.calls); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
}

func TestParse_SubstitutionQuoting(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"echo '$(echo no)'", []string{"echo", "$(echo no)"}},
		{`echo "it's $(echo yes)"`, []string{"echo", "it's yes"}},
		{"echo pre`echo mid`post", []string{"echo", "premidpost"}},
		{"echo $(echo $HOME)", []string{"echo", "/root"}},
		{`echo \$(echo no)`, []string{"echo", "$(echo", "no)"}},
	}
	for _, test := range tests {
		sh := newMiniShell()
		pl, err := sh.p.Parse(context.Background(), test.line)
		if err != nil {
			t.Errorf("Parse(%q) -> error %v", test.line, err)
			continue
		}
		if diff := cmp.Diff(test.want, pl[0].Args); diff != "" {
			t.Errorf("Parse(%q) args (-want +got):\n%s", test.line, diff)
		}
	}
}

type loopExec struct{ p *Parser }

func (e loopExec) Capture(ctx context.Context, line string) (string, error) {
	return e.p.Substitute(ctx, "$(again)")
}

func TestSubstitute_DepthLimit(t *testing.T) {
	p := &Parser{MaxDepth: 3}
	p.Exec = loopExec{p}
	_, err := p.Parse(context.Background(), "echo $(again)")
	if !errors.Is(err, ErrTooDeep) {
		t.Errorf("got error %v, want ErrTooDeep", err)
	}
}

func TestSubstitute_ExecutorError(t *testing.T) {
	sh := newMiniShell()
	_, err := sh.p.Parse(context.Background(), "echo $(bogus)")
	if err == nil || !strings.Contains(err.Error(), "unknown command bogus") {
		t.Errorf("got error %v", err)
	}
}

func TestUnquote(t *testing.T) {
	tt.Test(t, tt.Fn("Unquote", Unquote),
		tt.Args(`"a b"`).Rets("a b"),
		tt.Args(`'a b'`).Rets("a b"),
		tt.Args(`""`).Rets(""),
		tt.Args(`"`).Rets(`"`),
		tt.Args(`'a"`).Rets(`'a"`),
		tt.Args(`"'a'"`).Rets(`'a'`),
		tt.Args("plain").Rets("plain"),
	)
}
