package builtins

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"src.picosh.dev/pkg/cli/term"
	"src.picosh.dev/pkg/dispatch"
	"src.picosh.dev/pkg/histfile"
	"src.picosh.dev/pkg/msgs"
	"src.picosh.dev/pkg/passwd"
)

var (
	errNoSettings = errors.New("no settings file")
	errNoHistory  = errors.New("no history file")
	errNoMux      = errors.New("not available without a terminal")
)

// echo prints the rest of the line as it was written, switches included.
func echo(_ *Deps, fm *dispatch.Frame) error {
	line := fm.Stage.Line
	if i := strings.IndexByte(line, ' '); i >= 0 {
		fm.Println(line[i+1:])
	} else {
		fm.Println()
	}
	return nil
}

func sortCmd(_ *Deps, fm *dispatch.Frame) error {
	lines := fm.Args()
	if len(lines) == 0 {
		if err := fm.Lines(func(line string) { lines = append(lines, line) }); err != nil {
			return err
		}
	}
	less := func(i, j int) bool { return lines[i] < lines[j] }
	if fm.Stage.Has("n") {
		less = func(i, j int) bool { return number(lines[i]) < number(lines[j]) }
	}
	sort.SliceStable(lines, less)
	if fm.Stage.Has("r") {
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
	}
	for _, line := range lines {
		fm.Println(line)
	}
	return nil
}

// number is the numeric value of s for sort -n; 0 if s is not a number.
func number(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// alias with no arguments lists all settings; otherwise every name=value
// argument is written to the settings file.
func alias(deps *Deps, fm *dispatch.Frame) error {
	if deps.Settings == nil {
		return errNoSettings
	}
	args := fm.Args()
	if len(args) == 0 {
		return listSettings(deps, fm)
	}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return fmt.Errorf("%s: expected name=value", arg)
		}
		if err := deps.Settings.Write(key, unquote(value)); err != nil {
			return err
		}
	}
	return nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func listSettings(deps *Deps, fm *dispatch.Frame) error {
	entries, err := deps.Settings.Entries()
	for _, e := range entries {
		if e.Key == PasswordKey {
			continue
		}
		fm.Printf("%s=%s\n", e.Key, e.Value)
	}
	return err
}

// set accepts "set name value" as well as the name=value form of alias.
func set(deps *Deps, fm *dispatch.Frame) error {
	args := fm.Args()
	if len(args) == 2 && !strings.Contains(args[0], "=") {
		if deps.Settings == nil {
			return errNoSettings
		}
		return deps.Settings.Write(args[0], args[1])
	}
	return alias(deps, fm)
}

func unset(deps *Deps, fm *dispatch.Frame) error {
	if deps.Settings == nil {
		return errNoSettings
	}
	if len(fm.Args()) == 0 {
		return dispatch.ErrMissingOperand
	}
	for _, key := range fm.Args() {
		if err := deps.Settings.Write(key, ""); err != nil {
			return err
		}
	}
	return nil
}

func getenv(deps *Deps, fm *dispatch.Frame) error {
	if deps.Settings == nil {
		return errNoSettings
	}
	args := fm.Args()
	if len(args) == 0 {
		return dispatch.ErrMissingOperand
	}
	dflt := ""
	if len(args) > 1 {
		dflt = args[1]
	}
	fm.Println(deps.Settings.Get(args[0], dflt))
	return nil
}

func jget(deps *Deps, fm *dispatch.Frame) error {
	if deps.Settings == nil {
		return errNoSettings
	}
	args := fm.Args()
	if len(args) < 2 {
		return dispatch.ErrMissingOperand
	}
	v, ok, err := deps.Settings.GetPath(args[0], args[1])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: no field %s", args[0], args[1])
	}
	fm.Println(v)
	return nil
}

func jset(deps *Deps, fm *dispatch.Frame) error {
	if deps.Settings == nil {
		return errNoSettings
	}
	args := fm.Args()
	if len(args) < 3 {
		return dispatch.ErrMissingOperand
	}
	return deps.Settings.SetPath(args[0], args[1], args[2])
}

const historyTimeLayout = "2006-01-02 15:04.05"

func history(deps *Deps, fm *dispatch.Frame) error {
	if deps.History == nil {
		return errNoHistory
	}
	n, _, err := count(fm, 0)
	if err != nil {
		return err
	}
	type line struct {
		index int
		entry histfile.Entry
	}
	var lines []line
	i := 0
	err = deps.History.Iterate(func(e histfile.Entry) bool {
		i++
		lines = append(lines, line{i, e})
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
		return true
	})
	for _, l := range lines {
		fm.Printf("%d\t%s\t%s\n", l.index, l.entry.Time.Format(historyTimeLayout), l.entry.Text)
	}
	return err
}

func help(_ *Deps, fm *dispatch.Frame) error {
	d := fm.Dispatcher()
	for _, g := range d.Groups() {
		fm.Printf("%s:\n", g)
		for _, name := range d.GroupNames(g) {
			summary := ""
			if c, ok := msgs.Describe(name); ok {
				summary = c.Summary
			}
			fm.Printf("  %-10s %s\n", name, summary)
		}
	}
	return nil
}

func man(_ *Deps, fm *dispatch.Frame) error {
	args := fm.Args()
	if len(args) == 0 {
		return dispatch.ErrMissingOperand
	}
	for _, name := range args {
		c, ok := msgs.Describe(name)
		if !ok {
			fm.Println(msgs.Format("no-help", name))
			continue
		}
		fm.Printf("%s - %s\nusage: %s\n", name, c.Summary, c.Usage)
	}
	return nil
}

func exit(*Deps, *dispatch.Frame) error { return dispatch.ErrExit }

func restart(*Deps, *dispatch.Frame) error { return dispatch.ErrRestart }

func sleep(_ *Deps, fm *dispatch.Frame) error {
	args := fm.Args()
	if len(args) == 0 {
		return dispatch.ErrMissingOperand
	}
	secs, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return err
	}
	return fm.Sleep(time.Duration(secs * float64(time.Second)))
}

func clearCmd(_ *Deps, fm *dispatch.Frame) error {
	fm.Printf("%s", term.ClearScreen)
	return nil
}

// termtype asks the terminal of the session it was typed in for its device
// attributes, and prints the answer if one arrives in time.
func termtype(deps *Deps, fm *dispatch.Frame) error {
	if deps.Mux == nil {
		return errNoMux
	}
	deps.Mux.WriteTo(fm.Origin, term.TermTypeQuery)
	if err := fm.Sleep(replyWait); err != nil {
		return err
	}
	primary, secondary := deps.Mux.TermType(fm.Origin)
	fm.Printf("primary: %s\nsecondary: %s\n", orUnknown(primary), orUnknown(secondary))
	return nil
}

// scrsize asks the terminal of the session it was typed in for its size and
// prints the size known afterwards.
func scrsize(deps *Deps, fm *dispatch.Frame) error {
	if deps.Mux == nil {
		return errNoMux
	}
	deps.Mux.WriteTo(fm.Origin, term.SizeQuery)
	if err := fm.Sleep(replyWait); err != nil {
		return err
	}
	w, h := deps.Mux.Size(fm.Origin)
	fm.Printf("%dx%d\n", w, h)
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// passwdCmd sets the telnet password. Without an argument the password is
// read from the next line typed.
func passwdCmd(deps *Deps, fm *dispatch.Frame) error {
	if deps.Settings == nil {
		return errNoSettings
	}
	var plain string
	if args := fm.Args(); len(args) > 0 {
		plain = args[0]
	} else {
		var err error
		if plain, err = fm.ReadLine(); err != nil {
			return err
		}
	}
	if plain == "" {
		return dispatch.ErrMissingOperand
	}
	alg := fm.Stage.Opt("alg", passwd.DefaultAlgorithm)
	hash, err := passwd.HashWith(alg, plain)
	if err != nil {
		return err
	}
	if err := deps.Settings.Write(PasswordKey, hash); err != nil {
		return err
	}
	fm.Println(msgs.Format("password-set", alg))
	return nil
}
