// Package progtest contains utilities for testing [prog.Program] instances by
// running them with pipes as their standard files.
package progtest

import (
	"io"
	"os"
	"strings"
	"testing"

	"src.picosh.dev/pkg/must"
	"src.picosh.dev/pkg/prog"
)

// Case is a test case for Test, built with ThatPicosh and its methods.
type Case struct {
	args  []string
	stdin string
	want  result
}

type result struct {
	exit           int
	stdout, stderr output
}

type output struct {
	content  string
	contains bool
	checked  bool
}

func (o output) matches(s string) bool {
	switch {
	case !o.checked:
		return s == ""
	case o.contains:
		return strings.Contains(s, o.content)
	default:
		return s == o.content
	}
}

// ThatPicosh returns a Case that runs the program with the given arguments.
// By default it expects the program to exit with 0 and write nothing.
func ThatPicosh(args ...string) Case {
	return Case{args: append([]string{"picosh"}, args...)}
}

// WithStdin returns an altered Case that feeds s to standard input.
func (c Case) WithStdin(s string) Case {
	c.stdin = s
	return c
}

// DoesNothing returns c itself. It is useful to mark that a case doesn't
// expect any output.
func (c Case) DoesNothing() Case { return c }

// ExitsWith returns an altered Case that expects the given exit status.
func (c Case) ExitsWith(code int) Case {
	c.want.exit = code
	return c
}

// WritesStdout returns an altered Case that expects exactly s on stdout.
func (c Case) WritesStdout(s string) Case {
	c.want.stdout = output{content: s, checked: true}
	return c
}

// WritesStdoutContaining returns an altered Case that expects stdout to
// contain s.
func (c Case) WritesStdoutContaining(s string) Case {
	c.want.stdout = output{content: s, contains: true, checked: true}
	return c
}

// WritesStderr returns an altered Case that expects exactly s on stderr.
func (c Case) WritesStderr(s string) Case {
	c.want.stderr = output{content: s, checked: true}
	return c
}

// WritesStderrContaining returns an altered Case that expects stderr to
// contain s.
func (c Case) WritesStderrContaining(s string) Case {
	c.want.stderr = output{content: s, contains: true, checked: true}
	return c
}

// Test runs p with each Case and checks the results.
func Test(t *testing.T, p prog.Program, cases ...Case) {
	t.Helper()
	for _, c := range cases {
		t.Run(strings.Join(c.args[1:], " "), func(t *testing.T) {
			t.Helper()
			exit, stdout, stderr := Run(p, c.stdin, c.args...)
			if exit != c.want.exit {
				t.Errorf("got exit %v, want %v", exit, c.want.exit)
			}
			if !c.want.stdout.matches(stdout) {
				t.Errorf("got stdout %q, want %+v", stdout, c.want.stdout)
			}
			if !c.want.stderr.matches(stderr) {
				t.Errorf("got stderr %q, want %+v", stderr, c.want.stderr)
			}
		})
	}
}

// Run runs p with args, feeding stdin to it, and returns the exit status and
// what it wrote to stdout and stderr.
func Run(p prog.Program, stdin string, args ...string) (exit int, stdout, stderr string) {
	r0, w0 := must.Pipe()
	r1, w1 := must.Pipe()
	r2, w2 := must.Pipe()
	go func() {
		io.WriteString(w0, stdin)
		w0.Close()
	}()
	outCh := readAllAsync(r1)
	errCh := readAllAsync(r2)

	exit = prog.Run([3]*os.File{r0, w1, w2}, args, p)
	w1.Close()
	w2.Close()
	r0.Close()
	return exit, <-outCh, <-errCh
}

func readAllAsync(r *os.File) <-chan string {
	ch := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(r)
		r.Close()
		ch <- string(data)
	}()
	return ch
}
