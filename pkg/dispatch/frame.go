package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"src.picosh.dev/pkg/mux"
	"src.picosh.dev/pkg/parse"
)

// Frame is the context a command runs in. A Frame is created for every stage
// of a pipeline.
type Frame struct {
	ctx   context.Context
	Stage *parse.Stage
	// Output of the previous stage, the redirected file or an empty reader.
	In io.Reader
	// Input of the next stage, the redirected file, or the fan-out.
	Out io.Writer
	// The session the line was typed in; nil for the console and for lines
	// not typed interactively.
	Origin *mux.Session

	d *Dispatcher
}

// Context returns the context of the command. It is canceled by Ctrl-C.
func (fm *Frame) Context() context.Context { return fm.ctx }

// Dispatcher returns the Dispatcher running the command.
func (fm *Frame) Dispatcher() *Dispatcher { return fm.d }

// Args returns the positional arguments after the verb.
func (fm *Frame) Args() []string {
	if len(fm.Stage.Args) == 0 {
		return nil
	}
	return fm.Stage.Args[1:]
}

// Printf writes formatted output.
func (fm *Frame) Printf(format string, args ...any) {
	fmt.Fprintf(fm.Out, format, args...)
}

// Println writes its arguments separated by spaces and followed by a
// newline.
func (fm *Frame) Println(args ...any) {
	fmt.Fprintln(fm.Out, args...)
}

// Lines calls f for each line of the input, without the line terminator.
func (fm *Frame) Lines(f func(string)) error {
	sc := bufio.NewScanner(fm.In)
	for sc.Scan() {
		if err := fm.ctx.Err(); err != nil {
			return err
		}
		f(strings.TrimRight(sc.Text(), "\r"))
	}
	return sc.Err()
}

// ReadLine reads a line typed by the user.
func (fm *Frame) ReadLine() (string, error) {
	if fm.d.cfg.IO == nil {
		return "", io.EOF
	}
	return fm.d.cfg.IO.ReadLine(fm.ctx)
}

// Sleep waits for d, returning early with the context's error on Ctrl-C.
func (fm *Frame) Sleep(d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-fm.ctx.Done():
		return fm.ctx.Err()
	}
}

// Run runs a command line with the I/O of this frame, as if it was part of
// the current command. It is used by commands that run other commands.
func (fm *Frame) Run(line string) (Status, error) {
	return fm.d.run(fm.ctx, line, fm.In, fm.Out, fm.Origin)
}
