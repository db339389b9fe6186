package shell

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strings"

	"src.picosh.dev/pkg/dispatch"
)

// Script runs the commands in the file at path, one per line, without
// polling any session. Blank lines and lines starting with '#' are skipped.
// Commands that read input get the lines that follow them. It returns the
// status of the last command; running stops early at "exit".
func (sh *Shell) Script(ctx context.Context, path string) (dispatch.Status, error) {
	f, err := os.Open(path)
	if err != nil {
		return dispatch.StatusFailed, err
	}
	defer f.Close()
	sh.script = bufio.NewScanner(f)
	defer func() { sh.script = nil }()

	status := dispatch.StatusOK
	for sh.script.Scan() {
		line := strings.TrimRight(sh.script.Text(), "\r")
		if trimmed := strings.TrimSpace(line); trimmed == "" || trimmed[0] == '#' {
			continue
		}
		status, err = sh.disp.Execute(ctx, line, nil)
		if errors.Is(err, dispatch.ErrExit) {
			return status, nil
		}
		if err != nil {
			return status, err
		}
		if ctx.Err() != nil {
			return dispatch.StatusInterrupted, nil
		}
	}
	return status, sh.script.Err()
}
