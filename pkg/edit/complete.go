package edit

import (
	"errors"
	"strings"
)

var errNoHistory = errors.New("no history")

// complete completes the word before the cursor. When the text before the
// cursor contains a space or an operator, the word is completed as a file
// name from the working directory; otherwise as a command name, followed by a
// space. The first match wins.
func (ed *Editor) complete() {
	head := string(ed.line[:ed.cursor])
	if i := strings.LastIndexAny(head, " <>|"); i >= 0 {
		word := head[i+1:]
		names, err := ed.cfg.ListDir()
		if err != nil {
			logger.Warn("listing directory for completion", "err", err)
			return
		}
		if name, ok := firstWithPrefix(names, word); ok {
			ed.insertCompletion(name[len(word):])
		}
		return
	}
	if ed.cfg.Commands == nil {
		return
	}
	if name, ok := firstWithPrefix(ed.cfg.Commands(), head); ok {
		ed.insertCompletion(name[len(head):] + " ")
	}
}

func firstWithPrefix(names []string, prefix string) (string, bool) {
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			return name, true
		}
	}
	return "", false
}

func (ed *Editor) insertCompletion(s string) {
	if s == "" {
		return
	}
	head, tail := string(ed.line[:ed.cursor]), string(ed.line[ed.cursor:])
	ed.replace(head+s+tail, ed.cursor+len([]rune(s)))
}
