package edit

import (
	"strconv"
	"strings"

	"src.picosh.dev/pkg/cli/term"
	"src.picosh.dev/pkg/msgs"
)

func (ed *Editor) handleEvent(ev term.Event) Result {
	switch ev := ev.(type) {
	case term.CursorPosition:
		ed.height, ed.width = ev.Row, ev.Col
		return Result{Kind: Size}
	case term.DeviceAttributes:
		if ev.Secondary {
			ed.termTypeEx = ev.Params
		} else {
			ed.termType = ev.Params
		}
		return Result{Kind: Attributes}
	case term.KeyEvent:
		ed.handleKey(term.Key(ev))
	}
	return Result{}
}

func (ed *Editor) handleKey(k term.Key) {
	switch k {
	case term.K(term.Up):
		ed.browse(1)
	case term.K(term.Down):
		if ed.histCursor >= 1 {
			ed.browse(-1)
		}
	case term.K(term.Left):
		if ed.cursor > 0 {
			ed.moveTo(ed.cursor - 1)
		}
	case term.K(term.Right):
		if ed.cursor < len(ed.line) {
			ed.moveTo(ed.cursor + 1)
		}
	case term.K(term.Left, term.Ctrl):
		ed.wordLeft()
	case term.K(term.Right, term.Ctrl):
		ed.wordRight()
	case term.K(term.Home):
		ed.moveTo(0)
	case term.K(term.End):
		ed.moveTo(len(ed.line))
	case term.K(term.Delete):
		ed.deleteAtCursor()
	case term.K(term.Insert):
		if ed.mode == Insert {
			ed.mode = Overwrite
		} else {
			ed.mode = Insert
		}
	default:
		logger.Debug("unbound key", "key", k)
	}
}

// browse moves through the history by delta, showing the entry that matches
// the text before the cursor. The cursor stays in place, so that browsing
// further keeps matching the same prefix.
func (ed *Editor) browse(delta int) {
	if ed.cfg.History == nil {
		return
	}
	ed.histCursor += delta
	entry, err := ed.cfg.History.Search(string(ed.line[:ed.cursor]), ed.histCursor)
	if err != nil {
		ed.histCursor -= delta
		return
	}
	ed.replace(entry, ed.cursor)
}

// recall handles a line starting with '!'. "!N" recalls history entry N and
// "!prefix" the latest entry starting with prefix. On success the entry
// replaces the line for further editing; nothing is submitted.
func (ed *Editor) recall() Result {
	ref := string(ed.line[1:])
	var entry string
	err := errNoHistory
	if ed.cfg.History != nil {
		if n, convErr := strconv.Atoi(ref); convErr == nil && isDigits(ref) {
			entry, err = ed.cfg.History.Get(n)
		} else {
			entry, err = ed.cfg.History.Search(ref, 0)
		}
	}
	if err != nil {
		ed.write("\r\n" + msgs.Format("event-not-found", ref) + "\r\n")
		ed.Reset()
		return Result{Kind: Reprompt}
	}
	ed.replace(entry, len([]rune(entry)))
	return Result{}
}

func isDigits(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}
