// Package histfile implements the command history: an append-only text file
// with one "unix-timestamp<TAB>command" entry per line.
package histfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"src.picosh.dev/pkg/logutil"
	"src.picosh.dev/pkg/sys"
)

var logger = logutil.GetLogger("[histfile] ")

// ErrNotFound is returned when no history entry satisfies a query.
var ErrNotFound = errors.New("no matching history entry")

// ChunkSize is the number of bytes read at a time when searching backwards.
const ChunkSize = 64

// Entry is one line of the history file.
type Entry struct {
	Time time.Time
	Text string
}

// Store is a history file.
type Store struct {
	path string
	// Remount is called once when an append fails because the filesystem is
	// read-only; if it succeeds, the append is retried.
	Remount func() error
	// Now returns the timestamp of new entries.
	Now func() time.Time
}

// New returns a Store for the history file at path. Read-only filesystems are
// remounted writable at the root of path.
func New(path string) *Store {
	return &Store{
		path:    path,
		Remount: func() error { return sys.RemountWritable(mountRoot(path)) },
		Now:     time.Now,
	}
}

func mountRoot(path string) string {
	vol := filepath.VolumeName(path)
	return vol + string(filepath.Separator)
}

// Path returns the path of the history file.
func (s *Store) Path() string { return s.path }

// Add appends a command to the history. History is best effort: when the
// filesystem is read-only, it is remounted once and the append retried; any
// remaining failure is logged and dropped.
func (s *Store) Add(text string) {
	err := s.appendLine(text)
	if err != nil && sys.IsReadOnlyFS(err) && s.Remount != nil {
		if rerr := s.Remount(); rerr == nil {
			err = s.appendLine(text)
		} else {
			logger.Warn("remount failed", "err", rerr)
		}
	}
	if err != nil {
		logger.Warn("dropping history entry", "err", err)
	}
}

// Overridden in tests.
var openAppend = func(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
}

func (s *Store) appendLine(text string) error {
	f, err := openAppend(s.path)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "%d\t%s\n", s.Now().Unix(), text)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Get returns the text of the n-th entry, counting from 1 in file order.
func (s *Store) Get(n int) (string, error) {
	if n < 1 {
		return "", ErrNotFound
	}
	var text string
	i := 0
	err := s.Iterate(func(e Entry) bool {
		i++
		if i == n {
			text = e.Text
			return false
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if i < n {
		return "", ErrNotFound
	}
	return text, nil
}

// Iterate calls f for every entry in file order until f returns false.
// Malformed lines are skipped, but still count as entries so that numbering
// matches the line numbers of the file.
func (s *Store) Iterate(f func(Entry) bool) error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()
	br := bufio.NewReader(file)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			e, _ := parseLine(line)
			if !f(e) {
				return nil
			}
		}
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
	}
}

func parseLine(line string) (Entry, bool) {
	ts, text, ok := strings.Cut(strings.TrimRight(line, "\r\n"), "\t")
	if !ok {
		return Entry{}, false
	}
	var sec int64
	fmt.Sscan(ts, &sec)
	return Entry{Time: time.Unix(sec, 0), Text: strings.TrimSpace(text)}, true
}
