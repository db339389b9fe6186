// Package settings implements the line-oriented key/value store that holds
// aliases, shell variables and a few pieces of configuration.
//
// The file contains one "key = value" assignment per logical entry. Values
// are quoted strings, bare literals, triple-quoted multi-line strings or
// JSON arrays and objects that may span several lines. Lines that are not
// touched by a write are preserved verbatim, and every write replaces the
// file atomically.
package settings

import (
	"errors"
	"fmt"
	"os"

	"src.picosh.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[settings] ")

// ErrNotJSON is returned by GetPath and SetPath when the setting does not
// hold a JSON array or object.
var ErrNotJSON = errors.New("value is not a JSON array or object")

// Options configures a Store.
type Options struct {
	// Follow "#include path" directives when reading. Includes are never
	// followed when writing.
	Includes bool
	// Remember resolved keys until ResetMemo is called.
	Memoize bool
}

// Store gives access to one settings file.
type Store struct {
	path string
	opts Options
	memo map[string]memoEntry
}

type memoEntry struct {
	value string
	ok    bool
}

// New returns a Store for the settings file at path. The file does not need
// to exist; it is created by the first Write.
func New(path string, opts Options) *Store {
	return &Store{path: path, opts: opts}
}

// Path returns the path of the settings file.
func (s *Store) Path() string { return s.path }

// ResetMemo forgets all memoized keys, so that the next lookup rescans the
// file. It is called before every interactive command, which makes edits
// made outside the shell visible immediately.
func (s *Store) ResetMemo() { s.memo = nil }

// Read scans the file once and returns the values of the requested keys. Keys
// that are not found are absent from the result. Scanning stops as soon as
// all keys have been found.
func (s *Store) Read(keys ...string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	want := make(map[string]bool, len(keys))
	for _, key := range keys {
		if e, ok := s.memo[key]; ok {
			if e.ok {
				result[key] = e.value
			}
			continue
		}
		want[key] = true
	}
	if len(want) == 0 {
		return result, nil
	}
	pending := len(want)

	r, err := openReader(s.path, s.opts.Includes)
	if err != nil {
		if os.IsNotExist(err) {
			s.remember(want, result)
			return result, nil
		}
		return nil, err
	}
	defer r.close()

	sc := newScanner(r)
	for pending > 0 {
		e, err := sc.next()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.path, err)
		}
		if e == nil {
			break
		}
		if !e.assign || !want[e.key] {
			continue
		}
		if _, done := result[e.key]; done {
			continue
		}
		value, err := e.decode()
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", e.file, e.line, err)
		}
		result[e.key] = value
		pending--
	}
	s.remember(want, result)
	return result, nil
}

func (s *Store) remember(keys map[string]bool, result map[string]string) {
	if !s.opts.Memoize {
		return
	}
	if s.memo == nil {
		s.memo = make(map[string]memoEntry)
	}
	for key := range keys {
		v, ok := result[key]
		s.memo[key] = memoEntry{v, ok}
	}
}

// Lookup returns the value of one key and whether it exists. Read errors are
// logged and reported as a missing key, so that a damaged settings file never
// stops the shell.
func (s *Store) Lookup(key string) (string, bool) {
	values, err := s.Read(key)
	if err != nil {
		logger.Warn("read failed", "key", key, "err", err)
		return "", false
	}
	v, ok := values[key]
	return v, ok
}

// Get returns the value of key, or dflt if it does not exist.
func (s *Store) Get(key, dflt string) string {
	if v, ok := s.Lookup(key); ok {
		return v
	}
	return dflt
}

// Entry is one assignment in the settings file.
type Entry struct {
	Key   string
	Value string
}

// Entries returns all assignments of the file in file order, following
// includes if enabled.
func (s *Store) Entries() ([]Entry, error) {
	r, err := openReader(s.path, s.opts.Includes)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer r.close()

	var entries []Entry
	sc := newScanner(r)
	for {
		e, err := sc.next()
		if err != nil {
			return entries, fmt.Errorf("%s: %w", s.path, err)
		}
		if e == nil {
			return entries, nil
		}
		if !e.assign {
			continue
		}
		value, err := e.decode()
		if err != nil {
			logger.Warn("bad value", "file", e.file, "line", e.line, "err", err)
			continue
		}
		entries = append(entries, Entry{e.key, value})
	}
}
