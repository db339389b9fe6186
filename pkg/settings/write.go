package settings

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrBadKey is returned by Write for keys that cannot be stored.
var ErrBadKey = errors.New("bad settings key")

// Write sets key to value. Writing the empty string deletes the key.
//
// Every line not belonging to key is copied verbatim into a sibling file
// named with a "_new" suffix. The original file is then moved to the "_old"
// sibling and the new file renamed into place, so the file under the original
// name is always complete.
func (s *Store) Write(key, value string) error {
	if key == "" || strings.ContainsAny(key, "=#\n\r\t ") {
		return fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	newPath, oldPath := siblings(s.path)

	r, err := openReader(s.path, false)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	out, err := os.OpenFile(newPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		if r != nil {
			r.close()
		}
		return err
	}
	err = s.rewrite(r, out, key, value)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(newPath)
		return err
	}
	if err := swap(s.path, newPath, oldPath); err != nil {
		return err
	}
	delete(s.memo, key)
	logger.Debug("wrote", "key", key, "file", s.path)
	return nil
}

func (s *Store) rewrite(r *reader, out *os.File, key, value string) error {
	w := bufio.NewWriter(out)
	found := false
	endsWithNewline := true
	if r != nil {
		defer r.close()
		sc := newScanner(r)
		for {
			e, err := sc.next()
			if err != nil {
				return err
			}
			if e == nil {
				break
			}
			if e.assign && e.key == key {
				if !found && value != "" {
					w.WriteString(formatAssignment(key, value))
					endsWithNewline = true
				}
				found = true
				continue
			}
			w.WriteString(e.raw)
			endsWithNewline = strings.HasSuffix(e.raw, "\n")
		}
	}
	if !found && value != "" {
		if !endsWithNewline {
			w.WriteByte('\n')
		}
		w.WriteString(formatAssignment(key, value))
	}
	return w.Flush()
}

// swap moves the current file to oldPath and newPath to path. A hard link is
// tried first so that path never disappears; filesystems without hard links
// fall back to a rename.
func swap(path, newPath, oldPath string) error {
	os.Remove(oldPath)
	if _, err := os.Stat(path); err == nil {
		if err := os.Link(path, oldPath); err != nil {
			if err := os.Rename(path, oldPath); err != nil {
				return err
			}
		}
	}
	return os.Rename(newPath, path)
}

// siblings returns the names of the temporary files used during a rewrite:
// /settings.toml has /settings_new.toml and /settings_old.toml.
func siblings(path string) (newPath, oldPath string) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "_new" + ext, base + "_old" + ext
}
