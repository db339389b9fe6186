package histfile

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// Search returns the rank-th (counting from 0) most recent command starting
// with prefix. Consecutive repeats of the same command count as one; repeats
// that are not adjacent among the matches are counted again.
//
// The file is read backwards in chunks of ChunkSize bytes, so memory use does
// not depend on the size of the history.
func (s *Store) Search(prefix string, rank int) (string, error) {
	if rank < 0 {
		return "", ErrNotFound
	}
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	defer f.Close()
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return "", err
	}

	match := -1
	prev := ""
	// consider is called on lines in reverse file order.
	consider := func(line []byte) (string, bool) {
		e, ok := parseLine(string(line))
		if !ok || e.Text == "" {
			if len(bytes.TrimSpace(line)) > 0 {
				logger.Debug("malformed history line", "line", string(line))
			}
			return "", false
		}
		if !strings.HasPrefix(e.Text, prefix) {
			return "", false
		}
		if e.Text != prev {
			match++
		}
		prev = e.Text
		return e.Text, match == rank
	}

	buf := make([]byte, ChunkSize)
	remaining := size
	var partial []byte
	for remaining > 0 {
		n := int64(ChunkSize)
		if remaining < n {
			n = remaining
		}
		remaining -= n
		if _, err := f.ReadAt(buf[:n], remaining); err != nil {
			return "", err
		}
		// The head of the previous chunk continues the last line of this one.
		chunk := append(append([]byte(nil), buf[:n]...), partial...)
		lines := bytes.Split(chunk, []byte{'\n'})
		if remaining > 0 {
			// The first line may continue in the chunk before.
			partial = lines[0]
			lines = lines[1:]
		} else {
			partial = nil
		}
		for i := len(lines) - 1; i >= 0; i-- {
			if text, ok := consider(lines[i]); ok {
				return text, nil
			}
		}
	}
	return "", ErrNotFound
}
