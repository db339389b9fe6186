package testutil

import (
	"os"
	"path/filepath"

	"src.picosh.dev/pkg/must"
)

// TempDir creates a temporary directory for testing that will be removed
// after the test finishes. The path has symlinks resolved, so that it can be
// compared with paths returned by os.Getwd.
func TempDir(c Cleanuper) string {
	dir := must.OK1(os.MkdirTemp("", "picosh-test"))
	dir = must.OK1(filepath.EvalSymlinks(dir))
	c.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// InTempDir is like TempDir, but also changes into the directory, and
// restores the working directory after the test finishes.
func InTempDir(c Cleanuper) string {
	dir := TempDir(c)
	Chdir(c, dir)
	return dir
}

// Chdir changes into a directory, and restores the original working directory
// when a test finishes.
func Chdir(c Cleanuper, dir string) string {
	oldWd := must.OK1(os.Getwd())
	must.Chdir(dir)
	c.Cleanup(func() {
		must.Chdir(oldWd)
	})
	return dir
}

// Dir describes the layout of a directory. The keys of the map represent
// filenames. Each value is either a string (for the content of a regular file)
// or another Dir (for the content of a subdirectory).
type Dir map[string]any

// ApplyDir creates the given filesystem layout in the current directory.
func ApplyDir(dir Dir) {
	applyDir(dir, "")
}

func applyDir(dir Dir, prefix string) {
	for name, file := range dir {
		path := filepath.Join(prefix, name)
		switch file := file.(type) {
		case string:
			must.WriteFile(path, file)
		case Dir:
			must.MkdirAll(path)
			applyDir(file, path)
		default:
			panic("file is neither string nor Dir")
		}
	}
}
