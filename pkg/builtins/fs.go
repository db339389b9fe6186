package builtins

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"src.picosh.dev/pkg/dispatch"
	"src.picosh.dev/pkg/msgs"
)

func pwd(_ *Deps, fm *dispatch.Frame) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	fm.Println(dir)
	return nil
}

func cd(deps *Deps, fm *dispatch.Frame) error {
	dir := "/"
	if args := fm.Args(); len(args) > 0 {
		dir = args[0]
	} else if deps.Settings != nil {
		dir = deps.Settings.Get(HomeKey, dir)
	}
	return os.Chdir(dir)
}

type lsItem struct {
	name string
	info os.FileInfo
}

// ls lists files. Switches: -a includes dot files, -l shows size and
// modification time, -h makes sizes human-readable, -F marks directories,
// -r reverses, -t sorts by time and -S by size.
func ls(_ *Deps, fm *dispatch.Frame) error {
	st := fm.Stage
	paths := fm.Args()
	if len(paths) == 0 {
		paths = []string{""}
	}
	var items []lsItem
	for _, path := range paths {
		dir := path
		if dir == "" {
			dir = "."
		}
		info, err := os.Stat(dir)
		if err != nil {
			fm.Println(msgs.Format("cannot-access", "ls", path))
			continue
		}
		if !info.IsDir() {
			items = append(items, lsItem{path, info})
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		prefix := ""
		if path != "" {
			prefix = strings.TrimSuffix(path, "/") + "/"
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") && !st.Has("a") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				fm.Println(msgs.Format("cannot-access", "ls", prefix+entry.Name()))
				continue
			}
			items = append(items, lsItem{prefix + entry.Name(), info})
		}
	}

	switch {
	case st.Has("t"):
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].info.ModTime().After(items[j].info.ModTime())
		})
	case st.Has("S"):
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].info.Size() > items[j].info.Size()
		})
	default:
		sort.SliceStable(items, func(i, j int) bool { return items[i].name < items[j].name })
	}
	if st.Has("r") {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}

	for _, item := range items {
		name := item.name
		if st.Has("F") && item.info.IsDir() {
			name += "/"
		}
		if !st.Has("l") {
			fm.Println(name)
			continue
		}
		size := fmt.Sprint(item.info.Size())
		if st.Has("h") {
			size = humanSize(item.info.Size())
		}
		fm.Printf("%s\t%s\t%s\n", size, item.info.ModTime().UTC().Format(timeLayout), name)
	}
	return nil
}

func humanSize(size int64) string {
	f := float64(size)
	for _, unit := range []string{"B", "K", "M", "G", "T"} {
		if f < 1024 {
			return fmt.Sprintf("%.0f%s", f, unit)
		}
		f /= 1024
	}
	return fmt.Sprintf("%.0fP", f)
}

// cat prints files, or the input if there are none.
func cat(_ *Deps, fm *dispatch.Frame) error {
	paths := fm.Args()
	if len(paths) == 0 {
		_, err := io.Copy(fm.Out, fm.In)
		return err
	}
	for _, path := range paths {
		if err := catFile(fm, path); err != nil {
			fm.Println(msgs.Format("error", "cat", err))
		}
	}
	return nil
}

func catFile(fm *dispatch.Frame, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(fm.Out, f)
	return err
}

// source runs the lines of a file. With a terminal the file is queued as an
// input file, so its lines run one by one before anything typed; otherwise
// they run right away.
func source(deps *Deps, fm *dispatch.Frame) error {
	args := fm.Args()
	if len(args) == 0 {
		return dispatch.ErrMissingOperand
	}
	if deps.Mux != nil {
		return deps.Mux.OpenInputFile(args[0])
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if _, err := fm.Run(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// tee copies everything sent to the terminals to a file, until tee --close.
// In a pipeline it copies its input to the file and to its output instead.
func tee(deps *Deps, fm *dispatch.Frame) error {
	if fm.Stage.Has("close") {
		if deps.Mux == nil {
			return errNoMux
		}
		for _, path := range deps.Mux.CloseOutputFiles() {
			fm.Println(msgs.Format("tee-closed", path))
		}
		return nil
	}
	args := fm.Args()
	if len(args) == 0 {
		return dispatch.ErrMissingOperand
	}
	if fm.Stage.PipeFrom != nil || deps.Mux == nil {
		f, err := os.Create(filepath.Clean(args[0]))
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(io.MultiWriter(fm.Out, f), fm.In)
		return err
	}
	return deps.Mux.OpenOutputFile(args[0])
}
