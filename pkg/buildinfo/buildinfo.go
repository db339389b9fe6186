// Package buildinfo contains build information.
//
// Build information should be set during compilation by passing
// -ldflags "-X src.picosh.dev/pkg/buildinfo.Var=value" to "go build".
package buildinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"src.picosh.dev/pkg/prog"
)

// Version identifies the version of picosh. On development commits, it
// identifies the next release.
const Version = "v0.3.0"

// VersionSuffix is appended to Version to build the full version string.
var VersionSuffix = "-dev.unknown"

// Reproducible identifies whether the build is reproducible.
var Reproducible = "false"

// FullVersion returns Version with VersionSuffix appended. It is shown by
// -version and in the welcome banner.
func FullVersion() string { return Version + VersionSuffix }

// Info is the build information shown by -buildinfo.
type Info struct {
	Version      string `json:"version"`
	GoVersion    string `json:"goversion"`
	Reproducible bool   `json:"reproducible"`
}

// Value returns the build information of the running binary.
func Value() Info {
	return Info{FullVersion(), runtime.Version(), Reproducible == "true"}
}

// Program is the buildinfo subprogram.
var Program prog.Program = program{}

type program struct{}

func (program) Run(fds [3]*os.File, f *prog.Flags, _ []string) error {
	switch {
	case f.BuildInfo:
		info := Value()
		if f.JSON {
			return json.NewEncoder(fds[1]).Encode(info)
		}
		fmt.Fprintln(fds[1], "Version:", info.Version)
		fmt.Fprintln(fds[1], "Go version:", info.GoVersion)
		fmt.Fprintln(fds[1], "Reproducible build:", info.Reproducible)
		return nil
	case f.Version:
		if f.JSON {
			return json.NewEncoder(fds[1]).Encode(FullVersion())
		}
		fmt.Fprintln(fds[1], FullVersion())
		return nil
	}
	return prog.ErrNotSuitable
}
