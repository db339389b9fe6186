// Picosh is a small shell for embedded devices. It serves a local console and
// password-protected telnet sessions from a single command loop.
package main

import (
	"os"

	"src.picosh.dev/pkg/buildinfo"
	"src.picosh.dev/pkg/passwd"
	"src.picosh.dev/pkg/prog"
	"src.picosh.dev/pkg/shell"
)

func main() {
	os.Exit(prog.Run(
		[3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args,
		prog.Composite(buildinfo.Program, passwd.Program, shell.Program{})))
}
