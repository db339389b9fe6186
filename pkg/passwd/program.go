package passwd

import (
	"fmt"
	"os"

	"src.picosh.dev/pkg/prog"
)

// Program prints the stored form of the password given with -hash-password,
// so that a settings file can be prepared off the device.
var Program prog.Program = program{}

type program struct{}

func (program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if f.HashPassword == "" {
		return prog.ErrNotSuitable
	}
	if len(args) > 0 {
		return prog.BadUsage("arguments are not allowed with -hash-password")
	}
	alg := f.Alg
	if alg == "" {
		alg = DefaultAlgorithm
	}
	stored, err := HashWith(alg, f.HashPassword)
	if err != nil {
		return err
	}
	fmt.Fprintln(fds[1], stored)
	return nil
}
