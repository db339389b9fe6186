// Package logutil provides logging utilities.
//
// All loggers share one output, which discards everything until SetOutput or
// SetOutputFile is called. The interactive terminal is the user surface; logs
// are for debugging only.
package logutil

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	out     io.Writer = io.Discard
	level             = log.InfoLevel
	loggers []*log.Logger
)

// GetLogger gets a logger with the given prefix.
func GetLogger(prefix string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	logger := log.NewWithOptions(out, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		Level:           level,
	})
	loggers = append(loggers, logger)
	return logger
}

// SetOutput redirects the output of all loggers obtained with GetLogger to
// the new io.Writer. If the old output was a file opened by SetOutputFile, it
// is closed.
func SetOutput(newout io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	setOutput(newout)
}

func setOutput(newout io.Writer) {
	if f, ok := out.(*os.File); ok && f != os.Stderr && f != os.Stdout {
		f.Close()
	}
	out = newout
	for _, logger := range loggers {
		logger.SetOutput(out)
	}
}

// SetOutputFile redirects the output of all loggers obtained with GetLogger to
// the named file. If the old output was a file opened by SetOutputFile, it is
// closed. The new file is truncated. SetOutputFile("") is equivalent to
// SetOutput(io.Discard).
func SetOutputFile(fname string) error {
	if fname == "" {
		SetOutput(io.Discard)
		return nil
	}
	file, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	SetOutput(file)
	return nil
}

// SetDebug switches all loggers between debug and info level.
func SetDebug(debug bool) {
	mu.Lock()
	defer mu.Unlock()
	level = log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	for _, logger := range loggers {
		logger.SetLevel(level)
	}
}
