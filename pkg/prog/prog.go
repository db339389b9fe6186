// Package prog provides the entry point to picosh. It parses the command line
// and the configuration file, sets up logging, and calls the appropriate
// "subprogram": version or build info, password hashing, or the shell itself.
package prog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"src.picosh.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[prog] ")

// Default paths. The shell runs on small devices whose writable storage is
// mounted at the root.
const (
	DefaultSettings = "/settings.toml"
	DefaultHistory  = "/.history.txt"
	DefaultDB       = "/.picosh.db"
	DefaultRC       = "/rc.picosh"
)

// EnvPrefix is the prefix of environment variables that override flags, as in
// PICOSH_TELNET_PORT.
const EnvPrefix = "PICOSH"

// Flags keeps command-line flags, after merging in the configuration file and
// the environment.
type Flags struct {
	Config string

	Settings, History, DB, RC string

	TelnetPort int
	TelnetHost string

	Log   string
	Debug bool

	NoConsole bool

	HashPassword, Alg string

	Version, BuildInfo, JSON bool
}

func newCommand(f *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "picosh [flags] [script]",
		Short:         "A small interactive shell with a telnet front end",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 1 {
				return BadUsage("at most one script may be given")
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return BadUsage(err.Error())
	})

	fs := cmd.Flags()
	fs.StringVar(&f.Config, "config", "", "config file (default is picosh.{toml,yaml} in / or the working directory)")

	fs.StringVar(&f.Settings, "settings", DefaultSettings, "path to the settings file")
	fs.StringVar(&f.History, "history", DefaultHistory, "path to the history file")
	fs.StringVar(&f.DB, "db", DefaultDB, "path to the login database")
	fs.StringVar(&f.RC, "rc", DefaultRC, "script run before the first prompt; a missing file is ignored")

	fs.IntVar(&f.TelnetPort, "telnet-port", 0, "start the telnet listener on this port; 0 disables it")
	fs.StringVar(&f.TelnetHost, "telnet-host", "", "address for the telnet listener to bind to")

	fs.StringVar(&f.Log, "log", "", "a file to write debug log to")
	fs.BoolVar(&f.Debug, "debug", false, "log at debug level")

	fs.BoolVar(&f.NoConsole, "no-console", false, "serve telnet clients only; do not read the terminal")

	fs.StringVar(&f.HashPassword, "hash-password", "", "print the stored form of a password and quit")
	fs.StringVar(&f.Alg, "alg", "", "password hashing algorithm used by -hash-password")

	fs.BoolVar(&f.Version, "version", false, "show version and quit")
	fs.BoolVar(&f.BuildInfo, "buildinfo", false, "show build info and quit")
	fs.BoolVar(&f.JSON, "json", false, "show output from -version or -buildinfo in JSON")
	return cmd
}

// Keys that may come from the configuration file or the environment. The
// remaining flags only make sense on the command line.
var configKeys = []string{
	"settings", "history", "db", "rc", "telnet-port", "telnet-host",
	"log", "debug", "no-console", "alg",
}

// loadConfig merges the configuration file and the environment into f. Flags
// given explicitly on the command line take precedence.
func loadConfig(fs *pflag.FlagSet, f *Flags) error {
	v := viper.New()
	for _, key := range configKeys {
		if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
			return err
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if f.Config != "" {
		v.SetConfigFile(f.Config)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", f.Config, err)
		}
	} else {
		v.SetConfigName("picosh")
		v.AddConfigPath("/")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("reading config: %w", err)
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", "path", used)
	}

	f.Settings = v.GetString("settings")
	f.History = v.GetString("history")
	f.DB = v.GetString("db")
	f.RC = v.GetString("rc")
	f.TelnetPort = v.GetInt("telnet-port")
	f.TelnetHost = v.GetString("telnet-host")
	f.Log = v.GetString("log")
	f.Debug = v.GetBool("debug")
	f.NoConsole = v.GetBool("no-console")
	f.Alg = v.GetString("alg")
	return nil
}

// Run parses command-line flags and runs the first applicable subprogram. It
// returns the exit status of the program.
func Run(fds [3]*os.File, args []string, p Program) int {
	f := &Flags{}
	cmd := newCommand(f)
	cmd.SetArgs(args[1:])
	cmd.SetIn(fds[0])
	cmd.SetOut(fds[1])
	cmd.SetErr(fds[2])
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd.Flags(), f); err != nil {
			return err
		}
		if f.Log != "" {
			if err := logutil.SetOutputFile(f.Log); err != nil {
				fmt.Fprintln(fds[2], err)
			}
		}
		logutil.SetDebug(f.Debug)
		return p.Run(fds, f, args)
	}

	err := cmd.Execute()
	if err == nil {
		return 0
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(fds[2], msg)
	}
	var usage badUsageError
	var exit exitError
	switch {
	case errors.As(err, &usage):
		fmt.Fprint(fds[2], cmd.UsageString())
	case errors.As(err, &exit):
		return exit.exit
	}
	return 2
}

// Composite returns a Program that tries each of the given programs,
// terminating at the first one that doesn't return ErrNotSuitable.
func Composite(programs ...Program) Program {
	return compositeProgram(programs)
}

type compositeProgram []Program

func (cp compositeProgram) Run(fds [3]*os.File, f *Flags, args []string) error {
	for _, p := range cp {
		err := p.Run(fds, f, args)
		if err != ErrNotSuitable {
			return err
		}
	}
	return ErrNotSuitable
}

// ErrNotSuitable is a special error that may be returned by Program.Run, to
// signify that this Program should not be run. It is useful when a Program is
// used in Composite.
var ErrNotSuitable = errors.New("internal error: no suitable subprogram")

// BadUsage returns a special error that may be returned by Program.Run. It
// causes the main function to print out a message, the usage information and
// exit with 2.
func BadUsage(msg string) error { return badUsageError{msg} }

type badUsageError struct{ msg string }

func (e badUsageError) Error() string { return e.msg }

// Exit returns a special error that may be returned by Program.Run. It causes
// the main function to exit with the given code without printing any error
// messages. Exit(0) returns nil.
func Exit(exit int) error {
	if exit == 0 {
		return nil
	}
	return exitError{exit}
}

type exitError struct{ exit int }

func (e exitError) Error() string { return "" }

// Program represents a subprogram.
type Program interface {
	// Run runs the subprogram.
	Run(fds [3]*os.File, f *Flags, args []string) error
}
