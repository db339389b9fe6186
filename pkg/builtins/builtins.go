// Package builtins implements the commands of the shell.
//
// Commands are thin: they parse their arguments, call into the settings,
// history, multiplexer and login stores, and print. Register installs them in
// three groups, core, fs and net, probed in that order.
package builtins

import (
	"net"
	"strconv"
	"time"

	"src.picosh.dev/pkg/dispatch"
	"src.picosh.dev/pkg/histfile"
	"src.picosh.dev/pkg/logutil"
	"src.picosh.dev/pkg/mux"
	"src.picosh.dev/pkg/settings"
	"src.picosh.dev/pkg/store/storedefs"
)

var logger = logutil.GetLogger("[builtins] ")

// Names of settings with a meaning to the shell.
const (
	PasswordKey = "TELNET_PASSWORD"
	HostnameKey = "HOSTNAME"
	HomeKey     = "HOME"
)

// DefaultTelnetPort is the port telnetd listens on without --port.
const DefaultTelnetPort = 23

// How long termtype and scrsize wait for the terminal to answer.
var replyWait = 300 * time.Millisecond

// Deps are the services commands work with. Any of them may be nil, in which
// case the commands that need it fail.
type Deps struct {
	Settings *settings.Store
	History  *histfile.Store
	Mux      *mux.Mux
	Logins   storedefs.Store
	// Listen opens the telnet listener. Defaults to net.ListenTCP.
	Listen func(addr *net.TCPAddr) (*net.TCPListener, error)
	// Host is the address telnetd listens on; all interfaces if empty.
	Host string
}

type command struct {
	name string
	fn   func(deps *Deps, fm *dispatch.Frame) error
}

var groups = []struct {
	name     string
	commands []command
}{
	{"core", []command{
		{"echo", echo}, {"sort", sortCmd}, {"alias", alias}, {"export", alias},
		{"set", set}, {"unset", unset}, {"getenv", getenv}, {"jget", jget},
		{"jset", jset}, {"history", history}, {"help", help}, {"man", man},
		{"exit", exit}, {"restart", restart}, {"sleep", sleep}, {"clear", clearCmd},
		{"termtype", termtype}, {"scrsize", scrsize}, {"passwd", passwdCmd},
	}},
	{"fs", []command{
		{"pwd", pwd}, {"cd", cd}, {"ls", ls}, {"cat", cat}, {"source", source},
		{"tee", tee},
	}},
	{"net", []command{
		{"telnetd", telnetd}, {"last", last},
	}},
}

// Register adds all commands to d.
func Register(d *dispatch.Dispatcher, deps Deps) {
	if deps.Listen == nil {
		deps.Listen = func(addr *net.TCPAddr) (*net.TCPListener, error) {
			return net.ListenTCP("tcp", addr)
		}
	}
	for _, g := range groups {
		for _, c := range g.commands {
			fn := c.fn
			d.Register(g.name, c.name, func(fm *dispatch.Frame) error {
				return fn(&deps, fm)
			})
		}
	}
}

// count returns the value of a -n switch, given as -n5, --n=5 or -n 5, and
// the remaining arguments.
func count(fm *dispatch.Frame, dflt int) (int, []string, error) {
	args := fm.Args()
	v := fm.Stage.Opt("n", "")
	if v == "" && fm.Stage.Has("n") && len(args) > 0 {
		v, args = args[0], args[1:]
	}
	if v == "" {
		return dflt, args, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, nil, err
	}
	return n, args, nil
}

func lastN[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[len(items)-n:]
	}
	return items
}
