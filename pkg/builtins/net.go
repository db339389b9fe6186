package builtins

import (
	"errors"
	"net"
	"strconv"

	"src.picosh.dev/pkg/dispatch"
	"src.picosh.dev/pkg/msgs"
)

var errNoLogins = errors.New("no login database")

// telnetd starts listening for telnet clients, or stops with --stop.
func telnetd(deps *Deps, fm *dispatch.Frame) error {
	if deps.Mux == nil {
		return errNoMux
	}
	if fm.Stage.Has("stop") {
		if err := deps.Mux.StopListening(); err != nil {
			return err
		}
		fm.Println(msgs.Format("telnet-stopped"))
		return nil
	}
	port := DefaultTelnetPort
	if v := fm.Stage.Opt("port", ""); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 0 || p > 65535 {
			return errors.New("bad port " + v)
		}
		port = p
	}
	host := fm.Stage.Opt("host", deps.Host)
	addr := &net.TCPAddr{Port: port}
	if host != "" {
		if addr.IP = net.ParseIP(host); addr.IP == nil {
			return errors.New("bad host " + host)
		}
	}
	l, err := deps.Listen(addr)
	if err != nil {
		return err
	}
	if err := deps.Mux.Listen(l); err != nil {
		l.Close()
		return err
	}
	fm.Println(msgs.Format("telnet-listening", l.Addr()))
	if deps.Settings == nil || deps.Settings.Get(PasswordKey, "") == "" {
		fm.Println(msgs.Format("telnet-no-password"))
	}
	return nil
}

// last lists telnet logins, newest first.
func last(deps *Deps, fm *dispatch.Frame) error {
	if deps.Logins == nil {
		return errNoLogins
	}
	n, _, err := count(fm, 10)
	if err != nil {
		return err
	}
	logins, err := deps.Logins.Logins(n)
	if err != nil {
		return err
	}
	for _, l := range logins {
		fm.Printf("%d\t%s\t%s\t%s\n", l.Seq, l.Time.UTC().Format(timeLayout), l.Remote, l.Outcome)
	}
	return nil
}

const timeLayout = "2006-01-02 15:04:05"
