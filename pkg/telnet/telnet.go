// Package telnet implements the server side of the telnet protocol as far as
// the shell needs it: option negotiation on connect, filtering of in-band
// commands from client input, window size reports and password entry.
package telnet

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"src.picosh.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[telnet] ")

// Command bytes.
const (
	SE   = 240
	NOP  = 241
	SB   = 250
	WILL = 251
	WONT = 252
	DO   = 253
	DONT = 254
	IAC  = 255
)

// Option codes.
const (
	OptEcho        = 1
	OptSGA         = 3
	OptStatus      = 5
	OptLFlow       = 6
	OptTermType    = 24
	OptNAWS        = 31
	OptTSpeed      = 32
	OptXDispLoc    = 35
	OptNewEnviron  = 39
	subnegSend     = 1
	maxSubnegBytes = 64
)

// Negotiation holds the groups of negotiation bytes sent to a new client,
// in order. The client is asked to report its terminal type, speed and
// environment, then to stop echoing locally and to leave line mode.
var Negotiation = [][]byte{
	{
		IAC, DO, OptTermType,
		IAC, DO, OptTSpeed,
		IAC, DO, OptXDispLoc,
		IAC, DO, OptNewEnviron,
	},
	{
		IAC, SB, OptTSpeed, subnegSend, IAC, SE,
		IAC, SB, OptNewEnviron, subnegSend, IAC, SE,
		IAC, SB, OptTermType, subnegSend, IAC, SE,
	},
	{
		IAC, WILL, OptSGA,
		IAC, DO, OptEcho,
		IAC, DO, OptNAWS,
		IAC, WILL, OptStatus,
		IAC, DO, OptLFlow,
		IAC, WILL, OptEcho,
	},
}

// PasswordPrompt is sent after negotiation.
const PasswordPrompt = "Password: "

// ErrNoReply is returned by Handshake when the client doesn't acknowledge a
// negotiation group in time.
var ErrNoReply = errors.New("no reply to telnet negotiation")

// HandshakeConfig configures Handshake.
type HandshakeConfig struct {
	// Pause after sending each group.
	Settle time.Duration
	// How long to wait for the client's reply to each group after the first.
	AckTimeout time.Duration
}

// DefaultHandshake is the handshake configuration used for real clients.
var DefaultHandshake = HandshakeConfig{Settle: 100 * time.Millisecond, AckTimeout: 5 * time.Second}

// Handshake negotiates options with a newly accepted client and prompts for
// the password. Replies to the negotiation are read and discarded, so that
// they are not mistaken for the password. It blocks for at most
// len(Negotiation)-1 times the ack timeout.
func Handshake(conn net.Conn, cfg HandshakeConfig) error {
	buf := make([]byte, 1024)
	for i, group := range Negotiation {
		if _, err := conn.Write(group); err != nil {
			return err
		}
		time.Sleep(cfg.Settle)
		if i == 0 {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(cfg.AckTimeout))
		n, err := conn.Read(buf)
		conn.SetReadDeadline(time.Time{})
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return ErrNoReply
		} else if err != nil {
			return err
		}
		logger.Debug("discarded negotiation reply", "group", i, "bytes", fmt.Sprintf("% x", buf[:n]))
	}
	_, err := conn.Write([]byte(PasswordPrompt))
	return err
}
