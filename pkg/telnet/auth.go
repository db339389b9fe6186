package telnet

// MaxPasswordLen is the number of bytes after which a password is taken as
// entered even without a CR.
const MaxPasswordLen = 63

// Auth accumulates a password typed by a client.
type Auth struct {
	buf []byte
}

// Feed adds filtered client input. It returns the password and true once a
// CR is seen or MaxPasswordLen bytes have accumulated. Input following the CR
// in p is discarded. NUL and LF bytes are ignored.
func (a *Auth) Feed(p []byte) (string, bool) {
	for _, b := range p {
		switch b {
		case '\r':
			return a.take(), true
		case 0, '\n':
			continue
		}
		a.buf = append(a.buf, b)
		if len(a.buf) >= MaxPasswordLen {
			return a.take(), true
		}
	}
	return "", false
}

func (a *Auth) take() string {
	s := string(a.buf)
	a.buf = a.buf[:0]
	return s
}
