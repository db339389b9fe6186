package telnet

type filterState int

const (
	stData filterState = iota
	stIAC
	stOption
	stSubneg
	stSubnegIAC
)

// Filter removes telnet commands from the byte stream of a client. It keeps
// state across calls, so that commands split between reads are recognized.
type Filter struct {
	state  filterState
	subneg []byte
	lastCR bool
	// Size, if not nil, is called with window size reports (NAWS).
	Size func(width, height int)
}

// Filter returns the user data in p. IAC IAC yields a literal 255, and the
// NUL a client sends after CR is dropped.
func (f *Filter) Filter(p []byte) []byte {
	out := make([]byte, 0, len(p))
	for _, b := range p {
		switch f.state {
		case stData:
			if b == IAC {
				f.state = stIAC
				continue
			}
			if b == 0 && f.lastCR {
				f.lastCR = false
				continue
			}
			f.lastCR = b == '\r'
			out = append(out, b)
		case stIAC:
			switch b {
			case IAC:
				f.state = stData
				f.lastCR = false
				out = append(out, IAC)
			case WILL, WONT, DO, DONT:
				f.state = stOption
			case SB:
				f.state = stSubneg
				f.subneg = f.subneg[:0]
			default:
				f.state = stData
			}
		case stOption:
			f.state = stData
		case stSubneg:
			if b == IAC {
				f.state = stSubnegIAC
			} else if len(f.subneg) < maxSubnegBytes {
				f.subneg = append(f.subneg, b)
			}
		case stSubnegIAC:
			switch b {
			case SE:
				f.state = stData
				f.subnegotiation(f.subneg)
			case IAC:
				f.state = stSubneg
				if len(f.subneg) < maxSubnegBytes {
					f.subneg = append(f.subneg, IAC)
				}
			default:
				// Malformed; treat as the end of the subnegotiation.
				f.state = stData
			}
		}
	}
	return out
}

func (f *Filter) subnegotiation(data []byte) {
	if len(data) == 0 {
		return
	}
	switch data[0] {
	case OptNAWS:
		if len(data) != 5 {
			logger.Debug("bad NAWS", "len", len(data))
			return
		}
		width := int(data[1])<<8 | int(data[2])
		height := int(data[3])<<8 | int(data[4])
		logger.Debug("window size", "width", width, "height", height)
		if f.Size != nil {
			f.Size(width, height)
		}
	case OptTermType:
		if len(data) > 1 && data[1] == 0 {
			logger.Debug("terminal type", "type", string(data[2:]))
		}
	}
}
