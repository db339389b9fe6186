package term

// Event represents an event decoded from an escape sequence.
type Event interface{ isEvent() }

// KeyEvent is a key press.
type KeyEvent Key

// CursorPosition is a cursor position report, the reply to "\033[6n".
type CursorPosition struct{ Row, Col int }

// DeviceAttributes is a device attributes report, the reply to "\033[c"
// (primary) or "\033[>c" (secondary).
type DeviceAttributes struct {
	Secondary bool
	// Params is the report with its prefix and terminator removed, such as
	// "1;2" or "0;115;0".
	Params string
}

// StatusReport is a device status report, such as "\033[0n".
type StatusReport struct{ Code int }

func (KeyEvent) isEvent()         {}
func (CursorPosition) isEvent()   {}
func (DeviceAttributes) isEvent() {}
func (StatusReport) isEvent()     {}
