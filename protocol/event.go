package protocol

// KeyEvent is a normalized key press. Key is either the character produced,
// or a named key (e.g. "Enter", "ArrowUp"). Code is the legacy key code, or 0.
type KeyEvent struct {
	Key   string
	Code  int
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

// Values returns the mailbox payload for StatusNotifyKey.
func (x KeyEvent) Values() []any {
	return []any{x.Key, x.Code, x.Ctrl, x.Shift, x.Alt, x.Meta}
}
