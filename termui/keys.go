package termui

import (
	"unicode"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joeycumines/go-workerbridge/protocol"
)

type namedKey struct {
	key   string
	code  int
	shift bool
}

var namedKeys = map[tea.KeyType]namedKey{
	tea.KeyEnter:     {key: `Enter`, code: 13},
	tea.KeyTab:       {key: `Tab`, code: 9},
	tea.KeyShiftTab:  {key: `Tab`, code: 9, shift: true},
	tea.KeyBackspace: {key: `Backspace`, code: 8},
	tea.KeyEsc:       {key: `Escape`, code: 27},
	tea.KeySpace:     {key: ` `, code: 32},
	tea.KeyUp:        {key: `ArrowUp`, code: 38},
	tea.KeyDown:      {key: `ArrowDown`, code: 40},
	tea.KeyLeft:      {key: `ArrowLeft`, code: 37},
	tea.KeyRight:     {key: `ArrowRight`, code: 39},
	tea.KeyShiftUp:   {key: `ArrowUp`, code: 38, shift: true},
	tea.KeyShiftDown: {key: `ArrowDown`, code: 40, shift: true},
	tea.KeyHome:      {key: `Home`, code: 36},
	tea.KeyEnd:       {key: `End`, code: 35},
	tea.KeyPgUp:      {key: `PageUp`, code: 33},
	tea.KeyPgDown:    {key: `PageDown`, code: 34},
	tea.KeyInsert:    {key: `Insert`, code: 45},
	tea.KeyDelete:    {key: `Delete`, code: 46},
	tea.KeyF1:        {key: `F1`, code: 112},
	tea.KeyF2:        {key: `F2`, code: 113},
	tea.KeyF3:        {key: `F3`, code: 114},
	tea.KeyF4:        {key: `F4`, code: 115},
	tea.KeyF5:        {key: `F5`, code: 116},
	tea.KeyF6:        {key: `F6`, code: 117},
	tea.KeyF7:        {key: `F7`, code: 118},
	tea.KeyF8:        {key: `F8`, code: 119},
	tea.KeyF9:        {key: `F9`, code: 120},
	tea.KeyF10:       {key: `F10`, code: 121},
	tea.KeyF11:       {key: `F11`, code: 122},
	tea.KeyF12:       {key: `F12`, code: 123},
}

// KeyEvent converts a bubbletea key, reporting false for keys that have no
// equivalent, e.g. pastes of more than one character.
func KeyEvent(msg tea.KeyMsg) (protocol.KeyEvent, bool) {
	if named, ok := namedKeys[msg.Type]; ok {
		return protocol.KeyEvent{Key: named.key, Code: named.code, Shift: named.shift, Alt: msg.Alt}, true
	}

	if msg.Type >= tea.KeyCtrlA && msg.Type <= tea.KeyCtrlZ {
		letter := 'a' + rune(msg.Type-tea.KeyCtrlA)
		return protocol.KeyEvent{Key: string(letter), Code: int(unicode.ToUpper(letter)), Ctrl: true, Alt: msg.Alt}, true
	}

	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && !msg.Paste {
		r := msg.Runes[0]
		key := protocol.KeyEvent{Key: string(r), Alt: msg.Alt, Shift: unicode.IsUpper(r)}
		if r < unicode.MaxASCII {
			key.Code = int(unicode.ToUpper(r))
		}
		return key, true
	}

	return protocol.KeyEvent{}, false
}
