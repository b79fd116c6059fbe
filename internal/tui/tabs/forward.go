package tabs

import tea "github.com/charmbracelet/bubbletea"

// escapeSequences maps special keys to the xterm input sequences a program
// running under TERM=xterm-256color expects.
var escapeSequences = map[tea.KeyType]string{
	tea.KeyUp:         "\x1b[A",
	tea.KeyDown:       "\x1b[B",
	tea.KeyRight:      "\x1b[C",
	tea.KeyLeft:       "\x1b[D",
	tea.KeyShiftTab:   "\x1b[Z",
	tea.KeyHome:       "\x1b[H",
	tea.KeyEnd:        "\x1b[F",
	tea.KeyPgUp:       "\x1b[5~",
	tea.KeyPgDown:     "\x1b[6~",
	tea.KeyInsert:     "\x1b[2~",
	tea.KeyDelete:     "\x1b[3~",
	tea.KeyCtrlUp:     "\x1b[1;5A",
	tea.KeyCtrlDown:   "\x1b[1;5B",
	tea.KeyCtrlRight:  "\x1b[1;5C",
	tea.KeyCtrlLeft:   "\x1b[1;5D",
	tea.KeyShiftUp:    "\x1b[1;2A",
	tea.KeyShiftDown:  "\x1b[1;2B",
	tea.KeyShiftRight: "\x1b[1;2C",
	tea.KeyShiftLeft:  "\x1b[1;2D",
	tea.KeyF1:         "\x1bOP",
	tea.KeyF2:         "\x1bOQ",
	tea.KeyF3:         "\x1bOR",
	tea.KeyF4:         "\x1bOS",
	tea.KeyF5:         "\x1b[15~",
	tea.KeyF6:         "\x1b[17~",
	tea.KeyF7:         "\x1b[18~",
	tea.KeyF8:         "\x1b[19~",
	tea.KeyF9:         "\x1b[20~",
	tea.KeyF10:        "\x1b[21~",
	tea.KeyF11:        "\x1b[23~",
	tea.KeyF12:        "\x1b[24~",
}

// keyBytes converts a key press into the bytes to write to a pty. It
// returns nil for keys with no terminal encoding.
func keyBytes(msg tea.KeyMsg) []byte {
	var out string
	switch {
	case msg.Type == tea.KeyRunes:
		out = string(msg.Runes)
		if msg.Paste {
			out = "\x1b[200~" + out + "\x1b[201~"
		}
	case msg.Type == tea.KeySpace:
		out = " "
	case msg.Type >= tea.KeyNull && msg.Type <= tea.KeyCtrlUnderscore, msg.Type == tea.KeyBackspace:
		// Control characters, including enter, tab, escape and backspace,
		// are their own byte values.
		out = string([]byte{byte(msg.Type)})
	default:
		seq, ok := escapeSequences[msg.Type]
		if !ok {
			return nil
		}
		out = seq
	}
	if msg.Alt {
		out = "\x1b" + out
	}
	return []byte(out)
}
