package tabs

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the bindings the multiplexer keeps for itself. Every other
// key goes to the active session, so all of these use the alt modifier.
type KeyMap struct {
	// Navigation
	NextTab key.Binding
	PrevTab key.Binding
	JumpTab key.Binding

	// Agent actions
	New   key.Binding
	Merge key.Binding
	Close key.Binding

	// General
	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextTab: key.NewBinding(
			key.WithKeys("alt+right", "alt+l"),
			key.WithHelp("⌥→", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("alt+left", "alt+h"),
			key.WithHelp("⌥←", "prev tab"),
		),
		JumpTab: key.NewBinding(
			key.WithKeys("alt+1", "alt+2", "alt+3", "alt+4", "alt+5", "alt+6", "alt+7", "alt+8", "alt+9"),
			key.WithHelp("⌥1-9", "go to tab"),
		),
		New: key.NewBinding(
			key.WithKeys("alt+n"),
			key.WithHelp("⌥n", "new agent"),
		),
		Merge: key.NewBinding(
			key.WithKeys("alt+m"),
			key.WithHelp("⌥m", "merge"),
		),
		Close: key.NewBinding(
			key.WithKeys("alt+w"),
			key.WithHelp("⌥w", "close"),
		),
		Help: key.NewBinding(
			key.WithKeys("alt+?", "alt+/"),
			key.WithHelp("⌥?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("alt+q"),
			key.WithHelp("⌥q", "quit"),
		),
	}
}

// ShortHelp returns keybindings to show in the mini help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PrevTab, k.NextTab, k.New, k.Merge, k.Close, k.Quit, k.Help}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevTab, k.NextTab, k.JumpTab},
		{k.New, k.Merge, k.Close},
		{k.Help, k.Quit},
	}
}
