// Package style holds the colours and text styles shared by the CLI and the
// terminal interface.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/steveyegge/cwt/internal/state"
	"github.com/steveyegge/cwt/internal/ui"
)

var (
	colorAccent  = lipgloss.Color("62")
	colorSuccess = lipgloss.Color("76")  // green
	colorWarning = lipgloss.Color("214") // orange
	colorError   = lipgloss.Color("196") // bright red
	colorInfo    = lipgloss.Color("39")  // blue
	colorMuted   = lipgloss.Color("242") // gray
)

var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Dim     = lipgloss.NewStyle().Foreground(colorMuted)
	Accent  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	Success = lipgloss.NewStyle().Foreground(colorSuccess)
	Warning = lipgloss.NewStyle().Foreground(colorWarning)
	Error   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	Info    = lipgloss.NewStyle().Foreground(colorInfo)
)

// Init picks the colour profile for this process. Without colour support
// every style renders as plain text.
func Init() {
	if !ui.ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// ForStatus returns the style used to show an agent status.
func ForStatus(s state.Status) lipgloss.Style {
	switch s {
	case state.StatusRunning:
		return Info
	case state.StatusCompleted, state.StatusMerged:
		return Success
	case state.StatusMerging, state.StatusPending:
		return Warning
	case state.StatusFailed:
		return Error
	default:
		return Dim
	}
}

// StatusGlyph is a one-character marker for an agent status.
func StatusGlyph(s state.Status) string {
	if !ui.ShouldUseEmoji() {
		return ""
	}
	switch s {
	case state.StatusRunning:
		return "●"
	case state.StatusCompleted:
		return "✓"
	case state.StatusMerging:
		return "⇄"
	case state.StatusMerged:
		return "◆"
	case state.StatusFailed:
		return "✗"
	default:
		return "○"
	}
}
