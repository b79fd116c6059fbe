package tabs

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	colorActiveBg   = lipgloss.Color("62")
	colorInactiveBg = lipgloss.Color("238")
	colorBarBg      = lipgloss.Color("236")
	colorText       = lipgloss.Color("252")
	colorWhite      = lipgloss.Color("15")
	colorExited     = lipgloss.Color("242")
	colorError      = lipgloss.Color("196")
)

// Styles
var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Background(colorActiveBg).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Background(colorInactiveBg).
				Padding(0, 1)

	exitedTabStyle = inactiveTabStyle.
			Foreground(colorExited).
			Italic(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBarBg)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Background(colorBarBg).
			Bold(true)
)
