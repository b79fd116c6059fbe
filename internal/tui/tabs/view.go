package tabs

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/steveyegge/cwt/internal/coordinator"
	"github.com/steveyegge/cwt/internal/style"
)

// View renders the tab bar, the active session, and the status lines.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderTabBar())
	b.WriteString("\n")
	b.WriteString(m.renderSession())
	b.WriteString(m.renderInfo())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m *Model) renderTabBar() string {
	rendered := make([]string, 0, len(m.tabs))
	for i, t := range m.tabs {
		name := tabName(t, m.tabWidth)
		if i < 9 {
			name = fmt.Sprintf("%d %s", i+1, name)
		}
		switch {
		case t.ID == m.activeID:
			rendered = append(rendered, activeTabStyle.Render(name))
		case t.Exited:
			rendered = append(rendered, exitedTabStyle.Render(name))
		default:
			rendered = append(rendered, inactiveTabStyle.Render(name))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	return truncateLine(bar, m.width)
}

func tabName(t coordinator.Tab, width int) string {
	name := t.Label
	if t.Main {
		name = "● Main"
	} else if t.Agent != nil {
		if g := style.StatusGlyph(t.Agent.Status); g != "" {
			name = g + " " + name
		}
	}
	return truncate(name, width)
}

// truncate shortens s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

func truncateLine(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}

func (m *Model) renderSession() string {
	rows := m.sessionRows()
	var lines []string
	if s, err := m.coord.Session(m.activeID); err == nil {
		lines = s.Snapshot()
	}
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}

	var b strings.Builder
	for i := 0; i < rows; i++ {
		if i < len(lines) {
			b.WriteString(truncateLine(lines[i], m.width))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderInfo() string {
	tab, ok := m.active()
	var info string
	switch {
	case !ok:
		info = ""
	case tab.Main:
		info = fmt.Sprintf(" main · %s", m.coord.Manager().RepoRoot())
	case tab.Agent != nil:
		info = fmt.Sprintf(" %s · %s · %s", tab.ID, tab.Agent.Branch, tab.Agent.Status)
		if tab.Exited {
			info += fmt.Sprintf(" · exit %d", tab.ExitCode)
		}
	}
	return statusBarStyle.Width(m.width).Render(truncate(info, m.width))
}

func (m *Model) renderStatus() string {
	if m.prompting {
		return statusBarStyle.Width(m.width).Render(m.input.View())
	}
	if m.err != nil {
		return errorStyle.Width(m.width).Render(truncate(" "+m.err.Error(), m.width))
	}
	if m.showHelp {
		return m.help.FullHelpView(m.keys.FullHelp())
	}
	line := m.help.ShortHelpView(m.keys.ShortHelp())
	if m.status != "" {
		line = " " + m.status + " │ " + line
	}
	return statusBarStyle.Width(m.width).Render(truncateLine(line, m.width))
}
