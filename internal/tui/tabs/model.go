// Package tabs is the full-screen multiplexer: one tab per terminal
// session, the active session's screen in the middle, and a status line.
package tabs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/steveyegge/cwt/internal/config"
	"github.com/steveyegge/cwt/internal/coordinator"
)

// chromeRows is the number of screen rows not given to the session: the
// tab bar, the info line, and the status line.
const chromeRows = 3

// Model is the bubbletea model for the multiplexer.
type Model struct {
	coord   *coordinator.Coordinator
	changes <-chan struct{}

	// Dimensions
	width  int
	height int

	// Tabs
	tabs     []coordinator.Tab
	activeID string
	tabWidth int

	// Prompt for a new agent's task
	prompting bool
	input     textinput.Model

	// UI state
	keys     KeyMap
	help     help.Model
	showHelp bool
	status   string
	err      error
	refresh  time.Duration
}

// New returns a model over a started coordinator. changes, when non-nil,
// signals that another cwt process rewrote the state file.
func New(coord *coordinator.Coordinator, cfg *config.Config, changes <-chan struct{}) *Model {
	if cfg == nil {
		cfg = config.Default()
	}

	ti := textinput.New()
	ti.Prompt = "Task: "
	ti.Placeholder = "describe what the agent should do"
	ti.CharLimit = 500

	m := &Model{
		coord:    coord,
		changes:  changes,
		input:    ti,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		tabWidth: cfg.UI.TabWidth,
		refresh:  cfg.RefreshInterval(),
	}
	m.refreshTabs()
	if len(m.tabs) > 0 {
		m.activeID = m.tabs[0].ID
	}
	return m
}

// tickMsg drives snapshot redraws and exit reaping.
type tickMsg time.Time

// stateChangedMsg is sent when the state file changed on disk.
type stateChangedMsg struct{}

// Init starts the refresh ticker and the state watcher.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.tick(),
		m.waitForChange(),
		tea.SetWindowTitle("cwt"),
	)
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = msg.Width - len(m.input.Prompt) - 2
		m.coord.Resize(m.sessionRows(), m.width)
		return m, nil

	case tickMsg:
		for _, id := range m.coord.Reap() {
			if tab, ok := m.find(id); ok && tab.Agent != nil {
				m.status = fmt.Sprintf("%s exited", tab.ID)
			}
		}
		m.refreshTabs()
		return m, m.tick()

	case stateChangedMsg:
		if err := m.coord.Sync(); err != nil {
			m.err = err
		}
		m.refreshTabs()
		return m, m.waitForChange()

	case tea.KeyMsg:
		if m.prompting {
			return m.handlePrompt(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keys.NextTab):
		m.moveActive(1)

	case key.Matches(msg, m.keys.PrevTab):
		m.moveActive(-1)

	case key.Matches(msg, m.keys.JumpTab):
		if len(msg.Runes) == 1 {
			if i := int(msg.Runes[0] - '1'); i >= 0 && i < len(m.tabs) {
				m.activeID = m.tabs[i].ID
			}
		}

	case key.Matches(msg, m.keys.New):
		m.prompting = true
		m.err = nil
		m.input.Reset()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Close):
		m.closeActive()

	case key.Matches(msg, m.keys.Merge):
		m.mergeActive()

	default:
		m.forward(msg)
	}
	return m, nil
}

func (m *Model) handlePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompting = false
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		task := m.input.Value()
		m.prompting = false
		m.input.Blur()
		m.createAgent(task)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) createAgent(task string) {
	a, err := m.coord.CreateAgent(task)
	if err != nil {
		m.err = fmt.Errorf("creating agent: %w", err)
		return
	}
	m.refreshTabs()
	m.activeID = a.ID
	m.status = fmt.Sprintf("created %s on %s", a.ID, a.Branch)
}

func (m *Model) closeActive() {
	tab, ok := m.active()
	if !ok || tab.Main {
		return
	}
	next := m.neighbour()
	if err := m.coord.Close(tab.ID); err != nil {
		m.err = err
	} else {
		m.status = fmt.Sprintf("closed %s", tab.ID)
	}
	m.refreshTabs()
	m.activeID = next
}

func (m *Model) mergeActive() {
	tab, ok := m.active()
	if !ok || tab.Main {
		return
	}
	next := m.neighbour()
	if err := m.coord.Merge(tab.ID); err != nil {
		m.err = fmt.Errorf("merging %s: %w", tab.ID, err)
		m.refreshTabs()
		return
	}
	m.status = fmt.Sprintf("merged %s into %s", tab.ID, tab.Agent.BaseBranch)
	m.refreshTabs()
	m.activeID = next
}

// forward writes the key to the active session.
func (m *Model) forward(msg tea.KeyMsg) {
	b := keyBytes(msg)
	if b == nil {
		return
	}
	s, err := m.coord.Session(m.activeID)
	if err != nil {
		return
	}
	if _, err := s.Write(b); err != nil {
		slog.Debug("forwarding key", "id", m.activeID, "err", err)
	}
}

// refreshTabs reloads the tab list, keeping the active tab when it still
// exists.
func (m *Model) refreshTabs() {
	m.tabs = m.coord.Tabs()
	if _, ok := m.find(m.activeID); !ok && len(m.tabs) > 0 {
		m.activeID = m.tabs[0].ID
	}
}

func (m *Model) find(id string) (coordinator.Tab, bool) {
	for _, t := range m.tabs {
		if t.ID == id {
			return t, true
		}
	}
	return coordinator.Tab{}, false
}

func (m *Model) activeIndex() int {
	for i, t := range m.tabs {
		if t.ID == m.activeID {
			return i
		}
	}
	return 0
}

func (m *Model) active() (coordinator.Tab, bool) {
	return m.find(m.activeID)
}

func (m *Model) moveActive(delta int) {
	if len(m.tabs) == 0 {
		return
	}
	i := (m.activeIndex() + delta + len(m.tabs)) % len(m.tabs)
	m.activeID = m.tabs[i].ID
}

// neighbour is the tab to show once the active one goes away: the one to
// its left.
func (m *Model) neighbour() string {
	i := m.activeIndex()
	if i > 0 {
		return m.tabs[i-1].ID
	}
	return ""
}

func (m *Model) sessionRows() int {
	rows := m.height - chromeRows
	if rows < 1 {
		rows = 1
	}
	return rows
}

// ActiveID returns the id of the active tab.
func (m *Model) ActiveID() string {
	return m.activeID
}

// Err returns the last error shown in the status line.
func (m *Model) Err() error {
	return m.err
}
