package tabs

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/steveyegge/cwt/internal/config"
	"github.com/steveyegge/cwt/internal/coordinator"
	"github.com/steveyegge/cwt/internal/ui"
)

// ErrNotInteractive is returned by Run when there is no terminal to draw on.
var ErrNotInteractive = errors.New("cwt needs an interactive terminal")

// Run starts the coordinator at the current terminal size and runs the
// multiplexer until the user quits. Sessions are closed on the way out;
// agents stay persisted and come back on the next run.
func Run(coord *coordinator.Coordinator, cfg *config.Config, changes <-chan struct{}) error {
	if !ui.IsInteractive() {
		return ErrNotInteractive
	}

	cols, rows := ui.Size()
	if err := coord.Start(rows-chromeRows, cols); err != nil {
		return err
	}
	defer coord.Shutdown()

	p := tea.NewProgram(New(coord, cfg, changes), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}
