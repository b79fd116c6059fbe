package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/steveyegge/cwt/internal/coordinator"
	"github.com/steveyegge/cwt/internal/pty"
	"github.com/steveyegge/cwt/internal/state"
	"github.com/steveyegge/cwt/internal/tui/tabs"
)

var tuiCmd = &cobra.Command{
	Use:     "tui",
	GroupID: GroupAgents,
	Short:   "Open the tabbed terminal interface (default)",
	Long: `Open the tabbed terminal interface.

The first tab runs the agent command in the repository itself. Every running
agent gets its own tab in its worktree. Agents created here or with 'cwt new'
persist across restarts.

Keys:
  alt+n          new agent
  alt+left/right switch tabs (alt+1..9 jumps)
  alt+m          merge the agent into its base branch
  alt+w          close the agent and delete its worktree
  alt+?          help
  alt+q          quit (agents keep running on next start)`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	slog.Info("starting interface", "root", repo.root)
	coord := coordinator.New(repo.root, repo.cfg, repo.mgr, pty.NewRegistry())

	var changes <-chan struct{}
	if w, err := state.Watch(repo.root); err != nil {
		slog.Warn("watching state file", "err", err)
	} else {
		defer w.Close()
		changes = w.Changes()
	}

	return tabs.Run(coord, repo.cfg, changes)
}
