package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/cwt/internal/agent"
	"github.com/steveyegge/cwt/internal/state"
	"github.com/steveyegge/cwt/internal/style"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	GroupID: GroupAgents,
	Short:   "List agents",
	Long: `List agents, oldest first.

With --conflicts every unmerged agent is checked for conflicts against its
base branch. The check does not touch the working tree. --exit-code implies
--conflicts and exits with status 1, printing nothing extra, when any agent
would conflict.

Examples:
  cwt list
  cwt list --status running
  cwt list --json
  cwt list --exit-code || echo "resolve conflicts first"`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listStatus    string
	listJSON      bool
	listConflicts bool
	listExitCode  bool
)

// conflictCheckLimit bounds concurrent git merge-tree runs.
const conflictCheckLimit = 4

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Only show agents with this status")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	listCmd.Flags().BoolVar(&listConflicts, "conflicts", false, "Check each agent for merge conflicts")
	listCmd.Flags().BoolVar(&listExitCode, "exit-code", false, "Exit with status 1 if any agent would conflict")

	rootCmd.AddCommand(listCmd)
}

// agentListItem is one agent in list output.
type agentListItem struct {
	*state.Agent
	Conflicts []string `json:"conflicts,omitempty"`
	CheckErr  string   `json:"conflictCheckError,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	var agents []*state.Agent
	if listStatus != "" {
		status, err := state.ParseStatus(listStatus)
		if err != nil {
			return err
		}
		agents = repo.mgr.ListByStatus(status)
	} else {
		agents = repo.mgr.List()
	}

	items := make([]agentListItem, len(agents))
	for i, a := range agents {
		items[i].Agent = a
	}
	if listExitCode {
		listConflicts = true
	}
	if listConflicts {
		checkConflicts(repo.mgr, items)
	}

	out := cmd.OutOrStdout()
	if listJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			return err
		}
	} else if len(items) == 0 {
		fmt.Fprintln(out, style.Dim.Render("No agents."))
	} else {
		fmt.Fprint(out, renderAgentTable(items, listConflicts))
	}

	if listExitCode && anyConflicts(items) {
		return NewSilentExit(1)
	}
	return nil
}

func anyConflicts(items []agentListItem) bool {
	for _, it := range items {
		if len(it.Conflicts) > 0 {
			return true
		}
	}
	return false
}

// checkConflicts fills in each unmerged item's conflicts concurrently.
// A failed check is recorded on the item rather than failing the listing.
func checkConflicts(mgr *agent.Manager, items []agentListItem) {
	var g errgroup.Group
	g.SetLimit(conflictCheckLimit)
	for i := range items {
		item := &items[i]
		if item.Status == state.StatusMerged {
			continue
		}
		g.Go(func() error {
			files, err := mgr.Conflicts(item.ID)
			if err != nil {
				slog.Debug("conflict check", "id", item.ID, "err", err)
				item.CheckErr = err.Error()
				return nil
			}
			item.Conflicts = files
			return nil
		})
	}
	_ = g.Wait()
}

func renderAgentTable(items []agentListItem, withConflicts bool) string {
	cols := []style.Column{
		{Name: "ID", Width: 18},
		{Name: "STATUS", Width: 10},
		{Name: "BRANCH", Width: 36},
		{Name: "TASK", Width: 40},
	}
	if withConflicts {
		cols = append(cols, style.Column{Name: "CONFLICTS", Width: 12, Align: style.AlignRight})
	}
	t := style.NewTable(cols...)

	for _, it := range items {
		row := []string{
			it.ID,
			styledStatus(it.Status),
			it.Branch,
			it.Task,
		}
		if withConflicts {
			row = append(row, conflictCell(it))
		}
		t.AddRow(row...)
	}
	return t.Render()
}

func styledStatus(s state.Status) string {
	return style.ForStatus(s).Render(string(s))
}

func conflictCell(it agentListItem) string {
	var s lipgloss.Style
	var text string
	switch {
	case it.Status == state.StatusMerged:
		return style.Dim.Render("-")
	case it.CheckErr != "":
		s, text = style.Warning, "?"
	case len(it.Conflicts) > 0:
		s, text = style.Error, fmt.Sprintf("%d files", len(it.Conflicts))
	default:
		s, text = style.Success, "none"
	}
	return s.Render(text)
}
