package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/cwt/internal/agent"
	"github.com/steveyegge/cwt/internal/state"
	"github.com/steveyegge/cwt/internal/style"
)

var newCmd = &cobra.Command{
	Use:     "new <task...>",
	GroupID: GroupAgents,
	Short:   "Create an agent with its own worktree and branch",
	Long: `Create an agent for a task.

The agent gets a worktree under the worktree dir and a branch forked from the
current branch. A running 'cwt' picks the new agent up and opens its tab.

Examples:
  cwt new fix the login redirect
  cwt new "add retries to the uploader"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNew,
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	GroupID: GroupAgents,
	Short:   "Remove an agent with its worktree and branch",
	Long: `Remove an agent with its worktree and branch. Commits not yet merged are
lost. A worktree with uncommitted changes is refused unless --force is given.
The id may be shortened to any unique suffix.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

var mergeCmd = &cobra.Command{
	Use:     "merge <id>",
	GroupID: GroupAgents,
	Short:   "Merge an agent's branch into its base branch",
	Long: `Merge an agent's branch into the branch it was created from with a merge
commit, then remove its worktree and branch.

If the merge fails the agent stays in the merging status and can be merged
again once the conflict is resolved.`,
	Args: cobra.ExactArgs(1),
	RunE: runMerge,
}

var statusCmd = &cobra.Command{
	Use:     "status <id> <status>",
	GroupID: GroupAgents,
	Short:   "Set an agent's status",
	Long: fmt.Sprintf(`Set an agent's status by hand.

Statuses: %s`, strings.Join(statusNames(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

var (
	mergeKeep bool
	rmForce   bool
)

func init() {
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Remove even if the worktree has uncommitted changes")
	mergeCmd.Flags().BoolVar(&mergeKeep, "keep", false, "Keep the worktree and branch after merging")

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(statusCmd)
}

func statusNames() []string {
	names := make([]string, len(state.AllStatuses))
	for i, s := range state.AllStatuses {
		names[i] = string(s)
	}
	return names
}

func runNew(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	a, err := repo.mgr.Create(strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Created agent %s\n", style.Success.Render("✓"), style.Bold.Render(a.ID))
	fmt.Fprintf(out, "  Branch:   %s (from %s)\n", a.Branch, a.BaseBranch)
	fmt.Fprintf(out, "  Worktree: %s\n", a.Worktree)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	id, err := repo.resolve(args[0])
	if err != nil {
		return err
	}
	if !rmForce {
		dirty, err := repo.mgr.HasUncommittedWork(id)
		if err != nil {
			// A missing or broken worktree has nothing left to protect.
			slog.Debug("checking worktree before removal", "id", id, "err", err)
		} else if dirty {
			return fmt.Errorf("removing %s: %w (use --force to discard them)", id, agent.ErrDirtyWorktree)
		}
	}
	if err := repo.mgr.Remove(id); err != nil {
		return fmt.Errorf("removing %s: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", style.Success.Render("✓"), id)
	return nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	id, err := repo.resolve(args[0])
	if err != nil {
		return err
	}
	a, err := repo.mgr.Get(id)
	if err != nil {
		return err
	}
	if err := repo.mgr.Merge(id); err != nil {
		return fmt.Errorf("merging %s: %w", id, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Merged %s into %s\n", style.Success.Render("✓"), a.Branch, a.BaseBranch)
	if mergeKeep {
		return nil
	}
	if err := repo.mgr.Remove(id); err != nil {
		return fmt.Errorf("cleaning up %s: %w", id, err)
	}
	fmt.Fprintf(out, "  Removed worktree and branch\n")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := state.ParseStatus(args[1])
	if err != nil {
		return err
	}

	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	id, err := repo.resolve(args[0])
	if err != nil {
		return err
	}
	if err := repo.mgr.UpdateStatus(id, status); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s\n",
		style.Success.Render("✓"), id, style.ForStatus(status).Render(string(status)))
	return nil
}
