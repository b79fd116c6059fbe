package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/steveyegge/cwt/internal/style"
	"github.com/steveyegge/cwt/internal/ui"
)

var diffCmd = &cobra.Command{
	Use:     "diff <id>",
	GroupID: GroupInspect,
	Short:   "Show the changes an agent made",
	Long: `Show the changes on an agent's branch since it forked from its base.

On a terminal the diff is highlighted; piped output is plain.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

var logCmd = &cobra.Command{
	Use:     "log <id>",
	GroupID: GroupInspect,
	Short:   "List an agent's commits not yet on its base branch",
	Args:    cobra.ExactArgs(1),
	RunE:    runLog,
}

var (
	diffStat  bool
	diffPlain bool
)

func init() {
	diffCmd.Flags().BoolVar(&diffStat, "stat", false, "Show a per-file summary instead of the patch")
	diffCmd.Flags().BoolVar(&diffPlain, "plain", false, "Never highlight")

	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(logCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	id, err := repo.resolve(args[0])
	if err != nil {
		return err
	}

	var text string
	if diffStat {
		text, err = repo.mgr.DiffStat(id)
	} else {
		text, err = repo.mgr.Diff(id)
	}
	if err != nil {
		return fmt.Errorf("diffing %s: %w", id, err)
	}

	out := cmd.OutOrStdout()
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(out, style.Dim.Render("No changes."))
		return nil
	}
	if !diffStat && !diffPlain && ui.IsTerminal() && ui.ShouldUseColor() {
		if rendered, err := renderDiff(text); err == nil {
			fmt.Fprint(out, rendered)
			return nil
		}
	}
	fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	return nil
}

// renderDiff highlights a patch by rendering it as a fenced diff block.
func renderDiff(patch string) (string, error) {
	width, _ := ui.Size()
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render("```diff\n" + strings.TrimRight(patch, "\n") + "\n```\n")
}

func runLog(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	id, err := repo.resolve(args[0])
	if err != nil {
		return err
	}
	commits, err := repo.mgr.Commits(id)
	if err != nil {
		return fmt.Errorf("listing commits of %s: %w", id, err)
	}

	out := cmd.OutOrStdout()
	if len(commits) == 0 {
		fmt.Fprintln(out, style.Dim.Render("No commits yet."))
		return nil
	}
	for _, c := range commits {
		sha, subject, _ := strings.Cut(c, " ")
		fmt.Fprintf(out, "%s %s\n", style.Accent.Render(sha), subject)
	}
	return nil
}
