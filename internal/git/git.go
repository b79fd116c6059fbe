// Package git wraps the git command line for worktree, branch, and merge
// operations. Every call is a synchronous subprocess run in the work dir.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrCommandFailed matches every *GitError via errors.Is.
var ErrCommandFailed = errors.New("git command failed")

// GitError is a failed git invocation. Stderr is kept verbatim so callers
// (and the user) can see what git actually said.
type GitError struct {
	Command string
	Args    []string
	Stderr  string
	Err     error
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Command, e.Err)
}

func (e *GitError) Unwrap() []error {
	return []error{ErrCommandFailed, e.Err}
}

// Git runs git commands in a working directory.
type Git struct {
	workDir string
}

// NewGit returns a Git rooted at workDir.
func NewGit(workDir string) *Git {
	return &Git{workDir: workDir}
}

// run executes git and returns trimmed stdout.
func (g *Git) run(args ...string) (string, error) {
	out, err := g.runRaw(args...)
	return strings.TrimSpace(out), err
}

// runRaw executes git and returns stdout untouched.
func (g *Git) runRaw(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.workDir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_MERGE_AUTOEDIT=no")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		command := ""
		if len(args) > 0 {
			command = args[0]
		}
		return stdout.String(), &GitError{
			Command: command,
			Args:    args,
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return stdout.String(), nil
}

// exitCode extracts the process exit code from a run error, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// CommonDir returns the absolute path of the git directory shared by all
// worktrees. From a linked worktree this is the main repository's .git.
func (g *Git) CommonDir() (string, error) {
	return g.run("rev-parse", "--path-format=absolute", "--git-common-dir")
}

// CurrentBranch returns the checked-out branch name ("HEAD" when detached).
func (g *Git) CurrentBranch() (string, error) {
	return g.run("rev-parse", "--abbrev-ref", "HEAD")
}

// CurrentCommit returns the full SHA of HEAD.
func (g *Git) CurrentCommit() (string, error) {
	return g.Rev("HEAD")
}

// Rev resolves a revision to a full SHA.
func (g *Git) Rev(rev string) (string, error) {
	return g.run("rev-parse", "--verify", rev)
}

// Status is a summary of `git status --porcelain`.
type Status struct {
	Clean     bool
	Modified  []string
	Untracked []string
}

// Status returns the working tree status.
func (g *Git) Status() (*Status, error) {
	out, err := g.runRaw("status", "--porcelain")
	if err != nil {
		return nil, err
	}
	// Leading spaces are significant in porcelain output.
	out = strings.TrimRight(out, "\n")

	status := &Status{Clean: out == ""}
	if out == "" {
		return status, nil
	}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		if strings.HasPrefix(line, "??") {
			status.Untracked = append(status.Untracked, path)
		} else {
			status.Modified = append(status.Modified, path)
		}
	}
	return status, nil
}

// HasUncommittedChanges reports whether the working tree is dirty.
func (g *Git) HasUncommittedChanges() (bool, error) {
	status, err := g.Status()
	if err != nil {
		return false, err
	}
	return !status.Clean, nil
}

// Checkout switches the work tree to a branch.
func (g *Git) Checkout(ref string) error {
	_, err := g.run("checkout", ref)
	return err
}

// WorktreeAdd creates a worktree at path on a new branch forked from HEAD.
func (g *Git) WorktreeAdd(path, branch string) error {
	_, err := g.run("worktree", "add", "-b", branch, path)
	return err
}

// WorktreeRemove removes a worktree. With force, uncommitted changes are
// discarded. One attempt per call; callers decide whether to escalate.
func (g *Git) WorktreeRemove(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	_, err := g.run(append(args, path)...)
	return err
}

// WorktreePrune drops administrative entries for worktrees whose
// directories are gone.
func (g *Git) WorktreePrune() error {
	_, err := g.run("worktree", "prune")
	return err
}

// WorktreeDirty reports whether the worktree at path has uncommitted or
// untracked changes.
func (g *Git) WorktreeDirty(path string) (bool, error) {
	return NewGit(path).HasUncommittedChanges()
}

// DeleteBranch deletes a local branch. Without force git refuses to delete
// an unmerged branch. One attempt per call.
func (g *Git) DeleteBranch(name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := g.run("branch", flag, name)
	return err
}

// MergeNoFF merges branch into the current branch, always creating a merge
// commit. On conflict the repository is left mid-merge for the user to
// resolve or abort.
func (g *Git) MergeNoFF(branch, message string) error {
	_, err := g.run("merge", "--no-ff", "-m", message, branch)
	return err
}

// MergeBase returns the best common ancestor of two refs.
func (g *Git) MergeBase(a, b string) (string, error) {
	return g.run("merge-base", a, b)
}

// Diff returns the changes on head since it diverged from base.
func (g *Git) Diff(base, head string) (string, error) {
	return g.run("diff", base+"..."+head)
}

// DiffStat is Diff summarized per file.
func (g *Git) DiffStat(base, head string) (string, error) {
	return g.run("diff", "--stat", base+"..."+head)
}

// Log returns one line per commit reachable from head but not base.
func (g *Git) Log(base, head string) (string, error) {
	return g.run("log", "--oneline", base+".."+head)
}

// CheckConflicts returns the files that would conflict if source were merged
// into target. The work tree and index are not touched.
func (g *Git) CheckConflicts(source, target string) ([]string, error) {
	out, err := g.run("merge-tree", "--write-tree", "--name-only", "--no-messages", target, source)
	if err == nil {
		return nil, nil
	}
	switch exitCode(err) {
	case 1:
		// First line is the tree OID, the rest are conflicted paths.
		lines := strings.Split(out, "\n")
		var files []string
		for _, l := range lines[1:] {
			if l = strings.TrimSpace(l); l != "" {
				files = append(files, l)
			}
		}
		return files, nil
	case 129:
		// git < 2.38 has no --write-tree.
		return g.checkConflictsLegacy(source, target)
	default:
		return nil, err
	}
}

// checkConflictsLegacy uses the three-argument merge-tree, which prints a
// diff with conflict markers and "changed in both" sections.
func (g *Git) checkConflictsLegacy(source, target string) ([]string, error) {
	base, err := g.MergeBase(target, source)
	if err != nil {
		return nil, err
	}
	out, err := g.run("merge-tree", base, target, source)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(out, "<<<<<<<") {
		return nil, nil
	}

	seen := make(map[string]bool)
	var files []string
	inBoth := false
	for _, line := range strings.Split(out, "\n") {
		switch {
		case line == "changed in both":
			inBoth = true
		case inBoth && strings.HasPrefix(line, "  "):
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				path := fields[len(fields)-1]
				if !seen[path] {
					seen[path] = true
					files = append(files, path)
				}
			}
		default:
			inBoth = false
		}
	}
	return files, nil
}
