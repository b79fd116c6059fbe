package agent

import "github.com/steveyegge/cwt/internal/git"

// Repo is the subset of git the lifecycle manager drives. *git.Git is the
// production implementation; Double stands in for it in tests.
type Repo interface {
	CurrentBranch() (string, error)
	CurrentCommit() (string, error)
	Rev(rev string) (string, error)
	Checkout(ref string) error

	WorktreeAdd(path, branch string) error
	WorktreeRemove(path string, force bool) error
	WorktreePrune() error
	DeleteBranch(name string, force bool) error
	WorktreeDirty(path string) (bool, error)

	MergeNoFF(branch, message string) error
	Diff(base, head string) (string, error)
	DiffStat(base, head string) (string, error)
	Log(base, head string) (string, error)
	CheckConflicts(source, target string) ([]string, error)
}

var _ Repo = (*git.Git)(nil)
