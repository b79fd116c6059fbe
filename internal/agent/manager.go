// Package agent manages the lifecycle of coding agents: each one is an
// isolated git worktree on its own branch, recorded in the repository's
// persisted state.
package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/cwt/internal/config"
	"github.com/steveyegge/cwt/internal/ids"
	"github.com/steveyegge/cwt/internal/state"
	"github.com/steveyegge/cwt/internal/util"
)

// Common errors
var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrEmptyTask     = errors.New("task description is empty")
	ErrDetachedHead  = errors.New("cannot create an agent from a detached HEAD")
	ErrAlreadyMerged = errors.New("agent is already merged")
	ErrAmbiguousID   = errors.New("agent id is ambiguous")
	ErrDirtyWorktree = errors.New("worktree has uncommitted changes")
)

// errUnchanged stops an update that would write what is already on disk.
var errUnchanged = errors.New("unchanged")

// Manager creates, removes, merges, and tracks agents.
//
// Every mutation re-reads the state file under its lock and applies the
// change to what is on disk, so several cwt processes can share a
// repository. The in-memory copy is refreshed by each mutation and by Reload.
//
// Mutating methods are meant to be called from one goroutine. Read-only
// methods (Get, List, Diff, Commits, Conflicts) may run concurrently with
// each other.
type Manager struct {
	repoRoot  string
	repo      Repo
	state     *state.State
	namespace string
	idPrefix  string
	now       func() time.Time
}

// NewManager loads the persisted state of repoRoot and returns a manager
// over it. A corrupt state file is an error; a missing one starts empty.
func NewManager(repoRoot string, repo Repo, cfg *config.Config) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	st, err := state.Load(repoRoot)
	if err != nil {
		return nil, err
	}
	if st.Fresh() && cfg.Worktree.Dir != "" {
		st.WorktreeDir = cfg.Worktree.Dir
	}
	return &Manager{
		repoRoot:  repoRoot,
		repo:      repo,
		state:     st,
		namespace: cfg.Worktree.BranchNamespace,
		idPrefix:  cfg.Worktree.IDPrefix,
		now:       time.Now,
	}, nil
}

// RepoRoot returns the main repository root.
func (m *Manager) RepoRoot() string {
	return m.repoRoot
}

// CurrentBranch returns the branch checked out in the main repository.
func (m *Manager) CurrentBranch() (string, error) {
	return m.repo.CurrentBranch()
}

// WorktreePath returns where the worktree for id lives.
func (m *Manager) WorktreePath(id string) string {
	return filepath.Join(m.repoRoot, m.state.WorktreeDir, id)
}

// Create starts a new agent for task: a fresh branch forked from the current
// HEAD, checked out in its own worktree, recorded as running. If the state
// cannot be saved the worktree and branch are removed again.
func (m *Manager) Create(task string) (*state.Agent, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrEmptyTask
	}

	id, err := ids.NewUnique(m.idPrefix, func(id string) bool {
		if _, ok := m.state.GetAgent(id); ok {
			return true
		}
		_, err := os.Stat(m.WorktreePath(id))
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	baseBranch, err := m.repo.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("getting current branch: %w", err)
	}
	if baseBranch == "HEAD" {
		return nil, ErrDetachedHead
	}
	baseCommit, err := m.repo.CurrentCommit()
	if err != nil {
		return nil, fmt.Errorf("getting current commit: %w", err)
	}

	branch := ids.BranchName(m.namespace, id, util.Slugify(task))
	path := m.WorktreePath(id)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating worktree dir: %w", err)
	}
	if err := m.repo.WorktreeAdd(path, branch); err != nil {
		return nil, fmt.Errorf("creating worktree: %w", err)
	}

	a := &state.Agent{
		ID:         id,
		Branch:     branch,
		Worktree:   path,
		Task:       task,
		Status:     state.StatusRunning,
		BaseBranch: baseBranch,
		BaseCommit: baseCommit,
		CreatedAt:  m.now(),
	}
	err = m.update(func(s *state.State) error {
		if _, ok := s.GetAgent(id); ok {
			return fmt.Errorf("agent %s already exists", id)
		}
		s.AddAgent(a)
		return nil
	})
	if err != nil {
		m.discardCheckout(a)
		return nil, err
	}

	slog.Info("agent created", "id", id, "branch", branch, "base", baseBranch)
	return a.Clone(), nil
}

// Remove forgets the agent and deletes its worktree and branch. Git failures
// during cleanup are logged but do not stop the removal; only an unknown id
// or a failed save is an error.
func (m *Manager) Remove(id string) error {
	var removed *state.Agent
	err := m.update(func(s *state.State) error {
		a, ok := s.GetAgent(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
		}
		removed = a.Clone()
		s.RemoveAgent(id)
		return nil
	})
	if err != nil {
		return err
	}

	m.discardCheckout(removed)
	slog.Info("agent removed", "id", id)
	return nil
}

// discardCheckout removes a worktree and its branch, escalating to force
// when the gentle form is refused.
func (m *Manager) discardCheckout(a *state.Agent) {
	if err := m.repo.WorktreeRemove(a.Worktree, false); err != nil {
		if err := m.repo.WorktreeRemove(a.Worktree, true); err != nil {
			slog.Warn("removing worktree", "id", a.ID, "path", a.Worktree, "err", err)
		}
	}
	if err := m.repo.WorktreePrune(); err != nil {
		slog.Debug("pruning worktrees", "err", err)
	}
	if err := m.repo.DeleteBranch(a.Branch, false); err != nil {
		if err := m.repo.DeleteBranch(a.Branch, true); err != nil {
			slog.Warn("deleting branch", "id", a.ID, "branch", a.Branch, "err", err)
		}
	}
}

// Merge merges the agent's branch into its base branch with a merge commit.
//
// The agent is marked merging and saved before git is touched; if that save
// fails git is never touched and the agent keeps its status. A failed merge
// leaves it merging so a later Merge can retry; a successful one marks it
// merged and appends to the merge history.
func (m *Manager) Merge(id string) error {
	var a *state.Agent
	err := m.update(func(s *state.State) error {
		cur, ok := s.GetAgent(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
		}
		if cur.Status == state.StatusMerged {
			return fmt.Errorf("%w: %s", ErrAlreadyMerged, id)
		}
		cur.Status = state.StatusMerging
		a = cur.Clone()
		return nil
	})
	if err != nil {
		return err
	}

	if err := m.repo.Checkout(a.BaseBranch); err != nil {
		return fmt.Errorf("checking out %s: %w", a.BaseBranch, err)
	}
	if err := m.repo.MergeNoFF(a.Branch, MergeMessage(a)); err != nil {
		return fmt.Errorf("merging %s: %w", a.Branch, err)
	}

	commit, err := m.repo.Rev("HEAD")
	if err != nil {
		slog.Warn("resolving merge commit", "id", id, "err", err)
	}

	mergedAt := m.now()
	err = m.update(func(s *state.State) error {
		cur, ok := s.GetAgent(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
		}
		cur.Status = state.StatusMerged
		cur.MergedAt = &mergedAt
		s.RecordMerge(state.MergeRecord{
			ID:          uuid.NewString(),
			AgentID:     a.ID,
			Branch:      a.Branch,
			BaseBranch:  a.BaseBranch,
			MergeCommit: commit,
			MergedAt:    mergedAt,
		})
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("agent merged", "id", id, "branch", a.Branch, "into", a.BaseBranch, "commit", commit)
	return nil
}

// MergeMessage is the commit message used when merging a.
func MergeMessage(a *state.Agent) string {
	return fmt.Sprintf("Merge %s: %s", a.ID, a.Task)
}

// UpdateStatus overwrites the agent's status and saves.
func (m *Manager) UpdateStatus(id string, status state.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	var prev state.Status
	err := m.update(func(s *state.State) error {
		a, ok := s.GetAgent(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
		}
		if a.Status == status {
			return errUnchanged
		}
		prev = a.Status
		a.Status = status
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	slog.Debug("agent status", "id", id, "from", prev, "to", status)
	return nil
}

// update applies fn to the state on disk and, once the result is written,
// adopts it as the in-memory state. Errors from fn come back unchanged; a
// failed read or write leaves the in-memory state as it was.
func (m *Manager) update(fn func(*state.State) error) error {
	var fnErr error
	st, err := state.Update(m.repoRoot, m.state.WorktreeDir, func(s *state.State) error {
		fnErr = fn(s)
		return fnErr
	})
	if err != nil {
		if fnErr != nil {
			return fnErr
		}
		return fmt.Errorf("saving state: %w", err)
	}
	m.state = st
	return nil
}

// HasUncommittedWork reports whether the agent's worktree holds changes
// that are not committed to its branch. Remove would discard them.
func (m *Manager) HasUncommittedWork(id string) (bool, error) {
	a, ok := m.state.GetAgent(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return m.repo.WorktreeDirty(a.Worktree)
}

// Get returns a copy of the agent with the given id.
func (m *Manager) Get(id string) (*state.Agent, error) {
	a, ok := m.state.GetAgent(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return a.Clone(), nil
}

// List returns copies of all agents, oldest first.
func (m *Manager) List() []*state.Agent {
	return cloneAll(m.state.ListAgents())
}

// ListByStatus returns copies of the agents in status, oldest first.
func (m *Manager) ListByStatus(status state.Status) []*state.Agent {
	return cloneAll(m.state.ListByStatus(status))
}

// MergeHistory returns the recorded merges, oldest first.
func (m *Manager) MergeHistory() []state.MergeRecord {
	return append([]state.MergeRecord(nil), m.state.MergeHistory...)
}

func cloneAll(agents []*state.Agent) []*state.Agent {
	out := make([]*state.Agent, len(agents))
	for i, a := range agents {
		out[i] = a.Clone()
	}
	return out
}

// Resolve maps a user-typed reference to an agent id. An exact id wins;
// otherwise ref must be a suffix (usually the four hex digits) shared by
// exactly one agent.
func (m *Manager) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if _, ok := m.state.GetAgent(ref); ok {
		return ref, nil
	}
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", ErrAgentNotFound)
	}

	var matches []string
	for _, a := range m.state.ListAgents() {
		if strings.HasSuffix(a.ID, ref) {
			matches = append(matches, a.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrAgentNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %s", ErrAmbiguousID, ref, strings.Join(matches, ", "))
	}
}

// Diff returns the changes the agent made since it forked from its base.
func (m *Manager) Diff(id string) (string, error) {
	a, ok := m.state.GetAgent(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return m.repo.Diff(a.BaseBranch, a.Branch)
}

// DiffStat is Diff summarized per file.
func (m *Manager) DiffStat(id string) (string, error) {
	a, ok := m.state.GetAgent(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return m.repo.DiffStat(a.BaseBranch, a.Branch)
}

// Commits returns the agent's commits not yet on its base branch, one line
// each.
func (m *Manager) Commits(id string) ([]string, error) {
	a, ok := m.state.GetAgent(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	out, err := m.repo.Log(a.BaseBranch, a.Branch)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Conflicts returns the files that would conflict if the agent were merged
// now. Nothing in the repository changes.
func (m *Manager) Conflicts(id string) ([]string, error) {
	a, ok := m.state.GetAgent(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return m.repo.CheckConflicts(a.Branch, a.BaseBranch)
}

// HasConflicts reports whether merging the agent now would conflict.
func (m *Manager) HasConflicts(id string) (bool, error) {
	files, err := m.Conflicts(id)
	return len(files) > 0, err
}

// Reload re-reads the state file, picking up changes made by other cwt
// processes. On error the in-memory state is kept.
func (m *Manager) Reload() error {
	st, err := state.Load(m.repoRoot)
	if err != nil {
		return err
	}
	if st.Fresh() {
		st.WorktreeDir = m.state.WorktreeDir
	}
	m.state = st
	return nil
}
