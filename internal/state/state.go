// Package state persists the agent registry for a repository.
//
// The registry is a single JSON document at .cwt/state.json. Every mutation
// re-reads it under a file lock and rewrites it in full; it is never patched
// in place.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/steveyegge/cwt/internal/config"
	"github.com/steveyegge/cwt/internal/util"
)

// FormatVersion is written to every state file.
const FormatVersion = "1.0"

// Paths relative to the repository root.
const (
	Dir      = ".cwt"
	File     = "state.json"
	LockFile = "state.lock"
)

// ErrCorruptState is returned when an existing state file cannot be parsed.
var ErrCorruptState = errors.New("corrupt state file")

// Status is an agent's lifecycle status.
type Status string

const (
	// StatusPending is accepted when decoding older files but never assigned.
	StatusPending Status = "pending"

	// StatusRunning means the worktree exists and the agent should have a
	// live session.
	StatusRunning Status = "running"

	// StatusCompleted means the agent process exited with status 0.
	StatusCompleted Status = "completed"

	// StatusMerging is set before the merge starts. An agent stays here if
	// the merge fails; merging again retries.
	StatusMerging Status = "merging"

	// StatusMerged means the branch was merged into its base.
	StatusMerged Status = "merged"

	// StatusFailed means the agent process exited with a non-zero status.
	StatusFailed Status = "failed"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{
	StatusPending, StatusRunning, StatusCompleted, StatusMerging, StatusMerged, StatusFailed,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts user input to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Agent is one isolated unit of work: a worktree, its branch, and the task
// it was created for. Branch and Worktree never change after creation.
type Agent struct {
	ID         string     `json:"id"`
	Branch     string     `json:"branch"`
	Worktree   string     `json:"worktree"`
	Task       string     `json:"task"`
	Status     Status     `json:"status"`
	BaseBranch string     `json:"baseBranch"`
	BaseCommit string     `json:"baseCommit"`
	CreatedAt  time.Time  `json:"createdAt"`
	MergedAt   *time.Time `json:"mergedAt,omitempty"`
}

// Clone returns a deep copy.
func (a *Agent) Clone() *Agent {
	c := *a
	if a.MergedAt != nil {
		t := *a.MergedAt
		c.MergedAt = &t
	}
	return &c
}

// MergeRecord records a completed merge.
type MergeRecord struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agentId"`
	Branch      string    `json:"branch"`
	BaseBranch  string    `json:"baseBranch"`
	MergeCommit string    `json:"mergeCommit"`
	MergedAt    time.Time `json:"mergedAt"`
}

// State is the persisted registry snapshot.
type State struct {
	Version      string            `json:"version"`
	RepoRoot     string            `json:"repoRoot"`
	WorktreeDir  string            `json:"worktreeDir"`
	Agents       map[string]*Agent `json:"agents"`
	MergeHistory []MergeRecord     `json:"mergeHistory"`

	loaded bool
}

// New creates an empty state for a repository.
func New(repoRoot, worktreeDir string) *State {
	if worktreeDir == "" {
		worktreeDir = config.DefaultWorktreeDir
	}
	return &State{
		Version:      FormatVersion,
		RepoRoot:     repoRoot,
		WorktreeDir:  worktreeDir,
		Agents:       make(map[string]*Agent),
		MergeHistory: []MergeRecord{},
	}
}

// FilePath returns the state file path for a repository.
func FilePath(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, File)
}

// LockPath returns the lock file guarding the state file.
func LockPath(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, LockFile)
}

// Load reads the state for repoRoot. A missing file yields a fresh empty
// state; a file that exists but does not parse yields ErrCorruptState.
func Load(repoRoot string) (*State, error) {
	path := FilePath(repoRoot)

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is derived from repo root
	if err != nil {
		if os.IsNotExist(err) {
			return New(repoRoot, ""), nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, path, err)
	}
	if s.Agents == nil {
		s.Agents = make(map[string]*Agent)
	}
	if s.MergeHistory == nil {
		s.MergeHistory = []MergeRecord{}
	}
	if s.Version == "" {
		s.Version = FormatVersion
	}
	if s.WorktreeDir == "" {
		s.WorktreeDir = config.DefaultWorktreeDir
	}
	for id, a := range s.Agents {
		if a == nil {
			return nil, fmt.Errorf("%w: %s: agent %s is null", ErrCorruptState, path, id)
		}
	}
	s.RepoRoot = repoRoot
	s.loaded = true
	return &s, nil
}

// Fresh reports whether the state was created rather than read from disk.
func (s *State) Fresh() bool {
	return !s.loaded
}

// Update applies fn to the registry as it is on disk and rewrites the whole
// file, all under an exclusive flock. Each mutation starts from what other
// cwt processes last wrote, so none of their changes is lost. The write goes
// through a temp file and rename, so readers never see a half-written file.
// A fresh registry takes worktreeDir. If fn fails nothing is written and its
// error is returned.
func Update(repoRoot, worktreeDir string, fn func(*State) error) (*State, error) {
	var updated *State
	err := withLock(repoRoot, func() error {
		s, err := Load(repoRoot)
		if err != nil {
			return err
		}
		if s.Fresh() && worktreeDir != "" {
			s.WorktreeDir = worktreeDir
		}
		if err := fn(s); err != nil {
			return err
		}
		if err := util.AtomicWriteJSON(FilePath(repoRoot), s); err != nil {
			return fmt.Errorf("writing state: %w", err)
		}
		s.loaded = true
		updated = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func withLock(repoRoot string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(FilePath(repoRoot)), 0755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	lock := flock.New(LockPath(repoRoot))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}

// AddAgent inserts or replaces an agent.
func (s *State) AddAgent(a *Agent) {
	s.Agents[a.ID] = a
}

// GetAgent returns an agent by ID.
func (s *State) GetAgent(id string) (*Agent, bool) {
	a, ok := s.Agents[id]
	return a, ok
}

// RemoveAgent deletes an agent. Unknown IDs are ignored.
func (s *State) RemoveAgent(id string) {
	delete(s.Agents, id)
}

// ListAgents returns all agents ordered by creation time, then ID.
func (s *State) ListAgents() []*Agent {
	agents := make([]*Agent, 0, len(s.Agents))
	for _, a := range s.Agents {
		agents = append(agents, a)
	}
	sortAgents(agents)
	return agents
}

// ListByStatus returns agents with the given status, in creation order.
func (s *State) ListByStatus(status Status) []*Agent {
	var agents []*Agent
	for _, a := range s.Agents {
		if a.Status == status {
			agents = append(agents, a)
		}
	}
	sortAgents(agents)
	return agents
}

// RecordMerge appends to the merge history.
func (s *State) RecordMerge(r MergeRecord) {
	s.MergeHistory = append(s.MergeHistory, r)
}

func sortAgents(agents []*Agent) {
	sort.Slice(agents, func(i, j int) bool {
		if !agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].CreatedAt.Before(agents[j].CreatedAt)
		}
		return agents[i].ID < agents[j].ID
	})
}
