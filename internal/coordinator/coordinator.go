// Package coordinator keeps persisted agents and live terminal sessions in
// step: every running agent gets a session, and closing or merging an agent
// tears down both.
package coordinator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/steveyegge/cwt/internal/agent"
	"github.com/steveyegge/cwt/internal/config"
	"github.com/steveyegge/cwt/internal/ids"
	"github.com/steveyegge/cwt/internal/pty"
	"github.com/steveyegge/cwt/internal/state"
)

// MainLabel is the label of the session running in the repository root.
const MainLabel = "Main orchestrator"

// ErrMainSession is returned when an agent-only operation targets the main
// session.
var ErrMainSession = errors.New("operation not allowed on the main session")

// Tab is one entry in the tab bar.
type Tab struct {
	ID    string
	Label string
	Main  bool

	// Agent is a copy of the agent record; nil for the main tab.
	Agent *state.Agent

	// Exited is set once the program in the session has been reaped.
	Exited   bool
	ExitCode int
}

// Coordinator drives the agent manager and the session registry together.
// It is not safe for concurrent use; the UI calls it from one goroutine.
type Coordinator struct {
	repoRoot string
	cfg      *config.Config
	mgr      *agent.Manager
	reg      *pty.Registry

	rows, cols int

	// skipped holds running agents whose session failed to start, so Sync
	// does not retry them on every state change.
	skipped map[string]bool
}

// New returns a coordinator. Call Start before anything else.
func New(repoRoot string, cfg *config.Config, mgr *agent.Manager, reg *pty.Registry) *Coordinator {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Coordinator{
		repoRoot: repoRoot,
		cfg:      cfg,
		mgr:      mgr,
		reg:      reg,
		rows:     pty.DefaultRows,
		cols:     pty.DefaultCols,
		skipped:  make(map[string]bool),
	}
}

// Manager returns the agent manager.
func (c *Coordinator) Manager() *agent.Manager { return c.mgr }

// Start spawns the main session in the repository root and a session for
// every agent persisted as running. Only the main session is required;
// agents whose session cannot start are logged and left without one.
func (c *Coordinator) Start(rows, cols int) error {
	if rows > 0 && cols > 0 {
		c.rows, c.cols = rows, cols
	}

	if _, err := c.reg.Spawn(c.mainOptions()); err != nil {
		return fmt.Errorf("starting main session: %w", err)
	}
	for _, a := range c.mgr.ListByStatus(state.StatusRunning) {
		c.restore(a)
	}
	return nil
}

func (c *Coordinator) restore(a *state.Agent) {
	if _, err := c.reg.Spawn(c.agentOptions(a)); err != nil {
		c.skipped[a.ID] = true
		slog.Warn("skipping agent session", "id", a.ID, "worktree", a.Worktree, "err", err)
		return
	}
	delete(c.skipped, a.ID)
	slog.Info("restored agent session", "id", a.ID)
}

func (c *Coordinator) mainOptions() pty.Options {
	branch, err := c.mgr.CurrentBranch()
	if err != nil {
		slog.Debug("reading current branch", "err", err)
	}
	return c.options(ids.MainSessionID, MainLabel, c.repoRoot, branch)
}

func (c *Coordinator) agentOptions(a *state.Agent) pty.Options {
	return c.options(a.ID, a.Task, a.Worktree, a.Branch)
}

func (c *Coordinator) options(id, label, dir, branch string) pty.Options {
	env := config.MergeEnv(c.cfg.Agent.Env, config.AgentEnv(config.AgentEnvConfig{
		AgentID:  id,
		RepoRoot: c.repoRoot,
		Branch:   branch,
		Term:     c.cfg.Agent.Term,
	}))
	return pty.Options{
		ID:      id,
		Label:   label,
		Dir:     dir,
		Command: c.cfg.Agent.Command,
		Args:    c.cfg.Agent.Args,
		Env:     env,
		Term:    c.cfg.Agent.Term,
		Rows:    c.rows,
		Cols:    c.cols,
	}
}

// CreateAgent creates an agent and its session under the same id. If the
// session cannot start, the agent is removed again.
func (c *Coordinator) CreateAgent(task string) (*state.Agent, error) {
	a, err := c.mgr.Create(task)
	if err != nil {
		return nil, err
	}
	if _, err := c.reg.Spawn(c.agentOptions(a)); err != nil {
		if rmErr := c.mgr.Remove(a.ID); rmErr != nil {
			slog.Warn("removing agent after failed spawn", "id", a.ID, "err", rmErr)
		}
		return nil, err
	}
	return a, nil
}

// Close ends the agent's session, then removes the agent with its worktree
// and branch.
func (c *Coordinator) Close(id string) error {
	if id == ids.MainSessionID {
		return ErrMainSession
	}
	if err := c.reg.Remove(id); err != nil && !errors.Is(err, pty.ErrSessionNotFound) {
		slog.Debug("closing session", "id", id, "err", err)
	}
	delete(c.skipped, id)

	if err := c.mgr.Remove(id); err != nil {
		return fmt.Errorf("removing agent %s: %w", id, err)
	}
	return nil
}

// Merge merges the agent into its base branch and then closes it. A failed
// merge leaves the session open so the user can resolve and retry.
func (c *Coordinator) Merge(id string) error {
	if id == ids.MainSessionID {
		return ErrMainSession
	}
	if err := c.mgr.Merge(id); err != nil {
		return err
	}
	return c.Close(id)
}

// Session returns the live session for id.
func (c *Coordinator) Session(id string) (*pty.Session, error) {
	return c.reg.Get(id)
}

// Resize sets the size used for every session, current and future.
func (c *Coordinator) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}
	c.rows, c.cols = rows, cols
	c.reg.ResizeAll(rows, cols)
}

// Tabs lists the sessions to show: main first, then agents oldest first.
func (c *Coordinator) Tabs() []Tab {
	var tabs []Tab
	if s, err := c.reg.Get(ids.MainSessionID); err == nil {
		tabs = append(tabs, tabFor(s, nil))
	}
	for _, a := range c.mgr.List() {
		s, err := c.reg.Get(a.ID)
		if err != nil {
			continue
		}
		tabs = append(tabs, tabFor(s, a))
	}
	return tabs
}

func tabFor(s *pty.Session, a *state.Agent) Tab {
	t := Tab{
		ID:    s.ID(),
		Label: s.Label(),
		Main:  a == nil,
		Agent: a,
	}
	if code, ok := s.ExitCode(); ok {
		t.Exited = true
		t.ExitCode = code
	}
	return t
}

// Reap moves running agents whose program has exited to completed (exit
// code 0) or failed. The session stays registered so its last screen can
// still be read. It returns the ids whose status changed.
func (c *Coordinator) Reap() []string {
	var changed []string
	for _, a := range c.mgr.ListByStatus(state.StatusRunning) {
		s, err := c.reg.Get(a.ID)
		if err != nil {
			continue
		}
		code, exited := s.ExitCode()
		if !exited {
			continue
		}
		status := state.StatusCompleted
		if code != 0 {
			status = state.StatusFailed
		}
		if err := c.mgr.UpdateStatus(a.ID, status); err != nil {
			slog.Warn("recording agent exit", "id", a.ID, "err", err)
			continue
		}
		slog.Info("agent exited", "id", a.ID, "code", code, "status", status)
		changed = append(changed, a.ID)
	}
	return changed
}

// Sync reloads the state file after another cwt process changed it. New
// running agents get sessions; sessions of agents that no longer exist are
// closed.
func (c *Coordinator) Sync() error {
	if err := c.mgr.Reload(); err != nil {
		return fmt.Errorf("reloading state: %w", err)
	}

	known := make(map[string]bool)
	for _, a := range c.mgr.List() {
		known[a.ID] = true
		if a.Status == state.StatusRunning && !c.reg.Has(a.ID) && !c.skipped[a.ID] {
			c.restore(a)
		}
	}
	for _, id := range c.reg.IDs() {
		if id == ids.MainSessionID || known[id] {
			continue
		}
		if err := c.reg.Remove(id); err != nil {
			slog.Debug("closing orphaned session", "id", id, "err", err)
		}
		slog.Info("closed session of removed agent", "id", id)
	}
	return nil
}

// Shutdown closes every session. Agents stay persisted and are restored by
// the next Start.
func (c *Coordinator) Shutdown() {
	slog.Debug("closing sessions", "count", c.reg.Count())
	c.reg.CloseAll()
}
