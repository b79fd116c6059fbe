package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/steveyegge/cwt/internal/agent"
	"github.com/steveyegge/cwt/internal/config"
	"github.com/steveyegge/cwt/internal/git"
	"github.com/steveyegge/cwt/internal/logging"
	"github.com/steveyegge/cwt/internal/state"
	"github.com/steveyegge/cwt/internal/style"
	"github.com/steveyegge/cwt/internal/workspace"
)

// repoContext is everything a command needs to work on the current
// repository.
type repoContext struct {
	root string
	cfg  *config.Config
	git  *git.Git
	mgr  *agent.Manager
	log  io.Closer
}

// openRepo finds the repository containing the working directory, loads its
// config and state, and sends logs to its log file. Callers must Close it.
func openRepo() (*repoContext, error) {
	root, err := workspace.FindFromCwdOrError()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	level := logging.ParseLevel(cfg.Log.Level)
	if debugFlag || logging.DebugFromEnv() {
		level = slog.LevelDebug
	}
	closer, err := logging.Setup(filepath.Join(root, state.Dir, logging.File), level)
	if err != nil {
		return nil, err
	}
	style.Init()

	g := git.NewGit(root)
	mgr, err := agent.NewManager(root, g, cfg)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("loading agents: %w", err)
	}

	return &repoContext{root: root, cfg: cfg, git: g, mgr: mgr, log: closer}, nil
}

// resolve maps a user-typed agent reference to its id.
func (r *repoContext) resolve(ref string) (string, error) {
	return r.mgr.Resolve(ref)
}

// Close releases the log file.
func (r *repoContext) Close() {
	_ = r.log.Close()
}
