// Package config provides configuration loading and environment variable management.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigPath is the repo-relative location of the config file.
const ConfigPath = ".cwt/config.toml"

// ConfigVersion is the current supported config schema version.
const ConfigVersion = 1

// Defaults.
const (
	DefaultAgentCommand    = "claude"
	DefaultTerm            = "xterm-256color"
	DefaultWorktreeDir     = ".worktrees"
	DefaultBranchNamespace = "cwt"
	DefaultIDPrefix        = "cwt"
	DefaultRefreshMS       = 100
	DefaultTabWidth        = 15
	DefaultLogLevel        = "info"
)

// EnvAgentCommand overrides [agent].command (and its args, space separated).
const EnvAgentCommand = "CWT_AGENT_CMD"

// Config is the per-repository configuration.
type Config struct {
	Version int `toml:"version"`

	Agent    AgentConfig    `toml:"agent"`
	Worktree WorktreeConfig `toml:"worktree"`
	UI       UIConfig       `toml:"ui"`
	Log      LogConfig      `toml:"log"`
}

// AgentConfig describes the interactive program spawned in every session.
type AgentConfig struct {
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	Term    string            `toml:"term"`
}

// WorktreeConfig controls where worktrees live and how branches are named.
type WorktreeConfig struct {
	Dir             string `toml:"dir"`
	BranchNamespace string `toml:"branch_namespace"`
	IDPrefix        string `toml:"id_prefix"`
}

// UIConfig tunes the terminal interface.
type UIConfig struct {
	RefreshMS int `toml:"refresh_ms"`
	TabWidth  int `toml:"tab_width"`
}

// LogConfig controls .cwt/cwt.log. Level is one of debug, info, warn, or
// error; --debug and CWT_DEBUG still force debug.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: ConfigVersion,
		Agent: AgentConfig{
			Command: DefaultAgentCommand,
			Term:    DefaultTerm,
		},
		Worktree: WorktreeConfig{
			Dir:             DefaultWorktreeDir,
			BranchNamespace: DefaultBranchNamespace,
			IDPrefix:        DefaultIDPrefix,
		},
		UI: UIConfig{
			RefreshMS: DefaultRefreshMS,
			TabWidth:  DefaultTabWidth,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// FilePath returns the config file path for a repository.
func FilePath(repoRoot string) string {
	return filepath.Join(repoRoot, ConfigPath)
}

// Load reads the repository config, layering it over Default and then
// applying environment overrides. A missing file is not an error.
func Load(repoRoot string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(FilePath(repoRoot))
	switch {
	case err == nil:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", ConfigPath, err)
		}
	case os.IsNotExist(err):
		// defaults
	default:
		return nil, fmt.Errorf("reading %s: %w", ConfigPath, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAgentCommand)); v != "" {
		fields := strings.Fields(v)
		c.Agent.Command = fields[0]
		c.Agent.Args = fields[1:]
	}
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return fmt.Errorf("config version missing (expected %d)", ConfigVersion)
	}
	if c.Version != ConfigVersion {
		return fmt.Errorf("unsupported config version %d (expected %d)", c.Version, ConfigVersion)
	}
	if strings.TrimSpace(c.Agent.Command) == "" {
		return fmt.Errorf("agent.command must not be empty")
	}
	if strings.TrimSpace(c.Worktree.BranchNamespace) == "" {
		return fmt.Errorf("worktree.branch_namespace must not be empty")
	}
	if strings.ContainsAny(c.Worktree.BranchNamespace, " ~^:\\") || strings.Contains(c.Worktree.BranchNamespace, "..") {
		return fmt.Errorf("worktree.branch_namespace %q is not a valid branch prefix", c.Worktree.BranchNamespace)
	}
	if strings.TrimSpace(c.Worktree.IDPrefix) == "" {
		return fmt.Errorf("worktree.id_prefix must not be empty")
	}
	dir := filepath.Clean(c.Worktree.Dir)
	if c.Worktree.Dir == "" || filepath.IsAbs(dir) || dir == "." || strings.HasPrefix(dir, "..") {
		return fmt.Errorf("worktree.dir %q must be a relative path inside the repository", c.Worktree.Dir)
	}
	if c.UI.RefreshMS <= 0 {
		return fmt.Errorf("ui.refresh_ms must be positive")
	}
	if c.UI.TabWidth < 4 {
		return fmt.Errorf("ui.tab_width must be at least 4")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q must be debug, info, warn, or error", c.Log.Level)
	}
	return nil
}

// RefreshInterval is the TUI snapshot polling interval.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.UI.RefreshMS) * time.Millisecond
}

// Encode writes the config as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
