package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, body string) {
	t.Helper()
	path := FilePath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvAgentCommand, "")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 100*time.Millisecond, cfg.RefreshInterval())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	t.Setenv(EnvAgentCommand, "")
	root := t.TempDir()
	writeConfig(t, root, `
version = 1

[agent]
command = "aider"
args = ["--no-auto-commits"]
env = { AIDER_DARK_MODE = "1" }

[worktree]
dir = ".agents"

[log]
level = "debug"
`)

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "aider", cfg.Agent.Command)
	assert.Equal(t, []string{"--no-auto-commits"}, cfg.Agent.Args)
	assert.Equal(t, "1", cfg.Agent.Env["AIDER_DARK_MODE"])
	assert.Equal(t, ".agents", cfg.Worktree.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultTerm, cfg.Agent.Term)
	assert.Equal(t, DefaultBranchNamespace, cfg.Worktree.BranchNamespace)
	assert.Equal(t, DefaultRefreshMS, cfg.UI.RefreshMS)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv(EnvAgentCommand, "codex --full-auto")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "codex", cfg.Agent.Command)
	assert.Equal(t, []string{"--full-auto"}, cfg.Agent.Args)
}

func TestLoad_ParseError(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "version = [\n")
	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing version", func(c *Config) { c.Version = 0 }, "version missing"},
		{"future version", func(c *Config) { c.Version = 2 }, "unsupported config version"},
		{"empty command", func(c *Config) { c.Agent.Command = " " }, "agent.command"},
		{"empty namespace", func(c *Config) { c.Worktree.BranchNamespace = "" }, "branch_namespace"},
		{"bad namespace", func(c *Config) { c.Worktree.BranchNamespace = "a..b" }, "not a valid branch prefix"},
		{"empty prefix", func(c *Config) { c.Worktree.IDPrefix = "" }, "id_prefix"},
		{"absolute dir", func(c *Config) { c.Worktree.Dir = "/tmp/wt" }, "relative path"},
		{"escaping dir", func(c *Config) { c.Worktree.Dir = "../wt" }, "relative path"},
		{"repo root dir", func(c *Config) { c.Worktree.Dir = "." }, "relative path"},
		{"zero refresh", func(c *Config) { c.UI.RefreshMS = 0 }, "refresh_ms"},
		{"tiny tabs", func(c *Config) { c.UI.TabWidth = 2 }, "tab_width"},
		{"upper log level", func(c *Config) { c.Log.Level = "WARN" }, ""},
		{"unknown log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Setenv(EnvAgentCommand, "")
	var buf bytes.Buffer
	require.NoError(t, Default().Encode(&buf))
	assert.True(t, strings.Contains(buf.String(), `command = "claude"`), buf.String())

	root := t.TempDir()
	writeConfig(t, root, buf.String())
	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestAgentEnv(t *testing.T) {
	env := AgentEnv(AgentEnvConfig{
		AgentID:  "cwt-20260102-a1b2",
		RepoRoot: "/repo",
		Branch:   "cwt/cwt-20260102-a1b2/fix",
	})
	assert.Equal(t, map[string]string{
		"TERM":         DefaultTerm,
		"CWT_AGENT_ID": "cwt-20260102-a1b2",
		"CWT_ROOT":     "/repo",
		"CWT_BRANCH":   "cwt/cwt-20260102-a1b2/fix",
	}, env)

	main := AgentEnv(AgentEnvConfig{AgentID: "main", Term: "screen"})
	assert.Equal(t, "screen", main["TERM"])
	assert.NotContains(t, main, "CWT_BRANCH")
	assert.NotContains(t, main, "CWT_ROOT")
}

func TestMergeEnvAndSlice(t *testing.T) {
	merged := MergeEnv(map[string]string{"A": "1", "B": "1"}, map[string]string{"B": "2"})
	assert.Equal(t, []string{"A=1", "B=2"}, EnvToSlice(merged))

	full := EnvForExecCommand(map[string]string{"CWT_TEST_ONLY": "x"})
	assert.Equal(t, "CWT_TEST_ONLY=x", full[len(full)-1])
}
