package config

import (
	"os"
	"sort"
)

// AgentEnvConfig describes the agent a child process is launched for.
type AgentEnvConfig struct {
	// AgentID is the agent identifier, or ids.MainSessionID for the
	// orchestrator session.
	AgentID string

	// RepoRoot is the main checkout. Sets CWT_ROOT.
	RepoRoot string

	// Branch is the agent's branch (empty for the main session).
	Branch string

	// Term is the terminal type reported to the child.
	Term string
}

// AgentEnv returns the environment variables set for an agent process.
func AgentEnv(cfg AgentEnvConfig) map[string]string {
	env := make(map[string]string)

	term := cfg.Term
	if term == "" {
		term = DefaultTerm
	}
	env["TERM"] = term

	if cfg.AgentID != "" {
		env["CWT_AGENT_ID"] = cfg.AgentID
	}
	// Empty values would shadow whatever the parent environment carries.
	if cfg.RepoRoot != "" {
		env["CWT_ROOT"] = cfg.RepoRoot
	}
	if cfg.Branch != "" {
		env["CWT_BRANCH"] = cfg.Branch
	}

	return env
}

// MergeEnv merges multiple environment maps, with later maps taking precedence.
func MergeEnv(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// EnvForExecCommand returns os.Environ() with env appended in key order.
// Appended entries win over inherited ones for exec.Cmd.
func EnvForExecCommand(env map[string]string) []string {
	return append(os.Environ(), EnvToSlice(env)...)
}

// EnvToSlice converts an env map to a sorted slice of "K=V" strings.
func EnvToSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(env))
	for _, k := range keys {
		result = append(result, k+"="+env[k])
	}
	return result
}
