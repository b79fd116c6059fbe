// Package cmd provides CLI commands for the cwt tool.
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "cwt",
	Short:   "Run coding agents side by side in isolated git worktrees",
	Version: Version,
	Long: `cwt runs several coding agents against one repository at once.

Every agent works in its own git worktree on its own branch, inside its own
terminal session. Running cwt with no arguments opens the tabbed terminal
interface; the subcommands manage agents from scripts or another shell.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

var debugFlag bool

// Command group IDs - used by subcommands to organize help output
const (
	GroupAgents  = "agents"
	GroupInspect = "inspect"
	GroupConfig  = "config"
)

// SilentExitError ends the process with Code without printing anything.
type SilentExitError struct {
	Code int
}

func (e *SilentExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewSilentExit returns a SilentExitError for code.
func NewSilentExit(code int) error {
	return &SilentExitError{Code: code}
}

// IsSilentExit reports whether err asks for a quiet exit, and with which code.
func IsSilentExit(err error) (int, bool) {
	var se *SilentExitError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// Execute runs the root command and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := IsSilentExit(err); ok {
			return code
		}
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	cobra.EnablePrefixMatching = true

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupAgents, Title: "Agent Management:"},
		&cobra.Group{ID: GroupInspect, Title: "Inspection:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration:"},
	)
	rootCmd.SetHelpCommandGroupID(GroupConfig)
	rootCmd.SetCompletionCommandGroupID(GroupConfig)

	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log at debug level to .cwt/cwt.log")
}
