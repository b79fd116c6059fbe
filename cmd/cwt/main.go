// cwt runs coding agents side by side, each in its own git worktree.
package main

import (
	"os"

	"github.com/steveyegge/cwt/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
