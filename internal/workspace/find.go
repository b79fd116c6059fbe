// Package workspace locates the repository cwt operates on.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/steveyegge/cwt/internal/git"
)

// ErrNotFound indicates no git repository was found.
var ErrNotFound = errors.New("not in a git repository")

// Marker is the entry that identifies a repository root. In the main
// checkout it is a directory; in a linked worktree it is a file.
const Marker = ".git"

// Find locates the main repository root by walking up from startDir.
// Inside a linked worktree (an agent's checkout) it continues to the
// repository that owns the worktree, so every cwt command sees the same
// state. It returns "" with no error when nothing is found.
// Does not resolve symlinks to stay consistent with os.Getwd().
func Find(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	current := absDir
	for {
		info, err := os.Stat(filepath.Join(current, Marker))
		if err == nil {
			if info.IsDir() {
				return current, nil
			}
			if root, err := mainRoot(current); err == nil {
				return root, nil
			}
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", nil
		}
		current = parent
	}
}

// mainRoot asks git which repository a linked worktree belongs to.
func mainRoot(worktree string) (string, error) {
	common, err := git.NewGit(worktree).CommonDir()
	if err != nil {
		return "", err
	}
	if filepath.Base(common) != Marker {
		return "", fmt.Errorf("bare or unusual git dir %s", common)
	}
	return filepath.Dir(common), nil
}

// FindOrError is like Find but returns ErrNotFound if nothing is found.
func FindOrError(startDir string) (string, error) {
	root, err := Find(startDir)
	if err != nil {
		return "", err
	}
	if root == "" {
		return "", ErrNotFound
	}
	return root, nil
}

// FindFromCwdOrError locates the repository root from the current working
// directory, returning ErrNotFound if nothing is found.
func FindFromCwdOrError() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return FindOrError(cwd)
}
