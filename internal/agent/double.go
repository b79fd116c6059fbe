package agent

import (
	"fmt"
	"sync"
)

// Double is an in-memory FAKE with SPY capabilities for Repo.
//
// It tracks branches, worktrees, and the checked-out branch well enough for
// the manager's bookkeeping, records every call in order, and can be told
// to fail individual methods. Use it where a real repository would make a
// test slow or where a failure has to be forced.
type Double struct {
	mu sync.Mutex

	head      string
	commits   map[string]string // branch -> sha
	worktrees map[string]string // path -> branch
	merged    []string
	dirty     map[string]bool // worktree path -> has changes
	seq       int

	calls []string
	fail  map[string]error

	// OnCall, when set, runs before each method with the method name.
	OnCall func(method string)
}

var _ Repo = (*Double)(nil)

// NewDouble returns a fake repository with a single branch checked out.
func NewDouble(branch string) *Double {
	return &Double{
		head:      branch,
		commits:   map[string]string{branch: "0000000000000000000000000000000000000001"},
		worktrees: make(map[string]string),
		dirty:     make(map[string]bool),
		fail:      make(map[string]error),
	}
}

// FailOn makes every later call to method return err. A nil err clears it.
func (d *Double) FailOn(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, method)
		return
	}
	d.fail[method] = err
}

// Calls returns the method names invoked so far, in order.
func (d *Double) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// HasBranch reports whether the fake holds branch.
func (d *Double) HasBranch(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.commits[name]
	return ok
}

// HasWorktree reports whether the fake holds a worktree at path.
func (d *Double) HasWorktree(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.worktrees[path]
	return ok
}

// SetDirty marks the worktree at path as holding uncommitted changes.
func (d *Double) SetDirty(path string, dirty bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty[path] = dirty
}

// Merged returns the branches merged so far.
func (d *Double) Merged() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.merged...)
}

// enter records the call and returns the injected failure, if any. The hook
// runs without the lock held so it may call back into the double.
func (d *Double) enter(method string) error {
	d.mu.Lock()
	d.calls = append(d.calls, method)
	err := d.fail[method]
	hook := d.OnCall
	d.mu.Unlock()

	if hook != nil {
		hook(method)
	}
	return err
}

func (d *Double) nextSHA() string {
	d.seq++
	return fmt.Sprintf("%040x", d.seq+1)
}

func (d *Double) CurrentBranch() (string, error) {
	if err := d.enter("CurrentBranch"); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.head, nil
}

func (d *Double) CurrentCommit() (string, error) {
	if err := d.enter("CurrentCommit"); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits[d.head], nil
}

func (d *Double) Rev(rev string) (string, error) {
	if err := d.enter("Rev"); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if rev == "HEAD" {
		rev = d.head
	}
	sha, ok := d.commits[rev]
	if !ok {
		return "", fmt.Errorf("unknown revision %q", rev)
	}
	return sha, nil
}

func (d *Double) Checkout(ref string) error {
	if err := d.enter("Checkout"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.commits[ref]; !ok {
		return fmt.Errorf("pathspec %q did not match", ref)
	}
	d.head = ref
	return nil
}

func (d *Double) WorktreeAdd(path, branch string) error {
	if err := d.enter("WorktreeAdd"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.commits[branch]; ok {
		return fmt.Errorf("a branch named %q already exists", branch)
	}
	if _, ok := d.worktrees[path]; ok {
		return fmt.Errorf("%q already exists", path)
	}
	d.commits[branch] = d.commits[d.head]
	d.worktrees[path] = branch
	return nil
}

func (d *Double) WorktreeRemove(path string, force bool) error {
	if err := d.enter("WorktreeRemove"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.worktrees[path]; !ok {
		return fmt.Errorf("%q is not a working tree", path)
	}
	delete(d.worktrees, path)
	return nil
}

func (d *Double) WorktreePrune() error {
	return d.enter("WorktreePrune")
}

func (d *Double) DeleteBranch(name string, force bool) error {
	if err := d.enter("DeleteBranch"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.commits[name]; !ok {
		return fmt.Errorf("branch %q not found", name)
	}
	delete(d.commits, name)
	return nil
}

func (d *Double) WorktreeDirty(path string) (bool, error) {
	if err := d.enter("WorktreeDirty"); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.worktrees[path]; !ok {
		return false, fmt.Errorf("%q is not a working tree", path)
	}
	return d.dirty[path], nil
}

func (d *Double) MergeNoFF(branch, message string) error {
	if err := d.enter("MergeNoFF"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.commits[branch]; !ok {
		return fmt.Errorf("%q - not something we can merge", branch)
	}
	d.commits[d.head] = d.nextSHA()
	d.merged = append(d.merged, branch)
	return nil
}

func (d *Double) Diff(base, head string) (string, error) {
	if err := d.enter("Diff"); err != nil {
		return "", err
	}
	return fmt.Sprintf("diff %s...%s", base, head), nil
}

func (d *Double) DiffStat(base, head string) (string, error) {
	if err := d.enter("DiffStat"); err != nil {
		return "", err
	}
	return "", nil
}

func (d *Double) Log(base, head string) (string, error) {
	if err := d.enter("Log"); err != nil {
		return "", err
	}
	return "", nil
}

func (d *Double) CheckConflicts(source, target string) ([]string, error) {
	if err := d.enter("CheckConflicts"); err != nil {
		return nil, err
	}
	return nil, nil
}
