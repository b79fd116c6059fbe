package coordinator

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/cwt/internal/agent"
	"github.com/steveyegge/cwt/internal/config"
	"github.com/steveyegge/cwt/internal/git"
	"github.com/steveyegge/cwt/internal/ids"
	"github.com/steveyegge/cwt/internal/pty"
	"github.com/steveyegge/cwt/internal/state"
)

const waitFor = 5 * time.Second

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	if out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	gitRun(t, dir, "init")
	gitRun(t, dir, "config", "user.email", "test@test.com")
	gitRun(t, dir, "config", "user.name", "Test User")
	gitRun(t, dir, "commit", "--allow-empty", "-m", "initial")
	return dir
}

// testConfig runs `sh -c script` in every session.
func testConfig(t *testing.T, script string) *config.Config {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("sh not available: %v", err)
	}
	cfg := config.Default()
	cfg.Agent.Command = sh
	cfg.Agent.Args = []string{"-c", script}
	return cfg
}

type fixture struct {
	root  string
	cfg   *config.Config
	git   *git.Git
	mgr   *agent.Manager
	coord *Coordinator
}

func newFixture(t *testing.T, script string) *fixture {
	t.Helper()
	root := initTestRepo(t)
	cfg := testConfig(t, script)
	g := git.NewGit(root)
	mgr, err := agent.NewManager(root, g, cfg)
	require.NoError(t, err)
	coord := New(root, cfg, mgr, pty.NewRegistry())
	t.Cleanup(coord.Shutdown)
	return &fixture{root: root, cfg: cfg, git: g, mgr: mgr, coord: coord}
}

func tabIDs(tabs []Tab) []string {
	out := make([]string, len(tabs))
	for i, tab := range tabs {
		out[i] = tab.ID
	}
	return out
}

func TestStart_MainSessionOnly(t *testing.T) {
	f := newFixture(t, "cat")
	require.NoError(t, f.coord.Start(10, 40))

	tabs := f.coord.Tabs()
	require.Len(t, tabs, 1)
	assert.Equal(t, ids.MainSessionID, tabs[0].ID)
	assert.Equal(t, MainLabel, tabs[0].Label)
	assert.True(t, tabs[0].Main)
	assert.Nil(t, tabs[0].Agent)

	s, err := f.coord.Session(ids.MainSessionID)
	require.NoError(t, err)
	assert.Equal(t, f.root, s.Dir())
	rows, cols := s.Size()
	assert.Equal(t, 10, rows)
	assert.Equal(t, 40, cols)
}

func TestStart_RestoresRunningAgents(t *testing.T) {
	f := newFixture(t, "cat")

	first, err := f.mgr.Create("first")
	require.NoError(t, err)
	done, err := f.mgr.Create("already done")
	require.NoError(t, err)
	require.NoError(t, f.mgr.UpdateStatus(done.ID, state.StatusCompleted))
	broken, err := f.mgr.Create("broken worktree")
	require.NoError(t, err)
	last, err := f.mgr.Create("last")
	require.NoError(t, err)

	// A missing worktree makes the session fail to start.
	require.NoError(t, os.RemoveAll(broken.Worktree))

	// A fresh process: new manager over the same state.
	mgr, err := agent.NewManager(f.root, f.git, f.cfg)
	require.NoError(t, err)
	coord := New(f.root, f.cfg, mgr, pty.NewRegistry())
	defer coord.Shutdown()
	require.NoError(t, coord.Start(10, 40))

	assert.Equal(t, []string{ids.MainSessionID, first.ID, last.ID}, tabIDs(coord.Tabs()))

	// The skipped agent is still persisted as running.
	got, err := mgr.Get(broken.ID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusRunning, got.Status)

	s, err := coord.Session(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Worktree, s.Dir())
	assert.Equal(t, "first", s.Label())
}

func TestStart_MainSessionFailure(t *testing.T) {
	f := newFixture(t, "cat")
	f.cfg.Agent.Command = filepath.Join(t.TempDir(), "missing")

	err := f.coord.Start(10, 40)
	assert.ErrorIs(t, err, pty.ErrSpawnFailed)
}

func TestCreateAgent(t *testing.T) {
	f := newFixture(t, `printf '%s' "$CWT_AGENT_ID"; cat`)
	require.NoError(t, f.coord.Start(10, 60))

	a, err := f.coord.CreateAgent("write docs")
	require.NoError(t, err)

	tabs := f.coord.Tabs()
	require.Len(t, tabs, 2)
	assert.Equal(t, a.ID, tabs[1].ID)
	assert.Equal(t, "write docs", tabs[1].Label)
	require.NotNil(t, tabs[1].Agent)
	assert.Equal(t, state.StatusRunning, tabs[1].Agent.Status)

	s, err := f.coord.Session(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Worktree, s.Dir())
	require.Eventually(t, func() bool {
		return s.Snapshot()[0] == a.ID
	}, waitFor, 20*time.Millisecond)
}

func TestCreateAgent_SpawnFailureRemovesAgent(t *testing.T) {
	f := newFixture(t, "cat")
	f.cfg.Agent.Command = filepath.Join(t.TempDir(), "missing")

	_, err := f.coord.CreateAgent("doomed")
	assert.ErrorIs(t, err, pty.ErrSpawnFailed)
	assert.Empty(t, f.mgr.List())

	entries, err := os.ReadDir(filepath.Join(f.root, config.DefaultWorktreeDir))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClose(t *testing.T) {
	f := newFixture(t, "cat")
	require.NoError(t, f.coord.Start(10, 40))
	a, err := f.coord.CreateAgent("short lived")
	require.NoError(t, err)
	s, err := f.coord.Session(a.ID)
	require.NoError(t, err)

	require.NoError(t, f.coord.Close(a.ID))

	assert.Equal(t, []string{ids.MainSessionID}, tabIDs(f.coord.Tabs()))
	_, err = f.coord.Session(a.ID)
	assert.ErrorIs(t, err, pty.ErrSessionNotFound)
	_, err = s.Write([]byte("x"))
	assert.ErrorIs(t, err, pty.ErrClosed)

	_, err = f.mgr.Get(a.ID)
	assert.ErrorIs(t, err, agent.ErrAgentNotFound)
	_, err = os.Stat(a.Worktree)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, f.coord.Close(ids.MainSessionID), ErrMainSession)
	assert.ErrorIs(t, f.coord.Close(a.ID), agent.ErrAgentNotFound)
}

func TestMerge(t *testing.T) {
	f := newFixture(t, "cat")
	require.NoError(t, f.coord.Start(10, 40))
	a, err := f.coord.CreateAgent("add file")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(a.Worktree, "new.txt"), []byte("new\n"), 0644))
	gitRun(t, a.Worktree, "add", "new.txt")
	gitRun(t, a.Worktree, "commit", "-m", "add file")

	require.NoError(t, f.coord.Merge(a.ID))

	assert.Equal(t, []string{ids.MainSessionID}, tabIDs(f.coord.Tabs()))
	_, err = os.Stat(filepath.Join(f.root, "new.txt"))
	assert.NoError(t, err, "merged file should be in the main checkout")

	history := f.mgr.MergeHistory()
	require.Len(t, history, 1)
	assert.Equal(t, a.ID, history[0].AgentID)

	assert.ErrorIs(t, f.coord.Merge(ids.MainSessionID), ErrMainSession)
}

func TestReap(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   state.Status
	}{
		{"success", `test "$CWT_AGENT_ID" = main && exec cat; exit 0`, state.StatusCompleted},
		{"failure", `test "$CWT_AGENT_ID" = main && exec cat; exit 7`, state.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.script)
			require.NoError(t, f.coord.Start(10, 40))
			a, err := f.coord.CreateAgent("exits")
			require.NoError(t, err)

			s, err := f.coord.Session(a.ID)
			require.NoError(t, err)
			select {
			case <-s.Done():
			case <-time.After(waitFor):
				t.Fatal("agent program did not exit")
			}

			assert.Equal(t, []string{a.ID}, f.coord.Reap())
			assert.Empty(t, f.coord.Reap(), "second reap changes nothing")

			got, err := f.mgr.Get(a.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)

			// The exited session is still shown.
			tabs := f.coord.Tabs()
			require.Len(t, tabs, 2)
			assert.True(t, tabs[1].Exited)
			assert.False(t, tabs[0].Exited, "main is still running")
		})
	}
}

func TestSync(t *testing.T) {
	f := newFixture(t, "cat")
	require.NoError(t, f.coord.Start(10, 40))

	// Another cwt process adds an agent.
	other, err := agent.NewManager(f.root, f.git, f.cfg)
	require.NoError(t, err)
	a, err := other.Create("from the cli")
	require.NoError(t, err)

	require.NoError(t, f.coord.Sync())
	assert.Equal(t, []string{ids.MainSessionID, a.ID}, tabIDs(f.coord.Tabs()))

	// Syncing again does not spawn a duplicate.
	require.NoError(t, f.coord.Sync())
	assert.Len(t, f.coord.Tabs(), 2)

	// And then removes it.
	require.NoError(t, other.Reload())
	require.NoError(t, other.Remove(a.ID))

	require.NoError(t, f.coord.Sync())
	assert.Equal(t, []string{ids.MainSessionID}, tabIDs(f.coord.Tabs()))
	_, err = f.coord.Session(a.ID)
	assert.ErrorIs(t, err, pty.ErrSessionNotFound)
}

func TestResize(t *testing.T) {
	f := newFixture(t, "cat")
	require.NoError(t, f.coord.Start(10, 40))

	f.coord.Resize(5, 20)
	f.coord.Resize(0, 20) // ignored

	s, err := f.coord.Session(ids.MainSessionID)
	require.NoError(t, err)
	rows, cols := s.Size()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 20, cols)

	// New sessions start at the current size.
	a, err := f.coord.CreateAgent("sized")
	require.NoError(t, err)
	s, err = f.coord.Session(a.ID)
	require.NoError(t, err)
	assert.Len(t, s.Snapshot(), 5)
}
