package state

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatch_ReportsUpdate(t *testing.T) {
	root := t.TempDir()

	w, err := Watch(root)
	require.NoError(t, err)
	defer w.Close()

	// A second writer, as another cwt process would be.
	_, err = Update(root, "", func(s *State) error {
		s.AddAgent(testAgent("cwt-20260102-cccc", time.Now()))
		return nil
	})
	require.NoError(t, err)

	select {
	case _, ok := <-w.Changes():
		require.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification after Update")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()

	w, err := Watch(root)
	require.NoError(t, err)
	defer w.Close()

	// Taking the lock touches state.lock only.
	_, err = Update(root, "", func(*State) error { return nil })
	require.NoError(t, err)
	// Drain the notification caused by state.json itself.
	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification after Update")
	}

	require.NoError(t, os.WriteFile(LockPath(root), []byte("x"), 0644))
	select {
	case <-w.Changes():
		t.Fatal("unexpected notification for lock file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatch_CloseClosesChanges(t *testing.T) {
	w, err := Watch(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, ok := <-w.Changes()
	require.False(t, ok)
}
