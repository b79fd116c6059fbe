package pty

import (
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const waitFor = 5 * time.Second

func requireTool(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func startCat(t *testing.T, rows, cols int) *Session {
	t.Helper()
	s, err := Start(Options{
		ID:      "cat",
		Dir:     t.TempDir(),
		Command: requireTool(t, "cat"),
		Rows:    rows,
		Cols:    cols,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(waitFor):
		t.Fatal("session did not finish")
	}
}

func TestSnapshot_BlankScreen(t *testing.T) {
	s := startCat(t, 5, 20)

	lines := s.Snapshot()
	require.Len(t, lines, 5)
	for i, l := range lines {
		assert.Empty(t, l, "line %d", i)
	}
	rows, cols := s.Size()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 20, cols)
}

func TestStart_DefaultSize(t *testing.T) {
	s, err := Start(Options{ID: "x", Command: requireTool(t, "cat")})
	require.NoError(t, err)
	defer s.Close()

	assert.Len(t, s.Snapshot(), DefaultRows)
}

func TestWrite_EchoesThroughEmulator(t *testing.T) {
	s := startCat(t, 10, 40)

	n, err := s.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	// The tty echoes the line and cat prints it back.
	require.Eventually(t, func() bool {
		return strings.Count(s.String(), "hello") >= 2
	}, waitFor, 20*time.Millisecond, "screen:\n%s", s.String())
}

func TestOutputAndExitCode(t *testing.T) {
	sh := requireTool(t, "sh")
	s, err := Start(Options{
		ID:      "sh",
		Command: sh,
		Args:    []string{"-c", `printf 'one\ntwo\n'; exit 3`},
		Rows:    4,
		Cols:    20,
	})
	require.NoError(t, err)
	defer s.Close()

	waitDone(t, s)
	assert.False(t, s.Running())
	code, ok := s.ExitCode()
	require.True(t, ok)
	assert.Equal(t, 3, code)

	lines := s.Snapshot()
	require.Len(t, lines, 4)
	assert.Equal(t, "one", lines[0])
	assert.Equal(t, "two", lines[1])
}

func TestOutput_MultibyteSplitAcrossReads(t *testing.T) {
	sh := requireTool(t, "sh")
	// The two bytes of "é" arrive in separate reads.
	s, err := Start(Options{
		ID:      "utf8",
		Command: sh,
		Args:    []string{"-c", `printf 'a\303'; sleep 0.3; printf '\251b\n'`},
		Env:     map[string]string{"LC_ALL": "C"},
		Rows:    2,
		Cols:    20,
	})
	require.NoError(t, err)
	defer s.Close()

	waitDone(t, s)
	assert.Equal(t, "aéb", s.Snapshot()[0])
}

func TestEnvironment(t *testing.T) {
	sh := requireTool(t, "sh")
	s, err := Start(Options{
		ID:      "env",
		Command: sh,
		Args:    []string{"-c", `printf '%s %s' "$TERM" "$CWT_AGENT_ID"`},
		Env:     map[string]string{"CWT_AGENT_ID": "cwt-20260101-abcd"},
		Term:    "vt100",
		Rows:    2,
		Cols:    40,
	})
	require.NoError(t, err)
	defer s.Close()

	waitDone(t, s)
	assert.Equal(t, "vt100 cwt-20260101-abcd", s.Snapshot()[0])
}

func TestExitCode_WhileRunning(t *testing.T) {
	s := startCat(t, 2, 10)
	assert.True(t, s.Running())
	_, ok := s.ExitCode()
	assert.False(t, ok)
}

func TestResize(t *testing.T) {
	s := startCat(t, 10, 40)

	require.NoError(t, s.Resize(3, 10))
	lines := s.Snapshot()
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.LessOrEqual(t, len([]rune(l)), 10)
	}

	// Same size again is a no-op.
	require.NoError(t, s.Resize(3, 10))

	for _, size := range [][2]int{{0, 10}, {10, 0}, {-1, 5}, {maxDim + 1, 10}, {10, maxDim + 1}} {
		assert.ErrorIs(t, s.Resize(size[0], size[1]), ErrInvalidSize)
	}
	rows, cols := s.Size()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 10, cols)
}

func TestStart_Failure(t *testing.T) {
	_, err := Start(Options{ID: "bad", Command: "/nonexistent/cwt-test-binary"})
	assert.ErrorIs(t, err, ErrSpawnFailed)

	_, err = Start(Options{ID: "empty"})
	assert.ErrorIs(t, err, ErrSpawnFailed)

	_, err = Start(Options{ID: "neg", Command: "cat", Rows: -1})
	assert.ErrorIs(t, err, ErrInvalidSize)

	// 65536 would wrap to 0 in the pty window size.
	_, err = Start(Options{ID: "huge", Command: "cat", Rows: maxDim + 1})
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = Start(Options{ID: "wide", Command: "cat", Cols: maxDim + 1})
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, err := Start(Options{ID: "cat", Command: requireTool(t, "cat"), Rows: 2, Cols: 10})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second Close is a no-op")

	_, err = s.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Resize(5, 5), ErrClosed)

	// The hangup ends cat, so the reader goroutine finishes.
	waitDone(t, s)

	// The last screen is still readable.
	assert.Len(t, s.Snapshot(), 2)
}

func TestConcurrentWriteAndSnapshot(t *testing.T) {
	s := startCat(t, 10, 40)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = s.Write([]byte("abc\n"))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Len(t, s.Snapshot(), 10)
			}
		}()
	}
	wg.Wait()
}
