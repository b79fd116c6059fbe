// Package pty runs interactive programs under pseudo-terminals and keeps a
// virtual screen of their output that can be snapshotted at any time.
package pty

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/creack/pty"
	"github.com/hinshun/vt10x"

	"github.com/steveyegge/cwt/internal/config"
)

// Common errors
var (
	ErrSpawnFailed = errors.New("failed to spawn session")
	ErrClosed      = errors.New("session is closed")
	ErrInvalidSize = errors.New("terminal size out of range")
)

// Default screen size when Options leaves it unset.
const (
	DefaultRows = 24
	DefaultCols = 80

	// maxDim is the largest row or column count a pty window can carry.
	maxDim = 65535
)

const readBufSize = 4096

// Options describes the program to run in a session.
type Options struct {
	ID      string
	Label   string
	Dir     string
	Command string
	Args    []string
	Env     map[string]string
	Term    string
	Rows    int
	Cols    int
}

// Session is one program running under a pty with an emulated screen.
//
// A single reader goroutine copies pty output into the emulator. mu guards
// the emulator only; it is held for one emulator write, one snapshot copy,
// or one resize, and never while reading from or writing to the pty.
type Session struct {
	id    string
	label string
	dir   string

	cmd  *exec.Cmd
	ptmx *os.File

	mu   sync.Mutex
	term vt10x.Terminal
	rows int
	cols int

	closeOnce sync.Once
	closed    chan struct{}

	done     chan struct{}
	exitCode int
}

// Start spawns opts.Command under a new pty and begins capturing its output.
func Start(opts Options) (*Session, error) {
	if opts.Rows == 0 {
		opts.Rows = DefaultRows
	}
	if opts.Cols == 0 {
		opts.Cols = DefaultCols
	}
	if !validSize(opts.Rows, opts.Cols) {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, opts.Rows, opts.Cols)
	}
	if opts.Term == "" {
		opts.Term = config.DefaultTerm
	}
	if opts.Command == "" {
		return nil, fmt.Errorf("%w: no command", ErrSpawnFailed)
	}

	cmd := exec.Command(opts.Command, opts.Args...) //nolint:gosec // G204: command comes from cwt config
	cmd.Dir = opts.Dir
	cmd.Env = config.EnvForExecCommand(config.MergeEnv(opts.Env, map[string]string{"TERM": opts.Term}))

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(opts.Rows), Cols: uint16(opts.Cols)})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, opts.Command, err)
	}

	s := &Session{
		id:       opts.ID,
		label:    opts.Label,
		dir:      opts.Dir,
		cmd:      cmd,
		ptmx:     ptmx,
		term:     vt10x.New(vt10x.WithSize(opts.Cols, opts.Rows)),
		rows:     opts.Rows,
		cols:     opts.Cols,
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
		exitCode: -1,
	}
	go s.readLoop()

	slog.Info("session started", "id", s.id, "dir", s.dir, "command", opts.Command, "pid", s.Pid())
	return s, nil
}

func validSize(rows, cols int) bool {
	return rows > 0 && cols > 0 && rows <= maxDim && cols <= maxDim
}

// readLoop feeds pty output to the emulator until the pty reports an error
// (the child exited or the session was closed), then reaps the child.
func (s *Session) readLoop() {
	defer close(s.done)

	buf := make([]byte, readBufSize)
	// pending holds the tail of a UTF-8 sequence split across reads. The
	// emulator stops short of an incomplete sequence, so it is fed again
	// together with the next chunk.
	var pending []byte
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.mu.Lock()
			pending = append(pending, buf[:n]...)
			w, _ := s.term.Write(pending)
			pending = append(pending[:0], pending[w:]...)
			if len(pending) >= utf8.UTFMax {
				pending = pending[:0]
			}
			s.mu.Unlock()
		}
		if err != nil {
			slog.Debug("session reader stopped", "id", s.id, "err", err)
			break
		}
	}

	code := 0
	if err := s.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	s.mu.Lock()
	s.exitCode = code
	s.mu.Unlock()
	slog.Info("session exited", "id", s.id, "code", code)
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Label returns the human-readable label.
func (s *Session) Label() string { return s.label }

// Dir returns the working directory the program was started in.
func (s *Session) Dir() string { return s.dir }

// Pid returns the child's process id.
func (s *Session) Pid() int { return s.cmd.Process.Pid }

// Write sends raw bytes to the program's input.
func (s *Session) Write(p []byte) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	n, err := s.ptmx.Write(p)
	if err != nil {
		if errors.Is(err, os.ErrClosed) {
			return n, ErrClosed
		}
		return n, fmt.Errorf("writing to session %s: %w", s.id, err)
	}
	return n, nil
}

// Snapshot returns the visible screen: exactly Rows lines, each with
// trailing blanks removed.
func (s *Session) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cols, rows := s.term.Size()
	lines := make([]string, rows)
	line := make([]rune, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			ch := s.term.Cell(x, y).Char
			if ch == 0 {
				ch = ' '
			}
			line[x] = ch
		}
		lines[y] = strings.TrimRight(string(line), " ")
	}
	return lines
}

// String returns the snapshot joined with newlines.
func (s *Session) String() string {
	return strings.Join(s.Snapshot(), "\n")
}

// Size returns the current screen size.
func (s *Session) Size() (rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.cols
}

// Resize changes both the emulator and the pty window. Resizing to the
// current size does nothing.
func (s *Session) Resize(rows, cols int) error {
	if !validSize(rows, cols) {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, rows, cols)
	}
	if s.isClosed() {
		return ErrClosed
	}

	s.mu.Lock()
	if rows == s.rows && cols == s.cols {
		s.mu.Unlock()
		return nil
	}
	s.term.Resize(cols, rows)
	s.rows, s.cols = rows, cols
	s.mu.Unlock()

	if err := pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("resizing session %s: %w", s.id, err)
	}
	return nil
}

// Close releases the pty. The child is not killed; it sees a hangup on its
// terminal. Close is idempotent.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.ptmx.Close()
		slog.Debug("session closed", "id", s.id)
	})
	return err
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Done is closed once the reader has stopped and the child has been reaped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Running reports whether the child has not yet been reaped.
func (s *Session) Running() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the child's exit status once it has been reaped. The
// code is -1 when the child was killed by a signal.
func (s *Session) ExitCode() (int, bool) {
	if s.Running() {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, true
}
