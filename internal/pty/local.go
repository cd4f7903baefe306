// Package pty provides PTY (pseudo-terminal) management for local shell sessions.
package pty

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// Options configures PTY allocation.
type Options struct {
	Shell      string        // Shell to use (defaults to user's shell or /bin/bash)
	Term       string        // Terminal type (default: dumb, prevents ANSI escapes)
	Rows       uint16        // Terminal rows (default: 24)
	Cols       uint16        // Terminal columns (default: 120)
	Dir        string        // Initial working directory
	Login      bool          // Start a login shell
	SourceRC   bool          // Source shell rc files (default: suppressed)
	CloseGrace time.Duration // Graceful-exit wait before killing the process group
	Env        []string      // Extra environment variables, appended last
}

// DefaultOptions returns default PTY options.
func DefaultOptions() Options {
	return Options{
		Shell:      DetectShell(),
		Term:       "dumb",
		Rows:       24,
		Cols:       120,
		CloseGrace: 500 * time.Millisecond,
	}
}

// LocalPTY owns the primary descriptor and child process handle of one
// shell for the session's lifetime.
type LocalPTY struct {
	cmd   *exec.Cmd
	ptmx  *os.File // nonblocking dup of the master; all IO goes through it
	raw   *os.File // master as returned by the pty start; held until Close
	shell string
	pgid  int
	grace time.Duration

	mu     sync.Mutex
	closed bool

	// waitDone is closed after the child is reaped; waitErr holds the
	// cmd.Wait result.
	waitDone chan struct{}
	waitErr  error
}

// NewLocalPTY allocates a pseudo-terminal pair and spawns the shell attached
// to its secondary end, in a new session (and therefore its own process
// group) so the shell and any descendants can be signaled as a unit.
func NewLocalPTY(opts Options) (*LocalPTY, error) {
	if opts.Shell == "" {
		opts.Shell = DetectShell()
	}
	if opts.Term == "" {
		opts.Term = "dumb"
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	if opts.Cols == 0 {
		opts.Cols = 120
	}
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = 500 * time.Millisecond
	}

	cmd := exec.Command(opts.Shell, StartupArgs(opts.Shell, opts.Login, opts.SourceRC)...)
	cmd.Dir = opts.Dir
	cmd.Env = append(SessionEnv(opts.Shell, opts.Term), opts.Env...)

	// pty.StartWithSize runs the child with Setsid+Setctty: the shell
	// becomes the leader of a new session and process group, and the pty
	// secondary is closed in this process once the child holds it.
	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: opts.Rows,
		Cols: opts.Cols,
	})
	if err != nil {
		return nil, fmt.Errorf("start shell %s: %w", opts.Shell, err)
	}

	// The start path's resize ioctl goes through Fd(), which parks the
	// master in blocking mode; deadlines set on it afterwards return nil
	// but never fire, and every Read becomes an uninterruptible syscall.
	// All IO therefore goes through a nonblocking dup registered with the
	// runtime poller, where SetReadDeadline actually works.
	ptmx, err := nonblockingCopy(master)
	if err != nil {
		_ = master.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	p := &LocalPTY{
		cmd:      cmd,
		ptmx:     ptmx,
		raw:      master,
		shell:    opts.Shell,
		pgid:     cmd.Process.Pid,
		grace:    opts.CloseGrace,
		waitDone: make(chan struct{}),
	}

	// Reap the child as soon as it exits so Close never races a zombie.
	go func() {
		p.waitErr = cmd.Wait()
		close(p.waitDone)
	}()

	return p, nil
}

// Shell returns the shell path being used.
func (p *LocalPTY) Shell() string {
	return p.shell
}

// Pid returns the shell's process id.
func (p *LocalPTY) Pid() int {
	return p.cmd.Process.Pid
}

// Read reads from the PTY output.
func (p *LocalPTY) Read(b []byte) (int, error) {
	return p.ptmx.Read(b)
}

// Write writes to the PTY input.
func (p *LocalPTY) Write(b []byte) (int, error) {
	return p.ptmx.Write(b)
}

// WriteString writes a string to the PTY input.
func (p *LocalPTY) WriteString(s string) (int, error) {
	return p.ptmx.WriteString(s)
}

// nonblockingCopy duplicates a descriptor, flips it to nonblocking mode,
// and wraps it in a pollable os.File for which read deadlines work. The
// dup keeps the original's lifetime independent: no finalizer on either
// file can close a descriptor the other still uses.
func nonblockingCopy(f *os.File) (*os.File, error) {
	fd, err := syscall.Dup(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("dup pty descriptor: %w", err)
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		_ = syscall.Close(fd)
		return nil, fmt.Errorf("set pty nonblocking: %w", err)
	}
	return os.NewFile(uintptr(fd), "ptmx"), nil
}

// SetReadDeadline sets a deadline for read operations on the primary
// descriptor. The read loop uses short deadlines for non-blocking polls.
func (p *LocalPTY) SetReadDeadline(t time.Time) error {
	return p.ptmx.SetReadDeadline(t)
}

// Interrupt sends SIGINT to the shell's process group.
func (p *LocalPTY) Interrupt() error {
	return syscall.Kill(-p.pgid, syscall.SIGINT)
}

// Exited reports whether the shell process has exited.
func (p *LocalPTY) Exited() bool {
	select {
	case <-p.waitDone:
		return true
	default:
		return false
	}
}

// WaitDone returns a channel closed once the shell process has been reaped.
func (p *LocalPTY) WaitDone() <-chan struct{} {
	return p.waitDone
}

// Resize resizes the PTY window. The ioctl goes through the raw master so
// the pollable descriptor never has Fd() called on it, which would drop it
// back into blocking mode.
func (p *LocalPTY) Resize(rows, cols uint16) error {
	return pty.Setsize(p.raw, &pty.Winsize{
		Rows: rows,
		Cols: cols,
	})
}

// Close shuts the session down: a graceful exit command, a bounded wait for
// the shell to be reaped, then SIGKILL to the whole process group, and
// finally the primary descriptor is closed exactly once. Idempotent and
// never blocks indefinitely.
func (p *LocalPTY) Close() error {
	return p.CloseGrace(p.grace)
}

// CloseGrace is Close with an explicit graceful-wait cap.
func (p *LocalPTY) CloseGrace(grace time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if !p.Exited() {
		// Best effort; the shell may already be gone or wedged.
		_, _ = p.ptmx.WriteString("exit\n")

		select {
		case <-p.waitDone:
		case <-time.After(grace):
			_ = syscall.Kill(-p.pgid, syscall.SIGKILL)
			// The reaper goroutine collects the child; cap the wait so a
			// kernel-stuck process can't hang Close.
			select {
			case <-p.waitDone:
			case <-time.After(time.Second):
			}
		}
	}

	err := p.ptmx.Close()
	if rawErr := p.raw.Close(); err == nil {
		err = rawErr
	}
	if err != nil {
		return fmt.Errorf("close pty: %w", err)
	}
	return nil
}

// File returns the underlying primary descriptor file.
func (p *LocalPTY) File() *os.File {
	return p.ptmx
}
