package session

import (
	"io"
	"time"
)

// PTY is the session's view of a pseudo-terminal. The real implementation
// is pty.LocalPTY; tests use an in-memory fake.
type PTY interface {
	io.Reader
	io.Writer

	// WriteString writes a string to the PTY input.
	WriteString(s string) (int, error)

	// SetReadDeadline sets a deadline for read operations. The read loop
	// relies on short deadlines for bounded, non-blocking polls.
	SetReadDeadline(t time.Time) error

	// Exited reports whether the shell process has exited.
	Exited() bool

	// Close releases the PTY and terminates the shell. Idempotent.
	Close() error
}
