//go:build linux || darwin

package session

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/volanti/shellmux/internal/config"
)

// openShellSession spawns a real /bin/sh attached to a pseudo-terminal.
// These tests exercise the full Open path, including descriptor modes and
// read deadlines, which the in-memory fakes cannot.
func openShellSession(t *testing.T) *Session {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	cfg := config.DefaultConfig()
	cfg.Shell.Path = "/bin/sh"
	cfg.Session.DefaultTimeout = 10 * time.Second

	sess, err := Open("/tmp", cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestShellSession_EchoRoundTrip(t *testing.T) {
	sess := openShellSession(t)

	res, err := sess.Execute("echo hello", 5*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("Status = %q, want %q (text: %q)", res.Status, StatusOK, res.Text)
	}
	if res.ExitCode == nil || *res.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", res.ExitCode)
	}
	if !strings.Contains(res.Text, "hello") {
		t.Errorf("Text = %q, want output containing hello", res.Text)
	}
}

func TestShellSession_NonZeroExit(t *testing.T) {
	sess := openShellSession(t)

	res, err := sess.Execute("false", 5*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode == nil || *res.ExitCode != 1 {
		t.Errorf("ExitCode = %v, want 1", res.ExitCode)
	}
	if !strings.Contains(res.Text, "[Exit code: 1]") {
		t.Errorf("Text = %q, want exit code suffix", res.Text)
	}
}

func TestShellSession_TimeoutFires(t *testing.T) {
	sess := openShellSession(t)

	start := time.Now()
	res, err := sess.Execute("sleep 3", time.Second)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusTimedOut {
		t.Fatalf("Status = %q, want %q", res.Status, StatusTimedOut)
	}
	// The budget must actually bound the call. A descriptor stuck in
	// blocking mode makes every read uninterruptible and the deadline
	// never fires.
	if elapsed > 2500*time.Millisecond {
		t.Errorf("Execute took %s, want roughly the 1s budget", elapsed)
	}
}

func TestShellSession_UsableAfterTimeout(t *testing.T) {
	sess := openShellSession(t)

	res, err := sess.Execute("sleep 3", time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusTimedOut {
		t.Fatalf("Status = %q, want %q", res.Status, StatusTimedOut)
	}

	// The abandoned sleep finishes, its straggler marker and a fresh
	// prompt land on the descriptor, and the next command must still
	// return its own output intact.
	time.Sleep(2500 * time.Millisecond)

	res, err = sess.Execute("echo after", 5*time.Second)
	if err != nil {
		t.Fatalf("Execute after timeout: %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("Status = %q, want %q (text: %q)", res.Status, StatusOK, res.Text)
	}
	if !strings.Contains(res.Text, "after") {
		t.Errorf("Text = %q, want output containing after", res.Text)
	}
}

func TestShellSession_DirectoryTracking(t *testing.T) {
	sess := openShellSession(t)
	dir := t.TempDir()

	res, err := sess.Execute("cd "+dir, 5*time.Second)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("Status = %q, want %q (text: %q)", res.Status, StatusOK, res.Text)
	}
	// TempDir may sit behind a symlink (macOS /var -> /private/var), so
	// match on the basename.
	if !strings.Contains(sess.Cwd(), "/") || !strings.HasSuffix(sess.Cwd(), dir[strings.LastIndex(dir, "/"):]) {
		t.Errorf("Cwd = %q, want tracked directory ending in %q", sess.Cwd(), dir)
	}
}

func TestShellSession_CloseIdempotent(t *testing.T) {
	sess := openShellSession(t)

	if err := sess.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
