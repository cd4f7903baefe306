// Package session provides persistent interactive shell sessions with
// marker-framed command execution over a pseudo-terminal.
package session

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/volanti/shellmux/internal/adapters/realclock"
	"github.com/volanti/shellmux/internal/config"
	"github.com/volanti/shellmux/internal/ports"
	localpty "github.com/volanti/shellmux/internal/pty"
)

// State represents the session state.
type State string

const (
	StateReady  State = "ready"
	StateBusy   State = "busy"
	StateClosed State = "closed"
)

const (
	// pollInterval bounds each read wait in the multiplexer loop.
	pollInterval = 100 * time.Millisecond

	// graceDrain is the post-marker window for late-arriving interleaved
	// output from background or pipelined writers.
	graceDrain = 50 * time.Millisecond

	// cwdQueryTimeout bounds the follow-up pwd issued after a directory
	// change.
	cwdQueryTimeout = 2 * time.Second
)

// Session owns one shell attached to a pseudo-terminal. At most one command
// is in flight per session; invocations are serialized by the execute mutex.
// The tracked working directory is a session field, never process-global.
type Session struct {
	ID        string
	CreatedAt time.Time

	// mu serializes command execution and teardown.
	mu    sync.Mutex
	pty   PTY
	shell string
	clock ports.Clock

	// stateMu guards the observable snapshot so Status and Cwd can
	// answer while a command is in flight.
	stateMu  sync.Mutex
	state    State
	cwd      string
	lastUsed time.Time

	defaultTimeout time.Duration

	// buf accumulates raw bytes for the invocation in flight; owned
	// exclusively by the read loop for the duration of one call.
	buf bytes.Buffer
}

// Option configures a Session at open time.
type Option func(*Session)

// WithClock overrides the time source used for timeout arithmetic.
func WithClock(c ports.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// NewSession assembles a Ready session around an existing PTY. Open is the
// production path; NewSession exists for composing a session onto a PTY
// that is already attached to a shell.
func NewSession(id string, p PTY, cfg *config.Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Session{
		ID:             id,
		CreatedAt:      time.Now(),
		lastUsed:       time.Now(),
		pty:            p,
		shell:          cfg.Shell.Path,
		clock:          realclock.New(),
		state:          StateReady,
		cwd:            cfg.Session.WorkingDir,
		defaultTimeout: cfg.Session.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open allocates a PTY, spawns the shell in workingDir, and runs the
// one-time initializer. A spawn failure surfaces as *SpawnError with no
// session created. The returned session is Ready.
func Open(workingDir string, cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	ptyOpts := localpty.DefaultOptions()
	ptyOpts.Dir = workingDir
	ptyOpts.Term = cfg.Shell.Term
	ptyOpts.Login = cfg.Shell.Login
	ptyOpts.SourceRC = cfg.Shell.SourceRC
	ptyOpts.CloseGrace = cfg.Session.GraceClose
	if cfg.Shell.Path != "" {
		ptyOpts.Shell = cfg.Shell.Path
	}

	p, err := localpty.NewLocalPTY(ptyOpts)
	if err != nil {
		return nil, &SpawnError{Err: err}
	}

	s := NewSession(uuid.NewString(), p, cfg, opts...)
	s.shell = p.Shell()
	s.cwd = workingDir

	if s.cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			s.cwd = wd
		}
	}

	s.initialize()

	return s, nil
}

// initialize disables local echo and history expansion, sets a short
// deterministic prompt, and drains startup output so banners don't leak
// into the first command's result. Failure here is non-fatal: a missing
// echo-disable only degrades output cleanliness, framing does not depend
// on the prompt.
func (s *Session) initialize() {
	s.clock.Sleep(200 * time.Millisecond)
	s.drain(300 * time.Millisecond)

	if _, err := s.pty.WriteString(initCommand(s.shell)); err != nil {
		slog.Warn("shell init write failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.clock.Sleep(100 * time.Millisecond)
	s.drain(300 * time.Millisecond)
}

// initCommand returns the one-time setup line for the session's shell:
// echo off, history expansion off, short unambiguous prompt.
func initCommand(shell string) string {
	name := shell
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	switch name {
	case "zsh":
		return "stty -echo 2>/dev/null; unsetopt BANG_HIST 2>/dev/null; PROMPT='$ '; PROMPT2='> '; RPROMPT=''; unset precmd_functions preexec_functions\n"
	case "fish":
		return "stty -echo 2>/dev/null; function fish_prompt; echo -n '$ '; end\n"
	default:
		return "stty -echo 2>/dev/null; set +H 2>/dev/null; PS1='$ '; PS2='> '; PROMPT_COMMAND=''\n"
	}
}

// Execute runs one command and recovers its output and exit status.
// Completion is detected solely by the framing marker; the loop's exit
// conditions are marker found, overall timeout elapsed, and child exited.
// A timeout leaves the session usable; a dead child does not.
func (s *Session) Execute(command string, timeout time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentState() == StateClosed {
		return nil, ErrSessionClosed
	}
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	s.setState(StateBusy)
	defer func() {
		if s.currentState() == StateBusy {
			s.setState(StateReady)
		}
	}()

	s.stateMu.Lock()
	s.lastUsed = s.clock.Now()
	s.stateMu.Unlock()
	s.buf.Reset()
	s.flushResidual()

	framed, marker := frameCommand(command)
	if _, err := s.pty.WriteString(framed + "\n"); err != nil {
		return s.terminatedResult(command), nil
	}

	res := s.readUntilMarker(command, marker, timeout)

	if res.Status == StatusOK && isChdirCommand(command) {
		s.refreshCwd()
	}
	res.Cwd = s.Cwd()

	return res, nil
}

// setState replaces the observable state.
func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// currentState reads the observable state.
func (s *Session) currentState() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// readUntilMarker is the multiplexer loop: bounded non-blocking reads
// accumulate into the buffer until the marker appears, the timeout elapses,
// or the shell process goes away.
func (s *Session) readUntilMarker(command, marker string, timeout time.Duration) *Result {
	deadline := s.clock.Now().Add(timeout)
	buf := make([]byte, 4096)

	for {
		if before, exitCode, found := extractCompletion(s.buf.String(), marker); found {
			s.drain(graceDrain)
			return s.okResult(command, before, exitCode)
		}

		if !s.clock.Now().Before(deadline) {
			return s.timeoutResult(command, timeout)
		}

		if s.pty.Exited() {
			return s.terminatedResult(command)
		}

		s.pty.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := s.pty.Read(buf)
		if n > 0 {
			s.buf.Write(buf[:n])
			continue
		}
		if err != nil && !isTimeoutError(err) {
			// EOF or EIO: the child side of the pty is gone.
			return s.terminatedResult(command)
		}

		// No data this poll. The yield also covers descriptors whose
		// deadline errors return instantly; without it the loop would
		// spin hot until the overall timeout.
		s.clock.Sleep(10 * time.Millisecond)
	}
}

// okResult builds the result for a completed command. The exit-code suffix
// is appended only when a code was parsed and is non-zero: "no code parsed"
// and "code parsed as zero" are distinct outcomes.
func (s *Session) okResult(command, before string, exitCode *int) *Result {
	text := cleanOutput(before, command)
	if exitCode != nil && *exitCode != 0 {
		if text == "" {
			text = fmt.Sprintf("[Exit code: %d]", *exitCode)
		} else {
			text += fmt.Sprintf("\n[Exit code: %d]", *exitCode)
		}
	}

	return &Result{
		Status:   StatusOK,
		Text:     text,
		ExitCode: exitCode,
	}
}

// timeoutResult returns the partial output accumulated before the budget
// ran out. Exit code stays absent: the only way the marker is missing is
// exhausting the time budget.
func (s *Session) timeoutResult(command string, timeout time.Duration) *Result {
	text := cleanOutput(normalizeNewlines(s.buf.String()), command)
	if text == "" {
		text = fmt.Sprintf("command timed out after %s with no output", timeout)
	}
	return &Result{
		Status:   StatusTimedOut,
		Text:     text,
		TimedOut: true,
	}
}

// terminatedResult reports a shell that died mid-command. The session is
// unusable afterwards and the caller should reopen.
func (s *Session) terminatedResult(command string) *Result {
	s.setState(StateClosed)
	text := cleanOutput(normalizeNewlines(s.buf.String()), command)
	if text == "" {
		text = "process terminated"
	} else {
		text += "\nprocess terminated"
	}
	return &Result{
		Status: StatusProcessTerminated,
		Text:   text,
	}
}

// drain discards whatever the shell emits within the budget. Used for
// startup banners and the post-marker grace window; bounded, never blocks
// past the budget.
func (s *Session) drain(budget time.Duration) {
	deadline := s.clock.Now().Add(budget)
	buf := make([]byte, 8192)

	for s.clock.Now().Before(deadline) {
		s.pty.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		n, err := s.pty.Read(buf)
		if n > 0 {
			continue
		}
		if err == nil || !isTimeoutError(err) {
			return
		}
		// Deadline passed with no data; keep polling out the budget.
	}
}

// flushResidual discards bytes a previously abandoned command left on the
// descriptor. A short non-blocking pass: returns as soon as nothing is
// instantly readable.
func (s *Session) flushResidual() {
	buf := make([]byte, 8192)
	for i := 0; i < 20; i++ {
		s.pty.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
		n, err := s.pty.Read(buf)
		if n == 0 || err != nil {
			return
		}
	}
}

// refreshCwd re-queries the shell's working directory through the same
// framing mechanism and updates the tracker on a well-formed absolute path.
// The shell remains the source of truth; this state is advisory.
func (s *Session) refreshCwd() {
	s.buf.Reset()

	framed, marker := frameCommand("pwd")
	if _, err := s.pty.WriteString(framed + "\n"); err != nil {
		return
	}

	res := s.readUntilMarker("pwd", marker, cwdQueryTimeout)
	if res.Status != StatusOK {
		return
	}

	for _, line := range strings.Split(res.Text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "/") {
			s.stateMu.Lock()
			s.cwd = line
			s.stateMu.Unlock()
			return
		}
	}
}

// isChdirCommand reports whether the command text begins with a
// directory-change verb.
func isChdirCommand(command string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "cd", "pushd", "popd":
		return true
	}
	return false
}

// cleanOutput strips the echoed command line, prompt lines, marker echoes,
// and surrounding blank lines from raw command output. Terminals echo input
// back unless echo was successfully disabled, so the strip stays defensive.
func cleanOutput(output, command string) string {
	output = normalizeNewlines(output)

	firstCommandLine := command
	if idx := strings.IndexByte(firstCommandLine, '\n'); idx >= 0 {
		firstCommandLine = firstCommandLine[:idx]
	}

	lines := strings.Split(output, "\n")
	cleaned := make([]string, 0, len(lines))
	seenEcho := false

	for _, line := range lines {
		// A prompt fragment can share a line with real output: after a
		// timed-out command's straggler marker, the shell prints "$ "
		// without a newline and the next command's output lands on the
		// same line. Strip the prompt prefix, keep the remainder.
		hadPrompt := false
		for strings.HasPrefix(line, "$ ") {
			line = line[2:]
			hadPrompt = true
		}
		if line == "$" || (hadPrompt && strings.TrimSpace(line) == "") {
			continue
		}
		// Any line carrying the marker literal is framing noise: either
		// the echoed framed command or a marker from an abandoned call.
		if strings.Contains(line, markerPrefix) {
			continue
		}
		if !seenEcho && firstCommandLine != "" && strings.Contains(line, firstCommandLine) {
			seenEcho = true
			continue
		}
		cleaned = append(cleaned, line)
	}

	for len(cleaned) > 0 && strings.TrimSpace(cleaned[0]) == "" {
		cleaned = cleaned[1:]
	}
	for len(cleaned) > 0 && strings.TrimSpace(cleaned[len(cleaned)-1]) == "" {
		cleaned = cleaned[:len(cleaned)-1]
	}

	return strings.Join(cleaned, "\n")
}

// isTimeoutError reports whether a read failed only because its deadline
// passed.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if os.IsTimeout(err) {
		return true
	}
	return strings.Contains(err.Error(), "i/o timeout") ||
		strings.Contains(err.Error(), "timeout")
}

// Cwd returns the tracked working directory. Answers during an in-flight
// command.
func (s *Session) Cwd() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.cwd
}

// Status describes a session for callers.
type SessionStatus struct {
	ID            string `json:"session_id"`
	State         State  `json:"state"`
	Shell         string `json:"shell"`
	Cwd           string `json:"cwd"`
	UptimeSeconds int    `json:"uptime_seconds"`
	IdleSeconds   int    `json:"idle_seconds"`
}

// Status returns the current session status. It reads only the observable
// snapshot, so a session reports Busy while a command is in flight instead
// of blocking behind the execute mutex.
func (s *Session) Status() SessionStatus {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	return SessionStatus{
		ID:            s.ID,
		State:         s.state,
		Shell:         s.shell,
		Cwd:           s.cwd,
		UptimeSeconds: int(time.Since(s.CreatedAt).Seconds()),
		IdleSeconds:   int(time.Since(s.lastUsed).Seconds()),
	}
}

// Close shuts the session down. Safe to call at any time, including after a
// failed open or on a session whose child already exited; never blocks past
// the PTY's bounded teardown. No transition back from Closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentState() == StateClosed && s.pty == nil {
		return nil
	}
	s.setState(StateClosed)

	if s.pty == nil {
		return nil
	}
	p := s.pty
	s.pty = nil
	return p.Close()
}

// ResolvePath resolves a relative path against the session's tracked
// working directory so auxiliary file operations land where the shell is.
func (s *Session) ResolvePath(path string) string {
	cwd := s.Cwd()

	if path == "" {
		return cwd
	}
	if path[0] == '/' || path[0] == '~' {
		return path
	}
	if cwd == "" {
		return path
	}
	return cwd + "/" + path
}
