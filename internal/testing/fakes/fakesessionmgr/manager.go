// Package fakesessionmgr provides a fake session manager for testing MCP
// handlers.
package fakesessionmgr

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/volanti/shellmux/internal/config"
	"github.com/volanti/shellmux/internal/session"
	"github.com/volanti/shellmux/internal/testing/fakes/fakepty"
)

// Manager is a fake session manager holding pre-configured sessions. Created
// sessions run on fake PTYs that answer every framed command with empty
// output and exit 0, so handlers can drive them without a real shell.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	nextID   int

	// Hooks for customizing behavior.
	CreateErr  error
	ExecuteErr error
}

// New creates a new fake Manager.
func New() *Manager {
	return &Manager{
		sessions: make(map[string]*session.Session),
	}
}

// AddSession adds a pre-configured session.
func (m *Manager) AddSession(sess *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
}

// NewScriptedSession builds a session on a fake PTY that replies to every
// framed command with the given output and exit code.
func NewScriptedSession(id, cwd, output string, exitCode int) *session.Session {
	pty := fakepty.New()
	pty.SetScript(func(input string) string {
		start := strings.LastIndex(input, "echo '")
		if start < 0 {
			return ""
		}
		rest := input[start+len("echo '"):]
		end := strings.IndexByte(rest, '\'')
		if end < 0 {
			return ""
		}
		return output + rest[:end] + strconv.Itoa(exitCode) + "\n"
	})

	cfg := config.DefaultConfig()
	cfg.Shell.Path = "/bin/bash"
	cfg.Session.WorkingDir = cwd
	return session.NewSession(id, pty, cfg)
}

// Create opens a scripted session, or fails with CreateErr when set.
func (m *Manager) Create(workingDir string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	m.nextID++
	sess := NewScriptedSession(fmt.Sprintf("sess-%d", m.nextID), workingDir, "", 0)
	m.sessions[sess.ID] = sess
	return sess, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	return sess, nil
}

// Execute delegates to the named session, or fails with ExecuteErr when set.
func (m *Manager) Execute(id, command string, timeout time.Duration) (*session.Result, error) {
	if m.ExecuteErr != nil {
		return nil, m.ExecuteErr
	}

	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Execute(command, timeout)
}

// Close removes and closes a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	return sess.Close()
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, sess := range m.sessions {
		_ = sess.Close()
		delete(m.sessions, id)
	}
}

// List returns the IDs of all sessions.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// UpdateConfig is a no-op on the fake.
func (m *Manager) UpdateConfig(cfg *config.Config) {}
