package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/volanti/shellmux/internal/config"
)

// Manager tracks the live sessions of one server process. Cross-session
// parallelism is safe: each session owns its own descriptor and buffer, the
// manager only guards its map.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	config   *config.Config
	store    *Store

	// open is the session factory; replaced in tests.
	open func(workingDir string, cfg *config.Config, opts ...Option) (*Session, error)
}

// NewManager creates a new session manager.
func NewManager(cfg *config.Config, store *Store) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		config:   cfg,
		store:    store,
		open:     Open,
	}
}

// UpdateConfig swaps the configuration used for sessions opened from now on.
// Live sessions keep the settings they were opened with.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
}

// Create opens a new session rooted at workingDir. An empty workingDir
// falls back to the configured default, then the process cwd.
func (m *Manager) Create(workingDir string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.config.Session.MaxSessions {
		return nil, fmt.Errorf("max sessions reached (%d)", m.config.Session.MaxSessions)
	}

	if workingDir == "" {
		workingDir = m.config.Session.WorkingDir
	}

	sess, err := m.open(workingDir, m.config)
	if err != nil {
		return nil, err
	}

	m.sessions[sess.ID] = sess
	if m.store != nil {
		m.store.Save(sess)
	}

	return sess, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Execute runs a command on the named session and keeps the persisted
// metadata in step with the tracked working directory.
func (m *Manager) Execute(id, command string, timeout time.Duration) (*Result, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	res, err := sess.Execute(command, timeout)
	if err != nil {
		return nil, err
	}

	if m.store != nil {
		m.store.Save(sess)
	}

	return res, nil
}

// Close closes and removes a session. Unknown IDs are an error; closing a
// known session never is.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	delete(m.sessions, id)
	if m.store != nil {
		m.store.Delete(id)
	}

	if err := sess.Close(); err != nil {
		slog.Warn("session close",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// CloseAll tears down every live session; used on server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, sess := range m.sessions {
		if err := sess.Close(); err != nil {
			slog.Warn("session close",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
		delete(m.sessions, id)
		if m.store != nil {
			m.store.Delete(id)
		}
	}
}

// List returns all active session IDs.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
