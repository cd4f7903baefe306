package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/volanti/shellmux/internal/adapters/realfs"
	"github.com/volanti/shellmux/internal/ports"
)

// Metadata is what survives a server restart: enough to report a session's
// last known working directory, not to resurrect the shell itself.
type Metadata struct {
	ID        string    `json:"id"`
	Cwd       string    `json:"cwd,omitempty"`
	Shell     string    `json:"shell,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists session metadata as JSON under the user cache dir.
type Store struct {
	path     string
	sessions map[string]Metadata
	mu       sync.RWMutex
	fs       ports.FileSystem
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFileSystem sets the filesystem used by the Store.
func WithFileSystem(fs ports.FileSystem) StoreOption {
	return func(s *Store) {
		s.fs = fs
	}
}

// WithStorePath sets a custom storage path (for testing).
func WithStorePath(path string) StoreOption {
	return func(s *Store) {
		s.path = path
	}
}

// NewStore creates a session store at the default path and loads any
// previously persisted entries.
func NewStore(opts ...StoreOption) *Store {
	store := &Store{
		sessions: make(map[string]Metadata),
		fs:       realfs.New(),
	}

	for _, opt := range opts {
		opt(store)
	}

	if store.path == "" {
		store.path = store.defaultPath()
	}

	store.load()

	return store
}

// defaultPath determines the default storage path using the configured filesystem.
func (s *Store) defaultPath() string {
	home, err := s.fs.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}

	cacheDir := filepath.Join(home, ".cache", "shellmux")
	if err := s.fs.MkdirAll(cacheDir, 0700); err != nil {
		slog.Warn("failed to create cache dir, using /tmp", slog.String("error", err.Error()))
		cacheDir = "/tmp"
	}

	return filepath.Join(cacheDir, "sessions.json")
}

// Save persists a session's metadata.
func (s *Store) Save(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = Metadata{
		ID:        sess.ID,
		Cwd:       sess.Cwd(),
		Shell:     sess.shell,
		CreatedAt: sess.CreatedAt,
	}
	s.persist()
}

// Get retrieves session metadata by ID.
func (s *Store) Get(id string) (Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.sessions[id]
	return meta, ok
}

// Delete removes session metadata.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	s.persist()
}

// List returns all persisted metadata.
func (s *Store) List() []Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Metadata, 0, len(s.sessions))
	for _, meta := range s.sessions {
		out = append(out, meta)
	}
	return out
}

// load reads sessions from disk.
func (s *Store) load() {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to load session store", slog.String("error", err.Error()))
		}
		return
	}

	if err := json.Unmarshal(data, &s.sessions); err != nil {
		slog.Warn("failed to parse session store", slog.String("error", err.Error()))
		s.sessions = make(map[string]Metadata)
	}
}

// persist writes sessions to disk.
func (s *Store) persist() {
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		slog.Warn("failed to marshal session store", slog.String("error", err.Error()))
		return
	}

	if err := s.fs.WriteFile(s.path, data, 0600); err != nil {
		slog.Warn("failed to write session store", slog.String("error", err.Error()))
	}
}
