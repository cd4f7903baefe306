package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfigFile writes a config file in place and returns its path.
func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func newTestWatcher(t *testing.T, path string, apply func(*Config)) *Watcher {
	t.Helper()
	w, err := NewWatcher(path, apply, WithQuietWindow(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWatcher_InitialLoad(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "session:\n  max_sessions: 3\n")

	w := newTestWatcher(t, path, nil)
	if got := w.Config().Session.MaxSessions; got != 3 {
		t.Errorf("MaxSessions = %d, want 3 from the initial load", got)
	}
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "session:\n  max_sessions: 3\n")

	applied := make(chan *Config, 4)
	w := newTestWatcher(t, path, func(cfg *Config) { applied <- cfg })

	if err := os.WriteFile(path, []byte("session:\n  max_sessions: 5\n"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-applied:
		if cfg.Session.MaxSessions != 5 {
			t.Errorf("applied MaxSessions = %d, want 5", cfg.Session.MaxSessions)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("apply callback never fired after a file change")
	}

	if got := w.Config().Session.MaxSessions; got != 5 {
		t.Errorf("Config().Session.MaxSessions = %d, want 5 after reload", got)
	}
}

func TestWatcher_ReloadOnReplace(t *testing.T) {
	// Save-by-replace: write a sibling, rename it over the config file.
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "session:\n  max_sessions: 3\n")

	applied := make(chan *Config, 4)
	newTestWatcher(t, path, func(cfg *Config) { applied <- cfg })

	tmp := filepath.Join(dir, "config.yaml.tmp")
	if err := os.WriteFile(tmp, []byte("session:\n  max_sessions: 7\n"), 0644); err != nil {
		t.Fatalf("write replacement: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename replacement: %v", err)
	}

	select {
	case cfg := <-applied:
		if cfg.Session.MaxSessions != 7 {
			t.Errorf("applied MaxSessions = %d, want 7", cfg.Session.MaxSessions)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("apply callback never fired after a file replace")
	}
}

func TestWatcher_KeepsConfigOnInvalidFile(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "session:\n  max_sessions: 3\n")

	applied := make(chan *Config, 4)
	w := newTestWatcher(t, path, func(cfg *Config) { applied <- cfg })

	if err := os.WriteFile(path, []byte("session: [unclosed"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-applied:
		t.Errorf("apply fired for an invalid file (MaxSessions = %d)", cfg.Session.MaxSessions)
	case <-time.After(time.Second):
	}

	if got := w.Config().Session.MaxSessions; got != 3 {
		t.Errorf("Config().Session.MaxSessions = %d, want previous value 3", got)
	}
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "session:\n  max_sessions: 3\n")

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
