package session

import (
	"testing"
	"time"

	"github.com/volanti/shellmux/internal/testing/fakes/fakefs"
	"github.com/volanti/shellmux/internal/testing/fakes/fakepty"
)

const testStorePath = "/home/test/.cache/shellmux/sessions.json"

func newStoreSession(id, cwd string) *Session {
	sess := newTestSession(fakepty.New())
	sess.ID = id
	sess.cwd = cwd
	return sess
}

func TestStore_SaveAndGet(t *testing.T) {
	fs := fakefs.New()
	store := NewStore(WithFileSystem(fs), WithStorePath(testStorePath))

	sess := newStoreSession("sess-1", "/tmp/work")
	store.Save(sess)

	meta, ok := store.Get("sess-1")
	if !ok {
		t.Fatal("saved session not found")
	}
	if meta.Cwd != "/tmp/work" {
		t.Errorf("Cwd = %q, want /tmp/work", meta.Cwd)
	}
	if meta.Shell != "/bin/bash" {
		t.Errorf("Shell = %q, want /bin/bash", meta.Shell)
	}
}

func TestStore_GetUnknown(t *testing.T) {
	store := NewStore(WithFileSystem(fakefs.New()), WithStorePath(testStorePath))

	if _, ok := store.Get("no-such-id"); ok {
		t.Error("Get returned metadata for unknown id")
	}
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(WithFileSystem(fakefs.New()), WithStorePath(testStorePath))

	store.Save(newStoreSession("sess-1", "/tmp"))
	store.Delete("sess-1")

	if _, ok := store.Get("sess-1"); ok {
		t.Error("deleted session still present")
	}
}

func TestStore_List(t *testing.T) {
	store := NewStore(WithFileSystem(fakefs.New()), WithStorePath(testStorePath))

	store.Save(newStoreSession("sess-1", "/a"))
	store.Save(newStoreSession("sess-2", "/b"))

	if got := len(store.List()); got != 2 {
		t.Errorf("List length = %d, want 2", got)
	}
}

func TestStore_PersistsAcrossRestarts(t *testing.T) {
	fs := fakefs.New()

	store := NewStore(WithFileSystem(fs), WithStorePath(testStorePath))
	store.Save(newStoreSession("sess-1", "/tmp/project"))

	// A second store on the same filesystem sees the persisted entry.
	reopened := NewStore(WithFileSystem(fs), WithStorePath(testStorePath))
	meta, ok := reopened.Get("sess-1")
	if !ok {
		t.Fatal("persisted session not loaded by a fresh store")
	}
	if meta.Cwd != "/tmp/project" {
		t.Errorf("Cwd = %q, want /tmp/project", meta.Cwd)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	fs := fakefs.New().SetFile(testStorePath, []byte("{not json"))

	store := NewStore(WithFileSystem(fs), WithStorePath(testStorePath))
	if got := len(store.List()); got != 0 {
		t.Errorf("List length = %d after corrupt load, want 0", got)
	}

	// The store stays usable.
	store.Save(newStoreSession("sess-1", "/tmp"))
	if _, ok := store.Get("sess-1"); !ok {
		t.Error("store unusable after recovering from corrupt file")
	}
}

func TestStore_UpdateOverwrites(t *testing.T) {
	store := NewStore(WithFileSystem(fakefs.New()), WithStorePath(testStorePath))

	sess := newStoreSession("sess-1", "/before")
	sess.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Save(sess)

	sess.cwd = "/after"
	store.Save(sess)

	meta, _ := store.Get("sess-1")
	if meta.Cwd != "/after" {
		t.Errorf("Cwd = %q, want /after", meta.Cwd)
	}
	if got := len(store.List()); got != 1 {
		t.Errorf("List length = %d, want 1", got)
	}
}
