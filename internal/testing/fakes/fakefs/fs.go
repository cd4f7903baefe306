// Package fakefs provides an in-memory FileSystem for testing.
package fakefs

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// FS implements ports.FileSystem backed by an in-memory map.
type FS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
	env   map[string]string
	home  string

	// Forced errors, keyed by path.
	readErrs  map[string]error
	writeErrs map[string]error
}

// New creates an empty fake filesystem with home set to /home/test.
func New() *FS {
	return &FS{
		files:     make(map[string][]byte),
		dirs:      make(map[string]bool),
		env:       make(map[string]string),
		home:      "/home/test",
		readErrs:  make(map[string]error),
		writeErrs: make(map[string]error),
	}
}

// SetFile seeds a file.
func (f *FS) SetFile(name string, data []byte) *FS {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = data
	return f
}

// SetEnv seeds an environment variable.
func (f *FS) SetEnv(key, value string) *FS {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.env[key] = value
	return f
}

// SetReadError forces ReadFile(name) to fail.
func (f *FS) SetReadError(name string, err error) *FS {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErrs[name] = err
	return f
}

// SetWriteError forces WriteFile(name) to fail.
func (f *FS) SetWriteError(name string, err error) *FS {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErrs[name] = err
	return f
}

// ReadFile reads the named file.
func (f *FS) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.readErrs[name]; ok {
		return nil, err
	}
	data, ok := f.files[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// WriteFile writes data to the named file.
func (f *FS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.writeErrs[name]; ok {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.files[name] = cp
	return nil
}

// Stat returns file info for the named file or directory.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if data, ok := f.files[name]; ok {
		return fileInfo{name: path.Base(name), size: int64(len(data))}, nil
	}
	if f.dirs[name] {
		return fileInfo{name: path.Base(name), dir: true}, nil
	}
	return nil, fs.ErrNotExist
}

// ReadDir lists the direct children of the named directory.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := strings.TrimSuffix(name, "/") + "/"
	seen := make(map[string]fs.DirEntry)
	for p, data := range f.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			dir := rest[:idx]
			seen[dir] = dirEntry{fileInfo{name: dir, dir: true}}
		} else {
			seen[rest] = dirEntry{fileInfo{name: rest, size: int64(len(data))}}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)

	entries := make([]fs.DirEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, seen[n])
	}
	return entries, nil
}

// MkdirAll records a directory.
func (f *FS) MkdirAll(p string, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[p] = true
	return nil
}

// Remove removes the named file.
func (f *FS) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.files[name]; !ok {
		return fs.ErrNotExist
	}
	delete(f.files, name)
	return nil
}

// UserHomeDir returns the configured fake home.
func (f *FS) UserHomeDir() (string, error) {
	return f.home, nil
}

// Getenv retrieves a seeded environment variable.
func (f *FS) Getenv(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.env[key]
}

// fileInfo is a minimal fs.FileInfo.
type fileInfo struct {
	name string
	size int64
	dir  bool
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return 0644 }
func (fi fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) IsDir() bool        { return fi.dir }
func (fi fileInfo) Sys() any           { return nil }

// dirEntry is a minimal fs.DirEntry.
type dirEntry struct {
	fi fileInfo
}

func (d dirEntry) Name() string               { return d.fi.name }
func (d dirEntry) IsDir() bool                { return d.fi.dir }
func (d dirEntry) Type() fs.FileMode          { return d.fi.Mode().Type() }
func (d dirEntry) Info() (fs.FileInfo, error) { return d.fi, nil }
