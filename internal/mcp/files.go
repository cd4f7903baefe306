package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mark3labs/mcp-go/mcp"
)

// resolvePath resolves a possibly-relative path. With a session ID the
// session's tracked working directory is the base; otherwise relative paths
// resolve against the server process cwd.
func (s *Server) resolvePath(sessionID, path string) (string, error) {
	if sessionID == "" {
		if path == "" {
			return ".", nil
		}
		return path, nil
	}

	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return "", err
	}
	return sess.ResolvePath(path), nil
}

func (s *Server) handleListDirectory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := mcp.ParseString(req, "path", "")
	pattern := mcp.ParseString(req, "pattern", "")
	sessionID := mcp.ParseString(req, "session_id", "")

	dir, err := s.resolvePath(sessionID, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list directory %s: %v", dir, err)), nil
	}

	var lines []string
	for _, entry := range entries {
		name := entry.Name()
		if pattern != "" {
			matched, err := doublestar.Match(pattern, name)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid pattern %q: %v", pattern, err)), nil
			}
			if !matched {
				continue
			}
		}

		if entry.IsDir() {
			lines = append(lines, fmt.Sprintf("[DIR]  %s", name))
			continue
		}
		info, err := entry.Info()
		if err != nil {
			lines = append(lines, fmt.Sprintf("[FILE] %s", name))
			continue
		}
		lines = append(lines, fmt.Sprintf("[FILE] %s (%d bytes)", name, info.Size()))
	}

	if len(lines) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No entries in %s", dir)), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) handleReadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := mcp.ParseString(req, "path", "")
	sessionID := mcp.ParseString(req, "session_id", "")

	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}

	resolved, err := s.resolvePath(sessionID, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := s.fs.ReadFile(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", resolved, err)), nil
	}

	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleWriteFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := mcp.ParseString(req, "path", "")
	content := mcp.ParseString(req, "content", "")
	appendMode := mcp.ParseBoolean(req, "append", false)
	sessionID := mcp.ParseString(req, "session_id", "")

	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}

	resolved, err := s.resolvePath(sessionID, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if dir := filepath.Dir(resolved); dir != "." && dir != "/" {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("create parent dir %s: %v", dir, err)), nil
		}
	}

	data := []byte(content)
	if appendMode {
		if existing, err := s.fs.ReadFile(resolved); err == nil {
			data = append(existing, data...)
		}
	}

	if err := s.fs.WriteFile(resolved, data, 0644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("write %s: %v", resolved, err)), nil
	}

	slog.Info("wrote file",
		slog.String("path", resolved),
		slog.Int("bytes", len(data)),
		slog.Bool("append", appendMode),
	)

	return mcp.NewToolResultText(fmt.Sprintf("Wrote %d bytes to %s", len(data), resolved)), nil
}
