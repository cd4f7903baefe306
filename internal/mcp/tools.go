package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(sessionCreateTool(), s.handleSessionCreate)
	s.mcpServer.AddTool(execTool(), s.handleExec)
	s.mcpServer.AddTool(sessionStatusTool(), s.handleSessionStatus)
	s.mcpServer.AddTool(sessionListTool(), s.handleSessionList)
	s.mcpServer.AddTool(sessionCloseTool(), s.handleSessionClose)
	s.mcpServer.AddTool(changeDirectoryTool(), s.handleChangeDirectory)
	s.mcpServer.AddTool(listDirectoryTool(), s.handleListDirectory)
	s.mcpServer.AddTool(readFileTool(), s.handleReadFile)
	s.mcpServer.AddTool(writeFileTool(), s.handleWriteFile)
}

// Tool definitions

func sessionCreateTool() mcp.Tool {
	return mcp.NewTool("shell_session_create",
		mcp.WithDescription("Open a persistent interactive shell session"),
		mcp.WithString("working_dir",
			mcp.Description("Initial working directory (default: server working directory)"),
		),
	)
}

func execTool() mcp.Tool {
	return mcp.NewTool("shell_exec",
		mcp.WithDescription("Execute a command in a shell session and return its output and exit status"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID returned by shell_session_create"),
		),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("The shell command to execute"),
		),
		mcp.WithNumber("timeout_seconds",
			mcp.Description("Command timeout in seconds (default: 30)"),
		),
	)
}

func sessionStatusTool() mcp.Tool {
	return mcp.NewTool("shell_session_status",
		mcp.WithDescription("Check session state, working directory, and uptime"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID"),
		),
	)
}

func sessionListTool() mcp.Tool {
	return mcp.NewTool("shell_session_list",
		mcp.WithDescription("List live session IDs and persisted session metadata"),
	)
}

func sessionCloseTool() mcp.Tool {
	return mcp.NewTool("shell_session_close",
		mcp.WithDescription("Close and clean up a shell session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID"),
		),
	)
}

func changeDirectoryTool() mcp.Tool {
	return mcp.NewTool("change_directory",
		mcp.WithDescription("Change a session's working directory"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID"),
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("The directory path to change to"),
		),
	)
}

func listDirectoryTool() mcp.Tool {
	return mcp.NewTool("list_directory",
		mcp.WithDescription("List contents of a directory"),
		mcp.WithString("path",
			mcp.Description("Directory path to list (default: session working directory)"),
		),
		mcp.WithString("pattern",
			mcp.Description("Optional glob pattern filter, e.g. '*.go' or '**/*.yaml'"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session whose working directory resolves relative paths"),
		),
	)
}

func readFileTool() mcp.Tool {
	return mcp.NewTool("read_file",
		mcp.WithDescription("Read the contents of a file"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the file to read"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session whose working directory resolves relative paths"),
		),
	)
}

func writeFileTool() mcp.Tool {
	return mcp.NewTool("write_file",
		mcp.WithDescription("Write content to a file"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the file to write"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Content to write to the file"),
		),
		mcp.WithBoolean("append",
			mcp.Description("Append to the file instead of overwriting (default: false)"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session whose working directory resolves relative paths"),
		),
	)
}

// Tool handlers

func (s *Server) handleSessionCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workingDir := mcp.ParseString(req, "working_dir", "")

	slog.Info("creating shell session",
		slog.String("working_dir", workingDir),
	)

	sess, err := s.manager.Create(workingDir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"session_id": sess.ID,
		"status":     "ready",
		"shell":      sess.Status().Shell,
		"cwd":        sess.Cwd(),
	})
}

func (s *Server) handleExec(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	command := mcp.ParseString(req, "command", "")
	timeoutSec := mcp.ParseInt(req, "timeout_seconds", 0)

	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	if command == "" {
		return mcp.NewToolResultError("command is required"), nil
	}

	slog.Info("executing command",
		slog.String("session_id", sessionID),
		slog.String("command", command),
	)

	result, err := s.manager.Execute(sessionID, command, time.Duration(timeoutSec)*time.Second)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(result)
}

func (s *Server) handleSessionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	sess, err := s.manager.Get(sessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(sess.Status())
}

func (s *Server) handleSessionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"live":      s.manager.List(),
		"persisted": s.store.List(),
	})
}

func (s *Server) handleSessionClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	slog.Info("closing session",
		slog.String("session_id", sessionID),
	)

	if err := s.manager.Close(sessionID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Session closed"), nil
}

func (s *Server) handleChangeDirectory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	path := mcp.ParseString(req, "path", "")

	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}

	result, err := s.manager.Execute(sessionID, "cd "+shellQuote(path), 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if result.ExitCode != nil && *result.ExitCode != 0 {
		return mcp.NewToolResultError(fmt.Sprintf("change directory failed: %s", result.Text)), nil
	}

	return jsonResult(map[string]any{
		"cwd":    result.Cwd,
		"status": result.Status,
	})
}

// shellQuote wraps a string in single quotes for safe interpolation into a
// shell command line. Double quotes are not enough: $, backticks, and
// backslashes still expand inside them. Embedded single quotes become
// '\'' (close, literal quote, reopen).
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// jsonResult converts a value to a JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
