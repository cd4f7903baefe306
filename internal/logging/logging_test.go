package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// newCapture returns a sanitizing logger writing JSON records to buf.
func newCapture(sanitize bool) (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := NewSanitizingHandler(
		slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		sanitize,
	)
	return slog.New(handler), buf
}

func TestSanitize_RedactsSensitiveKeys(t *testing.T) {
	logger, buf := newCapture(true)

	logger.Info("login attempt",
		slog.String("user", "alice"),
		slog.String("password", "hunter2"),
		slog.String("api_key", "sk-12345"),
	)

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("output leaked password value: %s", out)
	}
	if strings.Contains(out, "sk-12345") {
		t.Errorf("output leaked api key value: %s", out)
	}
	if !strings.Contains(out, redacted) {
		t.Errorf("output missing redaction placeholder: %s", out)
	}
	if !strings.Contains(out, "alice") {
		t.Errorf("output dropped non-sensitive attribute: %s", out)
	}
}

func TestSanitize_KeyMatchIsSubstringAndCaseInsensitive(t *testing.T) {
	logger, buf := newCapture(true)

	logger.Info("env capture",
		slog.String("GITHUB_TOKEN", "ghp_abc"),
		slog.String("db_password_hash", "argon2..."),
	)

	out := buf.String()
	if strings.Contains(out, "ghp_abc") || strings.Contains(out, "argon2") {
		t.Errorf("output leaked sensitive values: %s", out)
	}
}

func TestSanitize_Disabled(t *testing.T) {
	logger, buf := newCapture(false)

	logger.Info("debugging", slog.String("password", "hunter2"))

	if !strings.Contains(buf.String(), "hunter2") {
		t.Errorf("sanitization applied while disabled: %s", buf.String())
	}
}

func TestSanitize_Groups(t *testing.T) {
	logger, buf := newCapture(true)

	logger.Info("request",
		slog.Group("auth_ctx",
			slog.String("user", "bob"),
		),
		slog.Group("details",
			slog.String("secret", "s3cr3t"),
		),
	)

	out := buf.String()
	if strings.Contains(out, "s3cr3t") {
		t.Errorf("output leaked grouped secret: %s", out)
	}
}

func TestSanitize_WithAttrs(t *testing.T) {
	logger, buf := newCapture(true)

	logger.With(slog.String("token", "tok-999")).Info("ready")

	if strings.Contains(buf.String(), "tok-999") {
		t.Errorf("output leaked token from WithAttrs: %s", buf.String())
	}
}

func TestOutputIsJSON(t *testing.T) {
	logger, buf := newCapture(true)

	logger.Info("hello", slog.Int("count", 3))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not valid JSON: %v: %s", err, buf.String())
	}
	if record["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", record["msg"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
