package pty

import (
	"strings"
	"testing"
)

func hasEntry(env []string, entry string) bool {
	for _, kv := range env {
		if kv == entry {
			return true
		}
	}
	return false
}

func TestPromptEnv_Bash(t *testing.T) {
	env := PromptEnv("/bin/bash")

	if !hasEntry(env, "PS1=$ ") {
		t.Errorf("bash env %v missing PS1", env)
	}
	if !hasEntry(env, "PS2=> ") {
		t.Errorf("bash env %v missing PS2", env)
	}
	if !hasEntry(env, "PROMPT_COMMAND=") {
		t.Errorf("bash env %v missing PROMPT_COMMAND reset", env)
	}
	if !hasEntry(env, "NO_COLOR=1") {
		t.Errorf("bash env %v missing NO_COLOR", env)
	}
}

func TestPromptEnv_Zsh(t *testing.T) {
	env := PromptEnv("/usr/bin/zsh")

	if !hasEntry(env, "PROMPT=$ ") {
		t.Errorf("zsh env %v missing PROMPT", env)
	}
	if !hasEntry(env, "RPROMPT=") {
		t.Errorf("zsh env %v missing RPROMPT reset", env)
	}
}

func TestPromptEnv_Fish(t *testing.T) {
	env := PromptEnv("/usr/bin/fish")

	if !hasEntry(env, "fish_greeting=") {
		t.Errorf("fish env %v missing greeting reset", env)
	}
}

func TestPromptEnv_PlainName(t *testing.T) {
	// A bare shell name with no path resolves the same as a full path.
	withPath := PromptEnv("/usr/local/bin/zsh")
	plain := PromptEnv("zsh")

	if len(withPath) != len(plain) {
		t.Errorf("PromptEnv differs between path and plain name: %v vs %v", withPath, plain)
	}
}

func TestSessionEnv_TermOverride(t *testing.T) {
	env := SessionEnv("/bin/bash", "dumb")

	if !hasEntry(env, "TERM=dumb") {
		t.Errorf("env %v missing TERM override", env)
	}
}

func TestInheritedEnv_Allowlist(t *testing.T) {
	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv("SECRET_TOKEN", "do-not-leak")

	env := InheritedEnv()

	if !hasEntry(env, "PATH=/usr/bin:/bin") {
		t.Errorf("env %v missing PATH", env)
	}
	for _, kv := range env {
		if strings.HasPrefix(kv, "SECRET_TOKEN=") {
			t.Errorf("env leaked non-allowlisted variable: %s", kv)
		}
	}
}

func TestInheritedEnv_LocalePassthrough(t *testing.T) {
	t.Setenv("LC_ALL", "C.UTF-8")

	if !hasEntry(InheritedEnv(), "LC_ALL=C.UTF-8") {
		t.Error("LC_* variable not passed through")
	}
}

func TestStartupArgs(t *testing.T) {
	tests := []struct {
		shell    string
		login    bool
		sourceRC bool
		want     []string
	}{
		{"/bin/bash", false, false, []string{"--noprofile", "--norc"}},
		{"/bin/bash", true, false, []string{"-l", "--noprofile", "--norc"}},
		{"/bin/bash", false, true, nil},
		{"/usr/bin/zsh", false, false, []string{"--no-rcs"}},
		{"/bin/sh", false, false, nil},
		{"/usr/bin/fish", false, false, nil},
	}

	for _, tt := range tests {
		got := StartupArgs(tt.shell, tt.login, tt.sourceRC)
		if len(got) != len(tt.want) {
			t.Errorf("StartupArgs(%q, %v, %v) = %v, want %v",
				tt.shell, tt.login, tt.sourceRC, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("StartupArgs(%q, %v, %v) = %v, want %v",
					tt.shell, tt.login, tt.sourceRC, got, tt.want)
				break
			}
		}
	}
}

func TestShellName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/bin/bash", "bash"},
		{"/usr/local/bin/fish", "fish"},
		{"zsh", "zsh"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := shellName(tt.in); got != tt.want {
			t.Errorf("shellName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetectShell(t *testing.T) {
	t.Setenv("SHELL", "/opt/custom/shell")
	if got := DetectShell(); got != "/opt/custom/shell" {
		t.Errorf("DetectShell = %q, want SHELL value", got)
	}

	t.Setenv("SHELL", "")
	if got := DetectShell(); got == "" {
		t.Error("DetectShell returned empty with SHELL unset")
	}
}
