package pty

import (
	"os"
	"strings"
)

// inheritedVars is the allowlist of environment variables forwarded from the
// parent into the shell. Authentication-related sockets (SSH/GPG agents) are
// included because their absence silently degrades commands that need them.
var inheritedVars = []string{
	"PATH",
	"HOME",
	"USER",
	"LOGNAME",
	"SHELL",
	"TMPDIR",
	"LANG",
	"TZ",
	"SSH_AUTH_SOCK",
	"SSH_AGENT_PID",
	"GIT_SSH_COMMAND",
	"GPG_AGENT_INFO",
	"GPG_TTY",
}

// InheritedEnv returns the selected parent environment variables in
// KEY=VALUE form. LC_* locale variables pass through as a group.
func InheritedEnv() []string {
	var env []string
	for _, key := range inheritedVars {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "LC_") {
			env = append(env, kv)
		}
	}
	return env
}

// PromptEnv returns the minimal prompt environment for the given shell.
// Short deterministic prompts keep startup noise out of command output;
// framing does not depend on them.
func PromptEnv(shell string) []string {
	env := []string{
		"NO_COLOR=1", // hint to programs to disable colors
	}

	switch shellName(shell) {
	case "zsh":
		// Zsh uses PROMPT for the left prompt; PS2/PROMPT2 is the
		// continuation prompt for multi-line commands.
		env = append(env,
			"PROMPT=$ ",
			"PS1=$ ",
			"PROMPT_COMMAND=",
			"precmd_functions=",
			"RPROMPT=",
		)
	case "fish":
		env = append(env,
			"PS1=$ ",
			"fish_greeting=",
		)
	default:
		// Bash and other POSIX shells.
		env = append(env,
			"PS1=$ ",
			"PS2=> ",
			"PROMPT_COMMAND=",
		)
	}

	return env
}

// SessionEnv builds the complete child environment: selected inherited
// variables, the terminal-type override, and minimal prompt strings.
func SessionEnv(shell, term string) []string {
	env := InheritedEnv()
	env = append(env, "TERM="+term)
	env = append(env, PromptEnv(shell)...)
	return env
}

// shellName returns the base name of a shell path.
func shellName(shell string) string {
	if idx := strings.LastIndex(shell, "/"); idx >= 0 {
		return shell[idx+1:]
	}
	return shell
}

// StartupArgs returns the shell arguments for the configured startup mode.
// RC-file suppression keeps user prompt customization from defeating the
// deterministic prompt; a login shell sources profile files instead.
func StartupArgs(shell string, login, sourceRC bool) []string {
	var args []string
	if login {
		args = append(args, "-l")
	}
	if !sourceRC {
		switch shellName(shell) {
		case "bash":
			args = append(args, "--noprofile", "--norc")
		case "zsh":
			args = append(args, "--no-rcs")
		}
	}
	return args
}

// DetectShell detects the user's default shell.
func DetectShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}

	for _, shell := range []string{"/bin/bash", "/bin/zsh", "/bin/sh"} {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}

	return "/bin/sh"
}
