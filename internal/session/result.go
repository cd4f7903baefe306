package session

// Status is the tagged outcome of one command invocation. Callers dispatch
// on it directly instead of probing result fields.
type Status string

const (
	// StatusOK means the completion marker was observed.
	StatusOK Status = "ok"

	// StatusTimedOut means the overall timeout elapsed before the marker
	// appeared. The session stays usable; residual output from the
	// abandoned command may surface on the next call.
	StatusTimedOut Status = "timed_out"

	// StatusProcessTerminated means the shell process exited mid-command.
	// The session is unusable and should be reopened by the caller.
	StatusProcessTerminated Status = "process_terminated"
)

// Result is the outcome of executing one command in a session.
type Result struct {
	// Status tags the outcome.
	Status Status `json:"status"`

	// Text is the cleaned command output. When the parsed exit code is
	// present and non-zero it ends with the literal "[Exit code: N]"
	// suffix, preserved for callers that pattern-match on it. Never empty:
	// failures without output carry a descriptive message instead.
	Text string `json:"text"`

	// ExitCode is the parsed exit status, or nil if the marker was never
	// observed or its digits were malformed. A parsed zero is distinct
	// from absent.
	ExitCode *int `json:"exit_code,omitempty"`

	// TimedOut reports that the invocation's time budget was exhausted.
	TimedOut bool `json:"timed_out"`

	// Cwd is the session's tracked working directory after the command.
	Cwd string `json:"cwd,omitempty"`
}
