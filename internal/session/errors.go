package session

import "errors"

// ErrSessionClosed is returned when an operation targets a closed session.
var ErrSessionClosed = errors.New("session is closed")

// ErrSessionNotFound is returned by the manager for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// SpawnError reports that the command interpreter could not be started.
// Fatal: no session is created.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return "spawn shell: " + e.Err.Error()
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
