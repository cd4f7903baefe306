package mcp

import (
	"time"

	"github.com/volanti/shellmux/internal/config"
	"github.com/volanti/shellmux/internal/session"
)

// SessionManager is the session-manager surface the tool handlers depend on.
// session.Manager is the production implementation.
type SessionManager interface {
	Create(workingDir string) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Execute(id, command string, timeout time.Duration) (*session.Result, error)
	Close(id string) error
	CloseAll()
	List() []string
	Count() int
	UpdateConfig(cfg *config.Config)
}
