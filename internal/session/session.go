package session

import (
	"time"
)

// Status is the lifecycle stage of a session.
type Status string

const (
	StatusProvisioning    Status = "provisioning"
	StatusScaffoldWritten Status = "scaffold-written"
	StatusInstalling      Status = "installing"
	StatusServerStarting  Status = "server-starting"
	StatusReady           Status = "ready"
	StatusFailed          Status = "failed"
)

// InstallOutcome records how dependency installation ended.
type InstallOutcome string

const (
	InstallPending  InstallOutcome = ""
	InstallOK       InstallOutcome = "ok"
	InstallDegraded InstallOutcome = "degraded"
)

// ServerOutcome records how the dev server launch ended.
type ServerOutcome string

const (
	ServerPending ServerOutcome = ""
	ServerStarted ServerOutcome = "started"
	ServerFailed  ServerOutcome = "failed"
)

// Session is the single active preview sandbox.
type Session struct {
	ID            string         `json:"id"`
	EnvironmentID string         `json:"environmentId"`
	Provider      string         `json:"provider"`
	Host          string         `json:"host"`
	URL           string         `json:"url"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	ExpiresAt     time.Time      `json:"expiresAt"`
	Install       InstallOutcome `json:"install,omitempty"`
	Server        ServerOutcome  `json:"server,omitempty"`
	DevServerPID  int            `json:"devServerPid,omitempty"`
}

// Degraded reports whether a soft failure happened during bootstrap.
func (s *Session) Degraded() bool {
	return s.Install == InstallDegraded || s.Server == ServerFailed
}

// Expired reports whether the environment's expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
