package health

import (
	"context"
	"fmt"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/provider"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/session"
)

// Status represents the health status of the preview session
type Status string

const (
	StatusReady      Status = "ready"
	StatusDegraded   Status = "degraded"
	StatusNotServing Status = "not-serving"
	StatusStarting   Status = "starting"
	StatusExpired    Status = "expired"
	StatusNone       Status = "none"

	// ProbeTimeout bounds the liveness probe against the dev server process.
	ProbeTimeout = 10 * time.Second
)

// CheckResult contains the results of health checks
type CheckResult struct {
	Status      Status `json:"status"`
	Uptime      string `json:"uptime,omitempty"`
	ExpiresIn   string `json:"expiresIn,omitempty"`
	ServerAlive bool   `json:"serverAlive"`
	Probed      bool   `json:"probed"`
}

// GetUptime returns how long the session has existed in human-readable format.
func GetUptime(s *session.Session, now time.Time) string {
	if s == nil || s.CreatedAt.IsZero() {
		return "unknown"
	}
	return formatDuration(now.Sub(s.CreatedAt))
}

// GetExpiresIn returns the time left before the environment expires.
func GetExpiresIn(s *session.Session, now time.Time) string {
	if s == nil || s.ExpiresAt.IsZero() {
		return "unknown"
	}
	left := s.ExpiresAt.Sub(now)
	if left <= 0 {
		return "expired"
	}
	return formatDuration(left)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// CheckServer probes whether the dev server process is still alive.
func CheckServer(ctx context.Context, p provider.Provider, s *session.Session) bool {
	if p == nil || s == nil || s.DevServerPID <= 0 || s.EnvironmentID == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	res, err := p.Execute(ctx, s.EnvironmentID, provider.Command{Line: provider.ProbeLine(s.DevServerPID)})
	return err == nil && res.OK()
}

// GetSummary returns a summary health status from recorded session state.
func GetSummary(s *session.Session, now time.Time) Status {
	switch {
	case s == nil:
		return StatusNone
	case s.Expired(now):
		return StatusExpired
	case s.Status != session.StatusReady:
		return StatusStarting
	case s.Server == session.ServerFailed:
		return StatusNotServing
	case s.Install == session.InstallDegraded:
		return StatusDegraded
	default:
		return StatusReady
	}
}

// Check performs all health checks for the session. The provider is
// optional; without it the dev server is not probed.
func Check(ctx context.Context, s *session.Session, p provider.Provider, now time.Time) *CheckResult {
	result := &CheckResult{Status: GetSummary(s, now)}
	if s == nil {
		return result
	}

	result.Uptime = GetUptime(s, now)
	result.ExpiresIn = GetExpiresIn(s, now)

	if p == nil || result.Status == StatusExpired || s.Server != session.ServerStarted {
		return result
	}

	result.Probed = true
	result.ServerAlive = CheckServer(ctx, p, s)
	if !result.ServerAlive && result.Status != StatusStarting {
		result.Status = StatusNotServing
	}
	return result
}
