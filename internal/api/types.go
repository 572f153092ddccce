package api

import (
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/health"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/session"
)

// CreateResponse is returned by a successful POST /api/sandbox.
type CreateResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	Message   string `json:"message"`
	// Degraded is set when install or the dev server failed softly.
	Degraded bool `json:"degraded,omitempty"`
}

// DestroyResponse is returned by a successful DELETE /api/sandbox.
type DestroyResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// StatusResponse is returned by GET /api/sandbox.
type StatusResponse struct {
	Session *session.Session    `json:"session"`
	Health  *health.CheckResult `json:"health"`
	Files   int                 `json:"files"`
}

// FilesResponse is returned by GET /api/sandbox/files.
type FilesResponse struct {
	SessionID string   `json:"sessionId"`
	Files     []string `json:"files"`
}

// LogsResponse is returned by GET /api/sandbox/logs.
type LogsResponse struct {
	SessionID string `json:"sessionId"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string        `json:"status"`
	Provider string        `json:"provider"`
	Session  health.Status `json:"session"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
