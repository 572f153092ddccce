package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/app"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
)

// SandboxHandler handles the sandbox lifecycle routes.
type SandboxHandler struct {
	app *app.App
}

// NewSandboxHandler creates a new sandbox handler.
func NewSandboxHandler(a *app.App) *SandboxHandler {
	return &SandboxHandler{app: a}
}

// Create handles POST /api/sandbox. The bootstrap keeps running if the
// client disconnects.
func (h *SandboxHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	res, err := h.app.Bootstrap(ctx)
	if err != nil {
		logging.Error("sandbox bootstrap failed", "id", GetRequestID(r), "error", err)
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CreateResponse{
		Success:   true,
		SessionID: res.Session.ID,
		URL:       res.Session.URL,
		Message:   res.Message,
		Degraded:  res.Session.Degraded(),
	})
}

// Get handles GET /api/sandbox
func (h *SandboxHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, check := h.app.Status(r.Context())
	if s == nil {
		writeFailure(w, errors.NoSession())
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Session: s,
		Health:  check,
		Files:   len(h.app.Store.Manifest()),
	})
}

// Delete handles DELETE /api/sandbox
func (h *SandboxHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.Destroy(context.WithoutCancel(r.Context()))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DestroyResponse{
		Success:   true,
		SessionID: s.ID,
		Message:   "Sandbox destroyed",
	})
}

// Files handles GET /api/sandbox/files
func (h *SandboxHandler) Files(w http.ResponseWriter, r *http.Request) {
	s := h.app.Store.Current()
	if s == nil {
		writeFailure(w, errors.NoSession())
		return
	}
	writeJSON(w, http.StatusOK, FilesResponse{
		SessionID: s.ID,
		Files:     h.app.Store.Manifest(),
	})
}

// defaultLogLines is how many lines GET /api/sandbox/logs returns by default.
const defaultLogLines = 50

// Logs handles GET /api/sandbox/logs?lines=N
func (h *SandboxHandler) Logs(w http.ResponseWriter, r *http.Request) {
	lines := defaultLogLines
	if v := r.URL.Query().Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid lines parameter", v)
			return
		}
		lines = n
	}

	logs, err := h.app.Logs(r.Context(), lines)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LogsResponse{
		SessionID: logs.SessionID,
		Stdout:    logs.Stdout,
		Stderr:    logs.Stderr,
	})
}
