package api

import (
	"net/http"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/app"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/health"
)

type HealthHandler struct {
	app *app.App
}

func NewHealthHandler(a *app.App) *HealthHandler {
	return &HealthHandler{app: a}
}

// Health reports that the server is up. It does not probe the sandbox.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Provider: h.app.Provider.Name(),
		Session:  health.GetSummary(h.app.Store.Current(), time.Now()),
	})
}
