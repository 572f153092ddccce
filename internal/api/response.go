package api

import (
	"encoding/json"
	"net/http"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/errors"
	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// writeFailure maps err to its status code and renders the cause chain as
// details.
func writeFailure(w http.ResponseWriter, err error) {
	writeError(w, errors.HTTPStatus(err), err.Error(), errors.Trace(err))
}
