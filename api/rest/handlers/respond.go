package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ccintegration/SAP-IS-CICD/core/deployer"
	"github.com/Ccintegration/SAP-IS-CICD/providers/sap"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// writeError maps the error taxonomy onto HTTP statuses and logs remote
// failures with the request-scoped logger.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var notFound *sap.NotFoundError
	var authErr *sap.AuthError
	var remoteErr *sap.RemoteError
	switch {
	case errors.Is(err, deployer.ErrSessionNotFound), errors.Is(err, os.ErrNotExist),
		errors.Is(err, sql.ErrNoRows), errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &authErr), errors.As(err, &remoteErr):
		status = http.StatusBadGateway
	}

	if status >= 500 {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(APIResponse{
		Success:   false,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	})
}
