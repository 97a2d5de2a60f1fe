package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// DBPinger is the transport database probe. Nil means the database is
// disabled.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// TokenReporter exposes the cached OAuth token state of the source tenant
// client. The health check reads the cache instead of probing the remote
// tenant, so it stays cheap enough for a liveness poll.
type TokenReporter interface {
	TokenStatus() map[string]interface{}
}

// HealthHandler reports service, database and source-tenant health.
type HealthHandler struct {
	db     DBPinger
	source TokenReporter
}

// NewHealthHandler creates a health handler; db may be nil.
func NewHealthHandler(db DBPinger, source TokenReporter) *HealthHandler {
	return &HealthHandler{db: db, source: source}
}

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "running",
		Timestamp: time.Now().UTC(),
		Services:  map[string]string{"api": "running"},
	}

	status.Services["database"] = "disabled"
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			status.Services["database"] = "unavailable"
		} else {
			status.Services["database"] = "connected"
		}
	}

	status.Services["sap_connection"] = "unknown"
	if h.source != nil {
		tok := h.source.TokenStatus()
		if has, _ := tok["has_token"].(bool); has {
			status.Services["sap_connection"] = "healthy"
			if ttl, ok := tok["expires_in_seconds"].(int); ok && ttl <= 0 {
				status.Services["sap_connection"] = "degraded"
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
