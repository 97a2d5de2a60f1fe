package middleware

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/rs/cors"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/negroni/v3"
)

// NewRecovery returns a panic-recovery middleware logging through zerolog.
func NewRecovery() *negroni.Recovery {
	rec := negroni.NewRecovery()
	rec.PrintStack = false
	rec.Logger = &log.Logger
	return rec
}

// NewRequestID attaches a request-scoped logger carrying a request id and
// the request basics to the context.
func NewRequestID() negroni.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		logger := log.With().
			Str("request_id", xid.New().String()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		next(w, r.WithContext(logger.WithContext(r.Context())))
	}
}

// NewRequestLogger logs every response with status, size and latency.
func NewRequestLogger() negroni.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		logger := zerolog.Ctx(r.Context())
		var ev *zerolog.Event
		switch {
		case m.Code >= 500:
			ev = logger.Error()
		case m.Code >= 400:
			ev = logger.Warn()
		default:
			ev = logger.Info()
		}
		ev.
			Int("status", m.Code).
			Int64("body_size", m.Written).
			Int64("elapsed_ms", m.Duration.Milliseconds()).
			Msg(http.StatusText(m.Code))
	}
}

// NewCORS builds the CORS middleware for the browser frontend.
func NewCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		MaxAge:           600,
	})
}
