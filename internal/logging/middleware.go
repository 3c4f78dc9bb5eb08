package logging

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

const missing = "<missing>"

func orMissing(value string) string {
	if value == "" {
		return missing
	}
	return value
}

// NewRequestLoggerMiddleware stores a per-request logger in the request context
//
// Every request gets a fresh correlationID so the submit and the background ask
// it schedules can be matched up in the logs.
func NewRequestLoggerMiddleware(logger *slog.Logger) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			requestLogger := logger.With(
				slog.String("correlationID", uuid.NewString()),
				slog.String("methodPath", r.Method+" "+r.URL.Path),
				slog.String("userId", orMissing(r.Header.Get("X-User-Id"))),
				slog.String("userAgent", orMissing(r.UserAgent())),
			)

			next(w, r.WithContext(AddToContext(r.Context(), requestLogger)))
		}
	}
}
