// Package accesslog logs one structured line per HTTP request.
package accesslog

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/josuedanielbust/docucol/pkg/platform/middleware/metadata"
	"github.com/josuedanielbust/docucol/pkg/requestcontext"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware logs method, path, status, duration, client IP and request id.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			logger.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", recorder.status),
				slog.Duration("elapsed", time.Since(requestcontext.Now(r.Context()))),
				slog.String("client_ip", metadata.GetClientIP(r.Context())),
				slog.String("request_id", requestcontext.RequestID(r.Context())),
			)
		})
	}
}
