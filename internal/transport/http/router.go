// Package httptransport is the thin HTTP layer. Handlers delegate to the
// saga services and directory; no business logic lives here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josuedanielbust/docucol/pkg/platform/middleware/accesslog"
	"github.com/josuedanielbust/docucol/pkg/platform/middleware/metadata"
	"github.com/josuedanielbust/docucol/pkg/platform/middleware/requestid"
	"github.com/josuedanielbust/docucol/pkg/platform/middleware/requesttime"
)

// Registrar mounts a handler's routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter assembles the middleware chain, the operational endpoints, and
// every registered handler.
func NewRouter(logger *slog.Logger, registrars ...Registrar) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(accesslog.Middleware(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, registrar := range registrars {
		registrar.Register(r)
	}
	return r
}
