package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "github.com/josuedanielbust/docucol/pkg/domain-errors"
	"github.com/josuedanielbust/docucol/pkg/platform/circuit"
	"github.com/josuedanielbust/docucol/pkg/platform/httputil"
	"github.com/josuedanielbust/docucol/pkg/platform/middleware/metadata"
)

// Exempt paths bypass the limiter so probes and scrapes never get throttled.
var exemptPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// Middleware limits requests per client IP. Primary counting goes through
// the configured store; after repeated store failures the breaker opens and
// a per-process fallback takes over, flagged to clients via
// X-RateLimit-Status: degraded.
type Middleware struct {
	store    Store
	fallback *MemoryStore
	breaker  *circuit.Breaker
	limit    int
	window   time.Duration
	logger   *slog.Logger
}

func NewMiddleware(store Store, limit int, window time.Duration, logger *slog.Logger) *Middleware {
	return &Middleware{
		store:    store,
		fallback: NewMemoryStore(),
		breaker:  circuit.New("ratelimit-store"),
		limit:    limit,
		window:   window,
		logger:   logger.With(slog.String("component", "ratelimit")),
	}
}

// Handler wraps next with the rate limit check.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		key := "rl:" + metadata.ClientIPFromRequest(r)
		result, degraded := m.check(r, key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		if degraded {
			w.Header().Set("X-RateLimit-Status", "degraded")
		}

		if !result.Allowed {
			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteError(w, dErrors.New(dErrors.CodeTooManyRequests, "rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) check(r *http.Request, key string) (*Result, bool) {
	if !m.breaker.IsOpen() {
		result, err := m.store.Allow(r.Context(), key, m.limit, m.window)
		if err == nil {
			if _, change := m.breaker.RecordSuccess(); change.Closed {
				m.logger.Info("rate limit store recovered, leaving degraded mode")
			}
			return result, false
		}
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.logger.Error("rate limit store failing, entering degraded mode", "error", err)
		} else {
			m.logger.Warn("rate limit check failed", "error", err)
		}
		if !m.breaker.IsOpen() {
			// A transient store hiccup should not throttle anyone.
			return &Result{Allowed: true, Limit: m.limit, ResetAt: time.Now().Add(m.window)}, false
		}
	}

	result, err := m.fallback.Allow(r.Context(), key, m.limit, m.window)
	if err != nil {
		return &Result{Allowed: true, Limit: m.limit, ResetAt: time.Now().Add(m.window)}, true
	}

	// Probe the primary store occasionally so the breaker can close again.
	if _, probeErr := m.store.Allow(r.Context(), key+":probe", m.limit, m.window); probeErr == nil {
		if _, change := m.breaker.RecordSuccess(); change.Closed {
			m.logger.Info("rate limit store recovered, leaving degraded mode")
		}
	}

	return result, true
}
