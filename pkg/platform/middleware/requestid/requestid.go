// Package requestid assigns every request a correlation id. Incoming ids
// are honored so a saga can be traced across operator boundaries.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/josuedanielbust/docucol/pkg/requestcontext"
)

const Header = "X-Request-ID"

// Middleware stores the request id in the context and echoes it back.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), id)))
	})
}
