package httptransport

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/josuedanielbust/docucol/internal/documents/storage"
	dErrors "github.com/josuedanielbust/docucol/pkg/domain-errors"
	"github.com/josuedanielbust/docucol/pkg/platform/httputil"
)

// DownloadStore verifies presigned links and serves the object bytes.
type DownloadStore interface {
	VerifySignature(key, expires, signature string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DocumentHandler serves the presigned download links that outbound
// transfers hand to the receiving operator. Nothing here requires a
// session: the signature in the URL is the whole authorization.
type DocumentHandler struct {
	store DownloadStore
}

func NewDocumentHandler(store DownloadStore) *DocumentHandler {
	return &DocumentHandler{store: store}
}

func (h *DocumentHandler) Register(r chi.Router) {
	r.Get("/documents/download/{key}", h.download)
}

func (h *DocumentHandler) download(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	expires := r.URL.Query().Get("expires")
	signature := r.URL.Query().Get("sig")

	if err := h.store.VerifySignature(key, expires, signature); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired download link"))
		return
	}

	body, err := h.store.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "document not found"))
			return
		}
		httputil.WriteError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+key+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}
