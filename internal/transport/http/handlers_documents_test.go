package httptransport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/josuedanielbust/docucol/internal/documents/storage"
	"github.com/josuedanielbust/docucol/pkg/testutil"
)

func TestDocumentHandlerDownload(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFSStore(dir, "http://localhost:8082", "test-secret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := store.Put(context.Background(), "doc-1", "application/pdf", bytes.NewBufferString("pdf bytes"))
	require.NoError(t, err)

	router := NewRouter(logger, NewDocumentHandler(store))

	t.Run("valid presigned link", func(t *testing.T) {
		link, err := store.PresignDownload(context.Background(), "doc-1", time.Hour)
		require.NoError(t, err)

		u, err := url.Parse(link)
		require.NoError(t, err)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, u.RequestURI(), nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		require.Equal(t, "pdf bytes", rr.Body.String())
		require.Contains(t, rr.Header().Get("Content-Disposition"), "doc-1")
	})

	t.Run("tampered signature", func(t *testing.T) {
		link, err := store.PresignDownload(context.Background(), "doc-1", time.Hour)
		require.NoError(t, err)

		u, err := url.Parse(link)
		require.NoError(t, err)
		q := u.Query()
		q.Set("sig", strings.Repeat("0", 64))
		u.RawQuery = q.Encode()

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, u.RequestURI(), nil))

		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("missing query parameters", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/documents/download/doc-1", nil))

		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("signed link to deleted object", func(t *testing.T) {
		_, err := store.Put(context.Background(), "gone", "text/plain", bytes.NewBufferString("x"))
		require.NoError(t, err)
		link, err := store.PresignDownload(context.Background(), "gone", time.Hour)
		require.NoError(t, err)
		require.NoError(t, store.Delete(context.Background(), "gone"))

		u, err := url.Parse(link)
		require.NoError(t, err)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, u.RequestURI(), nil))

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}
