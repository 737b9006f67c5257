package directory

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientValidateUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/validateCitizen/u-1":
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, "citizen registered with operator DocuCol")
		case "/validateCitizen/u-2":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, discardLogger())

	registered, message, err := client.ValidateUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, registered)
	assert.Contains(t, message, "DocuCol")

	registered, _, err = client.ValidateUser(context.Background(), "u-2")
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestClientUnregisterCitizenRequiresOK(t *testing.T) {
	var status int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/unregisterCitizen/u-1", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, discardLogger())

	status = http.StatusOK
	require.NoError(t, client.UnregisterCitizen(context.Background(), "u-1"))

	status = http.StatusNoContent
	require.Error(t, client.UnregisterCitizen(context.Background(), "u-1"))
}

func TestClientGetOperators(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/getOperators", r.URL.Path)
		json.NewEncoder(w).Encode([]OperatorRecord{
			{ID: "op-1", OperatorName: "DocuCol", TransferAPIURL: "https://docucol.example/transfer"},
			{ID: "op-2", OperatorName: "OtherOp"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, discardLogger())

	operators, err := client.GetOperators(context.Background())
	require.NoError(t, err)
	require.Len(t, operators, 2)
	assert.Equal(t, "op-1", operators[0].ID)
	assert.Equal(t, "https://docucol.example/transfer", operators[0].TransferAPIURL)
}

func TestClientRegisterOperator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/registerOperator", r.URL.Path)

		var req RegisterOperatorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "DocuCol", req.Name)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"idOperator": "op-9"})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, discardLogger())

	operatorID, err := client.RegisterOperator(context.Background(), RegisterOperatorRequest{Name: "DocuCol"})
	require.NoError(t, err)
	assert.Equal(t, "op-9", operatorID)
}

func TestClientAuthenticateDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/authenticateDocument", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "u-1", req["idCitizen"])
		assert.Equal(t, "passport", req["documentTitle"])
		assert.Equal(t, "https://docs.example/d/1", req["UrlDocument"])

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, discardLogger())

	require.NoError(t, client.AuthenticateDocument(context.Background(), "u-1", "https://docs.example/d/1", "passport"))
}

func TestClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, 20*time.Millisecond, discardLogger())

	_, err := client.GetOperators(context.Background())
	require.Error(t, err)
}
