package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/josuedanielbust/docucol/internal/directory"
	"github.com/josuedanielbust/docucol/pkg/testutil"
)

type fakeDirectory struct {
	operators []directory.OperatorRecord
	listErr   error

	registeredID string
	registerErr  error
	endpointsErr error

	gotUseCache    bool
	gotRegister    directory.RegisterOperatorRequest
	gotOperatorID  string
	gotEndpoint    string
	gotConfirmAddr string
	invalidated    bool
}

func (f *fakeDirectory) ListOperators(_ context.Context, useCache bool) ([]directory.OperatorRecord, error) {
	f.gotUseCache = useCache
	return f.operators, f.listErr
}

func (f *fakeDirectory) RegisterOperator(_ context.Context, req directory.RegisterOperatorRequest) (string, error) {
	f.gotRegister = req
	return f.registeredID, f.registerErr
}

func (f *fakeDirectory) RegisterTransferEndpoints(_ context.Context, operatorID, endpoint, confirmEndpoint string) error {
	f.gotOperatorID = operatorID
	f.gotEndpoint = endpoint
	f.gotConfirmAddr = confirmEndpoint
	return f.endpointsErr
}

func (f *fakeDirectory) Invalidate(_ context.Context) error {
	f.invalidated = true
	return nil
}

func newOperatorRouter(d *fakeDirectory) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(logger, NewOperatorHandler(d))
}

func TestOperatorHandlerList(t *testing.T) {
	t.Run("cached by default", func(t *testing.T) {
		d := &fakeDirectory{operators: []directory.OperatorRecord{
			{ID: "op-1", OperatorName: "Operator One"},
			{ID: "op-2", OperatorName: "Operator Two"},
		}}
		router := newOperatorRouter(d)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/operators", nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		body := testutil.UnmarshalResponse[[]directory.OperatorRecord](t, rr)
		require.Len(t, *body, 2)
		require.True(t, d.gotUseCache)
	})

	t.Run("refresh bypasses cache", func(t *testing.T) {
		d := &fakeDirectory{}
		router := newOperatorRouter(d)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/operators?refresh=true", nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		require.False(t, d.gotUseCache)
	})

	t.Run("directory down", func(t *testing.T) {
		d := &fakeDirectory{listErr: errors.New("connection refused")}
		router := newOperatorRouter(d)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/operators", nil))

		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		testutil.AssertErrorCode(t, rr, "unavailable")
	})
}

func TestOperatorHandlerRegister(t *testing.T) {
	body := map[string]any{
		"operatorName":    "DocuCol",
		"address":         "Cra 7 # 1-1, Bogota",
		"contactMail":     "ops@docucol.example",
		"participants":    []string{"Ada", "Grace"},
		"endPoint":        "https://docucol.example/transfer/transferCitizen",
		"endPointConfirm": "https://docucol.example/transfer/transferCitizenConfirm",
	}

	t.Run("registers and publishes endpoints", func(t *testing.T) {
		d := &fakeDirectory{registeredID: "op-42"}
		router := newOperatorRouter(d)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/operators/register", body))

		testutil.AssertStatus(t, rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[map[string]string](t, rr)
		require.Equal(t, "op-42", (*resp)["idOperator"])

		require.Equal(t, "DocuCol", d.gotRegister.Name)
		require.Equal(t, "ops@docucol.example", d.gotRegister.Contact)
		require.Equal(t, "op-42", d.gotOperatorID)
		require.Equal(t, "https://docucol.example/transfer/transferCitizen", d.gotEndpoint)
		require.True(t, d.invalidated)
	})

	t.Run("missing fields", func(t *testing.T) {
		d := &fakeDirectory{}
		router := newOperatorRouter(d)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/operators/register", map[string]any{
			"operatorName": "DocuCol",
		}))

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("directory rejects registration", func(t *testing.T) {
		d := &fakeDirectory{registerErr: errors.New("boom")}
		router := newOperatorRouter(d)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/operators/register", body))

		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		require.False(t, d.invalidated)
	})

	t.Run("endpoint publication fails", func(t *testing.T) {
		d := &fakeDirectory{registeredID: "op-42", endpointsErr: errors.New("boom")}
		router := newOperatorRouter(d)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/operators/register", body))

		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	})
}
