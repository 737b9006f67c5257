package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/josuedanielbust/docucol/internal/directory"
	dErrors "github.com/josuedanielbust/docucol/pkg/domain-errors"
	"github.com/josuedanielbust/docucol/pkg/platform/httputil"
	pkgstrings "github.com/josuedanielbust/docucol/pkg/platform/strings"
)

// DirectoryService is the slice of the operator directory the handler needs.
type DirectoryService interface {
	ListOperators(ctx context.Context, useCache bool) ([]directory.OperatorRecord, error)
	RegisterOperator(ctx context.Context, req directory.RegisterOperatorRequest) (string, error)
	RegisterTransferEndpoints(ctx context.Context, operatorID, endpoint, confirmEndpoint string) error
	Invalidate(ctx context.Context) error
}

// OperatorHandler exposes the cached operator directory and the one-off
// self-registration flow an operator runs when it joins the network.
type OperatorHandler struct {
	directory DirectoryService
}

func NewOperatorHandler(d DirectoryService) *OperatorHandler {
	return &OperatorHandler{directory: d}
}

func (h *OperatorHandler) Register(r chi.Router) {
	r.Route("/operators", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/register", h.register)
	})
}

func (h *OperatorHandler) list(w http.ResponseWriter, r *http.Request) {
	useCache := r.URL.Query().Get("refresh") != "true"
	operators, err := h.directory.ListOperators(r.Context(), useCache)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "operator directory unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, operators)
}

type registerOperatorRequest struct {
	Name            string   `json:"operatorName"`
	Address         string   `json:"address"`
	Contact         string   `json:"contactMail"`
	Participants    []string `json:"participants"`
	Endpoint        string   `json:"endPoint"`
	ConfirmEndpoint string   `json:"endPointConfirm"`
}

// register enrolls this operator with the government directory and then
// publishes its transfer endpoints under the returned id.
func (h *OperatorHandler) register(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerOperatorRequest](w, r)
	if !ok {
		return
	}
	if req.Name == "" || req.Endpoint == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "operatorName and endPoint are required"))
		return
	}

	operatorID, err := h.directory.RegisterOperator(r.Context(), directory.RegisterOperatorRequest{
		Name:         req.Name,
		Address:      req.Address,
		Contact:      req.Contact,
		Participants: pkgstrings.DedupeAndTrim(req.Participants),
	})
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "operator registration failed"))
		return
	}

	if err := h.directory.RegisterTransferEndpoints(r.Context(), operatorID, req.Endpoint, req.ConfirmEndpoint); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "transfer endpoint registration failed"))
		return
	}

	// The directory just changed under the cache.
	_ = h.directory.Invalidate(r.Context())

	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"idOperator": operatorID})
}
