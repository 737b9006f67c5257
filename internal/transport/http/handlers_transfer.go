package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/josuedanielbust/docucol/internal/transfer/inbound"
	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/outbound"
	"github.com/josuedanielbust/docucol/pkg/platform/httputil"
)

// OutboundService is the outbound saga surface the handler needs.
type OutboundService interface {
	Initiate(ctx context.Context, userID, operatorID string) (*outbound.InitiateResult, error)
	Status(ctx context.Context, transferID string) (*models.OutboundSession, error)
}

// InboundService is the inbound saga surface the handler needs.
type InboundService interface {
	ReceiveTransfer(ctx context.Context, payload models.IncomingPayload) (*inbound.ReceiveResult, error)
	ConfirmByEncodedID(ctx context.Context, encoded string) (*inbound.ReceiveResult, error)
	ConfirmOrReject(ctx context.Context, userID, decision string) (*inbound.ReceiveResult, error)
}

// TransferHandler serves both saga entry points: the operator's own citizens
// moving out, and foreign operators delivering citizens in.
type TransferHandler struct {
	outbound OutboundService
	inbound  InboundService
}

func NewTransferHandler(out OutboundService, in InboundService) *TransferHandler {
	return &TransferHandler{outbound: out, inbound: in}
}

// Register mounts the transfer routes.
func (h *TransferHandler) Register(r chi.Router) {
	r.Route("/transfer", func(r chi.Router) {
		r.Post("/initiate", h.initiate)
		r.Post("/confirm", h.confirm)
		r.Get("/{transferId}", h.status)
		r.Post("/transferCitizen", h.receiveTransfer)
		r.Get("/transferCitizen/confirm/{id}", h.confirmByToken)
		r.Post("/transferCitizenConfirm", h.confirmOrReject)
	})
}

type initiateRequest struct {
	UserID     string `json:"userId"`
	OperatorID string `json:"operatorId"`
}

func (h *TransferHandler) initiate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[initiateRequest](w, r)
	if !ok {
		return
	}

	result, err := h.outbound.Initiate(r.Context(), req.UserID, req.OperatorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, result)
}

func (h *TransferHandler) status(w http.ResponseWriter, r *http.Request) {
	sess, err := h.outbound.Status(r.Context(), chi.URLParam(r, "transferId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"transferId": sess.TransferID,
		"userId":     sess.UserID,
		"operatorId": sess.OperatorID,
		"state":      sess.State,
		"lastError":  sess.LastError,
		"updatedAt":  sess.UpdatedAt,
	})
}

type confirmRequest struct {
	UserID string `json:"userId"`
}

// confirm settles an inbound transfer by plain citizen id, kept for peers
// that call the older contract instead of the emailed token link.
func (h *TransferHandler) confirm(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[confirmRequest](w, r)
	if !ok {
		return
	}

	result, err := h.inbound.ConfirmOrReject(r.Context(), req.UserID, "approved")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *TransferHandler) receiveTransfer(w http.ResponseWriter, r *http.Request) {
	payload, ok := httputil.Decode[models.IncomingPayload](w, r)
	if !ok {
		return
	}

	result, err := h.inbound.ReceiveTransfer(r.Context(), payload)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *TransferHandler) confirmByToken(w http.ResponseWriter, r *http.Request) {
	result, err := h.inbound.ConfirmByEncodedID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *TransferHandler) confirmOrReject(w http.ResponseWriter, r *http.Request) {
	decision, ok := httputil.Decode[models.ConfirmationDecision](w, r)
	if !ok {
		return
	}

	result, err := h.inbound.ConfirmOrReject(r.Context(), decision.ID, decision.ReqStatus)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
