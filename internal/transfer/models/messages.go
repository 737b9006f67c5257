// Package models defines the message payloads and saga sessions shared by
// the transfer coordinators and responders. Every message carries the
// transferId correlation key; consumers reject payloads that fail to decode
// instead of best-effort field access.
package models

import (
	"encoding/json"
	"fmt"
)

// CitizenProfile is the sanitized cross-service view of a citizen. It never
// carries credentials; the one-time password travels in the message fields
// that need it, not inside the profile.
type CitizenProfile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email"`
	Address   string `json:"address"`
}

// FullName joins the name parts the way the inter-operator payload wants it.
func (p CitizenProfile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// DocumentLink is one exported document: title plus a time-limited download
// link minted by the source operator's object store.
type DocumentLink struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	PresignedURL string `json:"presignedUrl"`
}

// InitiateTransfer starts the outbound saga
// (topic document.transfer.initiate).
type InitiateTransfer struct {
	TransferID string `json:"transferId"`
	UserID     string `json:"userId"`
	OperatorID string `json:"operatorId"`
}

// UserResponse is the identity responder's answer on the source operator
// (topic document.transfer.user.response).
type UserResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	TransferID string         `json:"transferId"`
	OperatorID string         `json:"operatorId"`
	Status     string         `json:"status"`
	User       CitizenProfile `json:"user"`
}

// DocumentsResponse is the document responder's answer on the source
// operator (topic document.transfer.documents.response).
type DocumentsResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	TransferID string         `json:"transferId"`
	OperatorID string         `json:"operatorId"`
	Status     string         `json:"status"`
	User       CitizenProfile `json:"user"`
	Documents  []DocumentLink `json:"documents"`
}

// IncomingPayload is the citizen package a foreign operator posts to
// /transfer/transferCitizen and that then rides every inbound saga message.
type IncomingPayload struct {
	ID             string              `json:"id"`
	CitizenName    string              `json:"citizenName"`
	CitizenEmail   string              `json:"citizenEmail"`
	CitizenAddress string              `json:"citizenAddress"`
	URLDocuments   map[string][]string `json:"urlDocuments"`
	ConfirmAPI     string              `json:"confirmAPI,omitempty"`
}

// IncomingInitiate starts the inbound saga
// (topic document.incoming-transfer.initiate).
type IncomingInitiate struct {
	TransferID string          `json:"transferId"`
	Status     string          `json:"status"`
	Message    string          `json:"message,omitempty"`
	Payload    IncomingPayload `json:"payload"`
}

// IncomingUserResponse reports the provisional citizen created on the
// destination operator, with the plaintext one-time password on its single
// permitted hop (topic document.incoming-transfer.user.response).
type IncomingUserResponse struct {
	TransferID string          `json:"transferId"`
	Status     string          `json:"status"`
	Message    string          `json:"message,omitempty"`
	Payload    IncomingPayload `json:"payload"`
	User       CitizenProfile  `json:"user"`
	Password   string          `json:"password"`
}

// TransferNotificationsResponse reports the courtesy email to the departing
// citizen as sent (topic document.transfer.notifications.response).
type TransferNotificationsResponse struct {
	Success    bool   `json:"success"`
	TransferID string `json:"transferId"`
	Message    string `json:"message,omitempty"`
}

// IncomingNotificationsResponse reports the confirmation email as sent
// (topic document.incoming-transfer.notifications.response).
type IncomingNotificationsResponse struct {
	TransferID string          `json:"transferId"`
	Status     string          `json:"status"`
	Message    string          `json:"message,omitempty"`
	Payload    IncomingPayload `json:"payload"`
	User       CitizenProfile  `json:"user"`
}

// ConfirmationDecision is the citizen's verdict on an inbound transfer.
type ConfirmationDecision struct {
	ID        string `json:"id"`
	ReqStatus string `json:"req_status"`
}

// ConfirmationInitiate carries an explicit confirm/reject
// (topic document.incoming-confirmation.initiate). A rejected decision is
// the compensation trigger: responders purge the provisional citizen and
// all materialized documents.
type ConfirmationInitiate struct {
	TransferID string               `json:"transferId"`
	Payload    ConfirmationDecision `json:"payload"`
}

// GetUserDetails asks the identity responder for a citizen's profile after
// the citizen confirmed receipt (topic transfer.get.user.details).
type GetUserDetails struct {
	TransferID string `json:"transferId"`
	UserID     string `json:"userId"`
}

// GetUserDetailsResponse completes confirm-time directory registration
// (topic transfer.get.user.details.response).
type GetUserDetailsResponse struct {
	TransferID string         `json:"transferId"`
	User       CitizenProfile `json:"user"`
}

// ErrorMessage is published to an error topic when a saga halts. It is the
// only failure signal an operator gets; the transport never redelivers.
type ErrorMessage struct {
	Success    bool   `json:"success"`
	TransferID string `json:"transferId,omitempty"`
	Message    string `json:"message"`
}

// Decode unmarshals a message payload strictly. Unknown topics and malformed
// bodies surface as errors so the consumer loop dead-letters them.
func Decode[T any](value []byte) (T, error) {
	var payload T
	if err := json.Unmarshal(value, &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
