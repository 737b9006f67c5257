package models

import (
	"time"

	"github.com/josuedanielbust/docucol/internal/transfer/state"
)

// OutboundSession is the persisted state of one exporting saga. Mutated only
// by the outbound coordinator as response messages arrive.
type OutboundSession struct {
	TransferID string
	UserID     string
	OperatorID string
	State      state.State
	User       *CitizenProfile
	Documents  []DocumentLink
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IncomingSession is the persisted state of one importing saga. The one-time
// password is transient: it is kept only until the confirmation email went
// out, then blanked.
type IncomingSession struct {
	TransferID string
	UserID     string
	Password   string
	Payload    IncomingPayload
	State      state.State
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
