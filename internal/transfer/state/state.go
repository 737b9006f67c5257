// Package state defines the monotonic state machines for both transfer
// sagas. All consumers share the same CanTransition guard, so the rule that
// a message implying an already-passed state is discarded lives in exactly
// one place.
package state

// State is a saga lifecycle position.
type State string

// Outbound saga states.
const (
	Initiated           State = "INITIATED"
	PendingUserDetails  State = "PENDING_USER_DETAILS"
	PendingDocuments    State = "PENDING_DOCUMENTS"
	PendingConfirmation State = "PENDING_CONFIRMATION"
	Deregistered        State = "DEREGISTERED"
	Delivered           State = "DELIVERED"
	Failed              State = "FAILED"
)

// Inbound saga states. PendingDocuments and Failed are shared with the
// outbound machine.
const (
	Received             State = "RECEIVED"
	PendingUserCreation  State = "PENDING_USER_CREATION"
	PendingNotification  State = "PENDING_NOTIFICATION"
	AwaitingConfirmation State = "AWAITING_CONFIRMATION"
	Confirmed            State = "CONFIRMED"
	Rejected             State = "REJECTED"
)

// Machine is a directed transition graph with terminal states.
type Machine struct {
	next     map[State][]State
	terminal map[State]bool
}

// CanTransition reports whether moving from one state to another is a legal
// forward step. Failure is reachable from every non-terminal state.
func (m Machine) CanTransition(from, to State) bool {
	if m.terminal[from] {
		return false
	}
	if to == Failed {
		return true
	}
	for _, s := range m.next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a saga in this state can never move again.
func (m Machine) IsTerminal(s State) bool {
	return m.terminal[s]
}

// Outbound is the exporting saga machine:
// INITIATED → PENDING_USER_DETAILS → PENDING_DOCUMENTS →
// PENDING_CONFIRMATION → DEREGISTERED → DELIVERED, FAILED from anywhere.
var Outbound = Machine{
	next: map[State][]State{
		Initiated:           {PendingUserDetails},
		PendingUserDetails:  {PendingDocuments},
		PendingDocuments:    {PendingConfirmation},
		PendingConfirmation: {Deregistered},
		Deregistered:        {Delivered},
	},
	terminal: map[State]bool{
		Delivered: true,
		Failed:    true,
	},
}

// Inbound is the importing saga machine:
// RECEIVED → PENDING_USER_CREATION → PENDING_DOCUMENTS →
// PENDING_NOTIFICATION → AWAITING_CONFIRMATION → CONFIRMED | REJECTED,
// FAILED from anywhere. Rejection is also allowed straight from
// AWAITING_CONFIRMATION's predecessors since the explicit reject call can
// arrive before the notification settles.
var Inbound = Machine{
	next: map[State][]State{
		Received:             {PendingUserCreation},
		PendingUserCreation:  {PendingDocuments},
		PendingDocuments:     {PendingNotification, Rejected},
		PendingNotification:  {AwaitingConfirmation, Rejected},
		AwaitingConfirmation: {Confirmed, Rejected},
	},
	terminal: map[State]bool{
		Confirmed: true,
		Rejected:  true,
		Failed:    true,
	},
}
