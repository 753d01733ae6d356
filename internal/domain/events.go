package domain

import "time"

// EventKind enumerates everything the fan-out bus carries. Delivery is
// at-least-once to sessions connected at publish time; a session that joins
// or reconnects later must re-derive its view from a fresh read.
type EventKind string

const (
	EventOrderChanged    EventKind = "order_changed"
	EventCatalogChanged  EventKind = "catalog_changed"
	EventCallRaised      EventKind = "call_raised"
	EventCallHandled     EventKind = "call_handled"
	EventPresenceChanged EventKind = "presence_changed"
	EventAccountDisabled EventKind = "account_disabled"
	EventStaffCalled     EventKind = "staff_called"
)

type Envelope struct {
	Kind       EventKind `json:"kind"`
	OccurredAt time.Time `json:"occurredAt"`
}

type OrderChangedEvent struct {
	Envelope
	Order *Order `json:"order"`
}

type CallEvent struct {
	Envelope
	Call Call `json:"call"`
}

type PresenceChangedEvent struct {
	Envelope
	// Online is the full current set, not a delta. Consumers replace their
	// copy wholesale, which self-heals any missed message.
	Online []StaffPresence `json:"online"`
}

type AccountDisabledEvent struct {
	Envelope
	StaffID string `json:"staffId"`
}

type StaffCalledEvent struct {
	Envelope
	StaffID string `json:"staffId"`
	From    string `json:"from"`
	Message string `json:"message"`
}
