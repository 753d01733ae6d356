package domain

import "time"

type CallSource string

const (
	CallFromMenu    CallSource = "menu"
	CallFromKitchen CallSource = "kitchen"
)

func (s CallSource) Valid() bool { return s == CallFromMenu || s == CallFromKitchen }

// CallKey identifies an assistance request. One unhandled call per key.
type CallKey struct {
	TableNo int        `json:"tableNo"`
	Source  CallSource `json:"source"`
}

type HandlerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Call is ephemeral: it lives in the coordinator only from raise until the
// grace window after handling runs out, and is never persisted.
type Call struct {
	TableNo   int         `json:"tableNo"`
	Source    CallSource  `json:"source"`
	RaisedAt  time.Time   `json:"raisedAt"`
	HandledBy *HandlerRef `json:"handledBy,omitempty"`
	HandledAt *time.Time  `json:"handledAt,omitempty"`
}

func (c Call) Key() CallKey { return CallKey{TableNo: c.TableNo, Source: c.Source} }
