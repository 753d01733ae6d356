package testutil

import (
	"context"
	"sync"

	"tableflow/internal/domain"
)

// RecordingBus captures published events for assertions.
type RecordingBus struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

type RecordedEvent struct {
	Kind    domain.EventKind
	Order   *domain.Order
	Call    domain.Call
	Online  []domain.StaffPresence
	StaffID string
	Message string
}

func (b *RecordingBus) record(ev RecordedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Events = append(b.Events, ev)
}

func (b *RecordingBus) OrderChanged(_ context.Context, o *domain.Order) error {
	b.record(RecordedEvent{Kind: domain.EventOrderChanged, Order: o})
	return nil
}

func (b *RecordingBus) CallRaised(_ context.Context, c domain.Call) error {
	b.record(RecordedEvent{Kind: domain.EventCallRaised, Call: c})
	return nil
}

func (b *RecordingBus) CallHandled(_ context.Context, c domain.Call) error {
	b.record(RecordedEvent{Kind: domain.EventCallHandled, Call: c})
	return nil
}

func (b *RecordingBus) PresenceChanged(_ context.Context, online []domain.StaffPresence) error {
	b.record(RecordedEvent{Kind: domain.EventPresenceChanged, Online: online})
	return nil
}

func (b *RecordingBus) AccountDisabled(_ context.Context, staffID string) error {
	b.record(RecordedEvent{Kind: domain.EventAccountDisabled, StaffID: staffID})
	return nil
}

func (b *RecordingBus) StaffCalled(_ context.Context, staffID, from, message string) error {
	b.record(RecordedEvent{Kind: domain.EventStaffCalled, StaffID: staffID, Message: message})
	return nil
}

func (b *RecordingBus) CatalogChanged(context.Context) error {
	b.record(RecordedEvent{Kind: domain.EventCatalogChanged})
	return nil
}

// Kinds returns the kinds in publish order.
func (b *RecordingBus) Kinds() []domain.EventKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EventKind, len(b.Events))
	for i, ev := range b.Events {
		out[i] = ev.Kind
	}
	return out
}

// Last returns the most recent event of the given kind, if any.
func (b *RecordingBus) Last(kind domain.EventKind) (RecordedEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.Events) - 1; i >= 0; i-- {
		if b.Events[i].Kind == kind {
			return b.Events[i], true
		}
	}
	return RecordedEvent{}, false
}
