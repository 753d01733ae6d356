// Package events publishes state-change notifications on the fan-out bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"tableflow/internal/common/mq"
	"tableflow/internal/domain"
)

// Routing keys. "role.all.*" reaches every session, "role.waiter.*" only
// waiter sessions, "staff.<id>.*" exactly the sessions of one account.
func roleKey(role string, kind domain.EventKind) string {
	return fmt.Sprintf("role.%s.%s", role, kind)
}

func staffKey(staffID string, kind domain.EventKind) string {
	return fmt.Sprintf("staff.%s.%s", staffID, kind)
}

// RolePatterns returns the binding patterns a session of the given role
// subscribes with.
func RolePatterns(role domain.Role, staffID string) []string {
	pats := []string{"role.all.*"}
	if role == domain.RoleWaiter || role == domain.RoleAdmin {
		pats = append(pats, "role.waiter.*")
	}
	if staffID != "" {
		pats = append(pats, fmt.Sprintf("staff.%s.*", staffID))
	}
	return pats
}

type Publisher struct {
	client *mq.Client
	source string
}

func NewPublisher(client *mq.Client, source string) *Publisher {
	return &Publisher{client: client, source: source}
}

func (p *Publisher) publish(ctx context.Context, key, correlation string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, key, amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     uuid.NewString(),
		CorrelationId: correlation,
		Timestamp:     time.Now().UTC(),
		Headers:       amqp.Table{"x-source": p.source},
		Body:          body,
	})
}

func envelope(kind domain.EventKind) domain.Envelope {
	return domain.Envelope{Kind: kind, OccurredAt: time.Now().UTC()}
}

func (p *Publisher) OrderChanged(ctx context.Context, o *domain.Order) error {
	ev := domain.OrderChangedEvent{Envelope: envelope(domain.EventOrderChanged), Order: o}
	return p.publish(ctx, roleKey("all", domain.EventOrderChanged), o.ID, ev)
}

func (p *Publisher) CatalogChanged(ctx context.Context) error {
	ev := envelope(domain.EventCatalogChanged)
	return p.publish(ctx, roleKey("all", domain.EventCatalogChanged), "", ev)
}

func (p *Publisher) CallRaised(ctx context.Context, c domain.Call) error {
	ev := domain.CallEvent{Envelope: envelope(domain.EventCallRaised), Call: c}
	return p.publish(ctx, roleKey("waiter", domain.EventCallRaised), callCorrelation(c), ev)
}

func (p *Publisher) CallHandled(ctx context.Context, c domain.Call) error {
	ev := domain.CallEvent{Envelope: envelope(domain.EventCallHandled), Call: c}
	return p.publish(ctx, roleKey("waiter", domain.EventCallHandled), callCorrelation(c), ev)
}

func (p *Publisher) PresenceChanged(ctx context.Context, online []domain.StaffPresence) error {
	ev := domain.PresenceChangedEvent{Envelope: envelope(domain.EventPresenceChanged), Online: online}
	return p.publish(ctx, roleKey("all", domain.EventPresenceChanged), "", ev)
}

func (p *Publisher) AccountDisabled(ctx context.Context, staffID string) error {
	ev := domain.AccountDisabledEvent{Envelope: envelope(domain.EventAccountDisabled), StaffID: staffID}
	return p.publish(ctx, staffKey(staffID, domain.EventAccountDisabled), staffID, ev)
}

func (p *Publisher) StaffCalled(ctx context.Context, staffID, from, message string) error {
	ev := domain.StaffCalledEvent{Envelope: envelope(domain.EventStaffCalled), StaffID: staffID, From: from, Message: message}
	return p.publish(ctx, staffKey(staffID, domain.EventStaffCalled), staffID, ev)
}

func callCorrelation(c domain.Call) string {
	return strconv.Itoa(c.TableNo) + "/" + string(c.Source)
}
