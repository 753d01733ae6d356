// Package board runs a read-only session against the fan-out bus: the kind
// of consumer every kitchen, waiter or admin view is. It demonstrates the
// mandatory consumption contract: on connect (and on every reconnect) derive
// the view from a fresh authoritative read, then apply events as triggers to
// re-read, never as a substitute for the initial sync.
package board

import (
	"context"
	"encoding/json"
	"time"

	"tableflow/internal/common/logger"
	"tableflow/internal/common/mq"
	"tableflow/internal/domain"
	"tableflow/internal/events"
	"tableflow/internal/service"
)

type Config struct {
	Role    domain.Role
	StaffID string
}

type Subscriber struct {
	client *mq.Client
	orders *service.OrderService
	cfg    Config
	lg     *logger.Logger
}

func New(client *mq.Client, orders *service.OrderService, cfg Config) *Subscriber {
	return &Subscriber{
		client: client,
		orders: orders,
		cfg:    cfg,
		lg:     logger.New("board-subscriber"),
	}
}

func (s *Subscriber) Run(ctx context.Context) error {
	patterns := events.RolePatterns(s.cfg.Role, s.cfg.StaffID)
	queue, err := s.client.SessionQueue(patterns)
	if err != nil {
		return err
	}

	// Full read first. Events published before this point were for sessions
	// that existed then; this session's truth starts here.
	s.refresh(ctx)

	deliveries, err := s.client.Consume(queue, "board-"+string(s.cfg.Role), 10)
	if err != nil {
		return err
	}
	closed := s.client.NotifyClose()

	s.lg.Info("session_started", map[string]any{"role": string(s.cfg.Role), "queue": queue, "patterns": patterns})

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			// The exclusive queue is gone with the channel. Whoever restarts
			// this session must refresh before trusting any event again.
			s.lg.Error("session_lost", amqpErr, nil)
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			s.handle(ctx, d.Body)
			_ = d.Ack(false)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, body []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		s.lg.Error("bad_event", err, nil)
		return
	}
	switch env.Kind {
	case domain.EventOrderChanged, domain.EventCallRaised, domain.EventCallHandled:
		s.refresh(ctx)
	case domain.EventPresenceChanged:
		var ev domain.PresenceChangedEvent
		if err := json.Unmarshal(body, &ev); err == nil {
			s.lg.Info("presence_update", map[string]any{"online": len(ev.Online)})
		}
	case domain.EventAccountDisabled:
		s.lg.Info("account_disabled", map[string]any{"staff_id": s.cfg.StaffID})
	default:
		s.lg.Debug("event_ignored", map[string]any{"kind": string(env.Kind)})
	}
}

// refresh re-derives the board from the store. The projection itself is a
// pure grouping over the snapshot; here it is reduced to counts for logging.
func (s *Subscriber) refresh(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var orders []domain.Order
	var err error
	if s.cfg.Role == domain.RoleKitchen {
		orders, err = s.orders.KitchenBoard(rctx)
	} else {
		orders, err = s.orders.LiveBoard(rctx)
	}
	if err != nil {
		s.lg.Error("refresh_failed", err, nil)
		return
	}

	counts := map[domain.OrderStatus]int{}
	priority := 0
	for _, o := range orders {
		counts[o.Status]++
		if o.IsPriority {
			priority++
		}
	}
	s.lg.Info("board_refreshed", map[string]any{
		"orders":   len(orders),
		"pending":  counts[domain.StatusPending],
		"making":   counts[domain.StatusMaking],
		"ready":    counts[domain.StatusReady],
		"priority": priority,
	})
}
