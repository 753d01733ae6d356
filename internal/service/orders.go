// Package service holds the coordination core: the order state machine, the
// addon resolver, the call coordinator and the presence tracker. All shared
// mutable state is owned here and in the repositories; consumers only see
// operation results and bus events.
package service

import (
	"context"
	"errors"

	"tableflow/internal/catalog"
	"tableflow/internal/common/logger"
	"tableflow/internal/domain"
)

// OrderStore is the durable order authority. Every mutating method embeds
// its own compare-and-set condition so that a failure leaves the store
// untouched.
type OrderStore interface {
	SubmitCart(ctx context.Context, o *domain.Order) (*domain.Order, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Claim(ctx context.Context, id string, chef domain.Principal) (*domain.Order, error)
	Unclaim(ctx context.Context, id string) (*domain.Order, error)
	AdvanceStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
	SetPriority(ctx context.Context, id string, priority bool) (*domain.Order, error)
	Close(ctx context.Context, id string) (*domain.Order, error)
	MarkPaid(ctx context.Context, id string) (*domain.Order, error)
	ListLive(ctx context.Context) ([]domain.Order, error)
	ListKitchen(ctx context.Context) ([]domain.Order, error)
	ListHistory(ctx context.Context, limit, offset int) ([]domain.Order, error)
}

// Bus is the fan-out contract. Publishing happens after the store mutation
// committed; consumers re-derive their view from the next authoritative read.
type Bus interface {
	OrderChanged(ctx context.Context, o *domain.Order) error
	CallRaised(ctx context.Context, c domain.Call) error
	CallHandled(ctx context.Context, c domain.Call) error
	PresenceChanged(ctx context.Context, online []domain.StaffPresence) error
	AccountDisabled(ctx context.Context, staffID string) error
	StaffCalled(ctx context.Context, staffID, from, message string) error
	CatalogChanged(ctx context.Context) error
}

// advanceRules are the only transitions Advance will apply. pending->making
// is deliberately absent: that edge exists only through ClaimPreparation.
var advanceRules = map[domain.OrderStatus]domain.OrderStatus{
	domain.StatusMaking: domain.StatusReady,
	domain.StatusReady:  domain.StatusServed,
}

type OrderService struct {
	store   OrderStore
	bus     Bus
	catalog catalog.Lookup
	lg      *logger.Logger
}

func NewOrderService(store OrderStore, bus Bus, lookup catalog.Lookup) *OrderService {
	return &OrderService{store: store, bus: bus, catalog: lookup, lg: logger.New("order-engine")}
}

// SubmitCart runs the submission protocol: attach to the live order for the
// table as a new addon batch, or create a new pending order. The store makes
// the decision atomic; two concurrent submissions for one table can never
// both create.
func (s *OrderService) SubmitCart(ctx context.Context, req domain.SubmitCartRequest) (*domain.Order, bool, error) {
	lines, err := s.snapshotLines(ctx, req.Items)
	if err != nil {
		return nil, false, err
	}
	if req.OrderType == domain.TypeDineIn && req.TableNo < 1 {
		return nil, false, domain.Validation("tableNo", "is required for dine-in orders")
	}
	if req.OrderType == domain.TypeTakeaway {
		// Takeaway slots come from the store's sequence. A client-supplied
		// table number is ignored so it can never collide with a real table.
		req.TableNo = 0
	}

	o := &domain.Order{
		TableNo: req.TableNo,
		Type:    req.OrderType,
		Items:   lines,
	}
	out, created, err := s.store.SubmitCart(ctx, o)
	if err != nil {
		return nil, false, err
	}
	s.publishOrder(ctx, "cart_submitted", out)
	return out, created, nil
}

func (s *OrderService) snapshotLines(ctx context.Context, items []domain.CartLine) ([]domain.OrderLine, error) {
	if len(items) == 0 {
		return nil, domain.Validation("items", "must not be empty")
	}
	lines := make([]domain.OrderLine, 0, len(items))
	for _, it := range items {
		if it.Qty < 1 {
			return nil, domain.Validation("items", "qty must be at least 1")
		}
		line := domain.OrderLine{ProductRef: it.ProductRef, Title: it.Title, Price: it.Price, Qty: it.Qty}
		if s.catalog != nil {
			p, err := s.catalog.Product(ctx, it.ProductRef)
			if errors.Is(err, catalog.ErrUnknownProduct) {
				return nil, domain.Validation("items", "unknown product "+it.ProductRef)
			}
			if err != nil {
				return nil, err
			}
			line.Title = p.Title
			line.Price = p.Price
		}
		if line.Price < 0 {
			return nil, domain.Validation("items", "price must not be negative")
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ClaimPreparation lets exactly one kitchen staff take a pending order.
// Losing the race yields ErrConflict and no mutation.
func (s *OrderService) ClaimPreparation(ctx context.Context, orderID string, chef domain.Principal) (*domain.Order, error) {
	out, err := s.store.Claim(ctx, orderID, chef)
	if err != nil {
		return nil, err
	}
	s.publishOrder(ctx, "preparation_claimed", out)
	return out, nil
}

// UnclaimPreparation is the explicit release required before an order can
// ever be claimed by someone else. Only the owning chef or an admin may do it.
func (s *OrderService) UnclaimPreparation(ctx context.Context, orderID string, p domain.Principal) (*domain.Order, error) {
	cur, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && (cur.AssignedChef == nil || cur.AssignedChef.ID != p.ID) {
		return nil, domain.ErrConflict
	}
	out, err := s.store.Unclaim(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.publishOrder(ctx, "preparation_released", out)
	return out, nil
}

// Advance applies making->ready (owning chef or admin) or ready->served
// (waiter or admin). Anything else is an invalid transition.
func (s *OrderService) Advance(ctx context.Context, orderID string, next domain.OrderStatus, p domain.Principal) (*domain.Order, error) {
	if !next.Valid() {
		return nil, domain.Validation("status", "unknown status "+string(next))
	}
	cur, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if advanceRules[cur.Status] != next {
		return nil, domain.ErrInvalidTransition
	}
	switch next {
	case domain.StatusReady:
		if !p.IsAdmin() && (cur.AssignedChef == nil || cur.AssignedChef.ID != p.ID) {
			return nil, domain.ErrConflict
		}
	case domain.StatusServed:
		if p.Role != domain.RoleWaiter && !p.IsAdmin() {
			return nil, domain.ErrInvalidState
		}
	}
	out, err := s.store.AdvanceStatus(ctx, orderID, cur.Status, next)
	if err != nil {
		return nil, err
	}
	s.publishOrder(ctx, "status_advanced", out)
	return out, nil
}

// SetPriority toggles the flag while the order is still pending or making.
// Afterwards the toggle errors; it is never silently ignored.
func (s *OrderService) SetPriority(ctx context.Context, orderID string, priority bool) (*domain.Order, error) {
	out, err := s.store.SetPriority(ctx, orderID, priority)
	if err != nil {
		return nil, err
	}
	s.publishOrder(ctx, "priority_changed", out)
	return out, nil
}

// CloseOrder frees a table administratively: served and paid in one step.
func (s *OrderService) CloseOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	out, err := s.store.Close(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.publishOrder(ctx, "order_closed", out)
	return out, nil
}

func (s *OrderService) MarkPaid(ctx context.Context, orderID string) (*domain.Order, error) {
	out, err := s.store.MarkPaid(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.publishOrder(ctx, "order_paid", out)
	return out, nil
}

func (s *OrderService) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.store.GetByID(ctx, orderID)
}

func (s *OrderService) LiveBoard(ctx context.Context) ([]domain.Order, error) {
	return s.store.ListLive(ctx)
}

func (s *OrderService) KitchenBoard(ctx context.Context) ([]domain.Order, error) {
	return s.store.ListKitchen(ctx)
}

func (s *OrderService) History(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListHistory(ctx, limit, offset)
}

// publishOrder reports the committed state change. The mutation already
// happened; a publish failure is logged, and connected sessions recover on
// their next full read.
func (s *OrderService) publishOrder(ctx context.Context, action string, o *domain.Order) {
	if err := s.bus.OrderChanged(ctx, o); err != nil {
		s.lg.Error("publish_failed", err, map[string]any{"action": action, "order_id": o.ID})
		return
	}
	s.lg.Debug(action, map[string]any{"order_id": o.ID, "status": string(o.Status)})
}
