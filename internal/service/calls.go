package service

import (
	"context"
	"sync"
	"time"

	"tableflow/internal/common/logger"
	"tableflow/internal/domain"
)

// DefaultCallGrace is how long a handled call stays visible before removal.
const DefaultCallGrace = 5 * time.Second

// CallCoordinator owns all assistance requests. Calls are ephemeral: they
// exist only in this registry, keyed by (table, source), and disappear a
// grace window after being handled. Claiming is a compare-and-set under the
// registry lock, so two waiters racing for one call resolve to exactly one
// winner.
type CallCoordinator struct {
	mu     sync.Mutex
	calls  map[domain.CallKey]*domain.Call
	timers map[domain.CallKey]*time.Timer
	gens   map[domain.CallKey]uint64

	bus   Bus
	grace time.Duration
	lg    *logger.Logger
}

func NewCallCoordinator(bus Bus, grace time.Duration) *CallCoordinator {
	if grace <= 0 {
		grace = DefaultCallGrace
	}
	return &CallCoordinator{
		calls:  make(map[domain.CallKey]*domain.Call),
		timers: make(map[domain.CallKey]*time.Timer),
		gens:   make(map[domain.CallKey]uint64),
		bus:    bus,
		grace:  grace,
		lg:     logger.New("call-coordinator"),
	}
}

// Raise creates an unhandled call, or does nothing if an unhandled one
// already exists for the same key. A handled call waiting out its grace
// window does not block: that request was resolved, so a new raise replaces
// it with a fresh unhandled call. Only a genuinely new call is announced.
func (c *CallCoordinator) Raise(ctx context.Context, tableNo int, source domain.CallSource) error {
	if tableNo < 1 {
		return domain.Validation("tableNo", "must be at least 1")
	}
	if !source.Valid() {
		return domain.Validation("source", "must be menu or kitchen")
	}
	key := domain.CallKey{TableNo: tableNo, Source: source}

	c.mu.Lock()
	if cur, exists := c.calls[key]; exists {
		if cur.HandledBy == nil {
			c.mu.Unlock()
			return nil
		}
		if t, ok := c.timers[key]; ok {
			t.Stop()
			delete(c.timers, key)
		}
	}
	c.gens[key]++
	call := &domain.Call{TableNo: tableNo, Source: source, RaisedAt: time.Now().UTC()}
	c.calls[key] = call
	snapshot := *call
	c.mu.Unlock()

	if err := c.bus.CallRaised(ctx, snapshot); err != nil {
		c.lg.Error("publish_failed", err, map[string]any{"table_no": tableNo, "source": string(source)})
	}
	c.lg.Debug("call_raised", map[string]any{"table_no": tableNo, "source": string(source)})
	return nil
}

// Claim records the first handler and schedules removal after the grace
// window. A second concurrent claim loses with ErrConflict; a claim on an
// unknown key reports ErrNotFound.
func (c *CallCoordinator) Claim(ctx context.Context, tableNo int, source domain.CallSource, handler domain.Principal) (domain.Call, error) {
	key := domain.CallKey{TableNo: tableNo, Source: source}

	c.mu.Lock()
	call, exists := c.calls[key]
	if !exists {
		c.mu.Unlock()
		return domain.Call{}, domain.ErrNotFound
	}
	if call.HandledBy != nil {
		c.mu.Unlock()
		return domain.Call{}, domain.ErrConflict
	}
	call.HandledBy = &domain.HandlerRef{ID: handler.ID, Name: handler.Name}
	now := time.Now().UTC()
	call.HandledAt = &now
	// Deferred removal must fire even if no further events arrive. The
	// generation pins the timer to this call: if a new raise replaces it
	// during the grace window, a stale timer must not remove the successor.
	gen := c.gens[key]
	c.timers[key] = time.AfterFunc(c.grace, func() { c.expire(key, gen) })
	snapshot := *call
	c.mu.Unlock()

	if err := c.bus.CallHandled(ctx, snapshot); err != nil {
		c.lg.Error("publish_failed", err, map[string]any{"table_no": tableNo, "source": string(source)})
	}
	c.lg.Debug("call_handled", map[string]any{"table_no": tableNo, "source": string(source), "handler": handler.ID})
	return snapshot, nil
}

func (c *CallCoordinator) expire(key domain.CallKey, gen uint64) {
	c.mu.Lock()
	if c.gens[key] != gen {
		c.mu.Unlock()
		return
	}
	delete(c.calls, key)
	delete(c.timers, key)
	c.mu.Unlock()
	c.lg.Debug("call_expired", map[string]any{"table_no": key.TableNo, "source": string(key.Source)})
}

// Snapshot returns every unhandled and handled-but-not-yet-expired call, so
// a late-joining session starts consistent instead of incrementally wrong.
func (c *CallCoordinator) Snapshot() []domain.Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Call, 0, len(c.calls))
	for _, call := range c.calls {
		out = append(out, *call)
	}
	return out
}

// Stop cancels pending expiry timers. Calls are not persisted; whatever was
// active is simply gone after a restart, and reconnecting sessions sync from
// the (now empty) snapshot.
func (c *CallCoordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, t := range c.timers {
		t.Stop()
		delete(c.timers, key)
	}
}
