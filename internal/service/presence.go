package service

import (
	"context"
	"time"

	"tableflow/internal/common/logger"
	"tableflow/internal/domain"
)

// PresenceStore persists which staff accounts are currently connected.
type PresenceStore interface {
	SetOnline(ctx context.Context, staffID, name string) error
	SetOffline(ctx context.Context, staffID string) error
	Heartbeat(ctx context.Context, staffID string) error
	Online(ctx context.Context) ([]domain.StaffPresence, error)
	SweepStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// PresenceTracker maintains the online set and broadcasts the full set on
// every change. Full-set broadcasts keep consumers self-healing: a missed
// message is corrected by the next one.
type PresenceTracker struct {
	store PresenceStore
	bus   Bus
	stale time.Duration
	lg    *logger.Logger
}

func NewPresenceTracker(store PresenceStore, bus Bus, stale time.Duration) *PresenceTracker {
	if stale <= 0 {
		stale = 90 * time.Second
	}
	return &PresenceTracker{store: store, bus: bus, stale: stale, lg: logger.New("presence")}
}

func (t *PresenceTracker) SetOnline(ctx context.Context, p domain.Principal) error {
	if err := t.store.SetOnline(ctx, p.ID, p.Name); err != nil {
		return err
	}
	t.broadcast(ctx)
	return nil
}

func (t *PresenceTracker) SetOffline(ctx context.Context, staffID string) error {
	if err := t.store.SetOffline(ctx, staffID); err != nil {
		return err
	}
	t.broadcast(ctx)
	return nil
}

func (t *PresenceTracker) Heartbeat(ctx context.Context, staffID string) error {
	return t.store.Heartbeat(ctx, staffID)
}

func (t *PresenceTracker) Online(ctx context.Context) ([]domain.StaffPresence, error) {
	return t.store.Online(ctx)
}

// DisableStaff forces the account's sessions out via a targeted event. This
// is an administrative kick, not just a presence change: the session must
// log itself out when it sees the event.
func (t *PresenceTracker) DisableStaff(ctx context.Context, staffID string) error {
	if err := t.bus.AccountDisabled(ctx, staffID); err != nil {
		return err
	}
	if err := t.store.SetOffline(ctx, staffID); err != nil {
		return err
	}
	t.broadcast(ctx)
	t.lg.Info("staff_disabled", map[string]any{"staff_id": staffID})
	return nil
}

// CallStaff pings one account's sessions with a message from the admin.
func (t *PresenceTracker) CallStaff(ctx context.Context, staffID, from, message string) error {
	if message == "" {
		message = "Admin is calling you"
	}
	return t.bus.StaffCalled(ctx, staffID, from, message)
}

// RunSweeper marks silent sessions offline on an interval, so a connection
// that died without an explicit offline never leaves a stale indicator.
func (t *PresenceTracker) RunSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := t.store.SweepStale(ctx, t.stale)
			if err != nil {
				t.lg.Error("sweep_failed", err, nil)
				continue
			}
			if n > 0 {
				t.lg.Info("stale_sessions_swept", map[string]any{"count": n})
				t.broadcast(ctx)
			}
		}
	}
}

func (t *PresenceTracker) broadcast(ctx context.Context) {
	online, err := t.store.Online(ctx)
	if err != nil {
		t.lg.Error("presence_read_failed", err, nil)
		return
	}
	if err := t.bus.PresenceChanged(ctx, online); err != nil {
		t.lg.Error("publish_failed", err, nil)
	}
}
