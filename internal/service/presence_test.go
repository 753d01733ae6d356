package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflow/internal/domain"
	"tableflow/internal/service"
	"tableflow/internal/testutil"
)

func newTracker(t *testing.T) (*service.PresenceTracker, *testutil.MemPresence, *testutil.RecordingBus) {
	t.Helper()
	store := testutil.NewMemPresence()
	bus := &testutil.RecordingBus{}
	return service.NewPresenceTracker(store, bus, time.Minute), store, bus
}

func TestPresence_BroadcastsFullSet(t *testing.T) {
	tracker, _, bus := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.SetOnline(ctx, waiter))
	require.NoError(t, tracker.SetOnline(ctx, chefA))

	ev, ok := bus.Last(domain.EventPresenceChanged)
	require.True(t, ok)
	require.Len(t, ev.Online, 2, "each change carries the whole online set")

	require.NoError(t, tracker.SetOffline(ctx, waiter.ID))
	ev, ok = bus.Last(domain.EventPresenceChanged)
	require.True(t, ok)
	require.Len(t, ev.Online, 1)
	assert.Equal(t, chefA.ID, ev.Online[0].StaffID)
}

func TestPresence_HeartbeatKeepsSessionAlive(t *testing.T) {
	tracker, store, _ := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.SetOnline(ctx, waiter))
	store.Age(waiter.ID, 2*time.Minute)
	require.NoError(t, tracker.Heartbeat(ctx, waiter.ID))

	swept, err := store.SweepStale(ctx, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, swept, "a fresh heartbeat resets last-seen")
}

func TestPresence_SweepDropsSilentSessions(t *testing.T) {
	tracker, store, _ := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.SetOnline(ctx, waiter))
	require.NoError(t, tracker.SetOnline(ctx, chefA))
	store.Age(waiter.ID, 2*time.Minute)

	swept, err := store.SweepStale(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	online, err := tracker.Online(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, chefA.ID, online[0].StaffID)
}

func TestDisableStaff_TargetsThenDropsPresence(t *testing.T) {
	tracker, _, bus := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.SetOnline(ctx, waiter))
	require.NoError(t, tracker.DisableStaff(ctx, waiter.ID))

	disabled, ok := bus.Last(domain.EventAccountDisabled)
	require.True(t, ok)
	assert.Equal(t, waiter.ID, disabled.StaffID)

	presence, ok := bus.Last(domain.EventPresenceChanged)
	require.True(t, ok)
	assert.Empty(t, presence.Online)

	kinds := bus.Kinds()
	require.GreaterOrEqual(t, len(kinds), 2)
	assert.Equal(t, domain.EventAccountDisabled, kinds[len(kinds)-2], "the kick goes out before the presence update")
}

func TestCallStaff_DefaultMessage(t *testing.T) {
	tracker, _, bus := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.CallStaff(ctx, waiter.ID, "admin-1", ""))
	ev, ok := bus.Last(domain.EventStaffCalled)
	require.True(t, ok)
	assert.Equal(t, waiter.ID, ev.StaffID)
	assert.Equal(t, "Admin is calling you", ev.Message)

	require.NoError(t, tracker.CallStaff(ctx, waiter.ID, "admin-1", "come to the office"))
	ev, _ = bus.Last(domain.EventStaffCalled)
	assert.Equal(t, "come to the office", ev.Message)
}
