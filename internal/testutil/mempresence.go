package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"tableflow/internal/domain"
)

// MemPresence mirrors the presence repository: an upsert keyed by staff id
// with a last-seen timestamp for stale sweeping.
type MemPresence struct {
	mu   sync.Mutex
	rows map[string]*domain.StaffPresence
}

func NewMemPresence() *MemPresence {
	return &MemPresence{rows: make(map[string]*domain.StaffPresence)}
}

func (m *MemPresence) SetOnline(_ context.Context, staffID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[staffID] = &domain.StaffPresence{StaffID: staffID, Name: name, Online: true, LastSeen: time.Now().UTC()}
	return nil
}

func (m *MemPresence) SetOffline(_ context.Context, staffID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[staffID]; ok {
		row.Online = false
	}
	return nil
}

func (m *MemPresence) Heartbeat(_ context.Context, staffID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[staffID]; ok && row.Online {
		row.LastSeen = time.Now().UTC()
	}
	return nil
}

func (m *MemPresence) Online(context.Context) ([]domain.StaffPresence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StaffPresence
	for _, row := range m.rows {
		if row.Online {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID < out[j].StaffID })
	return out, nil
}

func (m *MemPresence) SweepStale(_ context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	n := 0
	for _, row := range m.rows {
		if row.Online && row.LastSeen.Before(cutoff) {
			row.Online = false
			n++
		}
	}
	return n, nil
}

// Age backdates a session's last-seen mark so sweep behavior can be tested
// without real waiting.
func (m *MemPresence) Age(staffID string, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[staffID]; ok {
		row.LastSeen = row.LastSeen.Add(-by)
	}
}
