// Package testutil provides in-memory doubles for the store and bus
// interfaces. MemStore mirrors the repository's compare-and-set semantics
// under a mutex so concurrency properties can be exercised without Postgres.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tableflow/internal/domain"
)

type MemStore struct {
	mu     sync.Mutex
	seq    int
	slot   int
	orders map[string]*domain.Order
}

func NewMemStore() *MemStore {
	return &MemStore{orders: make(map[string]*domain.Order), slot: domain.TakeawaySlotBase}
}

// checkChefStatus mirrors the orders_chef_status table constraint: a chef is
// recorded iff the order is making or ready. Any mutation producing a row
// the real schema would reject must fail here too.
func checkChefStatus(o *domain.Order) error {
	inPrep := o.Status == domain.StatusMaking || o.Status == domain.StatusReady
	if (o.AssignedChef != nil) != inPrep {
		return fmt.Errorf("chef/status constraint violated: status=%s chef=%v", o.Status, o.AssignedChef != nil)
	}
	return nil
}

func (m *MemStore) clone(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderLine(nil), o.Items...)
	cp.AddOns = make([]domain.AddonBatch, len(o.AddOns))
	for i, b := range o.AddOns {
		cp.AddOns[i] = domain.AddonBatch{AddedAt: b.AddedAt, Items: append([]domain.OrderLine(nil), b.Items...)}
	}
	if o.AssignedChef != nil {
		chef := *o.AssignedChef
		cp.AssignedChef = &chef
	}
	return &cp
}

func (m *MemStore) SubmitCart(_ context.Context, o *domain.Order) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o.Type == domain.TypeDineIn {
		for _, existing := range m.orders {
			if existing.Type == domain.TypeDineIn && existing.TableNo == o.TableNo && existing.Live() {
				existing.AddOns = append(existing.AddOns, domain.AddonBatch{
					Items:   append([]domain.OrderLine(nil), o.Items...),
					AddedAt: time.Now().UTC(),
				})
				existing.Total = existing.ComputeTotal()
				existing.UpdatedAt = time.Now().UTC()
				return m.clone(existing), false, nil
			}
		}
	} else if o.TableNo == 0 {
		m.slot++
		o.TableNo = m.slot
	}

	m.seq++
	now := time.Now().UTC()
	created := &domain.Order{
		ID:        fmt.Sprintf("order-%d", m.seq),
		TableNo:   o.TableNo,
		Type:      o.Type,
		Items:     append([]domain.OrderLine(nil), o.Items...),
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created.Total = created.ComputeTotal()
	m.orders[created.ID] = created
	return m.clone(created), true, nil
}

func (m *MemStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.clone(o), nil
}

func (m *MemStore) Claim(_ context.Context, id string, chef domain.Principal) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != domain.StatusPending || o.AssignedChef != nil {
		return nil, domain.ErrConflict
	}
	o.Status = domain.StatusMaking
	o.AssignedChef = &domain.ChefRef{ID: chef.ID, Name: chef.Name}
	o.UpdatedAt = time.Now().UTC()
	if err := checkChefStatus(o); err != nil {
		return nil, err
	}
	return m.clone(o), nil
}

func (m *MemStore) Unclaim(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != domain.StatusMaking {
		return nil, domain.ErrInvalidState
	}
	o.Status = domain.StatusPending
	o.AssignedChef = nil
	o.UpdatedAt = time.Now().UTC()
	if err := checkChefStatus(o); err != nil {
		return nil, err
	}
	return m.clone(o), nil
}

func (m *MemStore) AdvanceStatus(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != from {
		return nil, domain.ErrConflict
	}
	o.Status = to
	if to == domain.StatusServed {
		o.AssignedChef = nil
	}
	o.UpdatedAt = time.Now().UTC()
	if err := checkChefStatus(o); err != nil {
		return nil, err
	}
	return m.clone(o), nil
}

func (m *MemStore) SetPriority(_ context.Context, id string, priority bool) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status != domain.StatusPending && o.Status != domain.StatusMaking {
		return nil, domain.ErrInvalidState
	}
	o.IsPriority = priority
	o.UpdatedAt = time.Now().UTC()
	return m.clone(o), nil
}

func (m *MemStore) Close(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o.Status = domain.StatusServed
	o.Paid = true
	o.AssignedChef = nil
	o.UpdatedAt = time.Now().UTC()
	if err := checkChefStatus(o); err != nil {
		return nil, err
	}
	return m.clone(o), nil
}

func (m *MemStore) MarkPaid(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o.Paid = true
	o.UpdatedAt = time.Now().UTC()
	return m.clone(o), nil
}

func (m *MemStore) listLocked(keep func(*domain.Order) bool) []domain.Order {
	var out []domain.Order
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, *m.clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemStore) ListLive(context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(func(o *domain.Order) bool { return o.Live() || !o.Paid }), nil
}

func (m *MemStore) ListKitchen(context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(func(o *domain.Order) bool { return o.Status != domain.StatusServed }), nil
}

func (m *MemStore) ListHistory(_ context.Context, limit, offset int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.listLocked(func(o *domain.Order) bool { return o.Status == domain.StatusServed && o.Paid })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// LiveCount reports how many live orders a table currently has; the
// submission protocol promises this never exceeds one.
func (m *MemStore) LiveCount(tableNo int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.orders {
		if o.TableNo == tableNo && o.Live() {
			n++
		}
	}
	return n
}
