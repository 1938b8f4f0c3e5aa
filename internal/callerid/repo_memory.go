package callerid

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository used in tests and single-node
// setups. All maps are guarded by one mutex.
type MemoryRepo struct {
	mu sync.Mutex

	pools   map[string]Pool
	numbers map[string]Number
	usage   map[string]UsageLog
	events  map[string][]ReputationEvent
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		pools:   make(map[string]Pool),
		numbers: make(map[string]Number),
		usage:   make(map[string]UsageLog),
		events:  make(map[string][]ReputationEvent),
	}
}

func (r *MemoryRepo) CreatePool(_ context.Context, p Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[p.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.pools {
		if existing.OrganizationID == p.OrganizationID && existing.Name == p.Name {
			return ErrConflict
		}
	}
	r.pools[p.ID] = p
	return nil
}

func (r *MemoryRepo) GetPool(_ context.Context, id string) (Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[id]
	if !ok {
		return Pool{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) GetPoolByName(_ context.Context, organizationID, name string) (Pool, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pools {
		if p.OrganizationID == organizationID && p.Name == name {
			return p, true, nil
		}
	}
	return Pool{}, false, nil
}

func (r *MemoryRepo) UpdatePool(_ context.Context, p Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[p.ID]; !ok {
		return ErrNotFound
	}
	r.pools[p.ID] = p
	return nil
}

func (r *MemoryRepo) CreateNumber(_ context.Context, n Number) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.numbers[n.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.numbers {
		if existing.PoolID == n.PoolID && existing.PhoneNumber == n.PhoneNumber {
			return ErrConflict
		}
	}
	r.numbers[n.ID] = n
	return nil
}

func (r *MemoryRepo) GetNumber(_ context.Context, id string) (Number, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.numbers[id]
	if !ok {
		return Number{}, ErrNotFound
	}
	return n, nil
}

func (r *MemoryRepo) GetNumberByPhone(_ context.Context, poolID, phoneNumber string) (Number, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.numbers {
		if n.PoolID == poolID && n.PhoneNumber == phoneNumber {
			return n, true, nil
		}
	}
	return Number{}, false, nil
}

func (r *MemoryRepo) ListNumbersByPool(_ context.Context, poolID string) ([]Number, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Number
	for _, n := range r.numbers {
		if n.PoolID == poolID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) UpdateNumber(_ context.Context, n Number) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.numbers[n.ID]; !ok {
		return ErrNotFound
	}
	r.numbers[n.ID] = n
	return nil
}

func (r *MemoryRepo) SweepCooldowns(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var swept int
	for id, n := range r.numbers {
		if n.Status != StatusCoolingDown {
			continue
		}
		if n.CooldownUntil != nil && n.CooldownUntil.After(now) {
			continue
		}
		n.Status = StatusActive
		n.CooldownUntil = nil
		n.UpdatedAt = now
		r.numbers[id] = n
		swept++
	}
	return swept, nil
}

func (r *MemoryRepo) ResetDailyCounters(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reset int
	for id, n := range r.numbers {
		if n.CallsToday == 0 {
			continue
		}
		n.CallsToday = 0
		r.numbers[id] = n
		reset++
	}
	return reset, nil
}

func (r *MemoryRepo) AppendUsageLog(_ context.Context, l UsageLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.usage[l.ID]; ok {
		return ErrConflict
	}
	r.usage[l.ID] = l
	return nil
}

func (r *MemoryRepo) GetUsageLog(_ context.Context, id string) (UsageLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.usage[id]
	if !ok {
		return UsageLog{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepo) CloseUsageLog(_ context.Context, l UsageLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.usage[l.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.CompletedAt != nil {
		return ErrConflict
	}
	r.usage[l.ID] = l
	return nil
}

func (r *MemoryRepo) AppendReputationEvent(_ context.Context, e ReputationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[e.NumberID] = append(r.events[e.NumberID], e)
	return nil
}

func (r *MemoryRepo) ListReputationEvents(_ context.Context, numberID string, limit int) ([]ReputationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events[numberID]
	// Newest first.
	out := make([]ReputationEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
