package scoring

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests and early
// development. The mutex serializes EnsureDefaultModel and ActivateModel,
// giving the same single-winner guarantee a transactional implementation
// provides.
//
// NOTE: This is not intended for production; replace with the Postgres
// implementation.
type MemoryRepo struct {
	mu     sync.Mutex
	models map[string]ScoringModel
	scores map[string]LeadScore
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		models: make(map[string]ScoringModel),
		scores: make(map[string]LeadScore),
	}
}

func (r *MemoryRepo) GetModel(ctx context.Context, id string) (ScoringModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[id]
	if !ok {
		return ScoringModel{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepo) GetActiveModel(ctx context.Context, scope ModelScope) (ScoringModel, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeInScope(scope)
}

func (r *MemoryRepo) activeInScope(scope ModelScope) (ScoringModel, bool, error) {
	for _, m := range r.models {
		if m.IsActive && m.Scope == scope {
			return m, true, nil
		}
	}
	return ScoringModel{}, false, nil
}

func (r *MemoryRepo) CreateModel(ctx context.Context, m ScoringModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[m.ID]; exists {
		return ErrInvalidArgument
	}
	r.models[m.ID] = m
	return nil
}

func (r *MemoryRepo) EnsureDefaultModel(ctx context.Context, seed ScoringModel) (ScoringModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok, _ := r.activeInScope(DefaultScope()); ok {
		return m, nil
	}
	r.models[seed.ID] = seed
	return seed, nil
}

func (r *MemoryRepo) ActivateModel(ctx context.Context, id string) (ScoringModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.models[id]
	if !ok {
		return ScoringModel{}, ErrNotFound
	}
	for mid, m := range r.models {
		if mid == id || m.Scope != target.Scope {
			continue
		}
		if m.IsActive {
			m.IsActive = false
			r.models[mid] = m
		}
	}
	target.IsActive = true
	r.models[id] = target
	return target, nil
}

func (r *MemoryRepo) IncrementLeadsScored(ctx context.Context, modelID string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[modelID]
	if !ok {
		return ErrNotFound
	}
	m.LeadsScored += int64(n)
	r.models[modelID] = m
	return nil
}

func (r *MemoryRepo) UpsertScore(ctx context.Context, s LeadScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[s.LeadID] = s
	return nil
}

func (r *MemoryRepo) GetScore(ctx context.Context, leadID string) (LeadScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scores[leadID]
	if !ok {
		return LeadScore{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepo) ListScores(ctx context.Context, q ScoreQuery) ([]LeadScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idSet map[string]struct{}
	if len(q.LeadIDs) > 0 {
		idSet = make(map[string]struct{}, len(q.LeadIDs))
		for _, id := range q.LeadIDs {
			idSet[id] = struct{}{}
		}
	}

	var out []LeadScore
	for _, s := range r.scores {
		if q.CampaignID != "" && s.CampaignID != q.CampaignID {
			continue
		}
		if s.OverallScore < q.MinScore {
			continue
		}
		if !q.NotExpiredAt.IsZero() && !s.ExpiresAt.After(q.NotExpiredAt) {
			continue
		}
		if idSet != nil {
			if _, ok := idSet[s.LeadID]; !ok {
				continue
			}
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].OverallScore != out[j].OverallScore {
			return out[i].OverallScore > out[j].OverallScore
		}
		return out[i].LeadID < out[j].LeadID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
