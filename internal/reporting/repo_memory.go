package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"dialer-platform/internal/callerid"
	"dialer-platform/internal/scoring"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.
// It enforces organization and pool isolation on reads.

type MemoryRepo struct {
	mu sync.Mutex

	Scores  []scoring.LeadScore
	Numbers []callerid.Number
	Usage   []callerid.UsageLog
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListScores(ctx context.Context, organizationID, campaignID string) ([]scoring.LeadScore, error) {
	if organizationID == "" {
		return nil, errors.New("organization_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]scoring.LeadScore, 0)
	for _, s := range r.Scores {
		if s.OrganizationID != organizationID {
			continue
		}
		if campaignID != "" && s.CampaignID != campaignID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *MemoryRepo) ListNumbers(ctx context.Context, poolID string) ([]callerid.Number, error) {
	if poolID == "" {
		return nil, errors.New("pool_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]callerid.Number, 0)
	for _, n := range r.Numbers {
		if n.PoolID == poolID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListUsage(ctx context.Context, poolID string, from, to time.Time) ([]callerid.UsageLog, error) {
	if poolID == "" {
		return nil, errors.New("pool_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	numberIDs := make(map[string]bool)
	for _, n := range r.Numbers {
		if n.PoolID == poolID {
			numberIDs[n.ID] = true
		}
	}

	out := make([]callerid.UsageLog, 0)
	for _, l := range r.Usage {
		if !numberIDs[l.NumberID] {
			continue
		}
		if l.StartedAt.Before(from) || !l.StartedAt.Before(to) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
