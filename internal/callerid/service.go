package callerid

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("callerid: not found")
	ErrConflict          = errors.New("callerid: conflict")
	ErrInvalidArgument   = errors.New("callerid: invalid argument")
	ErrInvalidTransition = errors.New("callerid: invalid status transition")
)

// Repository abstracts persistence for pools, numbers, usage logs and
// reputation events.
//
// Reputation events and usage logs are append-only: usage logs get exactly
// one close, events get none.
type Repository interface {
	CreatePool(ctx context.Context, p Pool) error
	GetPool(ctx context.Context, id string) (Pool, error)
	GetPoolByName(ctx context.Context, organizationID, name string) (Pool, bool, error)
	UpdatePool(ctx context.Context, p Pool) error

	CreateNumber(ctx context.Context, n Number) error
	GetNumber(ctx context.Context, id string) (Number, error)
	GetNumberByPhone(ctx context.Context, poolID, phoneNumber string) (Number, bool, error)
	ListNumbersByPool(ctx context.Context, poolID string) ([]Number, error)
	UpdateNumber(ctx context.Context, n Number) error

	// SweepCooldowns flips cooling_down numbers whose cooldown has elapsed
	// back to active, as one batch update. Returns the number of rows
	// changed. No reputation events are recorded for this transition.
	SweepCooldowns(ctx context.Context, now time.Time) (int, error)

	// ResetDailyCounters zeroes calls_today on every number. Idempotent.
	ResetDailyCounters(ctx context.Context) (int, error)

	AppendUsageLog(ctx context.Context, l UsageLog) error
	GetUsageLog(ctx context.Context, id string) (UsageLog, error)
	CloseUsageLog(ctx context.Context, l UsageLog) error

	AppendReputationEvent(ctx context.Context, e ReputationEvent) error
	ListReputationEvents(ctx context.Context, numberID string, limit int) ([]ReputationEvent, error)
}

// Service is the caller-ID rotation and reputation engine.
type Service struct {
	repo Repository

	// dailyCap mirrors calls_today into Redis for cross-instance
	// visibility. Optional and best-effort; the stored counters stay
	// authoritative for selection.
	dailyCap *DailyCapStore

	// clock and rng are injectable for deterministic tests.
	clock func() time.Time
	rng   *rand.Rand
}

func NewService(repo Repository, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{repo: repo, clock: time.Now, rng: rng}
}

// WithDailyCapStore attaches the optional Redis-backed daily counter.
func (s *Service) WithDailyCapStore(store *DailyCapStore) *Service {
	s.dailyCap = store
	return s
}

/* ===================== POOLS & NUMBERS ===================== */

type CreatePoolRequest struct {
	OrganizationID       string           `json:"organization_id"`
	Name                 string           `json:"name"`
	LocalPresenceEnabled bool             `json:"local_presence_enabled"`
	RotationStrategy     RotationStrategy `json:"rotation_strategy"`
	MaxCallsPerNumber    int              `json:"max_calls_per_number"`
	CooldownMinutes      int              `json:"cooldown_minutes"`
}

func (s *Service) CreatePool(ctx context.Context, req CreatePoolRequest) (Pool, error) {
	if req.OrganizationID == "" || req.Name == "" {
		return Pool{}, ErrInvalidArgument
	}
	if !req.RotationStrategy.Valid() {
		return Pool{}, ErrInvalidArgument
	}
	if _, exists, err := s.repo.GetPoolByName(ctx, req.OrganizationID, req.Name); err != nil {
		return Pool{}, err
	} else if exists {
		return Pool{}, ErrConflict
	}

	now := s.clock().UTC()
	p := Pool{
		ID:                   uuid.NewString(),
		OrganizationID:       req.OrganizationID,
		Name:                 req.Name,
		IsActive:             true,
		LocalPresenceEnabled: req.LocalPresenceEnabled,
		RotationStrategy:     req.RotationStrategy,
		MaxCallsPerNumber:    req.MaxCallsPerNumber,
		CooldownMinutes:      req.CooldownMinutes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.CreatePool(ctx, p); err != nil {
		return Pool{}, err
	}
	return p, nil
}

func (s *Service) GetPool(ctx context.Context, id string) (Pool, error) {
	if id == "" {
		return Pool{}, ErrInvalidArgument
	}
	return s.repo.GetPool(ctx, id)
}

// SetPoolActive toggles a pool in or out of rotation. Selecting from an
// inactive pool yields no number rather than an error.
func (s *Service) SetPoolActive(ctx context.Context, poolID string, active bool) (Pool, error) {
	if poolID == "" {
		return Pool{}, ErrInvalidArgument
	}
	p, err := s.repo.GetPool(ctx, poolID)
	if err != nil {
		return Pool{}, err
	}
	p.IsActive = active
	p.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdatePool(ctx, p); err != nil {
		return Pool{}, err
	}
	return p, nil
}

// initialReputationScore is where new numbers start; they have to earn
// nothing and can only lose standing until answered calls accumulate.
const initialReputationScore = 100

type ImportResult struct {
	Imported int             `json:"imported"`
	Failures []ImportFailure `json:"failures,omitempty"`
}

type ImportFailure struct {
	PhoneNumber string `json:"phone_number"`
	Error       string `json:"error"`
}

// ImportNumbers adds numbers to a pool with partial-failure semantics:
// each number is attempted independently and failures are collected, never
// aborting the batch.
func (s *Service) ImportNumbers(ctx context.Context, poolID string, phoneNumbers []string) (ImportResult, error) {
	if poolID == "" {
		return ImportResult{}, ErrInvalidArgument
	}
	if _, err := s.repo.GetPool(ctx, poolID); err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	now := s.clock().UTC()
	for _, raw := range phoneNumbers {
		phone := NormalizeNumber(raw)
		areaCode, ok := ExtractAreaCode(phone)
		if !ok {
			res.Failures = append(res.Failures, ImportFailure{PhoneNumber: raw, Error: "unparseable area code"})
			continue
		}
		if _, exists, err := s.repo.GetNumberByPhone(ctx, poolID, phone); err != nil {
			res.Failures = append(res.Failures, ImportFailure{PhoneNumber: raw, Error: err.Error()})
			continue
		} else if exists {
			res.Failures = append(res.Failures, ImportFailure{PhoneNumber: raw, Error: "already in pool"})
			continue
		}

		n := Number{
			ID:              uuid.NewString(),
			PoolID:          poolID,
			PhoneNumber:     phone,
			AreaCode:        areaCode,
			Status:          StatusActive,
			ReputationScore: initialReputationScore,
			ReputationLevel: ReputationLevelFor(initialReputationScore),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repo.CreateNumber(ctx, n); err != nil {
			res.Failures = append(res.Failures, ImportFailure{PhoneNumber: raw, Error: err.Error()})
			continue
		}
		res.Imported++
	}
	return res, nil
}

func (s *Service) GetNumber(ctx context.Context, id string) (Number, error) {
	if id == "" {
		return Number{}, ErrInvalidArgument
	}
	return s.repo.GetNumber(ctx, id)
}

/* ===================== SELECTION ===================== */

type SelectionRequest struct {
	PoolID string `json:"pool_id"`

	// LeadPhone is the destination; its area code drives local presence.
	LeadPhone  string `json:"lead_phone"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// SelectCallerIDForLead picks the next number to present for an outbound
// call. A nil result with nil error means "no number available"; callers
// must skip or defer the call, not treat it as a fault.
func (s *Service) SelectCallerIDForLead(ctx context.Context, req SelectionRequest) (*Number, error) {
	if req.PoolID == "" {
		return nil, ErrInvalidArgument
	}
	pool, err := s.repo.GetPool(ctx, req.PoolID)
	if err != nil {
		return nil, err
	}
	if !pool.IsActive {
		return nil, nil
	}

	numbers, err := s.repo.ListNumbersByPool(ctx, req.PoolID)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	candidates := eligibleCandidates(numbers, now)
	if len(candidates) == 0 {
		return nil, nil
	}

	if pool.LocalPresenceEnabled {
		if areaCode, ok := ExtractAreaCode(req.LeadPhone); ok {
			if local := filterByAreaCode(candidates, areaCode); len(local) > 0 {
				candidates = local
			}
		}
	}

	selected := pickByStrategy(candidates, pool.RotationStrategy, s.rng)
	selected = applyDailyCap(selected, candidates, pool.MaxCallsPerNumber, pool.RotationStrategy, s.rng)
	return &selected, nil
}

/* ===================== USAGE TRACKING ===================== */

// RecordCallStart counts an outbound call against a number and opens its
// usage log.
func (s *Service) RecordCallStart(ctx context.Context, numberID, destinationNumber, campaignID string) (UsageLog, error) {
	if numberID == "" || destinationNumber == "" {
		return UsageLog{}, ErrInvalidArgument
	}
	n, err := s.repo.GetNumber(ctx, numberID)
	if err != nil {
		return UsageLog{}, err
	}

	now := s.clock().UTC()
	n.CallsToday++
	n.TotalCalls++
	n.LastUsedAt = &now
	n.UpdatedAt = now
	if err := s.repo.UpdateNumber(ctx, n); err != nil {
		return UsageLog{}, err
	}

	destAreaCode, _ := ExtractAreaCode(destinationNumber)
	log := UsageLog{
		ID:                  uuid.NewString(),
		NumberID:            n.ID,
		CampaignID:          campaignID,
		DestinationNumber:   destinationNumber,
		DestinationAreaCode: destAreaCode,
		StartedAt:           now,
	}
	if err := s.repo.AppendUsageLog(ctx, log); err != nil {
		return UsageLog{}, err
	}

	if s.dailyCap != nil {
		// Best-effort mirror; selection never reads it directly.
		_, _ = s.dailyCap.Incr(ctx, n.ID, now)
	}
	return log, nil
}

// RecordCallResult closes a usage log exactly once. Only an answered
// result credits the number: answered_calls increments and a +1
// reputation event is recorded.
func (s *Service) RecordCallResult(ctx context.Context, usageLogID string, result CallResult, durationSeconds int) (UsageLog, error) {
	if usageLogID == "" || !result.Valid() {
		return UsageLog{}, ErrInvalidArgument
	}
	log, err := s.repo.GetUsageLog(ctx, usageLogID)
	if err != nil {
		return UsageLog{}, err
	}
	if log.CompletedAt != nil {
		return UsageLog{}, ErrConflict
	}

	now := s.clock().UTC()
	log.CallResult = result
	log.WasAnswered = result == CallResultAnswered
	log.CallDurationSeconds = durationSeconds
	log.CompletedAt = &now
	if err := s.repo.CloseUsageLog(ctx, log); err != nil {
		return UsageLog{}, err
	}

	if log.WasAnswered {
		n, err := s.repo.GetNumber(ctx, log.NumberID)
		if err != nil {
			return UsageLog{}, err
		}
		n.AnsweredCalls++
		n.UpdatedAt = now
		if err := s.repo.UpdateNumber(ctx, n); err != nil {
			return UsageLog{}, err
		}
		if _, err := s.UpdateReputation(ctx, log.NumberID, EventCallAnswered, +1, "system", ""); err != nil {
			return UsageLog{}, err
		}
	}
	return log, nil
}

// ResetDailyCounters zeroes calls_today across all numbers. The scheduler
// that triggers it daily lives outside this engine; the operation itself
// is idempotent.
func (s *Service) ResetDailyCounters(ctx context.Context) (int, error) {
	return s.repo.ResetDailyCounters(ctx)
}

/* ===================== STATS ===================== */

func (s *Service) GetPoolStats(ctx context.Context, poolID string) (PoolStats, error) {
	if poolID == "" {
		return PoolStats{}, ErrInvalidArgument
	}
	if _, err := s.repo.GetPool(ctx, poolID); err != nil {
		return PoolStats{}, err
	}
	numbers, err := s.repo.ListNumbersByPool(ctx, poolID)
	if err != nil {
		return PoolStats{}, err
	}

	stats := PoolStats{
		PoolID:    poolID,
		ByStatus:  make(map[NumberStatus]int),
		AreaCodes: make(map[string]int),
	}
	var reputationTotal int
	for _, n := range numbers {
		stats.TotalNumbers++
		stats.ByStatus[n.Status]++
		if n.AreaCode != "" {
			stats.AreaCodes[n.AreaCode]++
		}
		reputationTotal += n.ReputationScore
		stats.TotalCallsToday += n.CallsToday
		stats.TotalCalls += n.TotalCalls
		stats.AnsweredCalls += n.AnsweredCalls
	}
	if stats.TotalNumbers > 0 {
		stats.AverageReputation = float64(reputationTotal) / float64(stats.TotalNumbers)
	}
	if stats.TotalCalls > 0 {
		stats.AnswerRate = float64(stats.AnsweredCalls) / float64(stats.TotalCalls)
	}
	return stats, nil
}

func (s *Service) GetNumberStats(ctx context.Context, numberID string) (NumberStats, error) {
	n, err := s.GetNumber(ctx, numberID)
	if err != nil {
		return NumberStats{}, err
	}
	stats := NumberStats{
		NumberID:        n.ID,
		PhoneNumber:     n.PhoneNumber,
		Status:          n.Status,
		ReputationLevel: n.ReputationLevel,
		ReputationScore: n.ReputationScore,
		CallsToday:      n.CallsToday,
		TotalCalls:      n.TotalCalls,
		AnsweredCalls:   n.AnsweredCalls,
		FlaggedCount:    n.FlaggedCount,
		LastUsedAt:      n.LastUsedAt,
	}
	if n.TotalCalls > 0 {
		stats.AnswerRate = float64(n.AnsweredCalls) / float64(n.TotalCalls)
	}
	return stats, nil
}

func (s *Service) ListReputationEvents(ctx context.Context, numberID string, limit int) ([]ReputationEvent, error) {
	if numberID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListReputationEvents(ctx, numberID, limit)
}
