package scoring

import (
	"context"
	"errors"
	"time"

	"dialer-platform/internal/leads"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("scoring: not found")
	ErrInvalidArgument = errors.New("scoring: invalid argument")
)

// Repository abstracts persistence for models and scores.
//
// EnsureDefaultModel and ActivateModel are single repository operations so
// a SQL implementation can make them atomic; the engine itself stays
// lock-free.
type Repository interface {
	GetModel(ctx context.Context, id string) (ScoringModel, error)
	GetActiveModel(ctx context.Context, scope ModelScope) (ScoringModel, bool, error)
	CreateModel(ctx context.Context, m ScoringModel) error

	// EnsureDefaultModel returns the active default-scoped model, inserting
	// seed if none exists yet. Concurrent callers must observe one winner.
	EnsureDefaultModel(ctx context.Context, seed ScoringModel) (ScoringModel, error)

	// ActivateModel deactivates every other model in the target's scope and
	// activates the target, as one operation.
	ActivateModel(ctx context.Context, id string) (ScoringModel, error)

	IncrementLeadsScored(ctx context.Context, modelID string, n int) error

	UpsertScore(ctx context.Context, s LeadScore) error
	GetScore(ctx context.Context, leadID string) (LeadScore, error)
	ListScores(ctx context.Context, q ScoreQuery) ([]LeadScore, error)
}

// ScoreQuery selects non-expired scores for the priority queue.
// Results are ordered by OverallScore descending and capped at Limit.
type ScoreQuery struct {
	CampaignID string
	MinScore   int
	LeadIDs    []string
	Limit      int

	// NotExpiredAt excludes scores whose ExpiresAt is at or before it.
	NotExpiredAt time.Time
}

// DefaultScoreTTL is how long a score stays eligible for the priority
// queue before a rescore is required.
const DefaultScoreTTL = 24 * time.Hour

// Service is the lead scoring engine: stateless request-response
// computation over the repository.
type Service struct {
	repo       Repository
	scoreTTL   time.Duration
	queueLimit int

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, scoreTTL: DefaultScoreTTL, queueLimit: defaultQueueLimit, clock: time.Now}
}

// WithScoreTTL overrides the default score freshness window.
func (s *Service) WithScoreTTL(d time.Duration) *Service {
	if d > 0 {
		s.scoreTTL = d
	}
	return s
}

// WithQueueLimit overrides the default priority queue page size.
func (s *Service) WithQueueLimit(n int) *Service {
	if n > 0 {
		s.queueLimit = n
	}
	return s
}

// ScoreLead resolves the applicable model, extracts features, computes the
// score and upserts the one live LeadScore row for the lead.
func (s *Service) ScoreLead(ctx context.Context, lead leads.LeadData) (ScoreResult, error) {
	if lead.ID == "" || lead.OrganizationID == "" {
		return ScoreResult{}, ErrInvalidArgument
	}

	model, err := s.resolveModel(ctx, lead.OrganizationID)
	if err != nil {
		return ScoreResult{}, err
	}

	res, score := s.score(lead, model, s.clock().UTC())
	if err := s.repo.UpsertScore(ctx, score); err != nil {
		return ScoreResult{}, err
	}
	if err := s.repo.IncrementLeadsScored(ctx, model.ID, 1); err != nil {
		return ScoreResult{}, err
	}
	return res, nil
}

// ScoreLeads scores a batch against one resolved model in a single pass.
// All leads must belong to the same organization.
func (s *Service) ScoreLeads(ctx context.Context, organizationID string, batch []leads.LeadData) ([]ScoreResult, error) {
	if organizationID == "" {
		return nil, ErrInvalidArgument
	}
	if len(batch) == 0 {
		return nil, nil
	}

	model, err := s.resolveModel(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	out := make([]ScoreResult, 0, len(batch))
	for _, lead := range batch {
		if lead.ID == "" || lead.OrganizationID != organizationID {
			return nil, ErrInvalidArgument
		}
		res, score := s.score(lead, model, now)
		if err := s.repo.UpsertScore(ctx, score); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := s.repo.IncrementLeadsScored(ctx, model.ID, len(batch)); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) score(lead leads.LeadData, model ScoringModel, now time.Time) (ScoreResult, LeadScore) {
	features := ExtractFeatures(lead, now)
	overall, contactProb, conversionProb := calculateScore(features, model, now)
	slots := calculateBestTimeSlots(model)

	res := ScoreResult{
		LeadID:                lead.ID,
		OverallScore:          overall,
		ContactProbability:    contactProb,
		ConversionProbability: conversionProb,
		BestTimeSlots:         slots,
		Features:              features,
	}
	score := LeadScore{
		LeadID:                lead.ID,
		CampaignID:            lead.CampaignID,
		OrganizationID:        lead.OrganizationID,
		OverallScore:          overall,
		ContactProbability:    contactProb,
		ConversionProbability: conversionProb,
		BestTimeSlots:         slots,
		Features:              features,
		ModelVersion:          model.Version,
		ScoredAt:              now,
		ExpiresAt:             now.Add(s.scoreTTL),
	}
	return res, score
}

// resolveModel prefers the organization's active model and falls back to
// the system default, seeding the built-in default if none exists.
func (s *Service) resolveModel(ctx context.Context, organizationID string) (ScoringModel, error) {
	m, ok, err := s.repo.GetActiveModel(ctx, OrganizationScope(organizationID))
	if err != nil {
		return ScoringModel{}, err
	}
	if ok {
		return m, nil
	}
	return s.EnsureDefaultModel(ctx)
}

// EnsureDefaultModel returns the active system default model, creating the
// built-in seed on first use.
func (s *Service) EnsureDefaultModel(ctx context.Context) (ScoringModel, error) {
	seed := NewDefaultModel()
	seed.ID = uuid.NewString()
	now := s.clock().UTC()
	seed.CreatedAt = now
	seed.UpdatedAt = now
	return s.repo.EnsureDefaultModel(ctx, seed)
}

// CreateModel stores a new, inactive model after validating its scope.
func (s *Service) CreateModel(ctx context.Context, m ScoringModel) (ScoringModel, error) {
	if err := m.Scope.Validate(); err != nil {
		return ScoringModel{}, err
	}
	if m.Name == "" {
		return ScoringModel{}, ErrInvalidArgument
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := s.clock().UTC()
	m.IsActive = false
	m.LeadsScored = 0
	m.CreatedAt = now
	m.UpdatedAt = now
	if err := s.repo.CreateModel(ctx, m); err != nil {
		return ScoringModel{}, err
	}
	return m, nil
}

// ActivateModel flips the target active and every sibling in its scope
// inactive. The repository performs the swap as one operation.
func (s *Service) ActivateModel(ctx context.Context, id string) (ScoringModel, error) {
	if id == "" {
		return ScoringModel{}, ErrInvalidArgument
	}
	return s.repo.ActivateModel(ctx, id)
}

func (s *Service) GetModel(ctx context.Context, id string) (ScoringModel, error) {
	if id == "" {
		return ScoringModel{}, ErrInvalidArgument
	}
	return s.repo.GetModel(ctx, id)
}

func (s *Service) GetScore(ctx context.Context, leadID string) (LeadScore, error) {
	if leadID == "" {
		return LeadScore{}, ErrInvalidArgument
	}
	return s.repo.GetScore(ctx, leadID)
}

// PriorityQueueRequest selects the ranked call list a dialer consumes.
type PriorityQueueRequest struct {
	CampaignID string   `json:"campaign_id"`
	MinScore   int      `json:"min_score"`
	LeadIDs    []string `json:"lead_ids,omitempty"`
	Limit      int      `json:"limit"`
}

const defaultQueueLimit = 100

// GetPriorityQueue returns non-expired scores for a campaign at or above
// MinScore, highest first.
func (s *Service) GetPriorityQueue(ctx context.Context, req PriorityQueueRequest) ([]LeadScore, error) {
	if req.CampaignID == "" {
		return nil, ErrInvalidArgument
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.queueLimit
	}
	return s.repo.ListScores(ctx, ScoreQuery{
		CampaignID:   req.CampaignID,
		MinScore:     req.MinScore,
		LeadIDs:      req.LeadIDs,
		Limit:        limit,
		NotExpiredAt: s.clock().UTC(),
	})
}

// BestTimeResult reports whether now is a good call window and, if not,
// the next concrete time that matches one of the lead's stored slots.
type BestTimeResult struct {
	LeadID        string     `json:"lead_id"`
	IsGoodTimeNow bool       `json:"is_good_time_now"`
	NextBestTime  *time.Time `json:"next_best_time,omitempty"`
	NextSlot      *TimeSlot  `json:"next_slot,omitempty"`
}

// GetBestTimeToCall checks the current (day, hour) in the lead's timezone
// against the stored slots. Tie-break when searching forward: nearest day
// first, then earliest qualifying hour.
func (s *Service) GetBestTimeToCall(ctx context.Context, leadID string) (BestTimeResult, error) {
	score, err := s.GetScore(ctx, leadID)
	if err != nil {
		return BestTimeResult{}, err
	}

	now := localTime(score.Features.Timezone, s.clock())
	day, hour := int(now.Weekday()), now.Hour()

	out := BestTimeResult{LeadID: leadID}
	for _, slot := range score.BestTimeSlots {
		if slot.DayOfWeek == day && slot.Hour == hour {
			out.IsGoodTimeNow = true
			return out, nil
		}
	}

	// Walk forward up to a full week. Day offset 0 only admits later hours
	// today.
	for offset := 0; offset <= 7; offset++ {
		targetDay := (day + offset) % 7
		best := -1
		var bestSlot TimeSlot
		for _, slot := range score.BestTimeSlots {
			if slot.DayOfWeek != targetDay {
				continue
			}
			if offset == 0 && slot.Hour <= hour {
				continue
			}
			if best == -1 || slot.Hour < best {
				best = slot.Hour
				bestSlot = slot
			}
		}
		if best >= 0 {
			next := time.Date(now.Year(), now.Month(), now.Day(), best, 0, 0, 0, now.Location()).AddDate(0, 0, offset)
			out.NextBestTime = &next
			out.NextSlot = &bestSlot
			return out, nil
		}
	}

	// No stored slots at all: nothing to suggest.
	return out, nil
}
