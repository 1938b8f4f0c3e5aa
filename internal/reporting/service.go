package reporting

import (
	"context"
	"errors"
	"time"

	"dialer-platform/internal/callerid"
	"dialer-platform/internal/scoring"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Methods must enforce organization/pool filtering.
// - Implementations should query immutable sources when possible
//   (usage logs, reputation events, score snapshots).

type Repository interface {
	ListScores(ctx context.Context, organizationID, campaignID string) ([]scoring.LeadScore, error)
	ListNumbers(ctx context.Context, poolID string) ([]callerid.Number, error)
	ListUsage(ctx context.Context, poolID string, from, to time.Time) ([]callerid.UsageLog, error)
}

type Service struct {
	repo Repository

	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

const (
	defaultHighPriorityMin = 75
	defaultLowPriorityMax  = 25
)

func (s *Service) ScoringSummary(ctx context.Context, req ScoringSummaryRequest) (ScoringSummary, error) {
	if req.OrganizationID == "" {
		return ScoringSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return ScoringSummary{}, errors.New("reporting: repository not configured")
	}

	highMin := req.HighPriorityMin
	if highMin <= 0 {
		highMin = defaultHighPriorityMin
	}
	lowMax := req.LowPriorityMax
	if lowMax <= 0 {
		lowMax = defaultLowPriorityMax
	}

	rows, err := s.repo.ListScores(ctx, req.OrganizationID, req.CampaignID)
	if err != nil {
		return ScoringSummary{}, err
	}

	now := s.clock().UTC()
	out := ScoringSummary{OrganizationID: req.OrganizationID, CampaignID: req.CampaignID}
	var scoreTotal, contactTotal, conversionTotal float64
	for _, r := range rows {
		out.TotalLeads++
		if !r.ExpiresAt.After(now) {
			out.ExpiredScores++
		}
		if r.OverallScore >= highMin {
			out.HighPriority++
		}
		if r.OverallScore <= lowMax {
			out.LowPriority++
		}

		bucket := r.OverallScore / 25
		if bucket > 3 {
			bucket = 3
		}
		out.Distribution[bucket]++

		scoreTotal += float64(r.OverallScore)
		contactTotal += r.ContactProbability
		conversionTotal += r.ConversionProbability
	}
	if out.TotalLeads > 0 {
		n := float64(out.TotalLeads)
		out.AverageScore = scoreTotal / n
		out.AverageContactProbability = contactTotal / n
		out.AverageConversionProbability = conversionTotal / n
	}
	return out, nil
}

func (s *Service) PoolHealth(ctx context.Context, req PoolHealthRequest) (PoolHealthSummary, error) {
	if req.PoolID == "" {
		return PoolHealthSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return PoolHealthSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return PoolHealthSummary{}, errors.New("reporting: repository not configured")
	}

	numbers, err := s.repo.ListNumbers(ctx, req.PoolID)
	if err != nil {
		return PoolHealthSummary{}, err
	}
	usage, err := s.repo.ListUsage(ctx, req.PoolID, req.Range.From, req.Range.To)
	if err != nil {
		return PoolHealthSummary{}, err
	}

	out := PoolHealthSummary{
		PoolID:              req.PoolID,
		ByStatus:            make(map[callerid.NumberStatus]int),
		ReputationHistogram: make(map[callerid.ReputationLevel]int),
	}
	var reputationTotal int
	for _, n := range numbers {
		out.TotalNumbers++
		out.ByStatus[n.Status]++
		out.ReputationHistogram[n.ReputationLevel]++
		reputationTotal += n.ReputationScore
		if n.FlaggedCount > 0 {
			out.FlaggedNumbers++
		}
	}
	if out.TotalNumbers > 0 {
		out.AverageReputation = float64(reputationTotal) / float64(out.TotalNumbers)
	}

	for _, l := range usage {
		out.CallsInRange++
		if l.WasAnswered {
			out.AnsweredInRange++
		}
	}
	if out.CallsInRange > 0 {
		out.AnswerRate = float64(out.AnsweredInRange) / float64(out.CallsInRange)
	}
	return out, nil
}
