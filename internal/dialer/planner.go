package dialer

import (
	"context"
	"errors"

	"dialer-platform/internal/callerid"
	"dialer-platform/internal/scoring"
)

// CallPlacer is the provider boundary: the component that actually
// originates calls. No provider SDK calls outside placer adapters.
type CallPlacer interface {
	Name() string
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)
}

type PlaceCallRequest struct {
	OrganizationID string `json:"organization_id"`
	CampaignID     string `json:"campaign_id"`
	LeadID         string `json:"lead_id"`

	// From is the selected caller ID, To the lead's number.
	From string `json:"from"`
	To   string `json:"to"`
}

type PlaceCallResult struct {
	// ProviderCallID is the placer's identifier for the originated call.
	ProviderCallID string `json:"provider_call_id"`
}

// ScoreSource is the slice of the scoring engine the planner consumes.
// Satisfied by *scoring.Service.
type ScoreSource interface {
	GetPriorityQueue(ctx context.Context, req scoring.PriorityQueueRequest) ([]scoring.LeadScore, error)
	GetBestTimeToCall(ctx context.Context, leadID string) (scoring.BestTimeResult, error)
}

// NumberSource is the slice of the caller-ID engine the planner consumes.
// Satisfied by *callerid.Service.
type NumberSource interface {
	SelectCallerIDForLead(ctx context.Context, req callerid.SelectionRequest) (*callerid.Number, error)
	RecordCallStart(ctx context.Context, numberID, destinationNumber, campaignID string) (callerid.UsageLog, error)
}

// PlannerOptions carries the resolver seams the planner needs but does
// not own. Campaign and lead data live outside this engine.
type PlannerOptions struct {
	// LeadPhoneResolver maps a lead to its dialable number.
	LeadPhoneResolver func(ctx context.Context, leadID string) (string, error)

	// PoolResolver maps a campaign to its caller-ID pool.
	PoolResolver func(ctx context.Context, campaignID string) (poolID string, err error)

	// Gate, when set, caps concurrent originations per organization.
	Gate DialGate
}

// Planner composes the two engines into a dial-ready call plan.
type Planner struct {
	scores  ScoreSource
	numbers NumberSource
	opts    PlannerOptions
}

func NewPlanner(scores ScoreSource, numbers NumberSource, opts PlannerOptions) (*Planner, error) {
	if scores == nil || numbers == nil {
		return nil, errors.New("dialer: score and number sources are required")
	}
	if opts.LeadPhoneResolver == nil || opts.PoolResolver == nil {
		return nil, errors.New("dialer: lead phone and pool resolvers are required")
	}
	return &Planner{scores: scores, numbers: numbers, opts: opts}, nil
}

type PlanRequest struct {
	OrganizationID string `json:"organization_id"`
	CampaignID     string `json:"campaign_id"`
	MinScore       int    `json:"min_score"`
	Limit          int    `json:"limit"`

	// IncludeOffWindow keeps leads whose best call window is not now.
	// Default behavior defers them to SkippedOffWindow.
	IncludeOffWindow bool `json:"include_off_window"`
}

type PlanEntry struct {
	LeadID    string `json:"lead_id"`
	LeadPhone string `json:"lead_phone"`
	Score     int    `json:"score"`

	CallerNumberID string `json:"caller_number_id"`
	CallerPhone    string `json:"caller_phone"`
}

type CallPlan struct {
	CampaignID string      `json:"campaign_id"`
	Entries    []PlanEntry `json:"entries"`

	// SkippedOffWindow lists leads deferred because now is a bad time;
	// SkippedNoCallerID lists leads with no available number. Both are
	// skips, not errors: the queue re-serves them on the next cycle.
	SkippedOffWindow  []string `json:"skipped_off_window,omitempty"`
	SkippedNoCallerID []string `json:"skipped_no_caller_id,omitempty"`
}

// BuildCallPlan walks the priority queue highest-score first, keeps leads
// that are in a good call window, and attaches a caller ID per lead.
func (p *Planner) BuildCallPlan(ctx context.Context, req PlanRequest) (CallPlan, error) {
	if req.CampaignID == "" {
		return CallPlan{}, errors.New("dialer: campaign_id required")
	}

	queue, err := p.scores.GetPriorityQueue(ctx, scoring.PriorityQueueRequest{
		CampaignID: req.CampaignID,
		MinScore:   req.MinScore,
		Limit:      req.Limit,
	})
	if err != nil {
		return CallPlan{}, err
	}

	poolID, err := p.opts.PoolResolver(ctx, req.CampaignID)
	if err != nil {
		return CallPlan{}, err
	}

	plan := CallPlan{CampaignID: req.CampaignID}
	for _, score := range queue {
		if !req.IncludeOffWindow {
			bt, err := p.scores.GetBestTimeToCall(ctx, score.LeadID)
			if err != nil {
				return CallPlan{}, err
			}
			if !bt.IsGoodTimeNow {
				plan.SkippedOffWindow = append(plan.SkippedOffWindow, score.LeadID)
				continue
			}
		}

		phone, err := p.opts.LeadPhoneResolver(ctx, score.LeadID)
		if err != nil {
			return CallPlan{}, err
		}

		number, err := p.numbers.SelectCallerIDForLead(ctx, callerid.SelectionRequest{
			PoolID:     poolID,
			LeadPhone:  phone,
			CampaignID: req.CampaignID,
		})
		if err != nil {
			return CallPlan{}, err
		}
		if number == nil {
			plan.SkippedNoCallerID = append(plan.SkippedNoCallerID, score.LeadID)
			continue
		}

		plan.Entries = append(plan.Entries, PlanEntry{
			LeadID:         score.LeadID,
			LeadPhone:      phone,
			Score:          score.OverallScore,
			CallerNumberID: number.ID,
			CallerPhone:    number.PhoneNumber,
		})
	}
	return plan, nil
}

type DispatchResult struct {
	Placed []PlacedCall `json:"placed"`

	// Failed carries per-entry placement errors; one bad call does not
	// abort the batch.
	Failed []DispatchFailure `json:"failed,omitempty"`
}

type PlacedCall struct {
	LeadID         string `json:"lead_id"`
	ProviderCallID string `json:"provider_call_id"`
	UsageLogID     string `json:"usage_log_id"`
}

type DispatchFailure struct {
	LeadID string `json:"lead_id"`
	Error  string `json:"error"`
}

// Dispatch hands a plan to the placer, recording caller-ID usage for each
// call that goes out.
func (p *Planner) Dispatch(ctx context.Context, organizationID string, plan CallPlan, placer CallPlacer) (DispatchResult, error) {
	if placer == nil {
		return DispatchResult{}, errors.New("dialer: placer is required")
	}

	var out DispatchResult
	for _, entry := range plan.Entries {
		if p.opts.Gate != nil {
			ok, err := p.opts.Gate.Acquire(ctx, organizationID)
			if err != nil {
				out.Failed = append(out.Failed, DispatchFailure{LeadID: entry.LeadID, Error: err.Error()})
				continue
			}
			if !ok {
				out.Failed = append(out.Failed, DispatchFailure{LeadID: entry.LeadID, Error: "origination cap reached"})
				continue
			}
		}

		res, err := placer.PlaceCall(ctx, PlaceCallRequest{
			OrganizationID: organizationID,
			CampaignID:     plan.CampaignID,
			LeadID:         entry.LeadID,
			From:           entry.CallerPhone,
			To:             entry.LeadPhone,
		})
		if p.opts.Gate != nil {
			p.opts.Gate.Release(ctx, organizationID)
		}
		if err != nil {
			out.Failed = append(out.Failed, DispatchFailure{LeadID: entry.LeadID, Error: err.Error()})
			continue
		}

		log, err := p.numbers.RecordCallStart(ctx, entry.CallerNumberID, entry.LeadPhone, plan.CampaignID)
		if err != nil {
			out.Failed = append(out.Failed, DispatchFailure{LeadID: entry.LeadID, Error: err.Error()})
			continue
		}
		out.Placed = append(out.Placed, PlacedCall{
			LeadID:         entry.LeadID,
			ProviderCallID: res.ProviderCallID,
			UsageLogID:     log.ID,
		})
	}
	return out, nil
}
