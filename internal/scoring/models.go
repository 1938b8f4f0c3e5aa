package scoring

import (
	"errors"
	"time"

	"dialer-platform/internal/leads"
)

// ScoringModel is the configurable scoring policy applied to leads.
//
// Invariants:
// - At most one active model per organization scope.
// - Exactly one active default-scoped model system-wide.
// - Activation goes through Repository.ActivateModel only, so the
//   deactivate-then-activate step can be made atomic by the storage layer.

type ScoringModel struct {
	ID      string `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Version string `json:"version" db:"version"`

	Scope ModelScope `json:"scope"`

	FeatureWeights    FeatureWeights                       `json:"feature_weights"`
	DispositionScores map[leads.DispositionCode]float64    `json:"disposition_scores"`

	// Multipliers are fixed-size because the key space is known
	// (24 hours, 7 days starting Sunday).
	TimeSlotMultipliers  [24]float64 `json:"time_slot_multipliers"`
	DayOfWeekMultipliers [7]float64  `json:"day_of_week_multipliers"`

	HighPriorityThreshold int `json:"high_priority_threshold" db:"high_priority_threshold"`
	LowPriorityThreshold  int `json:"low_priority_threshold" db:"low_priority_threshold"`
	MaxDialAttempts       int `json:"max_dial_attempts" db:"max_dial_attempts"`

	IsActive    bool  `json:"is_active" db:"is_active"`
	LeadsScored int64 `json:"leads_scored" db:"leads_scored"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ModelScope is an explicit tagged scope rather than a nullable
// organization id, so the mutual-exclusion invariant is type-checkable.
type ModelScope struct {
	Kind           ScopeKind `json:"kind" db:"scope_kind"`
	OrganizationID string    `json:"organization_id,omitempty" db:"organization_id"`
}

type ScopeKind string

const (
	ScopeDefault      ScopeKind = "default"
	ScopeOrganization ScopeKind = "organization"
)

func DefaultScope() ModelScope { return ModelScope{Kind: ScopeDefault} }

func OrganizationScope(orgID string) ModelScope {
	return ModelScope{Kind: ScopeOrganization, OrganizationID: orgID}
}

func (s ModelScope) Validate() error {
	switch s.Kind {
	case ScopeDefault:
		if s.OrganizationID != "" {
			return errors.New("scoring: default scope must not carry organization_id")
		}
	case ScopeOrganization:
		if s.OrganizationID == "" {
			return errors.New("scoring: organization scope requires organization_id")
		}
	default:
		return errors.New("scoring: unknown scope kind")
	}
	return nil
}

// FeatureWeights are the named signed coefficients of the scorer.
// Negative values penalize; positive values boost.
type FeatureWeights struct {
	DialAttempts         float64 `json:"dial_attempts"`
	RecencyDays          float64 `json:"recency_days"`
	PreviousOutcomes     float64 `json:"previous_outcomes"`
	TimeOfDay            float64 `json:"time_of_day"`
	DayOfWeek            float64 `json:"day_of_week"`
	AreaCodeMatch        float64 `json:"area_code_match"`
	Timezone             float64 `json:"timezone"`
	CallDuration         float64 `json:"call_duration"`
	TotalContacts        float64 `json:"total_contacts"`
	PositiveOutcomeRatio float64 `json:"positive_outcome_ratio"`
}

// LeadFeatures is the snapshot of extracted signals a score was computed
// from. Stored alongside the score for explainability.
type LeadFeatures struct {
	DialAttempts int     `json:"dial_attempts"`
	RecencyDays  float64 `json:"recency_days"`

	PreviousOutcomes map[leads.DispositionCode]int `json:"previous_outcomes,omitempty"`
	PositiveOutcomes int                           `json:"positive_outcomes"`
	NegativeOutcomes int                           `json:"negative_outcomes"`

	AvgCallDurationSeconds float64 `json:"avg_call_duration_seconds"`

	Timezone string `json:"timezone"`
}

// TimeSlot is one ranked call window.
type TimeSlot struct {
	DayOfWeek   int     `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	Hour        int     `json:"hour"`        // 0..23
	Probability float64 `json:"probability"` // 0..1
}

// LeadScore is the persisted scoring result; exactly one live row per lead,
// overwritten on every rescoring.
type LeadScore struct {
	LeadID         string `json:"lead_id" db:"lead_id"`
	CampaignID     string `json:"campaign_id,omitempty" db:"campaign_id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`

	OverallScore          int     `json:"overall_score" db:"overall_score"`
	ContactProbability    float64 `json:"contact_probability" db:"contact_probability"`
	ConversionProbability float64 `json:"conversion_probability" db:"conversion_probability"`

	BestTimeSlots []TimeSlot   `json:"best_time_slots"`
	Features      LeadFeatures `json:"features"`

	ModelVersion string `json:"model_version" db:"model_version"`

	ScoredAt  time.Time `json:"scored_at" db:"scored_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// ScoreResult is the engine output handed back to callers.
type ScoreResult struct {
	LeadID                string       `json:"lead_id"`
	OverallScore          int          `json:"overall_score"`
	ContactProbability    float64      `json:"contact_probability"`
	ConversionProbability float64      `json:"conversion_probability"`
	BestTimeSlots         []TimeSlot   `json:"best_time_slots"`
	Features              LeadFeatures `json:"features"`
}

// DefaultModelVersion tags scores produced by the built-in seed model.
const DefaultModelVersion = "v1"

// NewDefaultModel returns the built-in seed model used when no model is
// configured yet. The caller assigns ID and timestamps.
func NewDefaultModel() ScoringModel {
	return ScoringModel{
		Name:    "default",
		Version: DefaultModelVersion,
		Scope:   DefaultScope(),
		FeatureWeights: FeatureWeights{
			DialAttempts:         -5,
			RecencyDays:          2,
			PreviousOutcomes:     5,
			TimeOfDay:            1,
			DayOfWeek:            1,
			AreaCodeMatch:        2,
			Timezone:             1,
			CallDuration:         1,
			TotalContacts:        1,
			PositiveOutcomeRatio: 10,
		},
		DispositionScores: map[leads.DispositionCode]float64{
			leads.DispositionSale:          100,
			leads.DispositionAppointment:   80,
			leads.DispositionInterested:    60,
			leads.DispositionCallback:      40,
			leads.DispositionVoicemail:     -5,
			leads.DispositionBusy:          -5,
			leads.DispositionNoAnswer:      -10,
			leads.DispositionNotInterested: -50,
			leads.DispositionWrongNumber:   -60,
			leads.DispositionDisconnected:  -70,
			leads.DispositionDoNotCall:     -100,
		},
		TimeSlotMultipliers: [24]float64{
			0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.5, // 00-07
			0.9, 1.1, 1.3, 1.2, 0.9, 1.0, 1.2, 1.3, // 08-15
			1.2, 1.1, 1.0, 0.8, 0.6, 0.4, 0.2, 0.2, // 16-23
		},
		DayOfWeekMultipliers: [7]float64{0.6, 1.0, 1.2, 1.2, 1.1, 1.0, 0.7},

		HighPriorityThreshold: 75,
		LowPriorityThreshold:  25,
		MaxDialAttempts:       10,

		IsActive: true,
	}
}
