package reporting

import (
	"time"

	"dialer-platform/internal/callerid"
)

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ScoringSummaryRequest requests aggregated lead score metrics.
// Organization isolation: OrganizationID is required.

type ScoringSummaryRequest struct {
	OrganizationID string `json:"organization_id"`
	CampaignID     string `json:"campaign_id,omitempty"`

	// Priority cutoffs; zero values fall back to the 75/25 defaults.
	HighPriorityMin int `json:"high_priority_min,omitempty"`
	LowPriorityMax  int `json:"low_priority_max,omitempty"`
}

type ScoringSummary struct {
	OrganizationID string `json:"organization_id"`
	CampaignID     string `json:"campaign_id,omitempty"`

	TotalLeads    int `json:"total_leads"`
	HighPriority  int `json:"high_priority"`
	LowPriority   int `json:"low_priority"`
	ExpiredScores int `json:"expired_scores"`

	// Distribution buckets scores into quartile bands 0-24, 25-49,
	// 50-74 and 75-100.
	Distribution [4]int `json:"distribution"`

	AverageScore                 float64 `json:"average_score"`
	AverageContactProbability    float64 `json:"average_contact_probability"`
	AverageConversionProbability float64 `json:"average_conversion_probability"`
}

// PoolHealthRequest requests the operational health view of one caller-ID
// pool over a time range.

type PoolHealthRequest struct {
	PoolID string    `json:"pool_id"`
	Range  TimeRange `json:"range"`
}

type PoolHealthSummary struct {
	PoolID string `json:"pool_id"`

	TotalNumbers int                           `json:"total_numbers"`
	ByStatus     map[callerid.NumberStatus]int `json:"by_status"`

	ReputationHistogram map[callerid.ReputationLevel]int `json:"reputation_histogram"`
	AverageReputation   float64                          `json:"average_reputation"`
	FlaggedNumbers      int                              `json:"flagged_numbers"`

	CallsInRange    int     `json:"calls_in_range"`
	AnsweredInRange int     `json:"answered_in_range"`
	AnswerRate      float64 `json:"answer_rate"`
}
