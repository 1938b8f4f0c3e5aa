package callerid

import "time"

// Pool owns a set of outbound caller-ID numbers and the policy for
// rotating through them.
//
// Multi-tenant invariant: OrganizationID is required; pool names are
// unique per organization.

type Pool struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	Name           string `json:"name" db:"name"`

	IsActive             bool             `json:"is_active" db:"is_active"`
	LocalPresenceEnabled bool             `json:"local_presence_enabled" db:"local_presence_enabled"`
	RotationStrategy     RotationStrategy `json:"rotation_strategy" db:"rotation_strategy"`

	// MaxCallsPerNumber caps daily usage per number; zero means no cap.
	MaxCallsPerNumber int `json:"max_calls_per_number" db:"max_calls_per_number"`
	CooldownMinutes   int `json:"cooldown_minutes" db:"cooldown_minutes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type RotationStrategy string

const (
	RotationRoundRobin        RotationStrategy = "round_robin"
	RotationRandom            RotationStrategy = "random"
	RotationWeighted          RotationStrategy = "weighted"
	RotationLeastRecentlyUsed RotationStrategy = "least_recently_used"
)

func (s RotationStrategy) Valid() bool {
	switch s {
	case RotationRoundRobin, RotationRandom, RotationWeighted, RotationLeastRecentlyUsed:
		return true
	default:
		return false
	}
}

// Number is one outbound caller-ID number with its usage and reputation
// state.
//
// Invariants:
// - (PoolID, PhoneNumber) unique.
// - ReputationScore stays in [0,100]; every change goes through
//   Service.UpdateReputation so the event trail is complete.
// - Status moves only through the defined operations (flag, unblock,
//   cooldown, sweep, daily reset).

type Number struct {
	ID     string `json:"id" db:"id"`
	PoolID string `json:"pool_id" db:"pool_id"`

	PhoneNumber string `json:"phone_number" db:"phone_number"`
	AreaCode    string `json:"area_code" db:"area_code"`

	Status          NumberStatus    `json:"status" db:"status"`
	ReputationLevel ReputationLevel `json:"reputation_level" db:"reputation_level"`
	ReputationScore int             `json:"reputation_score" db:"reputation_score"`

	CallsToday    int `json:"calls_today" db:"calls_today"`
	TotalCalls    int `json:"total_calls" db:"total_calls"`
	AnsweredCalls int `json:"answered_calls" db:"answered_calls"`
	FlaggedCount  int `json:"flagged_count" db:"flagged_count"`

	LastUsedAt    *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty" db:"cooldown_until"`
	LastFlaggedAt *time.Time `json:"last_flagged_at,omitempty" db:"last_flagged_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type NumberStatus string

const (
	StatusActive      NumberStatus = "active"
	StatusCoolingDown NumberStatus = "cooling_down"
	StatusFlagged     NumberStatus = "flagged"
	StatusBlocked     NumberStatus = "blocked"
	StatusInactive    NumberStatus = "inactive"
)

type ReputationLevel string

const (
	ReputationExcellent ReputationLevel = "excellent"
	ReputationGood      ReputationLevel = "good"
	ReputationFair      ReputationLevel = "fair"
	ReputationPoor      ReputationLevel = "poor"
	ReputationCritical  ReputationLevel = "critical"
)

// ReputationLevelFor maps a clamped score to its level band.
func ReputationLevelFor(score int) ReputationLevel {
	switch {
	case score >= 90:
		return ReputationExcellent
	case score >= 70:
		return ReputationGood
	case score >= 50:
		return ReputationFair
	case score >= 30:
		return ReputationPoor
	default:
		return ReputationCritical
	}
}

// UsageLog is an append-once record of one outbound call's caller-ID
// usage. It is created at call start and closed exactly once with the
// result; never deleted.
type UsageLog struct {
	ID         string `json:"id" db:"id"`
	NumberID   string `json:"number_id" db:"number_id"`
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`

	DestinationNumber   string `json:"destination_number" db:"destination_number"`
	DestinationAreaCode string `json:"destination_area_code,omitempty" db:"destination_area_code"`

	WasAnswered         bool       `json:"was_answered" db:"was_answered"`
	CallResult          CallResult `json:"call_result,omitempty" db:"call_result"`
	CallDurationSeconds int        `json:"call_duration,omitempty" db:"call_duration"`

	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

type CallResult string

const (
	CallResultAnswered  CallResult = "answered"
	CallResultNoAnswer  CallResult = "no_answer"
	CallResultBusy      CallResult = "busy"
	CallResultFailed    CallResult = "failed"
	CallResultVoicemail CallResult = "voicemail"
)

func (r CallResult) Valid() bool {
	switch r {
	case CallResultAnswered, CallResultNoAnswer, CallResultBusy, CallResultFailed, CallResultVoicemail:
		return true
	default:
		return false
	}
}

// ReputationEvent is an immutable audit record of one reputation score
// change. One row per UpdateReputation call; never mutated or deleted.
type ReputationEvent struct {
	ID       string `json:"id" db:"id"`
	NumberID string `json:"number_id" db:"number_id"`

	EventType ReputationEventType `json:"event_type" db:"event_type"`

	ScoreChange   int `json:"score_change" db:"score_change"`
	PreviousScore int `json:"previous_score" db:"previous_score"`
	NewScore      int `json:"new_score" db:"new_score"`

	Source string `json:"source,omitempty" db:"source"`
	Notes  string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type ReputationEventType string

const (
	EventFlagged      ReputationEventType = "flagged"
	EventUnblocked    ReputationEventType = "unblocked"
	EventCallAnswered ReputationEventType = "call_answered"
	EventSpamReport   ReputationEventType = "spam_report"
	EventManualAdjust ReputationEventType = "manual_adjustment"
)

// PoolStats is the dashboard aggregate for one pool.
type PoolStats struct {
	PoolID       string `json:"pool_id"`
	TotalNumbers int    `json:"total_numbers"`

	ByStatus  map[NumberStatus]int `json:"by_status"`
	AreaCodes map[string]int       `json:"area_codes"`

	AverageReputation float64 `json:"average_reputation"`

	TotalCallsToday int     `json:"total_calls_today"`
	TotalCalls      int     `json:"total_calls"`
	AnsweredCalls   int     `json:"answered_calls"`
	AnswerRate      float64 `json:"answer_rate"`
}

// NumberStats is the dashboard view of a single number.
type NumberStats struct {
	NumberID    string `json:"number_id"`
	PhoneNumber string `json:"phone_number"`

	Status          NumberStatus    `json:"status"`
	ReputationLevel ReputationLevel `json:"reputation_level"`
	ReputationScore int             `json:"reputation_score"`

	CallsToday    int `json:"calls_today"`
	TotalCalls    int `json:"total_calls"`
	AnsweredCalls int `json:"answered_calls"`
	FlaggedCount  int `json:"flagged_count"`

	AnswerRate float64 `json:"answer_rate"`

	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}
