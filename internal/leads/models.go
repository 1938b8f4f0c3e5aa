package leads

import "time"

// LeadData is the input record the scoring engine consumes.
//
// Multi-tenant invariant: OrganizationID is required on every row.
//
// NOTE: This is a domain model only. CRM-specific fields (external ids,
// custom fields) should be stored as metadata by the sync layer, not mixed
// into this core model.

type LeadData struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	CampaignID     string `json:"campaign_id,omitempty" db:"campaign_id"`

	PhoneNumber string `json:"phone_number" db:"phone_number"`

	// Timezone is an IANA zone name. If empty, it is inferred from State.
	Timezone string `json:"timezone,omitempty" db:"timezone"`
	// State is a two-letter US state code used for timezone inference.
	State string `json:"state,omitempty" db:"state"`

	DialAttempts int        `json:"dial_attempts" db:"dial_attempts"`
	LastDialedAt *time.Time `json:"last_dialed_at,omitempty" db:"last_dialed_at"`

	Dispositions []Disposition `json:"dispositions,omitempty"`
}

// Disposition is one recorded call outcome for a lead.
type Disposition struct {
	Code      DispositionCode `json:"code" db:"code"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`

	// CallDurationSeconds is zero when the call never connected.
	CallDurationSeconds int `json:"call_duration,omitempty" db:"call_duration"`
}

type DispositionCode string

const (
	DispositionSale          DispositionCode = "SALE"
	DispositionAppointment   DispositionCode = "APPOINTMENT"
	DispositionInterested    DispositionCode = "INTERESTED"
	DispositionCallback      DispositionCode = "CALLBACK"
	DispositionNotInterested DispositionCode = "NOT_INTERESTED"
	DispositionDoNotCall     DispositionCode = "DO_NOT_CALL"
	DispositionWrongNumber   DispositionCode = "WRONG_NUMBER"
	DispositionDisconnected  DispositionCode = "DISCONNECTED"
	DispositionNoAnswer      DispositionCode = "NO_ANSWER"
	DispositionBusy          DispositionCode = "BUSY"
	DispositionVoicemail     DispositionCode = "VOICEMAIL"
)

// Outcome classification is fixed; unknown codes are neither positive nor
// negative and contribute nothing to conversion probability.

func (c DispositionCode) IsPositive() bool {
	switch c {
	case DispositionSale, DispositionAppointment, DispositionInterested, DispositionCallback:
		return true
	default:
		return false
	}
}

func (c DispositionCode) IsNegative() bool {
	switch c {
	case DispositionNotInterested, DispositionDoNotCall, DispositionWrongNumber, DispositionDisconnected:
		return true
	default:
		return false
	}
}
