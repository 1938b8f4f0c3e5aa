package reporting

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"dialer-platform/internal/callerid"
	"dialer-platform/internal/scoring"
)

// PostgresRepo reads reporting aggregates straight from the engines'
// tables. Read-only; reporting never writes.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListScores(ctx context.Context, organizationID, campaignID string) ([]scoring.LeadScore, error) {
	const q = `
SELECT lead_id, campaign_id, organization_id, overall_score, contact_probability,
       conversion_probability, best_time_slots, features, model_version, scored_at, expires_at
FROM lead_scores
WHERE organization_id = $1
  AND ($2 = '' OR campaign_id = $2)
`
	rows, err := r.db.QueryContext(ctx, q, organizationID, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scoring.LeadScore
	for rows.Next() {
		var s scoring.LeadScore
		var slots, features []byte
		if err := rows.Scan(
			&s.LeadID, &s.CampaignID, &s.OrganizationID, &s.OverallScore,
			&s.ContactProbability, &s.ConversionProbability, &slots, &features,
			&s.ModelVersion, &s.ScoredAt, &s.ExpiresAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(slots, &s.BestTimeSlots); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(features, &s.Features); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListNumbers(ctx context.Context, poolID string) ([]callerid.Number, error) {
	const q = `
SELECT id, pool_id, status, reputation_level, reputation_score, flagged_count,
       calls_today, total_calls, answered_calls
FROM caller_id_numbers
WHERE pool_id = $1
`
	rows, err := r.db.QueryContext(ctx, q, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []callerid.Number
	for rows.Next() {
		var n callerid.Number
		if err := rows.Scan(
			&n.ID, &n.PoolID, &n.Status, &n.ReputationLevel, &n.ReputationScore,
			&n.FlaggedCount, &n.CallsToday, &n.TotalCalls, &n.AnsweredCalls,
		); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListUsage(ctx context.Context, poolID string, from, to time.Time) ([]callerid.UsageLog, error) {
	const q = `
SELECT u.id, u.number_id, u.was_answered, u.started_at
FROM caller_id_usage_logs u
JOIN caller_id_numbers n ON n.id = u.number_id
WHERE n.pool_id = $1
  AND u.started_at >= $2
  AND u.started_at < $3
`
	rows, err := r.db.QueryContext(ctx, q, poolID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []callerid.UsageLog
	for rows.Next() {
		var l callerid.UsageLog
		if err := rows.Scan(&l.ID, &l.NumberID, &l.WasAnswered, &l.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
