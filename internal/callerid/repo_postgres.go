package callerid

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// NOTE: This repository assumes the following tables exist:
// - caller_id_pools       UNIQUE (organization_id, name)
// - caller_id_numbers     UNIQUE (pool_id, phone_number)
// - caller_id_usage_logs  (append-only; completed_at set at most once)
// - reputation_events     (append-only)

// PostgresRepo implements Repository on database/sql against Postgres.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const poolColumns = `id, organization_id, name, is_active, local_presence_enabled, rotation_strategy, max_calls_per_number, cooldown_minutes, created_at, updated_at`

const numberColumns = `id, pool_id, phone_number, area_code, status, reputation_level, reputation_score, calls_today, total_calls, answered_calls, flagged_count, last_used_at, cooldown_until, last_flagged_at, created_at, updated_at`

const usageLogColumns = `id, number_id, campaign_id, destination_number, destination_area_code, was_answered, call_result, call_duration, started_at, completed_at`

func isUniqueViolation(err error) bool {
	// pgx stdlib surfaces constraint violations with SQLSTATE 23505 in
	// the error text; we avoid importing pgconn just for the code.
	return err != nil && strings.Contains(err.Error(), "23505")
}

func scanPool(row interface{ Scan(...any) error }) (Pool, error) {
	var p Pool
	err := row.Scan(
		&p.ID,
		&p.OrganizationID,
		&p.Name,
		&p.IsActive,
		&p.LocalPresenceEnabled,
		&p.RotationStrategy,
		&p.MaxCallsPerNumber,
		&p.CooldownMinutes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func scanNumber(row interface{ Scan(...any) error }) (Number, error) {
	var n Number
	err := row.Scan(
		&n.ID,
		&n.PoolID,
		&n.PhoneNumber,
		&n.AreaCode,
		&n.Status,
		&n.ReputationLevel,
		&n.ReputationScore,
		&n.CallsToday,
		&n.TotalCalls,
		&n.AnsweredCalls,
		&n.FlaggedCount,
		&n.LastUsedAt,
		&n.CooldownUntil,
		&n.LastFlaggedAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	return n, err
}

func scanUsageLog(row interface{ Scan(...any) error }) (UsageLog, error) {
	var l UsageLog
	var campaignID, areaCode, result sql.NullString
	err := row.Scan(
		&l.ID,
		&l.NumberID,
		&campaignID,
		&l.DestinationNumber,
		&areaCode,
		&l.WasAnswered,
		&result,
		&l.CallDurationSeconds,
		&l.StartedAt,
		&l.CompletedAt,
	)
	l.CampaignID = campaignID.String
	l.DestinationAreaCode = areaCode.String
	l.CallResult = CallResult(result.String)
	return l, err
}

func (r *PostgresRepo) CreatePool(ctx context.Context, p Pool) error {
	const q = `
INSERT INTO caller_id_pools (` + poolColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	_, err := r.db.ExecContext(ctx, q,
		p.ID, p.OrganizationID, p.Name, p.IsActive, p.LocalPresenceEnabled,
		p.RotationStrategy, p.MaxCallsPerNumber, p.CooldownMinutes, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *PostgresRepo) GetPool(ctx context.Context, id string) (Pool, error) {
	const q = `
SELECT ` + poolColumns + `
FROM caller_id_pools
WHERE id = $1
`
	p, err := scanPool(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Pool{}, ErrNotFound
	}
	return p, err
}

func (r *PostgresRepo) GetPoolByName(ctx context.Context, organizationID, name string) (Pool, bool, error) {
	const q = `
SELECT ` + poolColumns + `
FROM caller_id_pools
WHERE organization_id = $1 AND name = $2
`
	p, err := scanPool(r.db.QueryRowContext(ctx, q, organizationID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Pool{}, false, nil
	}
	if err != nil {
		return Pool{}, false, err
	}
	return p, true, nil
}

func (r *PostgresRepo) UpdatePool(ctx context.Context, p Pool) error {
	const q = `
UPDATE caller_id_pools
SET name = $2,
    is_active = $3,
    local_presence_enabled = $4,
    rotation_strategy = $5,
    max_calls_per_number = $6,
    cooldown_minutes = $7,
    updated_at = $8
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		p.ID, p.Name, p.IsActive, p.LocalPresenceEnabled,
		p.RotationStrategy, p.MaxCallsPerNumber, p.CooldownMinutes, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) CreateNumber(ctx context.Context, n Number) error {
	const q = `
INSERT INTO caller_id_numbers (` + numberColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`
	_, err := r.db.ExecContext(ctx, q,
		n.ID, n.PoolID, n.PhoneNumber, n.AreaCode, n.Status, n.ReputationLevel,
		n.ReputationScore, n.CallsToday, n.TotalCalls, n.AnsweredCalls, n.FlaggedCount,
		n.LastUsedAt, n.CooldownUntil, n.LastFlaggedAt, n.CreatedAt, n.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *PostgresRepo) GetNumber(ctx context.Context, id string) (Number, error) {
	const q = `
SELECT ` + numberColumns + `
FROM caller_id_numbers
WHERE id = $1
`
	n, err := scanNumber(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Number{}, ErrNotFound
	}
	return n, err
}

func (r *PostgresRepo) GetNumberByPhone(ctx context.Context, poolID, phoneNumber string) (Number, bool, error) {
	const q = `
SELECT ` + numberColumns + `
FROM caller_id_numbers
WHERE pool_id = $1 AND phone_number = $2
`
	n, err := scanNumber(r.db.QueryRowContext(ctx, q, poolID, phoneNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return Number{}, false, nil
	}
	if err != nil {
		return Number{}, false, err
	}
	return n, true, nil
}

func (r *PostgresRepo) ListNumbersByPool(ctx context.Context, poolID string) ([]Number, error) {
	const q = `
SELECT ` + numberColumns + `
FROM caller_id_numbers
WHERE pool_id = $1
ORDER BY id
`
	rows, err := r.db.QueryContext(ctx, q, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Number
	for rows.Next() {
		n, err := scanNumber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateNumber(ctx context.Context, n Number) error {
	const q = `
UPDATE caller_id_numbers
SET status = $2,
    reputation_level = $3,
    reputation_score = $4,
    calls_today = $5,
    total_calls = $6,
    answered_calls = $7,
    flagged_count = $8,
    last_used_at = $9,
    cooldown_until = $10,
    last_flagged_at = $11,
    updated_at = $12
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		n.ID, n.Status, n.ReputationLevel, n.ReputationScore,
		n.CallsToday, n.TotalCalls, n.AnsweredCalls, n.FlaggedCount,
		n.LastUsedAt, n.CooldownUntil, n.LastFlaggedAt, n.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) SweepCooldowns(ctx context.Context, now time.Time) (int, error) {
	const q = `
UPDATE caller_id_numbers
SET status = $1,
    cooldown_until = NULL,
    updated_at = $2
WHERE status = $3
  AND (cooldown_until IS NULL OR cooldown_until <= $2)
`
	res, err := r.db.ExecContext(ctx, q, StatusActive, now, StatusCoolingDown)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

func (r *PostgresRepo) ResetDailyCounters(ctx context.Context) (int, error) {
	const q = `
UPDATE caller_id_numbers
SET calls_today = 0
WHERE calls_today <> 0
`
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

func (r *PostgresRepo) AppendUsageLog(ctx context.Context, l UsageLog) error {
	const q = `
INSERT INTO caller_id_usage_logs (` + usageLogColumns + `)
VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9, $10)
`
	_, err := r.db.ExecContext(ctx, q,
		l.ID, l.NumberID, l.CampaignID, l.DestinationNumber, l.DestinationAreaCode,
		l.WasAnswered, string(l.CallResult), l.CallDurationSeconds, l.StartedAt, l.CompletedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *PostgresRepo) GetUsageLog(ctx context.Context, id string) (UsageLog, error) {
	const q = `
SELECT ` + usageLogColumns + `
FROM caller_id_usage_logs
WHERE id = $1
`
	l, err := scanUsageLog(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return UsageLog{}, ErrNotFound
	}
	return l, err
}

func (r *PostgresRepo) CloseUsageLog(ctx context.Context, l UsageLog) error {
	// completed_at IS NULL guards the close-once invariant at the row
	// level, so two racing completions cannot both win.
	const q = `
UPDATE caller_id_usage_logs
SET was_answered = $2,
    call_result = $3,
    call_duration = $4,
    completed_at = $5
WHERE id = $1 AND completed_at IS NULL
`
	res, err := r.db.ExecContext(ctx, q,
		l.ID, l.WasAnswered, string(l.CallResult), l.CallDurationSeconds, l.CompletedAt,
	)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		// Either the row is missing or it is already closed.
		if _, getErr := r.GetUsageLog(ctx, l.ID); getErr != nil {
			return getErr
		}
		return ErrConflict
	}
	return nil
}

func (r *PostgresRepo) AppendReputationEvent(ctx context.Context, e ReputationEvent) error {
	const q = `
INSERT INTO reputation_events (id, number_id, event_type, score_change, previous_score, new_score, source, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.NumberID, e.EventType, e.ScoreChange, e.PreviousScore, e.NewScore,
		e.Source, e.Notes, e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListReputationEvents(ctx context.Context, numberID string, limit int) ([]ReputationEvent, error) {
	const q = `
SELECT id, number_id, event_type, score_change, previous_score, new_score, COALESCE(source, ''), COALESCE(notes, ''), created_at
FROM reputation_events
WHERE number_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, numberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReputationEvent
	for rows.Next() {
		var e ReputationEvent
		if err := rows.Scan(
			&e.ID, &e.NumberID, &e.EventType, &e.ScoreChange,
			&e.PreviousScore, &e.NewScore, &e.Source, &e.Notes, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
