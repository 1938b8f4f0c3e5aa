package scoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"dialer-platform/internal/leads"
	"dialer-platform/pkg/utils"
)

// PostgresRepo persists models and scores in Postgres.
//
// NOTE: This repository assumes the following tables exist:
// - scoring_models (partial unique index: one active row per scope, e.g.
//   UNIQUE (scope_kind, organization_id) WHERE is_active)
// - lead_scores (PRIMARY KEY lead_id)
//
// The partial unique index is what converts concurrent activation races
// into conflicts instead of silent double-activation.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

type modelRow struct {
	payload []byte
	m       ScoringModel
}

const modelColumns = `
id, name, version, scope_kind, organization_id, config,
high_priority_threshold, low_priority_threshold, max_dial_attempts,
is_active, leads_scored, created_at, updated_at`

// modelConfig is the JSON blob holding the weight tables.
type modelConfig struct {
	FeatureWeights       FeatureWeights                 `json:"feature_weights"`
	DispositionScores    map[string]float64             `json:"disposition_scores"`
	TimeSlotMultipliers  [24]float64                    `json:"time_slot_multipliers"`
	DayOfWeekMultipliers [7]float64                     `json:"day_of_week_multipliers"`
}

func scanModel(scan func(dest ...any) error) (ScoringModel, error) {
	var m ScoringModel
	var cfg []byte
	var orgID sql.NullString
	if err := scan(
		&m.ID,
		&m.Name,
		&m.Version,
		&m.Scope.Kind,
		&orgID,
		&cfg,
		&m.HighPriorityThreshold,
		&m.LowPriorityThreshold,
		&m.MaxDialAttempts,
		&m.IsActive,
		&m.LeadsScored,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return ScoringModel{}, err
	}
	m.Scope.OrganizationID = orgID.String

	var c modelConfig
	if err := json.Unmarshal(cfg, &c); err != nil {
		return ScoringModel{}, err
	}
	m.FeatureWeights = c.FeatureWeights
	m.TimeSlotMultipliers = c.TimeSlotMultipliers
	m.DayOfWeekMultipliers = c.DayOfWeekMultipliers
	m.DispositionScores = make(map[leads.DispositionCode]float64, len(c.DispositionScores))
	for k, v := range c.DispositionScores {
		m.DispositionScores[leads.DispositionCode(k)] = v
	}
	return m, nil
}

func marshalModelConfig(m ScoringModel) ([]byte, error) {
	scores := make(map[string]float64, len(m.DispositionScores))
	for k, v := range m.DispositionScores {
		scores[string(k)] = v
	}
	return json.Marshal(modelConfig{
		FeatureWeights:       m.FeatureWeights,
		DispositionScores:    scores,
		TimeSlotMultipliers:  m.TimeSlotMultipliers,
		DayOfWeekMultipliers: m.DayOfWeekMultipliers,
	})
}

func orgIDParam(s ModelScope) any {
	if s.Kind == ScopeOrganization {
		return s.OrganizationID
	}
	return nil
}

func (r *PostgresRepo) GetModel(ctx context.Context, id string) (ScoringModel, error) {
	const q = `SELECT ` + modelColumns + ` FROM scoring_models WHERE id = $1`
	m, err := scanModel(r.db.QueryRowContext(ctx, q, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ScoringModel{}, ErrNotFound
	}
	return m, err
}

func (r *PostgresRepo) GetActiveModel(ctx context.Context, scope ModelScope) (ScoringModel, bool, error) {
	const q = `
SELECT ` + modelColumns + `
FROM scoring_models
WHERE scope_kind = $1 AND organization_id IS NOT DISTINCT FROM $2 AND is_active
LIMIT 1`
	m, err := scanModel(r.db.QueryRowContext(ctx, q, scope.Kind, orgIDParam(scope)).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ScoringModel{}, false, nil
	}
	if err != nil {
		return ScoringModel{}, false, err
	}
	return m, true, nil
}

func (r *PostgresRepo) CreateModel(ctx context.Context, m ScoringModel) error {
	cfg, err := marshalModelConfig(m)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO scoring_models (
  id, name, version, scope_kind, organization_id, config,
  high_priority_threshold, low_priority_threshold, max_dial_attempts,
  is_active, leads_scored, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = r.db.ExecContext(ctx, q,
		m.ID, m.Name, m.Version, m.Scope.Kind, orgIDParam(m.Scope), cfg,
		m.HighPriorityThreshold, m.LowPriorityThreshold, m.MaxDialAttempts,
		m.IsActive, m.LeadsScored, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) EnsureDefaultModel(ctx context.Context, seed ScoringModel) (ScoringModel, error) {
	var out ScoringModel
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const sel = `
SELECT ` + modelColumns + `
FROM scoring_models
WHERE scope_kind = $1 AND organization_id IS NULL AND is_active
LIMIT 1
FOR UPDATE`
		m, err := scanModel(tx.QueryRowContext(ctx, sel, ScopeDefault).Scan)
		if err == nil {
			out = m
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		cfg, err := marshalModelConfig(seed)
		if err != nil {
			return err
		}
		const ins = `
INSERT INTO scoring_models (
  id, name, version, scope_kind, organization_id, config,
  high_priority_threshold, low_priority_threshold, max_dial_attempts,
  is_active, leads_scored, created_at, updated_at
) VALUES ($1,$2,$3,$4,NULL,$5,$6,$7,$8,true,0,$9,$10)`
		if _, err := tx.ExecContext(ctx, ins,
			seed.ID, seed.Name, seed.Version, ScopeDefault, cfg,
			seed.HighPriorityThreshold, seed.LowPriorityThreshold, seed.MaxDialAttempts,
			seed.CreatedAt, seed.UpdatedAt,
		); err != nil {
			return err
		}
		out = seed
		return nil
	})
	return out, err
}

func (r *PostgresRepo) ActivateModel(ctx context.Context, id string) (ScoringModel, error) {
	var out ScoringModel
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const sel = `SELECT ` + modelColumns + ` FROM scoring_models WHERE id = $1 FOR UPDATE`
		target, err := scanModel(tx.QueryRowContext(ctx, sel, id).Scan)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		const deactivate = `
UPDATE scoring_models
SET is_active = false, updated_at = now()
WHERE scope_kind = $1 AND organization_id IS NOT DISTINCT FROM $2 AND is_active AND id <> $3`
		if _, err := tx.ExecContext(ctx, deactivate, target.Scope.Kind, orgIDParam(target.Scope), id); err != nil {
			return err
		}

		const activate = `
UPDATE scoring_models
SET is_active = true, updated_at = now()
WHERE id = $1
RETURNING ` + modelColumns
		out, err = scanModel(tx.QueryRowContext(ctx, activate, id).Scan)
		return err
	})
	return out, err
}

func (r *PostgresRepo) IncrementLeadsScored(ctx context.Context, modelID string, n int) error {
	const q = `UPDATE scoring_models SET leads_scored = leads_scored + $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, modelID, n)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

const scoreColumns = `
lead_id, campaign_id, organization_id, overall_score, contact_probability,
conversion_probability, best_time_slots, features, model_version, scored_at, expires_at`

func scanScore(scan func(dest ...any) error) (LeadScore, error) {
	var s LeadScore
	var slots, features []byte
	if err := scan(
		&s.LeadID,
		&s.CampaignID,
		&s.OrganizationID,
		&s.OverallScore,
		&s.ContactProbability,
		&s.ConversionProbability,
		&slots,
		&features,
		&s.ModelVersion,
		&s.ScoredAt,
		&s.ExpiresAt,
	); err != nil {
		return LeadScore{}, err
	}
	if err := json.Unmarshal(slots, &s.BestTimeSlots); err != nil {
		return LeadScore{}, err
	}
	if err := json.Unmarshal(features, &s.Features); err != nil {
		return LeadScore{}, err
	}
	return s, nil
}

func (r *PostgresRepo) UpsertScore(ctx context.Context, s LeadScore) error {
	slots, err := json.Marshal(s.BestTimeSlots)
	if err != nil {
		return err
	}
	features, err := json.Marshal(s.Features)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO lead_scores (
  lead_id, campaign_id, organization_id, overall_score, contact_probability,
  conversion_probability, best_time_slots, features, model_version, scored_at, expires_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (lead_id)
DO UPDATE SET campaign_id = EXCLUDED.campaign_id,
              organization_id = EXCLUDED.organization_id,
              overall_score = EXCLUDED.overall_score,
              contact_probability = EXCLUDED.contact_probability,
              conversion_probability = EXCLUDED.conversion_probability,
              best_time_slots = EXCLUDED.best_time_slots,
              features = EXCLUDED.features,
              model_version = EXCLUDED.model_version,
              scored_at = EXCLUDED.scored_at,
              expires_at = EXCLUDED.expires_at`
	_, err = r.db.ExecContext(ctx, q,
		s.LeadID, s.CampaignID, s.OrganizationID, s.OverallScore, s.ContactProbability,
		s.ConversionProbability, slots, features, s.ModelVersion, s.ScoredAt, s.ExpiresAt,
	)
	return err
}

func (r *PostgresRepo) GetScore(ctx context.Context, leadID string) (LeadScore, error) {
	const q = `SELECT ` + scoreColumns + ` FROM lead_scores WHERE lead_id = $1`
	s, err := scanScore(r.db.QueryRowContext(ctx, q, leadID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return LeadScore{}, ErrNotFound
	}
	return s, err
}

func (r *PostgresRepo) ListScores(ctx context.Context, q ScoreQuery) ([]LeadScore, error) {
	const sel = `
SELECT ` + scoreColumns + `
FROM lead_scores
WHERE campaign_id = $1
  AND overall_score >= $2
  AND expires_at > $3
  AND (cardinality($4::text[]) = 0 OR lead_id = ANY($4))
ORDER BY overall_score DESC, lead_id ASC
LIMIT $5`
	ids := q.LeadIDs
	if ids == nil {
		ids = []string{}
	}
	rows, err := r.db.QueryContext(ctx, sel, q.CampaignID, q.MinScore, q.NotExpiredAt, ids, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeadScore
	for rows.Next() {
		s, err := scanScore(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
