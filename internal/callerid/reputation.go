package callerid

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reputation deltas and bounds. Scores always stay in [minReputation,
// maxReputation]; the recorded event keeps the requested delta even when
// clamping absorbs part of it.
const (
	minReputation = 0
	maxReputation = 100

	flagPenalty    = -20
	unblockRecover = +10
)

// UpdateReputation is the single mutation path for a number's reputation
// score. It clamps the new score, recomputes the level and appends one
// ReputationEvent.
func (s *Service) UpdateReputation(ctx context.Context, numberID string, eventType ReputationEventType, delta int, source, notes string) (Number, error) {
	if numberID == "" {
		return Number{}, ErrInvalidArgument
	}
	n, err := s.repo.GetNumber(ctx, numberID)
	if err != nil {
		return Number{}, err
	}

	now := s.clock().UTC()
	prev := n.ReputationScore
	next := prev + delta
	if next < minReputation {
		next = minReputation
	}
	if next > maxReputation {
		next = maxReputation
	}

	n.ReputationScore = next
	n.ReputationLevel = ReputationLevelFor(next)
	n.UpdatedAt = now
	if err := s.repo.UpdateNumber(ctx, n); err != nil {
		return Number{}, err
	}

	event := ReputationEvent{
		ID:            uuid.NewString(),
		NumberID:      n.ID,
		EventType:     eventType,
		ScoreChange:   delta,
		PreviousScore: prev,
		NewScore:      next,
		Source:        source,
		Notes:         notes,
		CreatedAt:     now,
	}
	if err := s.repo.AppendReputationEvent(ctx, event); err != nil {
		return Number{}, err
	}
	return n, nil
}

// FlagNumber marks a number as spam-flagged by an external source
// (carrier analytics, user report). It docks the score, bumps the flag
// counter and takes the number out of rotation.
func (s *Service) FlagNumber(ctx context.Context, numberID, source, notes string) (Number, error) {
	n, err := s.UpdateReputation(ctx, numberID, EventFlagged, flagPenalty, source, notes)
	if err != nil {
		return Number{}, err
	}

	now := s.clock().UTC()
	n.Status = StatusFlagged
	n.FlaggedCount++
	n.LastFlaggedAt = &now
	n.UpdatedAt = now
	if err := s.repo.UpdateNumber(ctx, n); err != nil {
		return Number{}, err
	}
	return n, nil
}

// UnblockNumber returns a flagged or blocked number to rotation with a
// partial score recovery. Any other status is an invalid transition.
func (s *Service) UnblockNumber(ctx context.Context, numberID, source, notes string) (Number, error) {
	if numberID == "" {
		return Number{}, ErrInvalidArgument
	}
	n, err := s.repo.GetNumber(ctx, numberID)
	if err != nil {
		return Number{}, err
	}
	if n.Status != StatusFlagged && n.Status != StatusBlocked {
		return Number{}, ErrInvalidTransition
	}

	n, err = s.UpdateReputation(ctx, numberID, EventUnblocked, unblockRecover, source, notes)
	if err != nil {
		return Number{}, err
	}
	n.Status = StatusActive
	n.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdateNumber(ctx, n); err != nil {
		return Number{}, err
	}
	return n, nil
}

// CooldownNumber rests an active number for its pool's cooldown window.
// The sweep (or an eligibility check at selection time) brings it back.
func (s *Service) CooldownNumber(ctx context.Context, numberID string) (Number, error) {
	if numberID == "" {
		return Number{}, ErrInvalidArgument
	}
	n, err := s.repo.GetNumber(ctx, numberID)
	if err != nil {
		return Number{}, err
	}
	if n.Status != StatusActive {
		return Number{}, ErrInvalidTransition
	}
	pool, err := s.repo.GetPool(ctx, n.PoolID)
	if err != nil {
		return Number{}, err
	}

	now := s.clock().UTC()
	until := now.Add(time.Duration(pool.CooldownMinutes) * time.Minute)
	n.Status = StatusCoolingDown
	n.CooldownUntil = &until
	n.UpdatedAt = now
	if err := s.repo.UpdateNumber(ctx, n); err != nil {
		return Number{}, err
	}
	return n, nil
}

// ProcessCooldowns reactivates every number whose cooldown has elapsed.
// Meant to run periodically; selection also treats expired cooldowns as
// eligible, so a late sweep never starves a pool.
func (s *Service) ProcessCooldowns(ctx context.Context) (int, error) {
	return s.repo.SweepCooldowns(ctx, s.clock().UTC())
}
