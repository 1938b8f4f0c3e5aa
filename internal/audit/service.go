package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrganizationID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records an admin action (including hidden roles).
func (s *Service) LogAdminAction(ctx context.Context, organizationID, actorUserID, actorRole, ip, message, metadata string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeAdminAction,
		ActorUserID:    actorUserID,
		ActorRole:      actorRole,
		IPAddress:      ip,
		Message:        message,
		Metadata:       metadata,
	})
}

// LogNumberFlagged records a caller-ID number being taken out of rotation.
func (s *Service) LogNumberFlagged(ctx context.Context, organizationID, poolID, numberID, source, metadata string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeNumberFlagged,
		PoolID:         poolID,
		NumberID:       numberID,
		Message:        "number flagged by " + source,
		Metadata:       metadata,
	})
}

// LogNumberUnblocked records a manual return to rotation.
func (s *Service) LogNumberUnblocked(ctx context.Context, organizationID, actorUserID, actorRole, ip, poolID, numberID, metadata string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeNumberUnblocked,
		ActorUserID:    actorUserID,
		ActorRole:      actorRole,
		IPAddress:      ip,
		PoolID:         poolID,
		NumberID:       numberID,
		Message:        "number unblocked",
		Metadata:       metadata,
	})
}

// LogModelActivated records a scoring model going live for a scope.
func (s *Service) LogModelActivated(ctx context.Context, organizationID, actorUserID, actorRole, ip, modelID, metadata string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeModelActivated,
		ActorUserID:    actorUserID,
		ActorRole:      actorRole,
		IPAddress:      ip,
		ModelID:        modelID,
		Message:        "scoring model activated",
		Metadata:       metadata,
	})
}
