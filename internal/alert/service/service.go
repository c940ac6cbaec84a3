package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"indicator-reporting/backend/internal/alert/domain"
	"indicator-reporting/backend/internal/alert/notifier"
	"indicator-reporting/backend/internal/alert/repository"
	"indicator-reporting/backend/internal/identity"
)

// ErrNotFound is returned when an alert does not exist or is not visible to
// the caller. Handlers map it to 404.
var ErrNotFound = errors.New("alert not found")

// AssignmentDirectory resolves whether a steward may see indicator-scoped alerts.
type AssignmentDirectory interface {
	Exists(ctx context.Context, stewardID, indicatorID string) (bool, error)
}

// Service is the alert ledger: it owns alert creation, read-state flips, and
// scoped queries. Created alerts are also published to the notification
// surface, best-effort.
type Service struct {
	repo        repository.Repository
	assignments AssignmentDirectory
	notify      notifier.Notifier
}

// NewService returns the alert ledger service. notify may be nil when
// notifications are disabled.
func NewService(repo repository.Repository, assignments AssignmentDirectory, notify notifier.Notifier) *Service {
	return &Service{repo: repo, assignments: assignments, notify: notify}
}

// CreateParams describes a new alert. IndicatorID, StewardID, and
// ThresholdValue are optional.
type CreateParams struct {
	Kind           domain.Kind
	IndicatorID    string
	StewardID      string
	Title          string
	Description    string
	ThresholdValue *float64
	CreatedAt      time.Time
}

// Create appends an alert to the ledger and publishes it asynchronously.
func (s *Service) Create(ctx context.Context, p CreateParams) (*domain.Alert, error) {
	a := &domain.Alert{
		ID:             uuid.New().String(),
		Kind:           p.Kind,
		IndicatorID:    p.IndicatorID,
		StewardID:      p.StewardID,
		Title:          p.Title,
		Description:    p.Description,
		ThresholdValue: p.ThresholdValue,
		State:          domain.StateNew,
		CreatedAt:      p.CreatedAt.UTC(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	notifier.NotifyAsync(s.notify, a)
	return a, nil
}

// ExistsTitledOn reports whether an alert of the kind with the exact title was
// created on the given calendar date. Used as the reconciliation job's
// once-per-day guard.
func (s *Service) ExistsTitledOn(ctx context.Context, kind domain.Kind, title string, day time.Time) (bool, error) {
	return s.repo.ExistsTitledOn(ctx, kind, title, day)
}

// ExistsForIndicatorSince reports whether an alert of the kind exists for the
// indicator since the given time. Used by the anomaly detector's dedup.
func (s *Service) ExistsForIndicatorSince(ctx context.Context, kind domain.Kind, indicatorID string, since time.Time) (bool, error) {
	return s.repo.ExistsForIndicatorSince(ctx, kind, indicatorID, since)
}

// MarkRead flips the alert to read on behalf of the principal. Idempotent for
// already-read alerts. Returns ErrNotFound when the alert does not exist or
// the steward has no sight of it.
func (s *Service) MarkRead(ctx context.Context, p identity.Principal, id string, now time.Time) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrNotFound
	}
	visible, err := s.visibleTo(ctx, p, a)
	if err != nil {
		return err
	}
	if !visible {
		return ErrNotFound
	}
	return s.repo.MarkRead(ctx, id, now.UTC())
}

// MarkAllRead flips every unread alert visible to the principal to read.
func (s *Service) MarkAllRead(ctx context.Context, p identity.Principal, now time.Time) error {
	return s.repo.MarkAllReadFor(ctx, s.scope(p, domain.Kind(""), false), now.UTC())
}

// List returns alerts visible to the principal, newest first, plus the
// matching unread count.
func (s *Service) List(ctx context.Context, p identity.Principal, unreadOnly bool, limit, offset int) ([]*domain.Alert, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	f := s.scope(p, domain.Kind(""), unreadOnly)
	alerts, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.CountUnread(ctx, s.scope(p, domain.Kind(""), false))
	if err != nil {
		return nil, 0, err
	}
	return alerts, unread, nil
}

func (s *Service) scope(p identity.Principal, kind domain.Kind, unreadOnly bool) repository.Filter {
	f := repository.Filter{Kind: kind, UnreadOnly: unreadOnly}
	if p.Role != identity.RoleAdministrator {
		f.StewardID = p.ID
	}
	return f
}

// visibleTo mirrors the repository's steward scoping: direct address,
// assignment to the alert's indicator, and system-wide are independent grants.
func (s *Service) visibleTo(ctx context.Context, p identity.Principal, a *domain.Alert) (bool, error) {
	if p.Role == identity.RoleAdministrator {
		return true, nil
	}
	if a.StewardID == "" && a.IndicatorID == "" {
		// System-wide alerts are visible to everyone.
		return true, nil
	}
	if a.StewardID == p.ID {
		return true, nil
	}
	if a.IndicatorID != "" {
		return s.assignments.Exists(ctx, p.ID, a.IndicatorID)
	}
	return false, nil
}
