package repository

import (
	"context"
	"time"

	"indicator-reporting/backend/internal/alert/domain"
)

// Filter narrows alert queries.
type Filter struct {
	// StewardID restricts results to alerts on indicators assigned to the
	// steward, plus alerts addressed to them directly. Empty means no
	// restriction (administrator view).
	StewardID string
	// Kind restricts results to one alert kind when non-empty.
	Kind domain.Kind
	// UnreadOnly restricts results to alerts still in state new.
	UnreadOnly bool
}

// Repository defines persistence for the alert ledger. Append-mostly: alerts
// are created and flipped to read, never deleted here.
type Repository interface {
	Create(ctx context.Context, a *domain.Alert) error
	GetByID(ctx context.Context, id string) (*domain.Alert, error)
	// MarkRead flips the alert to read. Idempotent: marking an already-read
	// alert is a no-op, not an error.
	MarkRead(ctx context.Context, id string, at time.Time) error
	// MarkAllReadFor flips every unread alert matching the filter to read.
	MarkAllReadFor(ctx context.Context, f Filter, at time.Time) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*domain.Alert, error)
	CountUnread(ctx context.Context, f Filter) (int, error)
	// ExistsTitledOn reports whether an alert of the kind with the exact title
	// was created on the given calendar date (UTC). Idempotency guard for the
	// reconciliation job.
	ExistsTitledOn(ctx context.Context, kind domain.Kind, title string, day time.Time) (bool, error)
	// ExistsForIndicatorSince reports whether an alert of the kind exists for
	// the indicator with createdAt at or after since. Dedup for the detector.
	ExistsForIndicatorSince(ctx context.Context, kind domain.Kind, indicatorID string, since time.Time) (bool, error)
}
