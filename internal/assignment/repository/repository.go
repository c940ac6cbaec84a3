package repository

import (
	"context"

	"indicator-reporting/backend/internal/assignment/domain"
)

// Repository defines read-only access to the assignment directory.
// Assignments are owned by the user-management collaborator; this core never
// writes them.
type Repository interface {
	Exists(ctx context.Context, stewardID, indicatorID string) (bool, error)
	ListBySteward(ctx context.Context, stewardID string) ([]*domain.Assignment, error)
}
