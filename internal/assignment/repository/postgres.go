package repository

import (
	"context"
	"database/sql"

	"indicator-reporting/backend/internal/assignment/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a read-only assignment directory backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Exists reports whether the (steward, indicator) pair is assigned.
func (r *PostgresRepository) Exists(ctx context.Context, stewardID, indicatorID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM assignments WHERE steward_id = $1 AND indicator_id = $2)`,
		stewardID, indicatorID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListBySteward returns every assignment for the given steward.
func (r *PostgresRepository) ListBySteward(ctx context.Context, stewardID string) ([]*domain.Assignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, steward_id, indicator_id, created_at
		 FROM assignments
		 WHERE steward_id = $1
		 ORDER BY created_at`,
		stewardID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Assignment
	for rows.Next() {
		a := &domain.Assignment{}
		if err := rows.Scan(&a.ID, &a.StewardID, &a.IndicatorID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
