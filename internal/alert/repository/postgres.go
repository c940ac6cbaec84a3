package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"indicator-reporting/backend/internal/alert/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an alert ledger repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const alertColumns = `id, kind, indicator_id, steward_id, title, description, threshold_value, state, created_at, read_at`

// Create persists the alert. The alert must have ID, Kind, State, and
// CreatedAt set by the caller.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Alert) error {
	indicatorID := sql.NullString{String: a.IndicatorID, Valid: a.IndicatorID != ""}
	stewardID := sql.NullString{String: a.StewardID, Valid: a.StewardID != ""}
	var threshold sql.NullFloat64
	if a.ThresholdValue != nil {
		threshold = sql.NullFloat64{Float64: *a.ThresholdValue, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (id, kind, indicator_id, steward_id, title, description, threshold_value, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, string(a.Kind), indicatorID, stewardID, a.Title, a.Description, threshold, string(a.State), a.CreatedAt,
	)
	return err
}

// GetByID returns the alert for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// MarkRead flips the alert to read. A no-op when the alert is already read or
// does not exist.
func (r *PostgresRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET state = $1, read_at = $2 WHERE id = $3 AND state = $4`,
		string(domain.StateRead), at, id, string(domain.StateNew),
	)
	return err
}

// MarkAllReadFor flips every unread alert matching the filter to read.
func (r *PostgresRepository) MarkAllReadFor(ctx context.Context, f Filter, at time.Time) error {
	query := `UPDATE alerts SET state = $1, read_at = $2 WHERE state = $3`
	args := []any{string(domain.StateRead), at, string(domain.StateNew)}
	query, args = applyFilter(query, args, f, false)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// List returns alerts matching the filter, newest first, paginated.
func (r *PostgresRepository) List(ctx context.Context, f Filter, limit, offset int) ([]*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1 = 1`
	args := []any{}
	query, args = applyFilter(query, args, f, true)
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountUnread returns the number of unread alerts matching the filter.
func (r *PostgresRepository) CountUnread(ctx context.Context, f Filter) (int, error) {
	query := `SELECT COUNT(*) FROM alerts WHERE state = $1`
	args := []any{string(domain.StateNew)}
	query, args = applyFilter(query, args, f, false)
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ExistsTitledOn reports whether an alert of the kind with the exact title was
// created on the given UTC calendar date.
func (r *PostgresRepository) ExistsTitledOn(ctx context.Context, kind domain.Kind, title string, day time.Time) (bool, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE kind = $1 AND title = $2 AND created_at >= $3 AND created_at < $4
		 )`,
		string(kind), title, dayStart, dayStart.AddDate(0, 0, 1),
	).Scan(&exists)
	return exists, err
}

// ExistsForIndicatorSince reports whether an alert of the kind exists for the
// indicator with createdAt at or after since.
func (r *PostgresRepository) ExistsForIndicatorSince(ctx context.Context, kind domain.Kind, indicatorID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE kind = $1 AND indicator_id = $2 AND created_at >= $3
		 )`,
		string(kind), indicatorID, since,
	).Scan(&exists)
	return exists, err
}

// applyFilter appends the filter's conditions. A steward sees alerts for
// indicators assigned to them plus alerts addressed to them directly;
// system-wide alerts (no indicator, no steward) are visible to everyone.
func applyFilter(query string, args []any, f Filter, includeUnread bool) (string, []any) {
	if f.StewardID != "" {
		args = append(args, f.StewardID)
		n := len(args)
		query += fmt.Sprintf(` AND (
			steward_id = $%d
			OR indicator_id IN (SELECT indicator_id FROM assignments WHERE steward_id = $%d)
			OR (indicator_id IS NULL AND steward_id IS NULL)
		)`, n, n)
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if includeUnread && f.UnreadOnly {
		args = append(args, string(domain.StateNew))
		query += fmt.Sprintf(` AND state = $%d`, len(args))
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*domain.Alert, error) {
	a := &domain.Alert{}
	var kind, state string
	var indicatorID, stewardID sql.NullString
	var threshold sql.NullFloat64
	var readAt sql.NullTime
	err := row.Scan(&a.ID, &kind, &indicatorID, &stewardID, &a.Title, &a.Description,
		&threshold, &state, &a.CreatedAt, &readAt)
	if err != nil {
		return nil, err
	}
	a.Kind = domain.Kind(kind)
	a.State = domain.State(state)
	a.IndicatorID = indicatorID.String
	a.StewardID = stewardID.String
	if threshold.Valid {
		v := threshold.Float64
		a.ThresholdValue = &v
	}
	if readAt.Valid {
		t := readAt.Time
		a.ReadAt = &t
	}
	return a, nil
}
