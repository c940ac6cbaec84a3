package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"indicator-reporting/backend/internal/record/domain"
)

// uniqueViolation is the Postgres error code raised when an insert loses the
// race for the (indicator, steward, month, year) key.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a record repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `id, indicator_id, steward_id, month, year, value, state, locked, annotation, created_at, updated_at`

// Get returns the record for key, or nil if the period is still pending.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, key Key) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+`
		 FROM records
		 WHERE indicator_id = $1 AND steward_id = $2 AND month = $3 AND year = $4`,
		key.IndicatorID, key.StewardID, key.Month, key.Year,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// Upsert creates or overwrites the record for p.Key inside one transaction.
// The existing row is locked with SELECT ... FOR UPDATE so concurrent upserts
// for the same key serialize; an overwrite appends one audit entry before the
// value changes. A create that loses the insert race is retried once as an
// overwrite.
func (r *PostgresRepository) Upsert(ctx context.Context, p UpsertParams) (*domain.Record, error) {
	if p.Value < 0 {
		return nil, ErrInvalidValue
	}

	rec, err := r.upsertTx(ctx, p)
	if isUniqueViolation(err) {
		// Lost the create race; the row exists now, so retry as an overwrite.
		rec, err = r.upsertTx(ctx, p)
	}
	return rec, err
}

func (r *PostgresRepository) upsertTx(ctx context.Context, p UpsertParams) (*domain.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+`
		 FROM records
		 WHERE indicator_id = $1 AND steward_id = $2 AND month = $3 AND year = $4
		 FOR UPDATE`,
		p.IndicatorID, p.StewardID, p.Month, p.Year,
	)
	existing, err := scanRecord(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	var rec *domain.Record
	if existing != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO record_audit (id, record_id, editor_id, previous_value, new_value, reason, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New().String(), existing.ID, p.EditorID, existing.Value, p.Value, p.Reason, now,
		)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE records
			 SET value = $1, state = $2, locked = $3, annotation = $4, updated_at = $5
			 WHERE id = $6`,
			p.Value, string(p.State), p.Locked, p.Annotation, now, existing.ID,
		)
		if err != nil {
			return nil, err
		}
		rec = &domain.Record{
			ID: existing.ID, IndicatorID: p.IndicatorID, StewardID: p.StewardID,
			Month: p.Month, Year: p.Year, Value: p.Value, State: p.State,
			Locked: p.Locked, Annotation: p.Annotation,
			CreatedAt: existing.CreatedAt, UpdatedAt: now,
		}
	} else {
		id := uuid.New().String()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO records (id, indicator_id, steward_id, month, year, value, state, locked, annotation, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
			id, p.IndicatorID, p.StewardID, p.Month, p.Year, p.Value, string(p.State), p.Locked, p.Annotation, now,
		)
		if err != nil {
			return nil, err
		}
		rec = &domain.Record{
			ID: id, IndicatorID: p.IndicatorID, StewardID: p.StewardID,
			Month: p.Month, Year: p.Year, Value: p.Value, State: p.State,
			Locked: p.Locked, Annotation: p.Annotation,
			CreatedAt: now, UpdatedAt: now,
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// InsertIfAbsent creates the record unless a record already holds the key.
// The uniqueness constraint makes the attempt idempotent: a concurrent
// submission that wins the race is left untouched and false is returned.
func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, p UpsertParams) (bool, error) {
	if p.Value < 0 {
		return false, ErrInvalidValue
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO records (id, indicator_id, steward_id, month, year, value, state, locked, annotation, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		 ON CONFLICT (indicator_id, steward_id, month, year) DO NOTHING`,
		uuid.New().String(), p.IndicatorID, p.StewardID, p.Month, p.Year,
		p.Value, string(p.State), p.Locked, p.Annotation, now,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListMissing returns every assignment pair with no record for the period:
// the set difference between assignments and records keyed on
// (indicator, steward, month, year).
func (r *PostgresRepository) ListMissing(ctx context.Context, month, year int) ([]Pair, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.indicator_id, a.steward_id
		 FROM assignments a
		 WHERE NOT EXISTS (
			SELECT 1 FROM records rec
			WHERE rec.indicator_id = a.indicator_id
			  AND rec.steward_id = a.steward_id
			  AND rec.month = $1
			  AND rec.year = $2
		 )
		 ORDER BY a.indicator_id, a.steward_id`,
		month, year,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.IndicatorID, &p.StewardID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListRecent returns the indicator's records created at or after since, newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, indicatorID string, since time.Time) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+`
		 FROM records
		 WHERE indicator_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC`,
		indicatorID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListCreatedSince returns all records created at or after since, newest first.
func (r *PostgresRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+`
		 FROM records
		 WHERE created_at >= $1
		 ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListBySteward returns the steward's records, optionally filtered by month
// and/or year (zero means no filter), ordered most recent period first.
func (r *PostgresRepository) ListBySteward(ctx context.Context, stewardID string, month, year int) ([]*domain.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE steward_id = $1`
	args := []any{stewardID}
	if year != 0 {
		args = append(args, year)
		query += ` AND year = $2`
	}
	if month != 0 {
		args = append(args, month)
		if year != 0 {
			query += ` AND month = $3`
		} else {
			query += ` AND month = $2`
		}
	}
	query += ` ORDER BY year DESC, month DESC, indicator_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListAudit returns the record's audit entries, oldest first.
func (r *PostgresRepository) ListAudit(ctx context.Context, recordID string) ([]*domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, record_id, editor_id, previous_value, new_value, reason, created_at
		 FROM record_audit
		 WHERE record_id = $1
		 ORDER BY created_at`,
		recordID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditEntry
	for rows.Next() {
		e := &domain.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.RecordID, &e.EditorID, &e.PreviousValue, &e.NewValue, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	rec := &domain.Record{}
	var state string
	err := row.Scan(&rec.ID, &rec.IndicatorID, &rec.StewardID, &rec.Month, &rec.Year,
		&rec.Value, &state, &rec.Locked, &rec.Annotation, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.State = domain.RecordState(state)
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]*domain.Record, error) {
	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
