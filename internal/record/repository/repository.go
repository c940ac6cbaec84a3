package repository

import (
	"context"
	"errors"
	"time"

	"indicator-reporting/backend/internal/record/domain"
)

// ErrInvalidValue is returned by Upsert when the value is negative.
var ErrInvalidValue = errors.New("record value must be non-negative")

// Key identifies a record: one steward, one indicator, one calendar month.
type Key struct {
	IndicatorID string
	StewardID   string
	Month       int // 1..12
	Year        int
}

// Pair is an (indicator, steward) assignment pair with no record for a period.
type Pair struct {
	IndicatorID string
	StewardID   string
}

// UpsertParams describes one create-or-overwrite of a record.
// EditorID and Reason populate the audit entry written when an existing
// record's value is overwritten; no audit entry is written on first creation.
type UpsertParams struct {
	Key
	Value      float64
	State      domain.RecordState
	Locked     bool
	Annotation string
	EditorID   string
	Reason     string
}

// Repository defines persistence for records and their audit trail.
//
// Upsert must be atomic per key: concurrent upserts for the same key serialize
// so the audit history reflects a total order of value transitions.
type Repository interface {
	// Get returns the record for key, or nil if the period is still pending.
	Get(ctx context.Context, key Key) (*domain.Record, error)
	// Upsert creates the record, or overwrites its value after appending an
	// audit entry capturing the transition. Returns ErrInvalidValue when the
	// value is negative.
	Upsert(ctx context.Context, p UpsertParams) (*domain.Record, error)
	// InsertIfAbsent creates the record only when no record exists for the
	// key, relying on the store's uniqueness constraint. Returns false when a
	// record (from any writer) already holds the key. Used by the
	// reconciliation job so a concurrent submission is never overwritten.
	InsertIfAbsent(ctx context.Context, p UpsertParams) (created bool, err error)
	// ListMissing returns every assignment pair with no record for the period.
	ListMissing(ctx context.Context, month, year int) ([]Pair, error)
	// ListRecent returns the indicator's records created at or after since,
	// newest first. Used for anomaly baselines.
	ListRecent(ctx context.Context, indicatorID string, since time.Time) ([]*domain.Record, error)
	// ListCreatedSince returns all records created at or after since, newest
	// first, across indicators. Feeds the anomaly scan.
	ListCreatedSince(ctx context.Context, since time.Time) ([]*domain.Record, error)
	// ListBySteward returns records visible to the steward through their
	// assignments, optionally filtered by month and/or year (zero = no filter).
	ListBySteward(ctx context.Context, stewardID string, month, year int) ([]*domain.Record, error)
	// ListAudit returns the record's audit entries, oldest first.
	ListAudit(ctx context.Context, recordID string) ([]*domain.AuditEntry, error)
}
