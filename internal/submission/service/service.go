package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"indicator-reporting/backend/internal/period"
	"indicator-reporting/backend/internal/record/domain"
	recordrepo "indicator-reporting/backend/internal/record/repository"
)

// Sentinel errors for submission; handlers map them to HTTP status codes.
var (
	ErrNotAssigned  = errors.New("indicator is not assigned to this steward")
	ErrInvalidValue = recordrepo.ErrInvalidValue
	ErrWindowClosed = errors.New("submission window is closed")
)

// manualUpdateReason is recorded on the audit entry for every overwrite.
const manualUpdateReason = "manual update"

// RecordStore is the minimal record repository needed by the submission service.
type RecordStore interface {
	Get(ctx context.Context, key recordrepo.Key) (*domain.Record, error)
	Upsert(ctx context.Context, p recordrepo.UpsertParams) (*domain.Record, error)
}

// AssignmentDirectory is the read-only assignment lookup needed by the service.
type AssignmentDirectory interface {
	Exists(ctx context.Context, stewardID, indicatorID string) (bool, error)
}

// Service validates and applies steward-submitted values against window and
// assignment rules.
type Service struct {
	records     RecordStore
	assignments AssignmentDirectory
}

// NewService returns a submission service with the given dependencies.
func NewService(records RecordStore, assignments AssignmentDirectory) *Service {
	return &Service{records: records, assignments: assignments}
}

// Submit validates and stores one measurement. now must be a single captured
// timestamp for the whole logical operation so the window decision is
// consistent.
//
// Rules, in order: the steward must hold the assignment; the value must be
// non-negative; an existing unlocked record may always be corrected; an
// existing locked record or a first submission is accepted only for the
// current target period while the window is open. Every overwrite appends
// exactly one audit entry; first-time creation appends none.
func (s *Service) Submit(ctx context.Context, stewardID, indicatorID string, month, year int, value float64, now time.Time) (*domain.Record, error) {
	assigned, err := s.assignments.Exists(ctx, stewardID, indicatorID)
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}
	if !assigned {
		return nil, ErrNotAssigned
	}
	if value < 0 {
		return nil, ErrInvalidValue
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month %d out of range", ErrInvalidValue, month)
	}

	w := period.CurrentWindow(now)
	key := recordrepo.Key{IndicatorID: indicatorID, StewardID: stewardID, Month: month, Year: year}

	existing, err := s.records.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}

	inWindow := w.Matches(month, year) && w.IsOpen
	if existing != nil {
		// Unlocked records (e.g. administrator-released, or auto-zero
		// placeholders) may always be corrected; locked ones only inside the
		// open window for the target period.
		if existing.Locked && !inWindow {
			return nil, windowClosedError(w, month, year)
		}
	} else if !inWindow {
		return nil, windowClosedError(w, month, year)
	}

	rec, err := s.records.Upsert(ctx, recordrepo.UpsertParams{
		Key:      key,
		Value:    value,
		State:    domain.StateManuallyLoaded,
		Locked:   true, // standard window rules apply from here on
		EditorID: stewardID,
		Reason:   manualUpdateReason,
	})
	if err != nil {
		return nil, fmt.Errorf("store record: %w", err)
	}
	return rec, nil
}

// windowClosedError wraps ErrWindowClosed with the temporal context a steward
// needs: which period was attempted and when the window applies.
func windowClosedError(w period.Window, month, year int) error {
	if w.Matches(month, year) {
		return fmt.Errorf("%w: submissions for %s are accepted on days 1 through %d of the following month",
			ErrWindowClosed, period.PeriodLabel(month, year), period.CloseDay)
	}
	if w.IsOpen {
		return fmt.Errorf("%w: the open window accepts submissions for %s only (%d day(s) remaining)",
			ErrWindowClosed, w.Label(), w.DaysRemaining())
	}
	return fmt.Errorf("%w: the next window for %s opens on day 1 of the following month",
		ErrWindowClosed, w.Label())
}
