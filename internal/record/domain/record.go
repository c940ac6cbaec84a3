package domain

import "time"

// RecordState classifies how a monthly record's value was produced.
// A period with no record at all is pending; that state is modeled as absence,
// not as an enum value.
type RecordState string

const (
	// StateManuallyLoaded marks values submitted by a steward.
	StateManuallyLoaded RecordState = "manually_loaded"
	// StateAutoZeroFilled marks placeholder zeros inserted by the
	// reconciliation job when no submission arrived.
	StateAutoZeroFilled RecordState = "auto_zero_filled"
)

// AutoFillAnnotation is stored on records created by the reconciliation job.
const AutoFillAnnotation = "value loaded automatically because no manual submission was received"

// Record is one steward's measurement of one indicator for one calendar month.
// At most one record exists per (indicator, steward, month, year).
type Record struct {
	ID          string
	IndicatorID string
	StewardID   string
	Month       int // 1..12
	Year        int
	Value       float64
	State       RecordState
	// Locked blocks edits outside the open submission window. Administrators
	// may explicitly unlock a record to allow late corrections.
	Locked     bool
	Annotation string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AuditEntry captures one value overwrite on an existing record.
// Entries are append-only: never mutated or deleted.
type AuditEntry struct {
	ID            string
	RecordID      string
	EditorID      string
	PreviousValue float64
	NewValue      float64
	Reason        string
	CreatedAt     time.Time
}
