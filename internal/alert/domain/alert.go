package domain

import "time"

// Kind classifies an alert.
type Kind string

const (
	KindAnomaly    Kind = "anomaly"
	KindReminder   Kind = "reminder"
	KindGoalBreach Kind = "goal_breach"
	KindSystem     Kind = "system"
)

// State is an alert's read state. Alerts are never deleted by the core; the
// only mutation is the flip from new to read.
type State string

const (
	StateNew  State = "new"
	StateRead State = "read"
)

// Alert is one entry in the notification ledger.
type Alert struct {
	ID   string
	Kind Kind
	// IndicatorID and StewardID scope the alert; either may be empty for
	// system-wide alerts.
	IndicatorID string
	StewardID   string
	Title       string
	Description string
	// ThresholdValue is the baseline that triggered an anomaly alert; nil for
	// alerts without a numeric threshold.
	ThresholdValue *float64
	State          State
	CreatedAt      time.Time
	ReadAt         *time.Time // nil while unread
}
