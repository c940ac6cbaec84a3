package domain

import "time"

// Assignment links a steward to an indicator they are responsible for reporting.
// Pairs are unique and have no temporal bound. Assignments are created by the
// user-management collaborator; this core only reads them.
type Assignment struct {
	ID          string
	StewardID   string
	IndicatorID string
	CreatedAt   time.Time
}
