// Package period computes the reporting period and submission window state.
//
// The reporting cycle is monthly: stewards report values for a calendar month
// during the first five days of the following month. Every component that needs
// window decisions (submission, reconciliation, status banners) computes them
// from the same captured timestamp via CurrentWindow, so one logical operation
// never sees two different answers.
package period

import (
	"fmt"
	"time"
)

// CloseDay is the last day of the month on which the submission window is open.
const CloseDay = 5

// Window is the submission window state as of a single captured timestamp.
type Window struct {
	// TargetMonth and TargetYear identify the reporting period: always the
	// calendar month preceding the timestamp's month.
	TargetMonth int // 1..12
	TargetYear  int
	// DayOfMonth is the day component of the timestamp.
	DayOfMonth int
	// IsOpen is true while submissions for the target period are accepted.
	IsOpen bool
}

// CurrentWindow maps now to the target reporting period and window state.
// The target period is the month before now's month (the year rolls back when
// now is in January), and the window is open on days 1 through 5 inclusive.
func CurrentWindow(now time.Time) Window {
	month := int(now.Month()) - 1
	year := now.Year()
	if month == 0 {
		month = 12
		year--
	}
	day := now.Day()
	return Window{
		TargetMonth: month,
		TargetYear:  year,
		DayOfMonth:  day,
		IsOpen:      day >= 1 && day <= CloseDay,
	}
}

// DaysRemaining returns how many days of the window are left, counting today.
// Zero when the window is closed.
func (w Window) DaysRemaining() int {
	if !w.IsOpen {
		return 0
	}
	return CloseDay - w.DayOfMonth + 1
}

// Matches reports whether (month, year) is the window's target period.
func (w Window) Matches(month, year int) bool {
	return month == w.TargetMonth && year == w.TargetYear
}

// Label returns a human-readable name for the target period, e.g. "March 2024".
// Used in alert descriptions and window-closed messages.
func (w Window) Label() string {
	return PeriodLabel(w.TargetMonth, w.TargetYear)
}

// PeriodLabel formats a (month, year) pair as e.g. "March 2024".
func PeriodLabel(month, year int) string {
	if month < 1 || month > 12 {
		return "invalid period"
	}
	return fmt.Sprintf("%s %d", time.Month(month), year)
}
