package period

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

func TestCurrentWindow_TargetPeriod(t *testing.T) {
	testCases := []struct {
		name      string
		now       time.Time
		wantMonth int
		wantYear  int
	}{
		{"mid year", date(2024, time.April, 3), 3, 2024},
		{"february", date(2024, time.February, 15), 1, 2024},
		{"december to november", date(2024, time.December, 2), 11, 2024},
		{"january rolls back year", date(2024, time.January, 4), 12, 2023},
		{"january late in month", date(2025, time.January, 28), 12, 2024},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := CurrentWindow(tc.now)
			if w.TargetMonth != tc.wantMonth || w.TargetYear != tc.wantYear {
				t.Errorf("CurrentWindow(%v) target = %d/%d, want %d/%d",
					tc.now, w.TargetMonth, w.TargetYear, tc.wantMonth, tc.wantYear)
			}
			if w.DayOfMonth != tc.now.Day() {
				t.Errorf("DayOfMonth = %d, want %d", w.DayOfMonth, tc.now.Day())
			}
		})
	}
}

func TestCurrentWindow_IsOpen(t *testing.T) {
	for day := 1; day <= 31; day++ {
		w := CurrentWindow(date(2024, time.March, day))
		wantOpen := day <= 5
		if w.IsOpen != wantOpen {
			t.Errorf("day %d: IsOpen = %v, want %v", day, w.IsOpen, wantOpen)
		}
	}
}

func TestWindow_DaysRemaining(t *testing.T) {
	testCases := []struct {
		day  int
		want int
	}{
		{1, 5},
		{3, 3},
		{5, 1},
		{6, 0},
		{20, 0},
	}
	for _, tc := range testCases {
		w := CurrentWindow(date(2024, time.June, tc.day))
		if got := w.DaysRemaining(); got != tc.want {
			t.Errorf("day %d: DaysRemaining = %d, want %d", tc.day, got, tc.want)
		}
	}
}

func TestWindow_Matches(t *testing.T) {
	w := CurrentWindow(date(2024, time.April, 2))
	if !w.Matches(3, 2024) {
		t.Error("window in April 2024 should match period 3/2024")
	}
	if w.Matches(4, 2024) {
		t.Error("window in April 2024 should not match period 4/2024")
	}
	if w.Matches(3, 2023) {
		t.Error("window in April 2024 should not match period 3/2023")
	}
}

func TestPeriodLabel(t *testing.T) {
	if got := PeriodLabel(3, 2024); got != "March 2024" {
		t.Errorf("PeriodLabel(3, 2024) = %q, want %q", got, "March 2024")
	}
	if got := PeriodLabel(12, 2023); got != "December 2023" {
		t.Errorf("PeriodLabel(12, 2023) = %q, want %q", got, "December 2023")
	}
	if got := PeriodLabel(0, 2024); got != "invalid period" {
		t.Errorf("PeriodLabel(0, 2024) = %q, want %q", got, "invalid period")
	}
}
