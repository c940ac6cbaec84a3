package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	alertdomain "indicator-reporting/backend/internal/alert/domain"
	alertservice "indicator-reporting/backend/internal/alert/service"
	"indicator-reporting/backend/internal/period"
	recorddomain "indicator-reporting/backend/internal/record/domain"
)

const (
	// scanWindowMonths is how far back the scan looks for records to examine.
	scanWindowMonths = 1
	// baselineWindowMonths is how far back the historical baseline reaches.
	baselineWindowMonths = 6
	// minBaselinePoints is the minimum number of historical comparison points;
	// records with fewer are skipped as insufficient evidence.
	minBaselinePoints = 3
	// sigmaThreshold flags a record whose value deviates from the baseline
	// mean by more than this many standard deviations.
	sigmaThreshold = 2.0
	// dedupWindow suppresses a new anomaly alert when one for the same
	// indicator was raised within this window, to avoid alert storms from
	// repeated detector runs.
	dedupWindow = 24 * time.Hour

	// AlertTitle is the title of every anomaly alert the detector raises.
	AlertTitle = "atypical value detected"
)

// RecordStore is the minimal record repository needed by the detector.
type RecordStore interface {
	ListCreatedSince(ctx context.Context, since time.Time) ([]*recorddomain.Record, error)
	ListRecent(ctx context.Context, indicatorID string, since time.Time) ([]*recorddomain.Record, error)
}

// AlertLedger is the alert surface needed by the detector.
type AlertLedger interface {
	Create(ctx context.Context, p alertservice.CreateParams) (*alertdomain.Alert, error)
	ExistsForIndicatorSince(ctx context.Context, kind alertdomain.Kind, indicatorID string, since time.Time) (bool, error)
}

// Service scans recently created records and raises anomaly alerts for values
// that deviate statistically from each indicator's trailing baseline. It is a
// heuristic: false positives and negatives are acceptable, it only informs and
// never blocks submissions.
type Service struct {
	records RecordStore
	alerts  AlertLedger
}

// NewService returns an anomaly detector with the given dependencies.
func NewService(records RecordStore, alerts AlertLedger) *Service {
	return &Service{records: records, alerts: alerts}
}

// Detect examines records created within the trailing month against each
// indicator's six-month baseline (excluding the record itself) and returns the
// alerts it raised. Per-record failures are logged and skipped, never fatal to
// the scan.
func (s *Service) Detect(ctx context.Context, now time.Time) ([]*alertdomain.Alert, error) {
	recent, err := s.records.ListCreatedSince(ctx, now.AddDate(0, -scanWindowMonths, 0))
	if err != nil {
		return nil, fmt.Errorf("list recent records: %w", err)
	}

	baselineSince := now.AddDate(0, -baselineWindowMonths, 0)
	baselines := map[string][]*recorddomain.Record{}

	var raised []*alertdomain.Alert
	for _, rec := range recent {
		history, ok := baselines[rec.IndicatorID]
		if !ok {
			history, err = s.records.ListRecent(ctx, rec.IndicatorID, baselineSince)
			if err != nil {
				log.Printf("anomaly: baseline for indicator %s: %v", rec.IndicatorID, err)
				continue
			}
			baselines[rec.IndicatorID] = history
		}

		mean, sigma, n := baselineStats(history, rec.ID)
		if n < minBaselinePoints {
			continue // insufficient evidence
		}
		if math.Abs(rec.Value-mean) <= sigmaThreshold*sigma {
			continue
		}

		dup, err := s.alerts.ExistsForIndicatorSince(ctx, alertdomain.KindAnomaly, rec.IndicatorID, now.Add(-dedupWindow))
		if err != nil {
			log.Printf("anomaly: dedup check for indicator %s: %v", rec.IndicatorID, err)
			continue
		}
		if dup {
			continue
		}

		threshold := mean
		a, err := s.alerts.Create(ctx, alertservice.CreateParams{
			Kind:        alertdomain.KindAnomaly,
			IndicatorID: rec.IndicatorID,
			StewardID:   rec.StewardID,
			Title:       AlertTitle,
			Description: fmt.Sprintf(
				"Atypical value reported for indicator %s in %s: %.2f (historical mean %.2f).",
				rec.IndicatorID, period.PeriodLabel(rec.Month, rec.Year), rec.Value, mean),
			ThresholdValue: &threshold,
			CreatedAt:      now,
		})
		if err != nil {
			log.Printf("anomaly: create alert for indicator %s: %v", rec.IndicatorID, err)
			continue
		}
		raised = append(raised, a)
	}

	if len(raised) > 0 {
		log.Printf("anomaly: raised %d alert(s)", len(raised))
	}
	return raised, nil
}

// baselineStats returns the mean and population standard deviation of the
// history, excluding the record under examination, plus the number of
// comparison points used.
func baselineStats(history []*recorddomain.Record, excludeID string) (mean, sigma float64, n int) {
	var sum float64
	for _, h := range history {
		if h.ID == excludeID {
			continue
		}
		sum += h.Value
		n++
	}
	if n == 0 {
		return 0, 0, 0
	}
	mean = sum / float64(n)
	var sq float64
	for _, h := range history {
		if h.ID == excludeID {
			continue
		}
		d := h.Value - mean
		sq += d * d
	}
	sigma = math.Sqrt(sq / float64(n))
	return mean, sigma, n
}
