package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	alertdomain "indicator-reporting/backend/internal/alert/domain"
	alertservice "indicator-reporting/backend/internal/alert/service"
	"indicator-reporting/backend/internal/period"
	recorddomain "indicator-reporting/backend/internal/record/domain"
	recordrepo "indicator-reporting/backend/internal/record/repository"
)

const (
	// RunDay is the day of the month the backfill runs, the first day after
	// the submission window closes.
	RunDay = period.CloseDay + 1

	// CompletedAlertTitle is the System alert title written after every run.
	// Its presence on the current calendar date is the once-per-day guard, so
	// the title must stay stable.
	CompletedAlertTitle = "automatic backfill completed"

	// FailedAlertTitle marks a run that aborted before backfilling.
	FailedAlertTitle = "automatic backfill failed"

	// systemEditorID is recorded as the editor on job-created records.
	systemEditorID = "system"

	// backfillWorkers bounds the concurrent inserts; each missing pair targets
	// a distinct key, so they are safe to run in parallel.
	backfillWorkers = 8
)

// RecordStore is the minimal record repository needed by the reconciliation job.
type RecordStore interface {
	ListMissing(ctx context.Context, month, year int) ([]recordrepo.Pair, error)
	InsertIfAbsent(ctx context.Context, p recordrepo.UpsertParams) (bool, error)
}

// AlertLedger is the alert surface needed by the job: the summary alert and
// the once-per-day guard query.
type AlertLedger interface {
	Create(ctx context.Context, p alertservice.CreateParams) (*alertdomain.Alert, error)
	ExistsTitledOn(ctx context.Context, kind alertdomain.Kind, title string, day time.Time) (bool, error)
}

// Report summarizes one reconciliation invocation.
type Report struct {
	Skipped     bool
	SkipReason  string
	TargetMonth int
	TargetYear  int
	Missing     int
	Processed   int
	Failed      int
	Errors      []string
}

// Service is the idempotent monthly backfill: once per period it inserts
// placeholder zero-value records for every assigned pair that never submitted.
type Service struct {
	records RecordStore
	alerts  AlertLedger
}

// NewService returns a reconciliation service with the given dependencies.
func NewService(records RecordStore, alerts AlertLedger) *Service {
	return &Service{records: records, alerts: alerts}
}

// RunIfDue runs the backfill when due, otherwise returns a skipped report.
// Due means: now is day 6 of the month and no completed-run alert exists for
// the current calendar date. The guard is best-effort; the uniqueness
// constraint on the record key keeps individual inserts idempotent even when
// the guard is bypassed.
func (s *Service) RunIfDue(ctx context.Context, now time.Time) (*Report, error) {
	if reason, due := dueToday(now); !due {
		return &Report{Skipped: true, SkipReason: reason}, nil
	}
	ranAlready, err := s.alerts.ExistsTitledOn(ctx, alertdomain.KindSystem, CompletedAlertTitle, now)
	if err != nil {
		return nil, fmt.Errorf("check last run: %w", err)
	}
	if ranAlready {
		return &Report{Skipped: true, SkipReason: "backfill already ran today"}, nil
	}
	return s.Run(ctx, now)
}

// Run executes the backfill for the period preceding now, regardless of the
// due check. Exposed for the administrator's manual trigger. Safe to re-invoke
// after a crash: already-applied backfills stay intact and are not duplicated.
func (s *Service) Run(ctx context.Context, now time.Time) (*Report, error) {
	w := period.CurrentWindow(now)
	report := &Report{TargetMonth: w.TargetMonth, TargetYear: w.TargetYear}

	missing, err := s.records.ListMissing(ctx, w.TargetMonth, w.TargetYear)
	if err != nil {
		err = fmt.Errorf("list missing records: %w", err)
		s.createAlert(ctx, now, FailedAlertTitle,
			fmt.Sprintf("Backfill for %s aborted: %v.", w.Label(), err))
		return nil, err
	}
	report.Missing = len(missing)

	// Best-effort batch: a failure on one pair must not block the rest.
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, backfillWorkers)
	)
	for _, pair := range missing {
		wg.Add(1)
		sem <- struct{}{}
		go func(pair recordrepo.Pair) {
			defer wg.Done()
			defer func() { <-sem }()
			created, err := s.records.InsertIfAbsent(ctx, recordrepo.UpsertParams{
				Key: recordrepo.Key{
					IndicatorID: pair.IndicatorID,
					StewardID:   pair.StewardID,
					Month:       w.TargetMonth,
					Year:        w.TargetYear,
				},
				Value:      0,
				State:      recorddomain.StateAutoZeroFilled,
				Locked:     false,
				Annotation: recorddomain.AutoFillAnnotation,
				EditorID:   systemEditorID,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				report.Errors = append(report.Errors,
					fmt.Sprintf("indicator %s / steward %s: %v", pair.IndicatorID, pair.StewardID, err))
			case created:
				report.Processed++
			default:
				// A submission landed between ListMissing and the insert;
				// nothing to do for this pair.
			}
		}(pair)
	}
	wg.Wait()

	// The summary alert is written even when nothing was missing: it doubles
	// as the once-per-day guard for later invocations.
	s.createAlert(ctx, now, CompletedAlertTitle, summaryDescription(w, report))

	log.Printf("reconcile: backfilled %d of %d missing records for %s (%d failed)",
		report.Processed, report.Missing, w.Label(), report.Failed)
	return report, nil
}

func (s *Service) createAlert(ctx context.Context, now time.Time, title, description string) {
	_, err := s.alerts.Create(ctx, alertservice.CreateParams{
		Kind:        alertdomain.KindSystem,
		Title:       title,
		Description: description,
		CreatedAt:   now,
	})
	if err != nil {
		// The job must still leave a trace when the ledger is unreachable.
		log.Printf("reconcile: failed to create alert %q: %v", title, err)
	}
}

// dueToday is the pure part of the due check: the calendar-date predicate.
func dueToday(now time.Time) (reason string, due bool) {
	if now.Day() != RunDay {
		return fmt.Sprintf("today is day %d; the backfill runs only on day %d of the month", now.Day(), RunDay), false
	}
	return "", true
}

func summaryDescription(w period.Window, r *Report) string {
	if r.Missing == 0 {
		return fmt.Sprintf("No records were pending for %s.", w.Label())
	}
	desc := fmt.Sprintf("Backfilled %d record(s) with value 0 for %s.", r.Processed, w.Label())
	if r.Failed > 0 {
		desc += fmt.Sprintf(" %d record(s) failed and will be retried on the next run.", r.Failed)
	} else {
		desc += " No failures."
	}
	return desc
}
