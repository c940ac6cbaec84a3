package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	alertdomain "indicator-reporting/backend/internal/alert/domain"
	alertservice "indicator-reporting/backend/internal/alert/service"
	recorddomain "indicator-reporting/backend/internal/record/domain"
	recordrepo "indicator-reporting/backend/internal/record/repository"
)

type memBackfillStore struct {
	mu      sync.Mutex
	missing []recordrepo.Pair
	listErr error
	// existing holds keys for which InsertIfAbsent reports a lost race.
	existing  map[recordrepo.Key]bool
	failPairs map[string]error // keyed by indicator ID
	inserted  []recordrepo.UpsertParams
}

func (r *memBackfillStore) ListMissing(ctx context.Context, month, year int) ([]recordrepo.Pair, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.missing, nil
}

func (r *memBackfillStore) InsertIfAbsent(ctx context.Context, p recordrepo.UpsertParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failPairs[p.IndicatorID]; err != nil {
		return false, err
	}
	if r.existing[p.Key] {
		return false, nil
	}
	r.inserted = append(r.inserted, p)
	return true, nil
}

type memAlertLedger struct {
	mu        sync.Mutex
	created   []alertservice.CreateParams
	existsOn  bool
	existsErr error
	createErr error
}

func (l *memAlertLedger) Create(ctx context.Context, p alertservice.CreateParams) (*alertdomain.Alert, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return nil, l.createErr
	}
	l.created = append(l.created, p)
	return &alertdomain.Alert{Kind: p.Kind, Title: p.Title, Description: p.Description}, nil
}

func (l *memAlertLedger) ExistsTitledOn(ctx context.Context, kind alertdomain.Kind, title string, day time.Time) (bool, error) {
	return l.existsOn, l.existsErr
}

// day 6 of June 2025: the backfill is due, target period May 2025.
var runDay = time.Date(2025, time.June, 6, 2, 0, 0, 0, time.UTC)

func TestRunIfDueSkipsOnWrongDay(t *testing.T) {
	store := &memBackfillStore{missing: []recordrepo.Pair{{IndicatorID: "ind-1", StewardID: "s-1"}}}
	ledger := &memAlertLedger{}
	svc := NewService(store, ledger)

	report, err := svc.RunIfDue(context.Background(), time.Date(2025, time.June, 7, 2, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RunIfDue: %v", err)
	}
	if !report.Skipped {
		t.Fatal("report should be skipped on day 7")
	}
	if len(store.inserted) != 0 {
		t.Errorf("inserted = %d, want 0", len(store.inserted))
	}
	if len(ledger.created) != 0 {
		t.Errorf("alerts created = %d, want 0", len(ledger.created))
	}
}

func TestRunIfDueSkipsWhenAlreadyRanToday(t *testing.T) {
	store := &memBackfillStore{missing: []recordrepo.Pair{{IndicatorID: "ind-1", StewardID: "s-1"}}}
	ledger := &memAlertLedger{existsOn: true}
	svc := NewService(store, ledger)

	report, err := svc.RunIfDue(context.Background(), runDay)
	if err != nil {
		t.Fatalf("RunIfDue: %v", err)
	}
	if !report.Skipped {
		t.Fatal("report should be skipped when the guard alert exists")
	}
	if len(store.inserted) != 0 {
		t.Errorf("inserted = %d, want 0", len(store.inserted))
	}
}

func TestRunIfDueBackfillsMissingPairs(t *testing.T) {
	store := &memBackfillStore{missing: []recordrepo.Pair{
		{IndicatorID: "ind-1", StewardID: "s-1"},
		{IndicatorID: "ind-2", StewardID: "s-1"},
		{IndicatorID: "ind-1", StewardID: "s-2"},
	}}
	ledger := &memAlertLedger{}
	svc := NewService(store, ledger)

	report, err := svc.RunIfDue(context.Background(), runDay)
	if err != nil {
		t.Fatalf("RunIfDue: %v", err)
	}
	if report.Skipped {
		t.Fatalf("unexpected skip: %s", report.SkipReason)
	}
	if report.TargetMonth != 5 || report.TargetYear != 2025 {
		t.Errorf("target period = %d/%d, want 5/2025", report.TargetMonth, report.TargetYear)
	}
	if report.Missing != 3 || report.Processed != 3 || report.Failed != 0 {
		t.Errorf("report = %+v, want 3 missing, 3 processed, 0 failed", report)
	}

	for _, p := range store.inserted {
		if p.Value != 0 {
			t.Errorf("backfill value = %v, want 0", p.Value)
		}
		if p.State != recorddomain.StateAutoZeroFilled {
			t.Errorf("state = %q, want %q", p.State, recorddomain.StateAutoZeroFilled)
		}
		if p.Locked {
			t.Error("auto-zero record should be unlocked for later correction")
		}
		if p.Annotation != recorddomain.AutoFillAnnotation {
			t.Errorf("annotation = %q, want the auto-fill annotation", p.Annotation)
		}
		if p.Month != 5 || p.Year != 2025 {
			t.Errorf("period = %d/%d, want 5/2025", p.Month, p.Year)
		}
	}

	if len(ledger.created) != 1 {
		t.Fatalf("alerts created = %d, want 1", len(ledger.created))
	}
	a := ledger.created[0]
	if a.Kind != alertdomain.KindSystem || a.Title != CompletedAlertTitle {
		t.Errorf("summary alert = %s/%q, want system/%q", a.Kind, a.Title, CompletedAlertTitle)
	}
}

func TestRunWritesGuardAlertWhenNothingMissing(t *testing.T) {
	store := &memBackfillStore{}
	ledger := &memAlertLedger{}
	svc := NewService(store, ledger)

	report, err := svc.Run(context.Background(), runDay)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Missing != 0 || report.Processed != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
	// The summary alert is still written: it is the once-per-day guard.
	if len(ledger.created) != 1 {
		t.Fatalf("alerts created = %d, want 1", len(ledger.created))
	}
	if ledger.created[0].Title != CompletedAlertTitle {
		t.Errorf("title = %q, want %q", ledger.created[0].Title, CompletedAlertTitle)
	}
}

func TestRunContinuesPastPerPairFailures(t *testing.T) {
	store := &memBackfillStore{
		missing: []recordrepo.Pair{
			{IndicatorID: "ind-1", StewardID: "s-1"},
			{IndicatorID: "ind-2", StewardID: "s-1"},
		},
		failPairs: map[string]error{"ind-1": errors.New("connection reset")},
	}
	ledger := &memAlertLedger{}
	svc := NewService(store, ledger)

	report, err := svc.Run(context.Background(), runDay)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want 1 processed, 1 failed", report)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "ind-1") {
		t.Errorf("errors = %v, want one mentioning ind-1", report.Errors)
	}
	if len(ledger.created) != 1 {
		t.Fatalf("alerts created = %d, want 1", len(ledger.created))
	}
	if !strings.Contains(ledger.created[0].Description, "retried on the next run") {
		t.Errorf("description = %q, should mention retries", ledger.created[0].Description)
	}
}

func TestRunSkipsPairsThatLostTheRace(t *testing.T) {
	key := recordrepo.Key{IndicatorID: "ind-1", StewardID: "s-1", Month: 5, Year: 2025}
	store := &memBackfillStore{
		missing:  []recordrepo.Pair{{IndicatorID: "ind-1", StewardID: "s-1"}},
		existing: map[recordrepo.Key]bool{key: true},
	}
	ledger := &memAlertLedger{}
	svc := NewService(store, ledger)

	report, err := svc.Run(context.Background(), runDay)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// A submission landing between ListMissing and the insert is neither a
	// success nor a failure.
	if report.Processed != 0 || report.Failed != 0 {
		t.Errorf("report = %+v, want 0 processed, 0 failed", report)
	}
}

func TestRunAbortsAndAlertsWhenListMissingFails(t *testing.T) {
	store := &memBackfillStore{listErr: errors.New("relation does not exist")}
	ledger := &memAlertLedger{}
	svc := NewService(store, ledger)

	_, err := svc.Run(context.Background(), runDay)
	if err == nil {
		t.Fatal("Run should propagate the listing error")
	}
	if len(ledger.created) != 1 {
		t.Fatalf("alerts created = %d, want 1", len(ledger.created))
	}
	if ledger.created[0].Title != FailedAlertTitle {
		t.Errorf("title = %q, want %q", ledger.created[0].Title, FailedAlertTitle)
	}
}

func TestRunSurvivesAlertLedgerFailure(t *testing.T) {
	store := &memBackfillStore{missing: []recordrepo.Pair{{IndicatorID: "ind-1", StewardID: "s-1"}}}
	ledger := &memAlertLedger{createErr: errors.New("ledger down")}
	svc := NewService(store, ledger)

	report, err := svc.Run(context.Background(), runDay)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 1 {
		t.Errorf("processed = %d, want 1", report.Processed)
	}
}
