package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	alertdomain "indicator-reporting/backend/internal/alert/domain"
	reconcileservice "indicator-reporting/backend/internal/reconcile/service"
)

type fakeReconciler struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
	skip  bool
}

func (f *fakeReconciler) RunIfDue(ctx context.Context, now time.Time) (*reconcileservice.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	if f.err != nil {
		return nil, f.err
	}
	return &reconcileservice.Report{Skipped: f.skip, SkipReason: "not due"}, nil
}

type fakeDetector struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakeDetector) Detect(ctx context.Context, now time.Time) ([]*alertdomain.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return nil, f.err
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []string
}

func (f *fakeRecorder) RecordRun(ctx context.Context, job, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, job+":"+outcome)
}

func TestRunOnceUsesOneTimestampForBothJobs(t *testing.T) {
	rec := &fakeReconciler{}
	det := &fakeDetector{}
	s := New(rec, det, time.Hour)
	fixed := time.Date(2025, time.June, 6, 2, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.RunOnce(context.Background())

	if len(rec.calls) != 1 || len(det.calls) != 1 {
		t.Fatalf("calls = %d reconcile, %d detect; want 1 and 1", len(rec.calls), len(det.calls))
	}
	if !rec.calls[0].Equal(det.calls[0]) {
		t.Errorf("timestamps differ: %v vs %v", rec.calls[0], det.calls[0])
	}
	if !rec.calls[0].Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", rec.calls[0], fixed)
	}
}

func TestRunOnceDetectsEvenWhenReconcileFails(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("db down")}
	det := &fakeDetector{}
	s := New(rec, det, time.Hour)

	s.RunOnce(context.Background())

	if len(det.calls) != 1 {
		t.Errorf("detect calls = %d, want 1", len(det.calls))
	}
}

func TestRunOnceRecordsOutcomes(t *testing.T) {
	recorder := &fakeRecorder{}
	s := New(&fakeReconciler{skip: true}, &fakeDetector{}, time.Hour).WithRecorder(recorder)

	s.RunOnce(context.Background())

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	want := []string{"reconciliation:skipped", "anomaly-detection:completed"}
	if len(recorder.runs) != len(want) {
		t.Fatalf("runs = %v, want %v", recorder.runs, want)
	}
	for i, w := range want {
		if recorder.runs[i] != w {
			t.Errorf("runs[%d] = %q, want %q", i, recorder.runs[i], w)
		}
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	rec := &fakeReconciler{}
	det := &fakeDetector{}
	s := New(rec, det, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	rec.mu.Lock()
	calls := len(rec.calls)
	rec.mu.Unlock()
	// One immediate run plus at least one tick.
	if calls < 2 {
		t.Errorf("reconcile calls = %d, want at least 2", calls)
	}
}
