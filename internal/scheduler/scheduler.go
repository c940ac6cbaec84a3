// Package scheduler drives the periodic jobs: the monthly reconciliation
// backfill and the anomaly scan. The day-6 and already-ran-today decisions
// live in the reconciliation service, not here; the scheduler only ticks and
// hands each run a single captured timestamp.
package scheduler

import (
	"context"
	"log"
	"time"

	alertdomain "indicator-reporting/backend/internal/alert/domain"
	reconcileservice "indicator-reporting/backend/internal/reconcile/service"
)

// runTimeout bounds one combined reconcile+detect run.
const runTimeout = 5 * time.Minute

// Reconciler is the reconciliation job entry point.
type Reconciler interface {
	RunIfDue(ctx context.Context, now time.Time) (*reconcileservice.Report, error)
}

// Detector is the anomaly detector entry point.
type Detector interface {
	Detect(ctx context.Context, now time.Time) ([]*alertdomain.Alert, error)
}

// Recorder receives one event per job invocation. May be nil.
type Recorder interface {
	RecordRun(ctx context.Context, job, outcome string)
}

// Scheduler invokes the jobs once per interval. Failed runs are logged and
// retried on the next tick; there is no in-process retry loop.
type Scheduler struct {
	reconciler Reconciler
	detector   Detector
	recorder   Recorder
	interval   time.Duration
	now        func() time.Time
}

// New returns a scheduler ticking at the given interval (typically 24h).
func New(reconciler Reconciler, detector Detector, interval time.Duration) *Scheduler {
	return &Scheduler{
		reconciler: reconciler,
		detector:   detector,
		interval:   interval,
		now:        time.Now,
	}
}

// WithRecorder attaches a job-run recorder.
func (s *Scheduler) WithRecorder(rec Recorder) *Scheduler {
	s.recorder = rec
	return s
}

// Run executes one run immediately, then one per interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one reconcile-then-detect pass with a single captured
// timestamp and a bounded deadline.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.now().UTC()
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	report, err := s.reconciler.RunIfDue(runCtx, now)
	switch {
	case err != nil:
		log.Printf("scheduler: reconciliation failed: %v", err)
		s.record(runCtx, "reconciliation", "failed")
	case report.Skipped:
		log.Printf("scheduler: reconciliation skipped: %s", report.SkipReason)
		s.record(runCtx, "reconciliation", "skipped")
	default:
		s.record(runCtx, "reconciliation", "completed")
	}

	if _, err := s.detector.Detect(runCtx, now); err != nil {
		log.Printf("scheduler: anomaly detection failed: %v", err)
		s.record(runCtx, "anomaly-detection", "failed")
	} else {
		s.record(runCtx, "anomaly-detection", "completed")
	}
}

func (s *Scheduler) record(ctx context.Context, job, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordRun(ctx, job, outcome)
	}
}
