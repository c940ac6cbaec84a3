// Worker runs the periodic jobs: the day-6 zero-backfill reconciliation and
// the anomaly scan. Set DATABASE_URL; SCHEDULER_INTERVAL controls how often it
// wakes up (default 24h). HTTP_ADDR is required by config but unused here
// (e.g. set to :0).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"indicator-reporting/backend/internal/alert/notifier"
	alertrepo "indicator-reporting/backend/internal/alert/repository"
	alertservice "indicator-reporting/backend/internal/alert/service"
	assignmentrepo "indicator-reporting/backend/internal/assignment/repository"
	anomalyservice "indicator-reporting/backend/internal/anomaly/service"
	"indicator-reporting/backend/internal/config"
	"indicator-reporting/backend/internal/db"
	reconcileservice "indicator-reporting/backend/internal/reconcile/service"
	recordrepo "indicator-reporting/backend/internal/record/repository"
	"indicator-reporting/backend/internal/scheduler"
	otelsetup "indicator-reporting/backend/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "indicator-reporting-worker", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	var alertNotifier notifier.Notifier
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kn := notifier.NewKafkaNotifier(brokers, cfg.AlertsKafkaTopic)
		defer kn.Close()
		alertNotifier = kn
	}

	records := recordrepo.NewPostgresRepository(database)
	assignments := assignmentrepo.NewPostgresRepository(database)
	alerts := alertservice.NewService(alertrepo.NewPostgresRepository(database), assignments, alertNotifier)
	reconciler := reconcileservice.NewService(records, alerts)
	detector := anomalyservice.NewService(records, alerts)

	sched := scheduler.New(reconciler, detector, cfg.SchedulerIntervalDuration()).
		WithRecorder(otelsetup.NewRunRecorder(providers.LoggerProvider))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: running jobs every %s", cfg.SchedulerIntervalDuration())
	sched.Run(ctx)

	if alertNotifier != nil {
		// Give in-flight async alert publishes time to land before Close.
		time.Sleep(notifier.ShutdownDrainDuration)
	}
	log.Println("worker: stopped")
}
