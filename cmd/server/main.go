package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"indicator-reporting/backend/internal/alert/notifier"
	alertrepo "indicator-reporting/backend/internal/alert/repository"
	alertservice "indicator-reporting/backend/internal/alert/service"
	assignmentrepo "indicator-reporting/backend/internal/assignment/repository"
	"indicator-reporting/backend/internal/config"
	"indicator-reporting/backend/internal/db"
	reconcileservice "indicator-reporting/backend/internal/reconcile/service"
	recordrepo "indicator-reporting/backend/internal/record/repository"
	"indicator-reporting/backend/internal/security"
	"indicator-reporting/backend/internal/server"
	submissionservice "indicator-reporting/backend/internal/submission/service"
	otelsetup "indicator-reporting/backend/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("server: DATABASE_URL is required")
	}
	if cfg.AuthTokenSecret == "" {
		log.Fatal("server: AUTH_TOKEN_SECRET is required")
	}

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "indicator-reporting-api", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
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
	submissions := submissionservice.NewService(records, assignments)
	reconciler := reconcileservice.NewService(records, alerts)

	tokens := security.NewTokenProvider([]byte(cfg.AuthTokenSecret), cfg.AuthIssuer, cfg.AuthAudience)

	router := server.NewRouter(server.Deps{
		Submissions:        submissions,
		Alerts:             alerts,
		Reconciler:         reconciler,
		Records:            records,
		Assignments:        assignments,
		Tokens:             tokens,
		Pinger:             database,
		CORSAllowedOrigins: cfg.CORSAllowedOriginsList(),
		RequestTimeout:     cfg.StoreTimeoutDuration(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if alertNotifier != nil {
		// Give in-flight async alert publishes time to land before Close.
		time.Sleep(notifier.ShutdownDrainDuration)
	}
	log.Println("HTTP server stopped")
}
