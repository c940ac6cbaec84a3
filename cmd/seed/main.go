// seed inserts development sample data for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts if the dev administrator (dev-admin-001) already exists.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"indicator-reporting/backend/internal/config"
	"indicator-reporting/backend/internal/db"
	"indicator-reporting/backend/internal/identity"
	"indicator-reporting/backend/internal/record/domain"
	"indicator-reporting/backend/internal/security"
)

const (
	devAdminID    = "dev-admin-001"
	devStewardID  = "dev-steward-001"
	devSteward2ID = "dev-steward-002"
)

var devIndicators = []struct {
	id, name, unit, category string
}{
	{"ind-water-001", "Water consumption", "m3", "resources"},
	{"ind-energy-001", "Energy consumption", "kWh", "resources"},
	{"ind-waste-001", "Waste generated", "kg", "waste"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var exists bool
	err = database.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, devAdminID).Scan(&exists)
	if err != nil {
		log.Fatalf("seed: check existing: %v", err)
	}
	if exists {
		log.Println("seed: dev data already present, nothing to do")
		printDevTokens(cfg)
		return
	}

	if err := seed(ctx, database); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Println("seed: dev data inserted")
	printDevTokens(cfg)
}

func seed(ctx context.Context, database *sql.DB) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	users := []struct {
		id, name, role string
	}{
		{devAdminID, "Dev Administrator", string(identity.RoleAdministrator)},
		{devStewardID, "Dev Steward One", string(identity.RoleSteward)},
		{devSteward2ID, "Dev Steward Two", string(identity.RoleSteward)},
	}
	for _, u := range users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, name, role) VALUES ($1, $2, $3)`,
			u.id, u.name, u.role); err != nil {
			return fmt.Errorf("insert user %s: %w", u.id, err)
		}
	}

	for _, ind := range devIndicators {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO indicators (id, name, unit, category) VALUES ($1, $2, $3, $4)`,
			ind.id, ind.name, ind.unit, ind.category); err != nil {
			return fmt.Errorf("insert indicator %s: %w", ind.id, err)
		}
	}

	// Steward one reports all three indicators; steward two only water.
	assignments := []struct{ steward, indicator string }{
		{devStewardID, "ind-water-001"},
		{devStewardID, "ind-energy-001"},
		{devStewardID, "ind-waste-001"},
		{devSteward2ID, "ind-water-001"},
	}
	for _, a := range assignments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assignments (id, steward_id, indicator_id) VALUES ($1, $2, $3)`,
			uuid.NewString(), a.steward, a.indicator); err != nil {
			return fmt.Errorf("insert assignment %s/%s: %w", a.steward, a.indicator, err)
		}
	}

	// Six months of history per assignment so the anomaly baseline has enough
	// comparison points right away.
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 12, 0, 0, 0, time.UTC)
	values := []float64{10, 11, 9, 10, 12, 10}
	for _, a := range assignments {
		for i, v := range values {
			createdAt := monthStart.AddDate(0, -(len(values) - i), 0)
			month := int(createdAt.Month())
			year := createdAt.Year()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO records (id, indicator_id, steward_id, month, year, value, state, locked, annotation, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, '', $8, $8)`,
				uuid.NewString(), a.indicator, a.steward, month, year, v,
				string(domain.StateManuallyLoaded), createdAt); err != nil {
				return fmt.Errorf("insert record %s/%s %d-%d: %w", a.steward, a.indicator, year, month, err)
			}
		}
	}

	return tx.Commit()
}

// printDevTokens issues long-lived access tokens for the dev users so the API
// can be exercised with curl. Skipped when AUTH_TOKEN_SECRET is unset.
func printDevTokens(cfg *config.Config) {
	if cfg.AuthTokenSecret == "" {
		return
	}
	tokens := security.NewTokenProvider([]byte(cfg.AuthTokenSecret), cfg.AuthIssuer, cfg.AuthAudience)
	for _, p := range []identity.Principal{
		{ID: devAdminID, Role: identity.RoleAdministrator},
		{ID: devStewardID, Role: identity.RoleSteward},
		{ID: devSteward2ID, Role: identity.RoleSteward},
	} {
		token, err := tokens.IssueAccess(p, 24*time.Hour)
		if err != nil {
			log.Printf("seed: issue token for %s: %v", p.ID, err)
			continue
		}
		log.Printf("seed: %s (%s) token: %s", p.ID, p.Role, token)
	}
}
