package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/GiG2Hire/gig-contract/internal/observability"
	"github.com/GiG2Hire/gig-contract/internal/persistence"
	"github.com/GiG2Hire/gig-contract/internal/projection"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <up|down|rebuild>")
		fmt.Println("  up      - apply all pending migrations")
		fmt.Println("  down    - roll back the last migration")
		fmt.Println("  rebuild - reset the read models and replay them from the event log")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  GIG_POSTGRES_DSN    - Postgres connection string")
		fmt.Println("  GIG_MIGRATIONS_DIR  - path to migrations directory (default: migrations)")
		os.Exit(1)
	}

	log := observability.NewLogger("migrate")

	dsn := os.Getenv("GIG_POSTGRES_DSN")
	if dsn == "" {
		dsn = "postgres://localhost:5432/gigescrow?sslmode=disable"
	}

	migrationsDir := os.Getenv("GIG_MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, migrationsDir, log)

	switch os.Args[1] {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate up")
		}
		log.Info().Msg("all migrations applied")

	case "down":
		if err := migrator.Down(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate down")
		}
		log.Info().Msg("last migration rolled back")

	case "rebuild":
		if err := projection.Rebuild(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("rebuild read models")
		}
		log.Info().Msg("read models rebuilt from the event log")

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s (use 'up', 'down' or 'rebuild')\n", os.Args[1])
		os.Exit(1)
	}
}
