package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/pokeplan/internal/config"
)

// Usage: migrations <name>, e.g. "001_create_pokeplan.up", or "up" to run
// every up migration.
func main() {
	if len(os.Args) < 2 {
		log.Fatal().Msg("a migration name is required")
	}
	migrationName := os.Args[1]

	if err := config.LoadEnv(); err != nil {
		log.Fatal().Err(err).Msg("error loading .env file")
	}
	if err := config.SetupLogging("info", os.Getenv("LOG_FORMAT"), nil); err != nil {
		log.Fatal().Err(err).Msg("invalid logging configuration")
	}

	db, err := postgres.Open(config.PostgresFromEnv().DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if migrationName == "up" {
		err = postgres.MigrateUp(ctx, db)
	} else {
		err = postgres.ApplyMigration(ctx, db, migrationName)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to execute migration")
	}

	log.Info().Msg("migration executed successfully")
}
