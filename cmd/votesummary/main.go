// Command votesummary prints the voting summary of the active task of each
// room given on the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/pokeplan/internal/config"
	"github.com/vncsmyrnk/pokeplan/internal/core/services"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	if err := config.SetupLogging("info", os.Getenv("LOG_FORMAT"), nil); err != nil {
		log.Fatal().Err(err).Msg("invalid logging configuration")
	}

	pg := config.PostgresFromEnv()
	flag.StringVar(&pg.Host, "db-host", pg.Host, "Database host")
	flag.StringVar(&pg.Port, "db-port", pg.Port, "Database port")
	flag.StringVar(&pg.User, "db-user", pg.User, "Database user")
	flag.StringVar(&pg.Password, "db-pass", pg.Password, "Database password")
	flag.StringVar(&pg.Database, "db-name", pg.Database, "Database name")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal().Msg("at least one room id is required")
	}
	roomIDs := make([]uuid.UUID, 0, flag.NArg())
	for _, arg := range flag.Args() {
		id, err := uuid.Parse(arg)
		if err != nil {
			log.Fatal().Err(err).Str("room_id", arg).Msg("invalid room id")
		}
		roomIDs = append(roomIDs, id)
	}

	db, err := postgres.Open(pg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	store := postgres.NewStore(db)
	summaryService := services.NewSummaryService(store.Rooms, store.Votes)

	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Info().Int("rooms", len(roomIDs)).Msg("summarizing votes")

	summaries, summarizeErr := summaryService.SummarizeRooms(ctx, roomIDs)
	if summarizeErr != nil {
		log.Error().Err(summarizeErr).Msg("some rooms could not be summarized")
	}

	out := make(map[string]any, len(summaries))
	for id, s := range summaries {
		out[id.String()] = s
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("failed to write summaries")
	}
	if summarizeErr != nil {
		os.Exit(1)
	}
}
