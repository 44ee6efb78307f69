// Command feedrelay listens for Postgres change notifications and publishes
// them on NATS, so server instances need no LISTEN connection of their own.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/realtime/natsbus"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/realtime/pgnotify"
	"github.com/vncsmyrnk/pokeplan/internal/config"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	natsURL := flag.String("nats-url", os.Getenv("NATS_URL"), "NATS server URL")
	prefix := flag.String("subject-prefix", natsbus.DefaultSubjectPrefix, "NATS subject prefix")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	if err := config.SetupLogging(*logLevel, os.Getenv("LOG_FORMAT"), nil); err != nil {
		log.Fatal().Err(err).Msg("invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	natsCfg := natsbus.DefaultConfig(*natsURL)
	natsCfg.SubjectPrefix = *prefix
	nc, err := natsbus.Connect(natsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer nc.Drain()

	dsn := config.PostgresFromEnv().DSN()
	listener, err := pgnotify.NewListener(natsbus.NewPublisher(nc, natsCfg.SubjectPrefix), pgnotify.DefaultConfig(dsn), clockwork.NewRealClock())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create listener")
	}

	log.Info().Str("nats_url", natsCfg.URL).Str("subject_prefix", natsCfg.SubjectPrefix).Msg("relaying changes")
	if err := listener.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("listener failed")
	}
	log.Info().Msg("feed relay stopped")
}
