package main

import (
	"context"
	"errors"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/handler/http"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/realtime"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/realtime/natsbus"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/realtime/pgnotify"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/session/redisstore"
	"github.com/vncsmyrnk/pokeplan/internal/config"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
	"github.com/vncsmyrnk/pokeplan/internal/core/services"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := config.SetupLogging(cfg.LogLevel, cfg.LogFormat, nil); err != nil {
		log.Fatal().Err(err).Msg("invalid logging configuration")
	}

	catalogue, err := config.LoadDecks(cfg.DecksFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load decks")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	broker := realtime.NewBroker()
	defer broker.Close()

	var (
		store  ports.Store
		health http.HealthCheck
	)
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn().Msg("using the in-memory store, data is lost on restart")
		store = memory.New(broker).Store()

	case config.StorePostgres:
		db, err := postgres.Open(cfg.Postgres.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		store = postgres.NewStore(db)
		health = db.PingContext

		if err := startFeed(ctx, cfg, broker, clock); err != nil {
			log.Fatal().Err(err).Msg("failed to start change feed")
		}
	}

	var identities ports.IdentityDirectory
	if cfg.RedisAddr != "" {
		client := redisstore.NewClient(redisstore.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer client.Close()
		if err := redisstore.Ping(ctx, client); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
		}
		identities = redisstore.NewIdentities(client, cfg.IdentityTTL)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, identities are kept in memory")
		identities = memory.NewIdentities()
	}

	lobby := services.NewLobbyService(store.Rooms, store.Participants, clock)
	roomHandler := http.NewRoomHandler(lobby, store.Participants, identities, catalogue, cfg.PublicBaseURL)
	deckHandler := http.NewDeckHandler(catalogue)
	socketConfig := http.DefaultSocketConfig()
	socketConfig.CheckOrigin = http.CheckOrigin(cfg.CORSOrigins)
	socketHandler := http.NewRoomSocketHandler(
		services.RoomViewDeps{Store: store, Feed: broker, Clock: clock},
		identities,
		cfg.PublicBaseURL,
		socketConfig,
	)
	sessions := http.NewSessions(cfg.SessionSecret, cfg.SecureCookies, "", clock)

	handler := http.NewHandler(roomHandler, deckHandler, socketHandler, sessions, cfg.CORSOrigins, health)
	server := &stdhttp.Server{Addr: cfg.HTTPAddr, Handler: handler}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("shutdown failed")
	}
}

// startFeed fills the local broker from Postgres directly or from the NATS
// relay run by cmd/feedrelay.
func startFeed(ctx context.Context, cfg *config.Config, broker *realtime.Broker, clock clockwork.Clock) error {
	switch cfg.FeedSource {
	case config.FeedNATS:
		natsCfg := natsbus.DefaultConfig(cfg.NATSURL)
		nc, err := natsbus.Connect(natsCfg)
		if err != nil {
			return err
		}
		forwarder := natsbus.NewForwarder(nc, natsCfg.SubjectPrefix, broker)
		go func() {
			defer nc.Close()
			if err := forwarder.Start(ctx); err != nil {
				log.Error().Err(err).Msg("NATS forwarder stopped")
			}
		}()

	default:
		listener, err := pgnotify.NewListener(broker, pgnotify.DefaultConfig(cfg.Postgres.DSN()), clock)
		if err != nil {
			return err
		}
		go func() {
			if err := listener.Start(ctx); err != nil {
				log.Error().Err(err).Msg("change listener stopped")
			}
		}()
	}
	return nil
}
