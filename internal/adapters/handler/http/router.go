package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

func NewHandler(
	roomHandler *RoomHandler,
	deckHandler *DeckHandler,
	socketHandler *RoomSocketHandler,
	sessions *Sessions,
	corsOrigins []string,
	health HealthCheck,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			if health != nil {
				if err := health(r.Context()); err != nil {
					hlog.FromRequest(r).Error().Err(err).Msg("health check failed")
					writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
					return
				}
			}
			writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/decks", func(r chi.Router) {
			r.Get("/", deckHandler.List)
			r.Get("/{name}", deckHandler.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(sessions.Middleware)

			r.Get("/emoji", roomHandler.RandomEmoji)
			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", roomHandler.CreateRoom)
				r.Get("/{id}", roomHandler.GetRoom)
				r.Post("/{id}/participants", roomHandler.JoinRoom)
				r.Get("/{id}/me", roomHandler.GetMe)
				r.Get("/{id}/ws", socketHandler.Serve)
			})
		})
	})

	return r
}
