package pgnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

// Channel is the NOTIFY channel written by the pokeplan_notify_change trigger.
const Channel = "pokeplan_changes"

type Config struct {
	DSN                  string
	Channel              string
	PingInterval         time.Duration
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
}

func DefaultConfig(dsn string) Config {
	return Config{
		DSN:                  dsn,
		Channel:              Channel,
		PingInterval:         90 * time.Second,
		MinReconnectInterval: 10 * time.Second,
		MaxReconnectInterval: time.Minute,
	}
}

// Listener turns Postgres notifications into domain changes and hands them to
// a publisher, typically the in-process broker or the NATS relay.
type Listener struct {
	listener  *pq.Listener
	publisher ports.ChangePublisher
	cfg       Config
	clock     clockwork.Clock
}

func NewListener(publisher ports.ChangePublisher, cfg Config, clock clockwork.Clock) (*Listener, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	l := &Listener{
		publisher: publisher,
		cfg:       cfg,
		clock:     clock,
	}
	l.listener = pq.NewListener(cfg.DSN, cfg.MinReconnectInterval, cfg.MaxReconnectInterval, l.handleEvent)
	if err := l.listener.Listen(cfg.Channel); err != nil {
		l.listener.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.Channel).
		Msg("listening for notifications")

	return l, nil
}

func (l *Listener) handleEvent(ev pq.ListenerEventType, err error) {
	if err != nil {
		log.Error().Err(err).Msg("listener event")
	}
	if ev == pq.ListenerEventReconnected {
		log.Warn().Msg("listener reconnected, asking subscribers to resync")
		if err := Resync(context.Background(), l.publisher); err != nil {
			log.Error().Err(err).Msg("failed to publish resync")
		}
	}
}

// Resync publishes one resync change per table. Notifications sent while the
// connection was down are lost, so every open view has to refetch.
func Resync(ctx context.Context, publisher ports.ChangePublisher) error {
	for _, table := range domain.Tables {
		if err := publisher.Publish(ctx, domain.ResyncChange(table)); err != nil {
			return fmt.Errorf("failed to publish resync for %s: %w", table, err)
		}
	}
	return nil
}

func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.Channel).
		Dur("ping_interval", l.cfg.PingInterval).
		Msg("listener started")

	pingTicker := l.clock.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// connection was lost, pq reconnects on its own
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-pingTicker.Chan():
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.listener.Close()
}

func (l *Listener) handleNotification(ctx context.Context, payload string) error {
	change, err := DecodeNotification(payload)
	if err != nil {
		return err
	}
	if err := l.publisher.Publish(ctx, change); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}

	log.Debug().
		Str("table", string(change.Table)).
		Str("op", string(change.Op)).
		Str("room_id", change.Keys["room_id"]).
		Msg("change forwarded")
	return nil
}

// DecodeNotification parses the trigger payload.
func DecodeNotification(payload string) (domain.Change, error) {
	var change domain.Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return domain.Change{}, fmt.Errorf("invalid notification payload: %w", err)
	}

	switch change.Table {
	case domain.TableRooms, domain.TableParticipants, domain.TableTasks, domain.TableVotes:
	default:
		return domain.Change{}, fmt.Errorf("notification for unknown table %q", change.Table)
	}
	switch change.Op {
	case domain.OpInsert, domain.OpUpdate, domain.OpDelete:
	default:
		return domain.Change{}, fmt.Errorf("notification with unknown operation %q", change.Op)
	}
	if change.Keys == nil {
		change.Keys = map[string]string{}
	}
	return change, nil
}
