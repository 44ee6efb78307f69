// Package natsbus relays change notifications between server instances over
// core NATS. The relay process publishes what Postgres announces; every
// server forwards what it receives into its local broker.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

const DefaultSubjectPrefix = "pokeplan.changes"

type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig(url string) Config {
	if url == "" {
		url = nats.DefaultURL
	}
	return Config{
		URL:           url,
		SubjectPrefix: DefaultSubjectPrefix,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

func Connect(cfg Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("pokeplan"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// Subject is <prefix>.<table>.<room id>; changes without a room go to "_".
func Subject(prefix string, change domain.Change) string {
	room := change.Keys["room_id"]
	if room == "" {
		room = "_"
	}
	return strings.Join([]string{prefix, string(change.Table), room}, ".")
}

type Publisher struct {
	nc     *nats.Conn
	prefix string
}

func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	return &Publisher{nc: nc, prefix: prefix}
}

func (p *Publisher) Publish(_ context.Context, change domain.Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if err := p.nc.Publish(Subject(p.prefix, change), data); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Forwarder hands every change received from NATS to a local publisher.
type Forwarder struct {
	nc     *nats.Conn
	prefix string
	target ports.ChangePublisher
}

func NewForwarder(nc *nats.Conn, prefix string, target ports.ChangePublisher) *Forwarder {
	return &Forwarder{nc: nc, prefix: prefix, target: target}
}

// Start blocks until ctx ends.
func (f *Forwarder) Start(ctx context.Context) error {
	messageCh := make(chan *nats.Msg, 256)
	sub, err := f.nc.ChanSubscribe(f.prefix+".>", messageCh)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	log.Info().Str("subject", f.prefix+".>").Msg("forwarding changes from NATS")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("forwarder shutting down")
			return nil
		case msg := <-messageCh:
			if err := f.HandleMessage(ctx, msg); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to process message")
			}
		}
	}
}

func (f *Forwarder) HandleMessage(ctx context.Context, msg *nats.Msg) error {
	var change domain.Change
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		return fmt.Errorf("failed to decode change: %w", err)
	}
	if change.Keys == nil {
		change.Keys = map[string]string{}
	}
	return f.target.Publish(ctx, change)
}
