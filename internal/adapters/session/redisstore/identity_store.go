package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

const keyPrefix = "pokeplan:identity:"

type Options struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Identities stores one identity record per browser session and room under
// pokeplan:identity:<session>:<room>. A zero ttl keeps records forever.
type Identities struct {
	c   *redis.Client
	ttl time.Duration
}

func NewIdentities(c *redis.Client, ttl time.Duration) *Identities {
	return &Identities{c: c, ttl: ttl}
}

func (i *Identities) ForSession(sessionID string) ports.IdentityStore {
	return &sessionStore{c: i.c, ttl: i.ttl, session: sessionID}
}

func Key(sessionID string, roomID uuid.UUID) string {
	return keyPrefix + sessionID + ":" + roomID.String()
}

type sessionStore struct {
	c       *redis.Client
	ttl     time.Duration
	session string
}

func (s *sessionStore) Load(ctx context.Context, roomID uuid.UUID) ([]byte, error) {
	val, err := s.c.Get(ctx, Key(s.session, roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to read identity: %w", err)
	}
	return val, nil
}

func (s *sessionStore) Save(ctx context.Context, roomID uuid.UUID, identity domain.Identity) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	if err := s.c.Set(ctx, Key(s.session, roomID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	return nil
}

func (s *sessionStore) Delete(ctx context.Context, roomID uuid.UUID) error {
	if err := s.c.Del(ctx, Key(s.session, roomID)).Err(); err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}
