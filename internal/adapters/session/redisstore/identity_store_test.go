package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Identities) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewIdentities(client, ttl)
}

func TestIdentities_SaveLoadDelete(t *testing.T) {
	mr, identities := setupTestRedis(t, 0)
	ctx := context.Background()
	store := identities.ForSession("session-1")
	roomID := uuid.New()
	identity := domain.Identity{ID: uuid.New(), Name: "Ana", Emoji: "🦊", IsAdmin: true}

	require.NoError(t, store.Save(ctx, roomID, identity))

	raw, err := store.Load(ctx, roomID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+identity.ID.String()+`","name":"Ana","emoji":"🦊","isAdmin":true}`, string(raw))
	assert.True(t, mr.Exists(Key("session-1", roomID)))
	assert.Equal(t, time.Duration(0), mr.TTL(Key("session-1", roomID)))

	require.NoError(t, store.Delete(ctx, roomID))
	_, err = store.Load(ctx, roomID)
	assert.ErrorIs(t, err, ports.ErrIdentityNotFound)
}

func TestIdentities_SessionsAreIsolated(t *testing.T) {
	_, identities := setupTestRedis(t, 0)
	ctx := context.Background()
	roomID := uuid.New()

	require.NoError(t, identities.ForSession("a").Save(ctx, roomID, domain.Identity{ID: uuid.New(), Name: "Ana"}))

	_, err := identities.ForSession("b").Load(ctx, roomID)
	assert.ErrorIs(t, err, ports.ErrIdentityNotFound)
}

func TestIdentities_Expire(t *testing.T) {
	mr, identities := setupTestRedis(t, time.Hour)
	ctx := context.Background()
	store := identities.ForSession("s")
	roomID := uuid.New()

	require.NoError(t, store.Save(ctx, roomID, domain.Identity{ID: uuid.New(), Name: "Ana"}))
	assert.Equal(t, time.Hour, mr.TTL(Key("s", roomID)))

	mr.FastForward(2 * time.Hour)

	_, err := store.Load(ctx, roomID)
	assert.ErrorIs(t, err, ports.ErrIdentityNotFound)
}

func TestIdentities_LoadReturnsRawRecord(t *testing.T) {
	mr, identities := setupTestRedis(t, 0)
	roomID := uuid.New()
	require.NoError(t, mr.Set(Key("s", roomID), "{broken"))

	raw, err := identities.ForSession("s").Load(context.Background(), roomID)

	require.NoError(t, err)
	assert.Equal(t, "{broken", string(raw))
}

func TestNewClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, Ping(context.Background(), client))

	mr.Close()
	assert.Error(t, Ping(context.Background(), client))
}
