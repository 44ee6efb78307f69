package services_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
	"github.com/vncsmyrnk/pokeplan/internal/core/services"
)

func TestSessionResolver_NoIdentity(t *testing.T) {
	f := newFixture(t)
	resolver := services.NewSessionResolver(memory.NewIdentities().ForSession("s1"), f.store.Participants)

	identity, err := resolver.Resolve(f.ctx, f.room.ID)

	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestSessionResolver_RefreshesFromParticipant(t *testing.T) {
	f := newFixture(t)
	identities := memory.NewIdentities()
	store := identities.ForSession("s1")

	stale := f.member.Identity()
	stale.Name = "Old name"
	stale.IsAdmin = true
	require.NoError(t, store.Save(f.ctx, f.room.ID, stale))

	identity, err := services.NewSessionResolver(store, f.store.Participants).Resolve(f.ctx, f.room.ID)

	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, f.member.ID, identity.ID)
	assert.Equal(t, "Bruno", identity.Name)
	assert.False(t, identity.IsAdmin)
}

func TestSessionResolver_DiscardsMalformedRecord(t *testing.T) {
	f := newFixture(t)
	identities := memory.NewIdentities()
	identities.Put("s1", f.room.ID, []byte("{not json"))
	store := identities.ForSession("s1")

	identity, err := services.NewSessionResolver(store, f.store.Participants).Resolve(f.ctx, f.room.ID)

	require.NoError(t, err)
	assert.Nil(t, identity)
	_, err = store.Load(f.ctx, f.room.ID)
	assert.ErrorIs(t, err, ports.ErrIdentityNotFound)
}

func TestSessionResolver_DiscardsRemovedParticipant(t *testing.T) {
	f := newFixture(t)
	store := memory.NewIdentities().ForSession("s1")
	require.NoError(t, store.Save(f.ctx, f.room.ID, f.member.Identity()))

	participants := f.db.Store().Participants.(*memory.ParticipantRepository)
	require.NoError(t, participants.Remove(f.ctx, f.room.ID, f.member.ID))

	identity, err := services.NewSessionResolver(store, f.store.Participants).Resolve(f.ctx, f.room.ID)

	require.NoError(t, err)
	assert.Nil(t, identity)
	_, err = store.Load(f.ctx, f.room.ID)
	assert.ErrorIs(t, err, ports.ErrIdentityNotFound)
}

func TestSessionResolver_IdentityOfAnotherRoom(t *testing.T) {
	f := newFixture(t)
	store := memory.NewIdentities().ForSession("s1")
	otherRoom := uuid.New()
	require.NoError(t, store.Save(f.ctx, otherRoom, f.member.Identity()))

	identity, err := services.NewSessionResolver(store, f.store.Participants).Resolve(f.ctx, otherRoom)

	require.NoError(t, err)
	assert.Nil(t, identity)
}
