package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

type sessionResolver struct {
	identities   ports.IdentityStore
	participants ports.ParticipantRepository
}

// NewSessionResolver resolves identities stored for one browser session.
func NewSessionResolver(identities ports.IdentityStore, participants ports.ParticipantRepository) ports.SessionResolver {
	return &sessionResolver{
		identities:   identities,
		participants: participants,
	}
}

// Resolve returns nil without an error when the browser has no usable
// identity for roomID. Records that do not parse, or that point at a
// participant that no longer exists, are discarded.
func (r *sessionResolver) Resolve(ctx context.Context, roomID uuid.UUID) (*domain.Identity, error) {
	raw, err := r.identities.Load(ctx, roomID)
	if err != nil {
		if errors.Is(err, ports.ErrIdentityNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	var stored domain.Identity
	if err := json.Unmarshal(raw, &stored); err != nil || stored.ID == uuid.Nil {
		log.Debug().Str("room_id", roomID.String()).Msg("discarding malformed identity")
		return nil, r.discard(ctx, roomID)
	}

	participant, err := r.participants.GetByID(ctx, roomID, stored.ID)
	if err != nil {
		if errors.Is(err, domain.ErrParticipantNotFound) {
			log.Info().
				Str("room_id", roomID.String()).
				Str("participant_id", stored.ID.String()).
				Msg("discarding identity of a removed participant")
			return nil, r.discard(ctx, roomID)
		}
		return nil, fmt.Errorf("failed to validate identity: %w", err)
	}

	identity := participant.Identity()
	return &identity, nil
}

func (r *sessionResolver) discard(ctx context.Context, roomID uuid.UUID) error {
	if err := r.identities.Delete(ctx, roomID); err != nil {
		return fmt.Errorf("failed to discard identity: %w", err)
	}
	return nil
}
