package services

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

type lobbyService struct {
	rooms        ports.RoomRepository
	participants ports.ParticipantRepository
	clock        clockwork.Clock
}

func NewLobbyService(rooms ports.RoomRepository, participants ports.ParticipantRepository, clock clockwork.Clock) ports.LobbyService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &lobbyService{
		rooms:        rooms,
		participants: participants,
		clock:        clock,
	}
}

// CreateRoom stores the room and its creator, who becomes the room's only
// admin, and remembers the creator's identity for this browser.
func (s *lobbyService) CreateRoom(ctx context.Context, input ports.CreateRoomInput, identities ports.IdentityStore) (*domain.Room, *domain.Identity, error) {
	roomName := strings.TrimSpace(input.RoomName)
	if roomName == "" {
		return nil, nil, domain.ErrRoomNameRequired
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, domain.ErrNameRequired
	}

	deck := input.VotingSystem
	if len(deck) == 0 {
		deck = domain.DefaultDeck()
	}
	if err := deck.Validate(); err != nil {
		return nil, nil, err
	}

	now := s.clock.Now().UTC()
	room := &domain.Room{
		ID:           uuid.New(),
		Name:         roomName,
		VotingSystem: deck,
		CreatedAt:    now,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, nil, fmt.Errorf("failed to create room: %w", err)
	}

	participant := &domain.Participant{
		ID:        uuid.New(),
		RoomID:    room.ID,
		Name:      name,
		Emoji:     emojiOrRandom(input.Emoji),
		IsAdmin:   true,
		CreatedAt: now,
	}
	if err := s.participants.Create(ctx, participant); err != nil {
		return nil, nil, fmt.Errorf("failed to create participant: %w", err)
	}

	identity := participant.Identity()
	if err := identities.Save(ctx, room.ID, identity); err != nil {
		return nil, nil, fmt.Errorf("failed to save identity: %w", err)
	}

	log.Info().Str("room_id", room.ID.String()).Str("participant_id", participant.ID.String()).Msg("room created")
	return room, &identity, nil
}

func (s *lobbyService) JoinRoom(ctx context.Context, input ports.JoinRoomInput, identities ports.IdentityStore) (*domain.Room, *domain.Identity, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, domain.ErrNameRequired
	}

	room, err := s.rooms.GetByID(ctx, input.RoomID)
	if err != nil {
		return nil, nil, err
	}

	participant := &domain.Participant{
		ID:        uuid.New(),
		RoomID:    room.ID,
		Name:      name,
		Emoji:     emojiOrRandom(input.Emoji),
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.participants.Create(ctx, participant); err != nil {
		return nil, nil, fmt.Errorf("failed to create participant: %w", err)
	}

	identity := participant.Identity()
	if err := identities.Save(ctx, room.ID, identity); err != nil {
		return nil, nil, fmt.Errorf("failed to save identity: %w", err)
	}

	log.Info().Str("room_id", room.ID.String()).Str("participant_id", participant.ID.String()).Msg("participant joined")
	return room, &identity, nil
}

func (s *lobbyService) GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	return s.rooms.GetByID(ctx, id)
}

func RandomEmoji() string {
	return domain.DefaultEmojis[rand.Intn(len(domain.DefaultEmojis))]
}

// ShareLink is the link participants copy to invite others.
func ShareLink(baseURL string, roomID uuid.UUID) string {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" {
		return strings.TrimRight(baseURL, "/") + "/room/" + roomID.String()
	}
	return base.JoinPath("room", roomID.String()).String()
}

func emojiOrRandom(emoji string) string {
	if e := strings.TrimSpace(emoji); e != "" {
		return e
	}
	return RandomEmoji()
}
