package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
)

type CreateRoomInput struct {
	RoomName     string
	Name         string
	Emoji        string
	VotingSystem domain.Deck
}

type JoinRoomInput struct {
	RoomID uuid.UUID
	Name   string
	Emoji  string
}

type LobbyService interface {
	CreateRoom(ctx context.Context, input CreateRoomInput, identities IdentityStore) (*domain.Room, *domain.Identity, error)
	JoinRoom(ctx context.Context, input JoinRoomInput, identities IdentityStore) (*domain.Room, *domain.Identity, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error)
}

type SummaryService interface {
	SummarizeTask(ctx context.Context, roomID, taskID uuid.UUID) (domain.VotingSummary, error)
	SummarizeActiveTask(ctx context.Context, roomID uuid.UUID) (domain.VotingSummary, error)
	SummarizeRooms(ctx context.Context, roomIDs []uuid.UUID) (map[uuid.UUID]domain.VotingSummary, error)
}
