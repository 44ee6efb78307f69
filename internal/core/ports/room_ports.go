package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	// SetVotingTask opens taskID for voting (nil closes voting) and hides votes.
	SetVotingTask(ctx context.Context, roomID uuid.UUID, taskID *uuid.UUID) error
	Reveal(ctx context.Context, roomID uuid.UUID) error
}

type ParticipantRepository interface {
	Create(ctx context.Context, participant *domain.Participant) error
	GetByID(ctx context.Context, roomID, id uuid.UUID) (*domain.Participant, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.Participant, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, roomID, id uuid.UUID) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, roomID, id uuid.UUID) error
	// ListByRoom returns the room's tasks oldest first.
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.Task, error)
}

type VoteRepository interface {
	// Upsert stores the vote, replacing any previous value for (user, task).
	Upsert(ctx context.Context, vote *domain.Vote) error
	ListByTask(ctx context.Context, roomID, taskID uuid.UUID) ([]domain.Vote, error)
	DeleteByRoom(ctx context.Context, roomID uuid.UUID) error
}

// Store groups the repositories a room view needs.
type Store struct {
	Rooms        RoomRepository
	Participants ParticipantRepository
	Tasks        TaskRepository
	Votes        VoteRepository
}
