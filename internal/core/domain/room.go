package domain

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	VotingSystem Deck       `json:"voting_system"`
	Revealed     bool       `json:"revealed"`
	VotingTaskID *uuid.UUID `json:"voting_task_id"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HasActiveTask reports whether a task is currently open for voting.
func (r *Room) HasActiveTask() bool {
	return r != nil && r.VotingTaskID != nil
}

func (r *Room) IsVotingOn(taskID uuid.UUID) bool {
	return r.HasActiveTask() && *r.VotingTaskID == taskID
}

type Participant struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	Name      string    `json:"name"`
	Emoji     string    `json:"emoji"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Participant) Identity() Identity {
	return Identity{
		ID:      p.ID,
		Name:    p.Name,
		Emoji:   p.Emoji,
		IsAdmin: p.IsAdmin,
	}
}

// Identity is what a browser remembers about itself for one room.
type Identity struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Emoji   string    `json:"emoji"`
	IsAdmin bool      `json:"isAdmin"`
}

type Task struct {
	ID          uuid.UUID `json:"id"`
	RoomID      uuid.UUID `json:"room_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
