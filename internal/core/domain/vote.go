package domain

import (
	"github.com/google/uuid"
)

// Vote is one participant's current card for one task. (UserID, TaskID) is
// its identity: voting again replaces the value.
type Vote struct {
	UserID uuid.UUID `json:"user_id"`
	RoomID uuid.UUID `json:"room_id"`
	TaskID uuid.UUID `json:"task_id"`
	Value  CardValue `json:"value"`
}

type VotingSummary struct {
	Average float64        `json:"average"`
	Mode    []CardValue    `json:"mode"`
	Votes   map[string]int `json:"votes"`
	Total   int            `json:"total"`
}

func FindVote(votes []Vote, userID uuid.UUID) (Vote, bool) {
	for i := len(votes) - 1; i >= 0; i-- {
		if votes[i].UserID == userID {
			return votes[i], true
		}
	}
	return Vote{}, false
}
