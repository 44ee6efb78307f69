package domain

import (
	"github.com/google/uuid"
)

// RoomState is everything one room view knows about its room.
type RoomState struct {
	Room         *Room          `json:"room"`
	Participants []Participant  `json:"participants"`
	Tasks        []Task         `json:"tasks"`
	Votes        []Vote         `json:"votes"`
	Selected     *CardValue     `json:"selected"`
	Summary      *VotingSummary `json:"summary"`
}

// ActiveTask returns the task currently open for voting, if the task list
// has caught up with the room.
func (s RoomState) ActiveTask() (Task, bool) {
	if !s.Room.HasActiveTask() {
		return Task{}, false
	}
	for _, t := range s.Tasks {
		if t.ID == *s.Room.VotingTaskID {
			return t, true
		}
	}
	return Task{}, false
}

type ParticipantStatus struct {
	Participant
	Voted bool       `json:"voted"`
	Value *CardValue `json:"value,omitempty"`
}

// ParticipantStatuses lists who has voted. Values stay hidden until reveal.
func (s RoomState) ParticipantStatuses() []ParticipantStatus {
	revealed := s.Room != nil && s.Room.Revealed
	out := make([]ParticipantStatus, 0, len(s.Participants))
	for _, p := range s.Participants {
		st := ParticipantStatus{Participant: p}
		if v, ok := FindVote(s.Votes, p.ID); ok {
			st.Voted = true
			if revealed {
				value := v.Value
				st.Value = &value
			}
		}
		out = append(out, st)
	}
	return out
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s RoomState) Clone() RoomState {
	out := RoomState{
		Participants: append([]Participant(nil), s.Participants...),
		Tasks:        append([]Task(nil), s.Tasks...),
		Votes:        append([]Vote(nil), s.Votes...),
	}
	if s.Room != nil {
		room := *s.Room
		room.VotingSystem = append(Deck(nil), s.Room.VotingSystem...)
		if s.Room.VotingTaskID != nil {
			id := *s.Room.VotingTaskID
			room.VotingTaskID = &id
		}
		out.Room = &room
	}
	if s.Selected != nil {
		v := *s.Selected
		out.Selected = &v
	}
	if s.Summary != nil {
		sum := *s.Summary
		sum.Mode = append([]CardValue{}, s.Summary.Mode...)
		sum.Votes = make(map[string]int, len(s.Summary.Votes))
		for k, n := range s.Summary.Votes {
			sum.Votes[k] = n
		}
		out.Summary = &sum
	}
	return out
}

func (s RoomState) VoteFor(userID uuid.UUID) (Vote, bool) {
	return FindVote(s.Votes, userID)
}
