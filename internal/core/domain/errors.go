package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrInvalidRoomID       = errors.New("invalid room id")
	ErrInvalidTaskID       = errors.New("invalid task id")
	ErrNoIdentity          = errors.New("no participant identity for this room")
	ErrRoomNameRequired    = errors.New("room name is required")
	ErrNameRequired        = errors.New("participant name is required")
	ErrTaskTitleRequired   = errors.New("task title is required")
	ErrInvalidVoteValue    = errors.New("value is not a card of this room")
	ErrInvalidDeck         = errors.New("invalid voting system")
	ErrNoActiveTask        = errors.New("no task is open for voting")
	ErrInternal            = errors.New("internal server error")
)
