package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

// RoomController performs the writes a participant can trigger from a room
// view. Results come back through the RoomSync; only the caller's own
// selection and the voting reset are applied locally right away.
//
// Admin operations called by a non-admin return nil without writing.
type RoomController struct {
	roomID   uuid.UUID
	identity domain.Identity
	store    ports.Store
	sync     *RoomSync
	notifier ports.Notifier
	clock    clockwork.Clock
}

func NewRoomController(
	roomID uuid.UUID,
	identity domain.Identity,
	store ports.Store,
	sync *RoomSync,
	notifier ports.Notifier,
	clock clockwork.Clock,
) *RoomController {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RoomController{
		roomID:   roomID,
		identity: identity,
		store:    store,
		sync:     sync,
		notifier: notifier,
		clock:    clock,
	}
}

func (c *RoomController) Identity() domain.Identity {
	return c.identity
}

// CastVote records the caller's card for the active task. It does nothing
// when no task is open for voting.
func (c *RoomController) CastVote(ctx context.Context, value domain.CardValue) error {
	state := c.sync.Snapshot()
	if !state.Room.HasActiveTask() {
		return nil
	}
	if !state.Room.VotingSystem.Contains(value) {
		c.notifier.Notify(ctx, domain.ErrorNotice("That card is not part of this room's deck"))
		return fmt.Errorf("%w: %s", domain.ErrInvalidVoteValue, value)
	}

	previous := state.Selected
	c.sync.SetSelected(&value)

	vote := &domain.Vote{
		UserID: c.identity.ID,
		RoomID: c.roomID,
		TaskID: *state.Room.VotingTaskID,
		Value:  value,
	}
	if err := c.store.Votes.Upsert(ctx, vote); err != nil {
		c.sync.RevertSelected(value, previous)
		return c.reject(ctx, "Failed to submit vote", fmt.Errorf("failed to cast vote: %w", err))
	}
	return nil
}

func (c *RoomController) Reveal(ctx context.Context) error {
	if !c.identity.IsAdmin {
		return nil
	}
	if err := c.store.Rooms.Reveal(ctx, c.roomID); err != nil {
		return c.reject(ctx, "Failed to reveal votes", fmt.Errorf("failed to reveal votes: %w", err))
	}
	return nil
}

// ResetVoting deletes the room's votes and closes voting, then clears the
// local round without waiting for the notifications.
func (c *RoomController) ResetVoting(ctx context.Context) error {
	if !c.identity.IsAdmin {
		return nil
	}
	if err := c.store.Votes.DeleteByRoom(ctx, c.roomID); err != nil {
		return c.reject(ctx, "Failed to reset voting", fmt.Errorf("failed to delete votes: %w", err))
	}
	if err := c.store.Rooms.SetVotingTask(ctx, c.roomID, nil); err != nil {
		return c.reject(ctx, "Failed to reset voting", fmt.Errorf("failed to close voting: %w", err))
	}
	c.sync.ClearVoting()
	return nil
}

// StartVoting opens taskID for a fresh round. The room row is switched first
// so that every view drops the previous task's vote feed before the old votes
// are deleted.
func (c *RoomController) StartVoting(ctx context.Context, taskID uuid.UUID) error {
	if !c.identity.IsAdmin {
		return nil
	}
	if _, err := c.store.Tasks.GetByID(ctx, c.roomID, taskID); err != nil {
		return c.reject(ctx, "Failed to start voting", fmt.Errorf("failed to start voting: %w", err))
	}
	if err := c.store.Rooms.SetVotingTask(ctx, c.roomID, &taskID); err != nil {
		return c.reject(ctx, "Failed to start voting", fmt.Errorf("failed to start voting: %w", err))
	}
	if err := c.store.Votes.DeleteByRoom(ctx, c.roomID); err != nil {
		return c.reject(ctx, "Failed to clear previous votes", fmt.Errorf("failed to delete votes: %w", err))
	}
	c.sync.ClearVoting()
	return nil
}

func (c *RoomController) AddTask(ctx context.Context, title, description string) (*domain.Task, error) {
	if !c.identity.IsAdmin {
		return nil, nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, c.reject(ctx, "Task title is required", domain.ErrTaskTitleRequired)
	}

	now := c.clock.Now().UTC()
	task := &domain.Task{
		ID:          uuid.New(),
		RoomID:      c.roomID,
		Title:       title,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.store.Tasks.Create(ctx, task); err != nil {
		return nil, c.reject(ctx, "Failed to add task", fmt.Errorf("failed to add task: %w", err))
	}
	return task, nil
}

func (c *RoomController) UpdateTask(ctx context.Context, task domain.Task) error {
	if !c.identity.IsAdmin {
		return nil
	}
	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return c.reject(ctx, "Task title is required", domain.ErrTaskTitleRequired)
	}
	task.Description = strings.TrimSpace(task.Description)
	task.RoomID = c.roomID
	task.UpdatedAt = c.clock.Now().UTC()

	if err := c.store.Tasks.Update(ctx, &task); err != nil {
		return c.reject(ctx, "Failed to update task", fmt.Errorf("failed to update task: %w", err))
	}
	return nil
}

// DeleteTask removes the task and, when the room was voting on it, resets
// voting so the room never points at a missing task. The two writes are not
// atomic; a failure in between leaves a dangling reference that the next
// DeleteTask or ResetVoting clears.
func (c *RoomController) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	if !c.identity.IsAdmin {
		return nil
	}
	if err := c.store.Tasks.Delete(ctx, c.roomID, taskID); err != nil {
		return c.reject(ctx, "Failed to delete task", fmt.Errorf("failed to delete task: %w", err))
	}

	room, err := c.store.Rooms.GetByID(ctx, c.roomID)
	if err != nil {
		return c.reject(ctx, "Failed to delete task", fmt.Errorf("failed to load room: %w", err))
	}
	if room.IsVotingOn(taskID) {
		log.Info().
			Str("room_id", c.roomID.String()).
			Str("task_id", taskID.String()).
			Msg("active task deleted, resetting voting")
		return c.ResetVoting(ctx)
	}
	return nil
}

func (c *RoomController) reject(ctx context.Context, message string, err error) error {
	log.Warn().
		Err(err).
		Str("room_id", c.roomID.String()).
		Str("participant_id", c.identity.ID.String()).
		Msg(message)
	c.notifier.Notify(ctx, domain.ErrorNotice(message))
	return err
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, domain.Notice) {}
