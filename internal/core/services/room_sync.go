package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

var ErrFeedClosed = errors.New("change feed closed")

// RoomSync keeps one room view's copy of a room, its participants, tasks and
// the active task's votes in line with the store.
//
// Open subscribes and loads the room; Run applies change notifications until
// its context ends; Close releases every subscription. The per-task vote
// subscription is always closed before the next one is created.
type RoomSync struct {
	roomID uuid.UUID
	userID uuid.UUID
	store  ports.Store
	feed   ports.ChangeFeed

	// emitMu orders deliveries so the last snapshot handed to onUpdate is
	// the newest one. It is taken before mu.
	emitMu sync.Mutex

	mu         sync.RWMutex
	state      domain.RoomState
	voteTaskID *uuid.UUID
	onUpdate   func(domain.RoomState)
	closed     bool

	roomSub        ports.Subscription
	participantSub ports.Subscription
	taskSub        ports.Subscription
	voteSub        ports.Subscription
}

func NewRoomSync(roomID, userID uuid.UUID, store ports.Store, feed ports.ChangeFeed) *RoomSync {
	return &RoomSync{
		roomID: roomID,
		userID: userID,
		store:  store,
		feed:   feed,
	}
}

// OnUpdate registers fn to receive a snapshot after every applied change.
// Deliveries never overlap, so fn must not call back into the setters.
func (s *RoomSync) OnUpdate(fn func(domain.RoomState)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

func (s *RoomSync) Open(ctx context.Context) error {
	roomKey := s.roomID.String()

	var err error
	if s.roomSub, err = s.feed.Subscribe(ctx, domain.TableRooms, domain.Filter{"id": roomKey}); err != nil {
		return fmt.Errorf("failed to subscribe to room: %w", err)
	}
	if s.participantSub, err = s.feed.Subscribe(ctx, domain.TableParticipants, domain.Filter{"room_id": roomKey}); err != nil {
		s.Close()
		return fmt.Errorf("failed to subscribe to participants: %w", err)
	}
	if s.taskSub, err = s.feed.Subscribe(ctx, domain.TableTasks, domain.Filter{"room_id": roomKey}); err != nil {
		s.Close()
		return fmt.Errorf("failed to subscribe to tasks: %w", err)
	}

	room, err := s.store.Rooms.GetByID(ctx, s.roomID)
	if err != nil {
		s.Close()
		return err
	}
	if err := s.refreshParticipants(ctx); err != nil {
		s.Close()
		return err
	}
	if err := s.refreshTasks(ctx); err != nil {
		s.Close()
		return err
	}
	if err := s.applyRoom(ctx, room); err != nil {
		s.Close()
		return err
	}

	log.Debug().Str("room_id", roomKey).Str("user_id", s.userID.String()).Msg("room sync opened")
	return nil
}

// Run is the reconciliation loop. It returns nil when ctx ends and
// ErrFeedClosed when the feed goes away underneath it.
func (s *RoomSync) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-s.roomSub.C():
			if !ok {
				return ErrFeedClosed
			}
			s.logFailure(c, s.HandleRoomChange(ctx, c))
		case c, ok := <-s.participantSub.C():
			if !ok {
				return ErrFeedClosed
			}
			s.logFailure(c, s.HandleParticipantsChange(ctx, c))
		case c, ok := <-s.taskSub.C():
			if !ok {
				return ErrFeedClosed
			}
			s.logFailure(c, s.HandleTasksChange(ctx, c))
		case c, ok := <-s.voteChanges():
			if !ok {
				return ErrFeedClosed
			}
			s.logFailure(c, s.HandleVotesChange(ctx, c))
		}
	}
}

// Close releases all subscriptions. It is safe to call more than once.
func (s *RoomSync) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := []ports.Subscription{s.voteSub, s.taskSub, s.participantSub, s.roomSub}
	s.voteSub = nil
	s.mu.Unlock()

	for _, sub := range subs {
		if sub == nil {
			continue
		}
		if err := sub.Close(); err != nil {
			log.Error().Err(err).Str("room_id", s.roomID.String()).Msg("failed to release subscription")
		}
	}
	log.Debug().Str("room_id", s.roomID.String()).Msg("room sync closed")
}

// HandleRoomChange adopts the new room row as is and reacts to a change of
// the active task.
func (s *RoomSync) HandleRoomChange(ctx context.Context, c domain.Change) error {
	if id, ok := c.Keys["id"]; ok && id != s.roomID.String() {
		return nil
	}

	var room *domain.Room
	if c.HasRecord() {
		var decoded domain.Room
		if err := json.Unmarshal(c.Record, &decoded); err != nil {
			log.Warn().Err(err).Str("room_id", s.roomID.String()).Msg("undecodable room record, refetching")
		} else {
			room = &decoded
		}
	}
	if room == nil {
		fetched, err := s.store.Rooms.GetByID(ctx, s.roomID)
		if err != nil {
			return err
		}
		room = fetched
	}

	return s.applyRoom(ctx, room)
}

func (s *RoomSync) HandleParticipantsChange(ctx context.Context, _ domain.Change) error {
	if err := s.refreshParticipants(ctx); err != nil {
		return err
	}
	s.emit()
	return nil
}

func (s *RoomSync) HandleTasksChange(ctx context.Context, _ domain.Change) error {
	if err := s.refreshTasks(ctx); err != nil {
		return err
	}
	s.emit()
	return nil
}

// HandleVotesChange refetches the active task's votes. Changes for any other
// task are ignored.
func (s *RoomSync) HandleVotesChange(ctx context.Context, c domain.Change) error {
	s.mu.RLock()
	active := s.voteTaskID
	s.mu.RUnlock()

	if active == nil {
		return nil
	}
	if taskID, ok := c.Keys["task_id"]; ok && taskID != active.String() {
		return nil
	}
	return s.refreshVotes(ctx)
}

func (s *RoomSync) Snapshot() domain.RoomState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// ActiveTaskID is the task whose votes are currently mirrored.
func (s *RoomSync) ActiveTaskID() *uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.voteTaskID == nil {
		return nil
	}
	id := *s.voteTaskID
	return &id
}

// SetSelected changes the local selection without waiting for the store.
func (s *RoomSync) SetSelected(value *domain.CardValue) {
	s.mu.Lock()
	if value == nil {
		s.state.Selected = nil
	} else {
		v := *value
		s.state.Selected = &v
	}
	s.mu.Unlock()
	s.emit()
}

// RevertSelected puts back previous unless the selection has moved on from
// value in the meantime.
func (s *RoomSync) RevertSelected(value domain.CardValue, previous *domain.CardValue) {
	s.mu.Lock()
	current := s.state.Selected
	if current == nil || !current.Equal(value) {
		s.mu.Unlock()
		return
	}
	if previous == nil {
		s.state.Selected = nil
	} else {
		v := *previous
		s.state.Selected = &v
	}
	s.mu.Unlock()
	s.emit()
}

// ClearVoting drops local votes, selection and summary.
func (s *RoomSync) ClearVoting() {
	s.mu.Lock()
	s.state.Votes = nil
	s.state.Selected = nil
	s.state.Summary = nil
	s.mu.Unlock()
	s.emit()
}

func (s *RoomSync) applyRoom(ctx context.Context, room *domain.Room) error {
	s.mu.Lock()
	s.state.Room = room
	switched := !sameTask(s.voteTaskID, room.VotingTaskID)
	s.mu.Unlock()

	if switched {
		if err := s.switchVoteTask(ctx, room.VotingTaskID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.summarizeLocked()
	s.mu.Unlock()
	s.emit()
	return nil
}

// switchVoteTask tears down the current vote subscription before creating the
// one for taskID.
func (s *RoomSync) switchVoteTask(ctx context.Context, taskID *uuid.UUID) error {
	s.mu.Lock()
	prev := s.voteSub
	s.voteSub = nil
	s.voteTaskID = copyID(taskID)
	s.state.Votes = nil
	s.state.Selected = nil
	s.state.Summary = nil
	closed := s.closed
	s.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			log.Error().Err(err).Str("room_id", s.roomID.String()).Msg("failed to release vote subscription")
		}
	}
	if taskID == nil || closed {
		return nil
	}

	sub, err := s.feed.Subscribe(ctx, domain.TableVotes, domain.Filter{
		"room_id": s.roomID.String(),
		"task_id": taskID.String(),
	})
	if err != nil {
		// forget the task so the next room change retries the subscription
		s.mu.Lock()
		if sameTask(s.voteTaskID, taskID) {
			s.voteTaskID = nil
		}
		s.mu.Unlock()
		return fmt.Errorf("failed to subscribe to votes: %w", err)
	}

	s.mu.Lock()
	if s.closed || !sameTask(s.voteTaskID, taskID) {
		s.mu.Unlock()
		return sub.Close()
	}
	s.voteSub = sub
	s.mu.Unlock()

	log.Debug().
		Str("room_id", s.roomID.String()).
		Str("task_id", taskID.String()).
		Msg("voting task switched")

	return s.refreshVotes(ctx)
}

func (s *RoomSync) refreshVotes(ctx context.Context) error {
	s.mu.RLock()
	taskID := copyID(s.voteTaskID)
	s.mu.RUnlock()
	if taskID == nil {
		return nil
	}

	votes, err := s.store.Votes.ListByTask(ctx, s.roomID, *taskID)
	if err != nil {
		return fmt.Errorf("failed to fetch votes: %w", err)
	}

	s.mu.Lock()
	if !sameTask(s.voteTaskID, taskID) {
		s.mu.Unlock()
		return nil
	}
	s.state.Votes = votes
	s.state.Selected = nil
	if own, ok := domain.FindVote(votes, s.userID); ok {
		value := own.Value
		s.state.Selected = &value
	}
	s.summarizeLocked()
	s.mu.Unlock()

	s.emit()
	return nil
}

func (s *RoomSync) refreshParticipants(ctx context.Context) error {
	participants, err := s.store.Participants.ListByRoom(ctx, s.roomID)
	if err != nil {
		return fmt.Errorf("failed to fetch participants: %w", err)
	}
	s.mu.Lock()
	s.state.Participants = participants
	s.mu.Unlock()
	return nil
}

func (s *RoomSync) refreshTasks(ctx context.Context) error {
	tasks, err := s.store.Tasks.ListByRoom(ctx, s.roomID)
	if err != nil {
		return fmt.Errorf("failed to fetch tasks: %w", err)
	}
	s.mu.Lock()
	s.state.Tasks = tasks
	s.mu.Unlock()
	return nil
}

// summarizeLocked keeps the summary only while votes are revealed for an
// active task.
func (s *RoomSync) summarizeLocked() {
	room := s.state.Room
	if room == nil || !room.Revealed || !room.HasActiveTask() {
		s.state.Summary = nil
		return
	}
	summary := Summarize(s.state.Votes)
	s.state.Summary = &summary
}

func (s *RoomSync) voteChanges() <-chan domain.Change {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.voteSub == nil {
		return nil
	}
	return s.voteSub.C()
}

func (s *RoomSync) emit() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.RLock()
	fn := s.onUpdate
	closed := s.closed
	snapshot := s.state.Clone()
	s.mu.RUnlock()

	if fn != nil && !closed {
		fn(snapshot)
	}
}

func (s *RoomSync) logFailure(c domain.Change, err error) {
	if err == nil {
		return
	}
	log.Error().
		Err(err).
		Str("room_id", s.roomID.String()).
		Str("table", string(c.Table)).
		Str("op", string(c.Op)).
		Msg("failed to apply change")
}

func sameTask(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
