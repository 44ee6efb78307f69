// Package memory is a process-local store for development and tests. Every
// write publishes the same change notifications the Postgres triggers emit.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

type DB struct {
	mu           sync.RWMutex
	rooms        map[uuid.UUID]domain.Room
	participants map[uuid.UUID]domain.Participant
	tasks        map[uuid.UUID]domain.Task
	votes        []domain.Vote
	// seq records insertion order so rows created in the same instant
	// still list deterministically.
	seq  map[uuid.UUID]int
	next int

	publisher ports.ChangePublisher
}

// New returns an empty store. publisher may be nil.
func New(publisher ports.ChangePublisher) *DB {
	return &DB{
		rooms:        make(map[uuid.UUID]domain.Room),
		participants: make(map[uuid.UUID]domain.Participant),
		tasks:        make(map[uuid.UUID]domain.Task),
		seq:          make(map[uuid.UUID]int),
		publisher:    publisher,
	}
}

func (db *DB) Store() ports.Store {
	return ports.Store{
		Rooms:        &RoomRepository{db: db},
		Participants: &ParticipantRepository{db: db},
		Tasks:        &TaskRepository{db: db},
		Votes:        &VoteRepository{db: db},
	}
}

func (db *DB) publish(ctx context.Context, table domain.Table, op domain.ChangeOp, keys map[string]string, record any) {
	if db.publisher == nil {
		return
	}

	change := domain.Change{Table: table, Op: op, Keys: keys}
	if record != nil {
		raw, err := json.Marshal(record)
		if err != nil {
			log.Error().Err(err).Str("table", string(table)).Msg("failed to encode change record")
		} else {
			change.Record = raw
		}
	}
	if err := db.publisher.Publish(ctx, change); err != nil {
		log.Error().Err(err).Str("table", string(table)).Msg("failed to publish change")
	}
}

type RoomRepository struct {
	db *DB
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	r.db.mu.Lock()
	stored := cloneRoom(*room)
	r.db.rooms[room.ID] = stored
	r.db.mu.Unlock()

	r.db.publish(ctx, domain.TableRooms, domain.OpInsert, roomKeys(room.ID), stored)
	return nil
}

func (r *RoomRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Room, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	room, ok := r.db.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	out := cloneRoom(room)
	return &out, nil
}

func (r *RoomRepository) SetVotingTask(ctx context.Context, roomID uuid.UUID, taskID *uuid.UUID) error {
	return r.update(ctx, roomID, func(room *domain.Room) {
		room.Revealed = false
		room.VotingTaskID = nil
		if taskID != nil {
			id := *taskID
			room.VotingTaskID = &id
		}
	})
}

func (r *RoomRepository) Reveal(ctx context.Context, roomID uuid.UUID) error {
	return r.update(ctx, roomID, func(room *domain.Room) {
		room.Revealed = true
	})
}

func (r *RoomRepository) update(ctx context.Context, roomID uuid.UUID, apply func(*domain.Room)) error {
	r.db.mu.Lock()
	room, ok := r.db.rooms[roomID]
	if !ok {
		r.db.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	apply(&room)
	r.db.rooms[roomID] = room
	stored := cloneRoom(room)
	r.db.mu.Unlock()

	r.db.publish(ctx, domain.TableRooms, domain.OpUpdate, roomKeys(roomID), stored)
	return nil
}

type ParticipantRepository struct {
	db *DB
}

func (r *ParticipantRepository) Create(ctx context.Context, participant *domain.Participant) error {
	r.db.mu.Lock()
	r.db.participants[participant.ID] = *participant
	r.db.track(participant.ID)
	r.db.mu.Unlock()

	r.db.publish(ctx, domain.TableParticipants, domain.OpInsert, map[string]string{
		"id":      participant.ID.String(),
		"room_id": participant.RoomID.String(),
	}, participant)
	return nil
}

func (r *ParticipantRepository) GetByID(_ context.Context, roomID, id uuid.UUID) (*domain.Participant, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.participants[id]
	if !ok || p.RoomID != roomID {
		return nil, domain.ErrParticipantNotFound
	}
	return &p, nil
}

func (r *ParticipantRepository) ListByRoom(_ context.Context, roomID uuid.UUID) ([]domain.Participant, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []domain.Participant{}
	for _, p := range r.db.participants {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return r.db.before(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

// Remove deletes a participant. Only used to simulate another client
// removing a row.
func (r *ParticipantRepository) Remove(ctx context.Context, roomID, id uuid.UUID) error {
	r.db.mu.Lock()
	p, ok := r.db.participants[id]
	if !ok || p.RoomID != roomID {
		r.db.mu.Unlock()
		return domain.ErrParticipantNotFound
	}
	delete(r.db.participants, id)
	r.db.mu.Unlock()

	r.db.publish(ctx, domain.TableParticipants, domain.OpDelete, map[string]string{
		"id":      id.String(),
		"room_id": roomID.String(),
	}, nil)
	return nil
}

type TaskRepository struct {
	db *DB
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	r.db.mu.Lock()
	r.db.tasks[task.ID] = *task
	r.db.track(task.ID)
	r.db.mu.Unlock()

	r.db.publish(ctx, domain.TableTasks, domain.OpInsert, taskKeys(*task), task)
	return nil
}

func (r *TaskRepository) GetByID(_ context.Context, roomID, id uuid.UUID) (*domain.Task, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, ok := r.db.tasks[id]
	if !ok || t.RoomID != roomID {
		return nil, domain.ErrTaskNotFound
	}
	return &t, nil
}

func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) error {
	r.db.mu.Lock()
	current, ok := r.db.tasks[task.ID]
	if !ok || current.RoomID != task.RoomID {
		r.db.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	current.Title = task.Title
	current.Description = task.Description
	current.UpdatedAt = task.UpdatedAt
	r.db.tasks[task.ID] = current
	r.db.mu.Unlock()

	r.db.publish(ctx, domain.TableTasks, domain.OpUpdate, taskKeys(current), current)
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, roomID, id uuid.UUID) error {
	r.db.mu.Lock()
	t, ok := r.db.tasks[id]
	if !ok || t.RoomID != roomID {
		r.db.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	delete(r.db.tasks, id)
	r.db.mu.Unlock()

	r.db.publish(ctx, domain.TableTasks, domain.OpDelete, taskKeys(t), nil)
	return nil
}

func (r *TaskRepository) ListByRoom(_ context.Context, roomID uuid.UUID) ([]domain.Task, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []domain.Task{}
	for _, t := range r.db.tasks {
		if t.RoomID == roomID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return r.db.before(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

type VoteRepository struct {
	db *DB
}

// Upsert replaces any earlier vote of the same user on the same task. The
// replaced vote moves to the end, matching the cast_at ordering in Postgres.
func (r *VoteRepository) Upsert(ctx context.Context, vote *domain.Vote) error {
	r.db.mu.Lock()
	op := domain.OpInsert
	kept := r.db.votes[:0]
	for _, v := range r.db.votes {
		if v.UserID == vote.UserID && v.TaskID == vote.TaskID {
			op = domain.OpUpdate
			continue
		}
		kept = append(kept, v)
	}
	r.db.votes = append(kept, *vote)
	r.db.mu.Unlock()

	r.db.publish(ctx, domain.TableVotes, op, voteKeys(*vote), vote)
	return nil
}

func (r *VoteRepository) ListByTask(_ context.Context, roomID, taskID uuid.UUID) ([]domain.Vote, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []domain.Vote{}
	for _, v := range r.db.votes {
		if v.RoomID == roomID && v.TaskID == taskID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *VoteRepository) DeleteByRoom(ctx context.Context, roomID uuid.UUID) error {
	r.db.mu.Lock()
	var removed []domain.Vote
	kept := make([]domain.Vote, 0, len(r.db.votes))
	for _, v := range r.db.votes {
		if v.RoomID == roomID {
			removed = append(removed, v)
			continue
		}
		kept = append(kept, v)
	}
	r.db.votes = kept
	r.db.mu.Unlock()

	for _, v := range removed {
		r.db.publish(ctx, domain.TableVotes, domain.OpDelete, voteKeys(v), nil)
	}
	return nil
}

func (db *DB) track(id uuid.UUID) {
	if _, ok := db.seq[id]; ok {
		return
	}
	db.next++
	db.seq[id] = db.next
}

func (db *DB) before(a, b time.Time, idA, idB uuid.UUID) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return db.seq[idA] < db.seq[idB]
}

func roomKeys(id uuid.UUID) map[string]string {
	return map[string]string{"id": id.String(), "room_id": id.String()}
}

func taskKeys(t domain.Task) map[string]string {
	return map[string]string{"id": t.ID.String(), "room_id": t.RoomID.String()}
}

func voteKeys(v domain.Vote) map[string]string {
	return map[string]string{
		"room_id": v.RoomID.String(),
		"task_id": v.TaskID.String(),
		"user_id": v.UserID.String(),
	}
}

func cloneRoom(room domain.Room) domain.Room {
	room.VotingSystem = append(domain.Deck(nil), room.VotingSystem...)
	if room.VotingTaskID != nil {
		id := *room.VotingTaskID
		room.VotingTaskID = &id
	}
	return room
}
