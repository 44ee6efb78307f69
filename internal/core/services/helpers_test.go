package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/realtime"
	"github.com/vncsmyrnk/pokeplan/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

type fixture struct {
	ctx    context.Context
	broker *realtime.Broker
	db     *memory.DB
	store  ports.Store
	votes  *countingVotes
	room   *domain.Room
	admin  domain.Participant
	member domain.Participant
	clock  clockwork.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	broker := realtime.NewBroker()
	t.Cleanup(broker.Close)

	db := memory.New(broker)
	store := db.Store()
	votes := &countingVotes{VoteRepository: store.Votes, calls: map[uuid.UUID]int{}}
	store.Votes = votes

	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	room := &domain.Room{
		ID:           uuid.New(),
		Name:         "Sprint 42",
		VotingSystem: domain.DefaultDeck(),
		CreatedAt:    clock.Now(),
	}
	require.NoError(t, store.Rooms.Create(ctx, room))

	admin := domain.Participant{ID: uuid.New(), RoomID: room.ID, Name: "Ana", Emoji: "🦊", IsAdmin: true, CreatedAt: clock.Now()}
	member := domain.Participant{ID: uuid.New(), RoomID: room.ID, Name: "Bruno", Emoji: "🐼", CreatedAt: clock.Now()}
	require.NoError(t, store.Participants.Create(ctx, &admin))
	require.NoError(t, store.Participants.Create(ctx, &member))

	return &fixture{
		ctx:    ctx,
		broker: broker,
		db:     db,
		store:  store,
		votes:  votes,
		room:   room,
		admin:  admin,
		member: member,
		clock:  clock,
	}
}

func (f *fixture) addTask(t *testing.T, title string) domain.Task {
	t.Helper()
	task := domain.Task{ID: uuid.New(), RoomID: f.room.ID, Title: title, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now()}
	require.NoError(t, f.store.Tasks.Create(f.ctx, &task))
	return task
}

func (f *fixture) castVote(t *testing.T, userID, taskID uuid.UUID, value domain.CardValue) {
	t.Helper()
	require.NoError(t, f.store.Votes.Upsert(f.ctx, &domain.Vote{UserID: userID, RoomID: f.room.ID, TaskID: taskID, Value: value}))
}

func (f *fixture) currentRoom(t *testing.T) *domain.Room {
	t.Helper()
	room, err := f.store.Rooms.GetByID(f.ctx, f.room.ID)
	require.NoError(t, err)
	return room
}

func voteFilter(roomID, taskID uuid.UUID) domain.Filter {
	return domain.Filter{"room_id": roomID.String(), "task_id": taskID.String()}
}

// countingVotes records fetches per task and can be told to fail writes.
type countingVotes struct {
	ports.VoteRepository

	mu        sync.Mutex
	calls      map[uuid.UUID]int
	writes     int
	failWrite  error
	beforeFail func()
}

func (c *countingVotes) ListByTask(ctx context.Context, roomID, taskID uuid.UUID) ([]domain.Vote, error) {
	c.mu.Lock()
	c.calls[taskID]++
	c.mu.Unlock()
	return c.VoteRepository.ListByTask(ctx, roomID, taskID)
}

func (c *countingVotes) Upsert(ctx context.Context, v *domain.Vote) error {
	c.mu.Lock()
	c.writes++
	err := c.failWrite
	hook := c.beforeFail
	c.mu.Unlock()
	if err != nil {
		if hook != nil {
			hook()
		}
		return err
	}
	return c.VoteRepository.Upsert(ctx, v)
}

func (c *countingVotes) DeleteByRoom(ctx context.Context, roomID uuid.UUID) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.VoteRepository.DeleteByRoom(ctx, roomID)
}

func (c *countingVotes) fetches(taskID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[taskID]
}

func (c *countingVotes) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func (c *countingVotes) setFailure(err error) {
	c.mu.Lock()
	c.failWrite = err
	c.mu.Unlock()
}

// onFailure runs hook inside a failing Upsert, before the error is returned.
func (c *countingVotes) onFailure(hook func()) {
	c.mu.Lock()
	c.beforeFail = hook
	c.mu.Unlock()
}

// flakyFeed fails the first Subscribe on table and passes the rest through.
type flakyFeed struct {
	ports.ChangeFeed
	table domain.Table

	mu       sync.Mutex
	failures int
}

func (f *flakyFeed) Subscribe(ctx context.Context, table domain.Table, filter domain.Filter) (ports.Subscription, error) {
	f.mu.Lock()
	if table == f.table && f.failures == 0 {
		f.failures++
		f.mu.Unlock()
		return nil, errors.New("subscription refused")
	}
	f.mu.Unlock()
	return f.ChangeFeed.Subscribe(ctx, table, filter)
}

func (f *flakyFeed) failureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}

// recordingNotifier collects notices sent to a participant.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice domain.Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []domain.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notice(nil), n.notices...)
}
