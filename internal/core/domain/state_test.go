package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomState_ParticipantStatusesHideValuesUntilReveal(t *testing.T) {
	taskID := uuid.New()
	ana := Participant{ID: uuid.New(), Name: "Ana"}
	bruno := Participant{ID: uuid.New(), Name: "Bruno"}
	state := RoomState{
		Room:         &Room{ID: uuid.New(), VotingTaskID: &taskID},
		Participants: []Participant{ana, bruno},
		Votes:        []Vote{{UserID: ana.ID, TaskID: taskID, Value: NumberValue(5)}},
	}

	statuses := state.ParticipantStatuses()
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Voted)
	assert.Nil(t, statuses[0].Value)
	assert.False(t, statuses[1].Voted)

	state.Room.Revealed = true
	statuses = state.ParticipantStatuses()
	require.NotNil(t, statuses[0].Value)
	assert.Equal(t, NumberValue(5), *statuses[0].Value)
}

func TestRoomState_CloneIsDeep(t *testing.T) {
	taskID := uuid.New()
	selected := NumberValue(3)
	state := RoomState{
		Room:     &Room{ID: uuid.New(), VotingTaskID: &taskID, VotingSystem: DefaultDeck()},
		Votes:    []Vote{{UserID: uuid.New(), Value: NumberValue(3)}},
		Selected: &selected,
		Summary:  &VotingSummary{Votes: map[string]int{"3": 1}, Mode: []CardValue{NumberValue(3)}},
	}

	clone := state.Clone()
	clone.Room.Revealed = true
	*clone.Room.VotingTaskID = uuid.New()
	clone.Votes[0].Value = NumberValue(8)
	clone.Summary.Votes["3"] = 9

	assert.False(t, state.Room.Revealed)
	assert.Equal(t, taskID, *state.Room.VotingTaskID)
	assert.Equal(t, NumberValue(3), state.Votes[0].Value)
	assert.Equal(t, 1, state.Summary.Votes["3"])
}

func TestRoomState_ActiveTask(t *testing.T) {
	task := Task{ID: uuid.New(), Title: "Login"}
	state := RoomState{Room: &Room{}, Tasks: []Task{task}}

	_, ok := state.ActiveTask()
	assert.False(t, ok)

	state.Room.VotingTaskID = &task.ID
	active, ok := state.ActiveTask()
	assert.True(t, ok)
	assert.Equal(t, "Login", active.Title)
}

func TestFilter_Matches(t *testing.T) {
	change := Change{Table: TableVotes, Keys: map[string]string{"room_id": "r1", "task_id": "t1"}}

	assert.True(t, Filter{"room_id": "r1"}.Matches(change))
	assert.True(t, Filter{"room_id": "r1", "task_id": "t1"}.Matches(change))
	assert.False(t, Filter{"task_id": "t2"}.Matches(change))
	assert.True(t, Filter{}.Matches(change))
}

func TestFilter_MatchesResyncEverywhere(t *testing.T) {
	change := ResyncChange(TableVotes)

	assert.True(t, Filter{"room_id": "r1", "task_id": "t1"}.Matches(change))
	assert.False(t, change.HasRecord())
}
