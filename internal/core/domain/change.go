package domain

import "encoding/json"

type Table string

const (
	TableRooms        Table = "rooms"
	TableParticipants Table = "participants"
	TableTasks        Table = "tasks"
	TableVotes        Table = "votes"
)

type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
	// OpResync means changes may have been missed; it reaches every
	// subscriber of the table regardless of filter.
	OpResync ChangeOp = "RESYNC"
)

// Tables lists every table the change feed announces.
var Tables = []Table{TableRooms, TableParticipants, TableTasks, TableVotes}

// Change says that a row of Table changed. Keys carries the row's key columns
// (id, room_id, task_id, user_id) so subscribers can filter; Record is the new
// row when the feed could include it.
type Change struct {
	Table  Table             `json:"table"`
	Op     ChangeOp          `json:"op"`
	Keys   map[string]string `json:"keys"`
	Record json.RawMessage   `json:"record,omitempty"`
}

// HasRecord reports whether the change carries a usable row snapshot.
func (c Change) HasRecord() bool {
	return c.Op != OpDelete && len(c.Record) > 0 && string(c.Record) != "null"
}

func ResyncChange(table Table) Change {
	return Change{Table: table, Op: OpResync, Keys: map[string]string{}}
}

// Filter is a set of column equality predicates; every one must match.
type Filter map[string]string

func (f Filter) Matches(c Change) bool {
	if c.Op == OpResync {
		return true
	}
	for col, want := range f {
		if c.Keys[col] != want {
			return false
		}
	}
	return true
}
