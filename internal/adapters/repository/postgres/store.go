package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func NewStore(db *sql.DB) ports.Store {
	return ports.Store{
		Rooms:        NewRoomRepository(db),
		Participants: NewParticipantRepository(db),
		Tasks:        NewTaskRepository(db),
		Votes:        NewVoteRepository(db),
	}
}
