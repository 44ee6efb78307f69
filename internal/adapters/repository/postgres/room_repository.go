package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

type roomRepository struct {
	db *sql.DB
}

func NewRoomRepository(db *sql.DB) ports.RoomRepository {
	return &roomRepository{
		db: db,
	}
}

func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	deck, err := json.Marshal(room.VotingSystem)
	if err != nil {
		return fmt.Errorf("failed to encode voting system: %w", err)
	}

	query := `
		INSERT INTO rooms (id, name, voting_system, revealed, voting_task_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query, room.ID, room.Name, string(deck), room.Revealed, nullableID(room.VotingTaskID), room.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	query := `
		SELECT id, name, voting_system, revealed, voting_task_id, created_at
		FROM rooms
		WHERE id = $1
	`

	var (
		room     domain.Room
		deck     []byte
		votingID uuid.NullUUID
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID, &room.Name, &deck, &room.Revealed, &votingID, &room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if err := json.Unmarshal(deck, &room.VotingSystem); err != nil {
		return nil, fmt.Errorf("failed to decode voting system: %w", err)
	}
	if votingID.Valid {
		room.VotingTaskID = &votingID.UUID
	}
	return &room, nil
}

func (r *roomRepository) SetVotingTask(ctx context.Context, roomID uuid.UUID, taskID *uuid.UUID) error {
	query := `UPDATE rooms SET voting_task_id = $2, revealed = FALSE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, roomID, nullableID(taskID))
	if err != nil {
		return fmt.Errorf("failed to set voting task: %w", err)
	}
	return expectOneRow(result, domain.ErrRoomNotFound)
}

func (r *roomRepository) Reveal(ctx context.Context, roomID uuid.UUID) error {
	query := `UPDATE rooms SET revealed = TRUE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, roomID)
	if err != nil {
		return fmt.Errorf("failed to reveal votes: %w", err)
	}
	return expectOneRow(result, domain.ErrRoomNotFound)
}

func nullableID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func expectOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
