package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

type voteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) ports.VoteRepository {
	return &voteRepository{
		db: db,
	}
}

func (r *voteRepository) Upsert(ctx context.Context, vote *domain.Vote) error {
	value, err := json.Marshal(vote.Value)
	if err != nil {
		return fmt.Errorf("failed to encode vote value: %w", err)
	}

	query := `
		INSERT INTO votes (user_id, room_id, task_id, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, task_id)
		DO UPDATE SET value = EXCLUDED.value, room_id = EXCLUDED.room_id, cast_at = clock_timestamp()
	`
	_, err = r.db.ExecContext(ctx, query, vote.UserID, vote.RoomID, vote.TaskID, string(value))
	if err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}
	return nil
}

func (r *voteRepository) ListByTask(ctx context.Context, roomID, taskID uuid.UUID) ([]domain.Vote, error) {
	query := `
		SELECT user_id, room_id, task_id, value
		FROM votes
		WHERE room_id = $1 AND task_id = $2
		ORDER BY cast_at ASC, user_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, roomID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	votes := []domain.Vote{}
	for rows.Next() {
		var (
			v     domain.Vote
			value []byte
		)
		if err := rows.Scan(&v.UserID, &v.RoomID, &v.TaskID, &value); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		if err := json.Unmarshal(value, &v.Value); err != nil {
			return nil, fmt.Errorf("failed to decode vote value: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate votes: %w", err)
	}
	return votes, nil
}

func (r *voteRepository) DeleteByRoom(ctx context.Context, roomID uuid.UUID) error {
	query := `DELETE FROM votes WHERE room_id = $1`
	if _, err := r.db.ExecContext(ctx, query, roomID); err != nil {
		return fmt.Errorf("failed to delete votes: %w", err)
	}
	return nil
}
