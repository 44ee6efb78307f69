package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

type participantRepository struct {
	db *sql.DB
}

func NewParticipantRepository(db *sql.DB) ports.ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Create(ctx context.Context, p *domain.Participant) error {
	query := `
		INSERT INTO participants (id, room_id, name, emoji, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.RoomID, p.Name, p.Emoji, p.IsAdmin, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

func (r *participantRepository) GetByID(ctx context.Context, roomID, id uuid.UUID) (*domain.Participant, error) {
	query := `
		SELECT id, room_id, name, emoji, is_admin, created_at
		FROM participants
		WHERE id = $1 AND room_id = $2
	`
	p := &domain.Participant{}
	err := r.db.QueryRowContext(ctx, query, id, roomID).Scan(&p.ID, &p.RoomID, &p.Name, &p.Emoji, &p.IsAdmin, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (r *participantRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.Participant, error) {
	query := `
		SELECT id, room_id, name, emoji, is_admin, created_at
		FROM participants
		WHERE room_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	participants := []domain.Participant{}
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.RoomID, &p.Name, &p.Emoji, &p.IsAdmin, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}
