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

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) ports.TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (id, room_id, title, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, task.ID, task.RoomID, task.Title, task.Description, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, roomID, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, room_id, title, description, created_at, updated_at
		FROM tasks
		WHERE id = $1 AND room_id = $2
	`
	t := &domain.Task{}
	err := r.db.QueryRowContext(ctx, query, id, roomID).Scan(&t.ID, &t.RoomID, &t.Title, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks SET title = $3, description = $4, updated_at = $5
		WHERE id = $1 AND room_id = $2
	`
	result, err := r.db.ExecContext(ctx, query, task.ID, task.RoomID, task.Title, task.Description, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return expectOneRow(result, domain.ErrTaskNotFound)
}

func (r *taskRepository) Delete(ctx context.Context, roomID, id uuid.UUID) error {
	query := `DELETE FROM tasks WHERE id = $1 AND room_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return expectOneRow(result, domain.ErrTaskNotFound)
}

func (r *taskRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.Task, error) {
	query := `
		SELECT id, room_id, title, description, created_at, updated_at
		FROM tasks
		WHERE room_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.RoomID, &t.Title, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}
