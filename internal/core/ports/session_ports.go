package ports

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
)

var ErrIdentityNotFound = errors.New("identity not found")

// IdentityStore persists one browser's identity per room. Load returns the
// raw stored record so that callers can discard one that no longer parses.
type IdentityStore interface {
	Load(ctx context.Context, roomID uuid.UUID) ([]byte, error)
	Save(ctx context.Context, roomID uuid.UUID, identity domain.Identity) error
	Delete(ctx context.Context, roomID uuid.UUID) error
}

type SessionResolver interface {
	Resolve(ctx context.Context, roomID uuid.UUID) (*domain.Identity, error)
}

type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

// IdentityDirectory hands out the IdentityStore of one browser session.
type IdentityDirectory interface {
	ForSession(sessionID string) IdentityStore
}
