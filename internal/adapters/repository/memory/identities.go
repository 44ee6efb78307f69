package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

// Identities keeps identity records per browser session and room.
type Identities struct {
	mu      sync.RWMutex
	records map[string]map[uuid.UUID][]byte
}

func NewIdentities() *Identities {
	return &Identities{records: make(map[string]map[uuid.UUID][]byte)}
}

func (i *Identities) ForSession(sessionID string) ports.IdentityStore {
	return &sessionIdentities{parent: i, session: sessionID}
}

// Put stores a raw record as is, including ones that do not parse.
func (i *Identities) Put(sessionID string, roomID uuid.UUID, raw []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.records[sessionID] == nil {
		i.records[sessionID] = make(map[uuid.UUID][]byte)
	}
	i.records[sessionID][roomID] = append([]byte(nil), raw...)
}

type sessionIdentities struct {
	parent  *Identities
	session string
}

func (s *sessionIdentities) Load(_ context.Context, roomID uuid.UUID) ([]byte, error) {
	s.parent.mu.RLock()
	defer s.parent.mu.RUnlock()

	raw, ok := s.parent.records[s.session][roomID]
	if !ok {
		return nil, ports.ErrIdentityNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *sessionIdentities) Save(_ context.Context, roomID uuid.UUID, identity domain.Identity) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	s.parent.Put(s.session, roomID, raw)
	return nil
}

func (s *sessionIdentities) Delete(_ context.Context, roomID uuid.UUID) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	delete(s.parent.records[s.session], roomID)
	return nil
}
