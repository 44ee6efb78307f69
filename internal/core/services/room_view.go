package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

type RoomViewDeps struct {
	Store    ports.Store
	Feed     ports.ChangeFeed
	Notifier ports.Notifier
	Clock    clockwork.Clock
	// OnUpdate receives every state snapshot, starting with the initial one.
	OnUpdate func(domain.RoomState)
}

// RoomView owns the state of one participant looking at one room. It is
// created when the participant enters and must be closed when they leave.
type RoomView struct {
	identity   domain.Identity
	sync       *RoomSync
	controller *RoomController

	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	closeOnce sync.Once
}

// OpenRoomView fails with domain.ErrRoomNotFound for an unknown room and
// domain.ErrNoIdentity when this browser has not joined it.
func OpenRoomView(ctx context.Context, deps RoomViewDeps, roomID uuid.UUID, identities ports.IdentityStore) (*RoomView, error) {
	if _, err := deps.Store.Rooms.GetByID(ctx, roomID); err != nil {
		return nil, err
	}

	identity, err := NewSessionResolver(identities, deps.Store.Participants).Resolve(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, domain.ErrNoIdentity
	}

	roomSync := NewRoomSync(roomID, identity.ID, deps.Store, deps.Feed)
	if deps.OnUpdate != nil {
		roomSync.OnUpdate(deps.OnUpdate)
	}
	if err := roomSync.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open room: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	view := &RoomView{
		identity:   *identity,
		sync:       roomSync,
		controller: NewRoomController(roomID, *identity, deps.Store, roomSync, deps.Notifier, deps.Clock),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go func() {
		defer close(view.done)
		if err := roomSync.Run(runCtx); err != nil {
			view.err = err
			if !errors.Is(err, ErrFeedClosed) {
				log.Error().Err(err).Str("room_id", roomID.String()).Msg("room sync stopped")
			}
		}
	}()

	return view, nil
}

func (v *RoomView) Identity() domain.Identity {
	return v.identity
}

func (v *RoomView) Controller() *RoomController {
	return v.controller
}

func (v *RoomView) Snapshot() domain.RoomState {
	return v.sync.Snapshot()
}

// Done is closed once the reconciliation loop has stopped.
func (v *RoomView) Done() <-chan struct{} {
	return v.done
}

// Err reports why the loop stopped. Only valid after Done is closed.
func (v *RoomView) Err() error {
	return v.err
}

// Close stops the loop and releases every subscription.
func (v *RoomView) Close() {
	v.closeOnce.Do(func() {
		v.cancel()
		<-v.done
		v.sync.Close()
	})
}
