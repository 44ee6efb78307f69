package realtime

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

const defaultBuffer = 32

var ErrBrokerClosed = errors.New("broker closed")

// Broker fans changes out to in-process subscribers. Each subscription has a
// bounded buffer; when it is full the oldest pending change is dropped, which
// is harmless because subscribers treat a change as a hint to refetch.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	buffer int
	closed bool
}

func NewBroker() *Broker {
	return NewBrokerWithBuffer(defaultBuffer)
}

func NewBrokerWithBuffer(buffer int) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{
		subs:   make(map[*subscription]struct{}),
		buffer: buffer,
	}
}

func (b *Broker) Subscribe(ctx context.Context, table domain.Table, filter domain.Filter) (ports.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{
		broker: b,
		table:  table,
		filter: maps.Clone(filter),
		ch:     make(chan domain.Change, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	b.subs[sub] = struct{}{}
	return sub, nil
}

func (b *Broker) Publish(_ context.Context, change domain.Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}

	for sub := range b.subs {
		if sub.table == change.Table && sub.filter.Matches(change) {
			sub.deliver(change)
		}
	}
	return nil
}

// SubscriberCount returns how many live subscriptions watch table with
// exactly filter.
func (b *Broker) SubscriberCount(table domain.Table, filter domain.Filter) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for sub := range b.subs {
		if sub.table == table && maps.Equal(sub.filter, filter) {
			n++
		}
	}
	return n
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription by closing its channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		sub.mu.Unlock()
	}
	b.subs = map[*subscription]struct{}{}
}

type subscription struct {
	broker *Broker
	table  domain.Table
	filter domain.Filter
	ch     chan domain.Change

	mu     sync.Mutex
	closed bool
}

func (s *subscription) C() <-chan domain.Change {
	return s.ch
}

// Close unregisters the subscription and discards anything still buffered.
// The channel is left open so a select on it simply never fires again.
func (s *subscription) Close() error {
	s.broker.mu.Lock()
	delete(s.broker.subs, s)
	s.broker.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for {
		select {
		case <-s.ch:
		default:
			return nil
		}
	}
}

func (s *subscription) deliver(change domain.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- change:
		return
	default:
	}

	select {
	case <-s.ch:
		log.Debug().Str("table", string(s.table)).Msg("subscriber lagging, dropped oldest change")
	default:
	}
	select {
	case s.ch <- change:
	default:
	}
}
