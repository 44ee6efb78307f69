package ports

import (
	"context"

	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
)

// ChangeFeed delivers row change notifications. Delivery is at-least-once and
// unordered across tables; a change only says that something happened.
type ChangeFeed interface {
	Subscribe(ctx context.Context, table domain.Table, filter domain.Filter) (Subscription, error)
}

type Subscription interface {
	C() <-chan domain.Change
	// Close releases the subscription. No change is delivered on C after
	// Close returns.
	Close() error
}

// ChangePublisher accepts changes from a source such as Postgres NOTIFY.
type ChangePublisher interface {
	Publish(ctx context.Context, change domain.Change) error
}
