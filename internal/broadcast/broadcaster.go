// Package broadcast delivers layer change events to subscribers once a
// mutation has been committed.
package broadcast

import (
	"context"
	"errors"

	"github.com/burnspe2144/env-reporting-backend/internal/domain"
)

// Broadcaster publishes one change event. Implementations must not block
// for long: callers publish on the request path.
type Broadcaster interface {
	Publish(ctx context.Context, event domain.LayerEvent) error
}

// Multi fans an event out to every broadcaster and joins their errors.
type Multi []Broadcaster

func (m Multi) Publish(ctx context.Context, event domain.LayerEvent) error {
	var errs []error
	for _, b := range m {
		if b == nil {
			continue
		}
		if err := b.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, domain.LayerEvent) error { return nil }
