package identity

import (
	"context"

	"github.com/burnspe2144/env-reporting-backend/internal/domain"
)

type ctxKey struct{}

// WithIdentity attaches the verified caller to ctx.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller attached by WithIdentity.
func FromContext(ctx context.Context) (*domain.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*domain.Identity)
	return id, ok && id != nil
}
