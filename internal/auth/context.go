package auth

import (
	"context"

	"sanitrack/internal/models"
)

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying the verified caller.
func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by WithIdentity, if any.
func IdentityFrom(ctx context.Context) (*models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*models.Identity)
	return id, ok && id != nil
}
