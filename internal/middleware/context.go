package middleware

import (
	"context"

	"github.com/Rdemo143/RenTO/internal/domain"
)

type ctxKey int

const identityKey ctxKey = iota

func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}

// UserID returns the authenticated caller, or "" outside the auth group.
func UserID(ctx context.Context) string {
	id, _ := IdentityFrom(ctx)
	return id.UserID
}
