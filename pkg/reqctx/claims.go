package reqctx

import (
	"context"

	"github.com/google/uuid"
)

// AuthClaims is the slice of a verified token that the booking core reads.
// pasetotoken.Claims satisfies it.
type AuthClaims interface {
	GetUserID() uuid.UUID
}

// WithClaims attaches verified token claims. AuthRequired is the only writer.
func WithClaims(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, keyClaims, claims)
}

// ClaimsFromContext returns the claims of an authenticated request, or nil.
func ClaimsFromContext(ctx context.Context) AuthClaims {
	claims, _ := ctx.Value(keyClaims).(AuthClaims)
	return claims
}
