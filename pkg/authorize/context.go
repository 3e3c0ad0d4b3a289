package authorize

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

var (
	ErrNoSubjectInContext = errors.New("no subject found in context")
	ErrNoActorInContext   = errors.New("no actor found in context")
)

type ctxKeyActor struct{}

// WithActor stores the resolved actor in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor{}, a)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, error) {
	a, ok := ctx.Value(ctxKeyActor{}).(Actor)
	if !ok || !a.Role.Valid() {
		return Actor{}, ErrNoActorInContext
	}
	return a, nil
}

// UserIDFromContext returns the user behind the request's token claims.
func UserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	claims := reqctx.ClaimsFromContext(ctx)
	if claims == nil {
		return uuid.Nil, ErrNoSubjectInContext
	}
	userID := claims.GetUserID()
	if userID == uuid.Nil {
		return uuid.Nil, ErrNoSubjectInContext
	}
	return userID, nil
}
