package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type actorKey struct{}

// Actor is the authenticated caller resolved by the auth middleware.
type Actor struct {
	UserID uuid.UUID
}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func GetActor(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	if a, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return a
	}
	return nil
}

// ActorID returns uuid.Nil when the context carries no actor.
func ActorID(ctx context.Context) uuid.UUID {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return uuid.Nil
}
