package middleware

import (
	"context"

	"github.com/angelmondragon/settlement-engine/pkg/types"
)

type contextKey string

const ctxActor contextKey = "actor"

// ActorFromContext returns the authenticated caller seeded by Auth.
func ActorFromContext(ctx context.Context) (types.Actor, bool) {
	if ctx == nil {
		return types.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(types.Actor)
	return actor, ok
}

// WithActor injects the caller into the context for downstream handlers.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
