package shared

import "context"

// Actor identifies the authenticated principal for a request. Authentication
// itself lives outside this service; middleware injects the resolved actor.
type Actor struct {
	ID       int64
	TenantID int64
	Name     string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
