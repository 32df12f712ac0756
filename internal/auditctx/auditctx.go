// Package auditctx carries the identity of the caller through service calls so
// audit entries can be attributed without threading it through every signature.
package auditctx

import "context"

// Actor describes who initiated a request.
type Actor struct {
	UserID    string
	Email     string
	IPAddress string
	UserAgent string
	RequestID string
}

// System is the actor recorded for scheduled jobs.
var System = Actor{Email: "system"}

type actorKey struct{}

// WithActor returns a context carrying actor. A nil ctx is treated as Background.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// FromContext returns the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
