// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

type actorKey struct{}

type jobKey struct{}

// WithActor returns a context carrying the user id acting on the system
// (the CLI's --as flag). Services record it when no explicit user is given.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// Actor returns the acting user id from context, or "" if not set.
func Actor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}

// ActorOr returns explicit if non-empty, else the acting user from context.
func ActorOr(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return Actor(ctx)
}

// WithJobID returns a context tagged with the delayed job being executed.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobKey{}, jobID)
}

// JobID returns the delayed job id from context, or "" outside a job.
func JobID(ctx context.Context) string {
	if v, ok := ctx.Value(jobKey{}).(string); ok {
		return v
	}
	return ""
}
