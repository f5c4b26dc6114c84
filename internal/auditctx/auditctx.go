// Package auditctx carries who is acting on a request from the HTTP layer
// into the services, so audit entries and logs can name the actor without
// every call taking extra parameters.
package auditctx

import (
	"context"

	"go.uber.org/zap"
)

// Actor describes the caller of a request. Anonymous requests carry an Actor
// with only the connection fields set.
type Actor struct {
	UserID    string
	Username  string
	SessionID string
	IPAddress string
	UserAgent string
	RequestID string
}

type actorKey struct{}

// WithActor stores actor in ctx. Fields left empty keep the value of an
// actor already stored, so the request id and connection details recorded
// early survive once authentication fills in the user.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if prev, ok := FromContext(ctx); ok {
		actor = prev.merge(actor)
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// Authenticated reports whether a user is attached.
func (a Actor) Authenticated() bool { return a.UserID != "" }

// LogFields renders the non-empty identity fields for zap.
func (a Actor) LogFields() []zap.Field {
	var fields []zap.Field
	for _, kv := range [][2]string{
		{"user_id", a.UserID},
		{"session_id", a.SessionID},
		{"request_id", a.RequestID},
		{"ip", a.IPAddress},
	} {
		if kv[1] != "" {
			fields = append(fields, zap.String(kv[0], kv[1]))
		}
	}
	return fields
}

func (a Actor) merge(next Actor) Actor {
	pick := func(newer, older string) string {
		if newer != "" {
			return newer
		}
		return older
	}
	return Actor{
		UserID:    pick(next.UserID, a.UserID),
		Username:  pick(next.Username, a.Username),
		SessionID: pick(next.SessionID, a.SessionID),
		IPAddress: pick(next.IPAddress, a.IPAddress),
		UserAgent: pick(next.UserAgent, a.UserAgent),
		RequestID: pick(next.RequestID, a.RequestID),
	}
}
