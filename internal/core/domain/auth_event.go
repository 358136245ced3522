package domain

import (
	"context"
	"time"
)

// AuthEventType names a change published by the auth backend.
type AuthEventType string

const (
	EventSignedIn         AuthEventType = "SIGNED_IN"
	EventSignedOut        AuthEventType = "SIGNED_OUT"
	EventUserUpdated      AuthEventType = "USER_UPDATED"
	EventPasswordRecovery AuthEventType = "PASSWORD_RECOVERY"
	EventSessionExpired   AuthEventType = "SESSION_EXPIRED"
)

// OriginAdmin tags events raised by operator tooling.
const OriginAdmin = "admin"

// AuthEvent notifies that the identity IdentityID changed. Origin is the
// client session (or OriginAdmin) whose action produced it.
type AuthEvent struct {
	Type       AuthEventType `json:"type"`
	IdentityID string        `json:"identity_id"`
	Origin     string        `json:"origin,omitempty"`
	At         time.Time     `json:"at"`
}

type originKey struct{}

// WithOrigin tags ctx with the client session performing a backend call.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the origin set by WithOrigin, or "".
func OriginFrom(ctx context.Context) string {
	s, _ := ctx.Value(originKey{}).(string)
	return s
}
