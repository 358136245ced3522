package ports

import (
	"context"
	"time"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
)

// TokenStore persists the access token of each client session so a
// session survives process restarts.
type TokenStore interface {
	Save(ctx context.Context, clientID, token string, ttl time.Duration) error
	// Load returns "" with a nil error when nothing is stored.
	Load(ctx context.Context, clientID string) (string, error)
	Delete(ctx context.Context, clientID string) error
}

// TokenRevocations records global sign-outs: every token of an identity
// issued at or before the mark is invalid.
type TokenRevocations interface {
	Revoke(ctx context.Context, identityID string, at time.Time) error
	RevokedAt(ctx context.Context, identityID string) (time.Time, bool, error)
}

// AuthEventBus carries auth events between backend instances.
type AuthEventBus interface {
	Publish(ctx context.Context, ev domain.AuthEvent) error
	Subscribe(handler AuthEventHandler) (unsubscribe func())
}

// Mailer delivers password recovery links.
type Mailer interface {
	SendRecovery(ctx context.Context, email, link string) error
}

// SessionEvent is an auth event addressed to one client session.
type SessionEvent struct {
	ClientID string
	Event    domain.AuthEvent
}

// SessionEventQueue delivers SessionEvents in order per client session.
type SessionEventQueue interface {
	Enqueue(ev SessionEvent)
}

// SessionEventHandler applies a SessionEvent to its client session.
type SessionEventHandler interface {
	DeliverToSession(ctx context.Context, ev SessionEvent) error
}
