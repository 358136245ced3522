package ports

import (
	"context"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
)

// AuthEventHandler receives identity-changed notifications.
type AuthEventHandler func(ev domain.AuthEvent)

// AuthBackend is the credential-exchange surface consumed by the session
// store. Every call returns either a payload or an error whose message is
// safe to show to the user.
type AuthBackend interface {
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Identity, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*domain.Identity, error)
	SignOut(ctx context.Context, accessToken string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, accessToken, password string) error
	// GetSession validates accessToken and returns its identity, or
	// domain.ErrNoSession when the token is expired, revoked or malformed.
	GetSession(ctx context.Context, accessToken string) (*domain.Identity, error)
	OnAuthStateChange(handler AuthEventHandler) (unsubscribe func())
}
