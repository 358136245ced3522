package ports

import (
	"context"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
)

// SignupInput carries the signup form.
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Surname  string
	// Function is the optional descriptive job title.
	Function *string
}

// SignupResult reports a completed signup. ProfileErr is set when the
// identity was created but its profile row could not be inserted; the
// account exists regardless.
type SignupResult struct {
	Identity   domain.Identity
	Profile    domain.Profile
	ProfileErr error
}

// ClientSession is one browser's auth session as the HTTP layer sees it.
type ClientSession interface {
	ID() string
	State() domain.AuthState
	Login(ctx context.Context, email, password string) (domain.AuthState, error)
	Signup(ctx context.Context, in SignupInput) (*SignupResult, error)
	Logout(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, recoveryToken, password, confirm string) error
	// TakeNavigation returns and clears the pending navigation target.
	TakeNavigation() (string, bool)
}

// SessionResumer finds the client session named by a cookie value. Only
// Open creates a session; cookieless callers get an Anonymous one.
type SessionResumer interface {
	// Resume returns domain.ErrNoSession when id names nothing live or
	// restorable.
	Resume(ctx context.Context, id string) (ClientSession, error)
	// Open creates and registers a fresh logged-out session.
	Open(ctx context.Context) (ClientSession, error)
	// Anonymous returns an unregistered logged-out session with an empty ID.
	Anonymous() ClientSession
}
