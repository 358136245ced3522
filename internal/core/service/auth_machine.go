package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

const defaultResolveTimeout = 10 * time.Second

// IdentitySource is the session-store surface the auth machine composes.
type IdentitySource interface {
	Start(ctx context.Context) (*domain.Identity, error)
	CurrentIdentity() *domain.Identity
	Subscribe(fn IdentityListener) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) (*domain.Identity, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*domain.Identity, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, token, password string) error
}

// StateListener observes every state the machine commits, in order.
// Listeners run synchronously and must not call Login, Signup, Logout or
// any other state-changing method.
type StateListener func(state domain.AuthState)

// MachineOptions configures an AuthMachine.
type MachineOptions struct {
	// ResetRedirectURL is where recovery links point.
	ResetRedirectURL string
	// ResolveTimeout bounds a single profile resolution.
	ResolveTimeout time.Duration
	// OnStale, when set, is called for every discarded resolution.
	OnStale func()
}

// AuthMachine composes the session store and the profile resolver into a
// single LoggedOut / Resolving / Pending / Authenticated state.
//
// Every resolution is tagged with a generation. A resolution that completes
// after a newer identity change, or for an identity that is no longer the
// tracked one, is discarded.
type AuthMachine struct {
	source   IdentitySource
	resolver ports.ProfileResolver
	profiles ports.ProfileRepository
	opts     MachineOptions
	log      zerolog.Logger

	mu           sync.Mutex
	state        domain.AuthState
	gen          uint64
	tracked      string
	listeners    map[uint64]StateListener
	nextListener uint64
	unsubscribe  func()
	baseCtx      context.Context
	cancel       context.CancelFunc

	// emitMu keeps listener notifications in commit order.
	emitMu sync.Mutex
}

func NewAuthMachine(source IdentitySource, resolver ports.ProfileResolver, profiles ports.ProfileRepository, opts MachineOptions, log zerolog.Logger) *AuthMachine {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaultResolveTimeout
	}
	return &AuthMachine{
		source:    source,
		resolver:  resolver,
		profiles:  profiles,
		opts:      opts,
		log:       log.With().Str("component", "auth_machine").Logger(),
		state:     domain.LoggedOut(),
		listeners: make(map[uint64]StateListener),
	}
}

// Start subscribes to identity changes, then performs the initial fetch of
// a persisted identity and resolves it. Subscribing first means a change
// that lands during the fetch is seen by either the fetch or the listener.
// When the listener has already committed a newer state by the time the
// fetch returns, the fetched identity is not resolved over it.
func (m *AuthMachine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.mu.Unlock()
		return nil
	}
	m.baseCtx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.unsubscribe = m.source.Subscribe(m.onIdentityChanged)
	startGen := m.gen
	m.mu.Unlock()

	identity, err := m.source.Start(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("initial session fetch failed")
		m.reset()
		return err
	}
	if identity == nil {
		return nil
	}
	_, err = m.resolveIf(ctx, identity, func() bool { return m.gen == startGen })
	return err
}

// Close detaches the machine from its session store.
func (m *AuthMachine) Close() {
	m.mu.Lock()
	unsubscribe, cancel := m.unsubscribe, m.cancel
	m.unsubscribe, m.cancel = nil, nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
}

// State returns the current state.
func (m *AuthMachine) State() domain.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every subsequent state change.
func (m *AuthMachine) Subscribe(fn StateListener) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Login authenticates and resolves the profile exactly once. A rejected
// login returns ErrInvalidCredentials and leaves the state unchanged; a
// failed resolution ends in LoggedOut.
func (m *AuthMachine) Login(ctx context.Context, email, password string) (domain.AuthState, error) {
	identity, err := m.source.SignIn(ctx, email, password)
	if err != nil {
		m.log.Info().Err(err).Msg("login rejected")
		return m.State(), err
	}
	return m.resolve(ctx, identity)
}

// Signup creates the identity and inserts its pending profile. The profile
// insert is best effort: when it fails the identity still exists, the call
// still succeeds, and the failure is reported in SignupResult.ProfileErr.
func (m *AuthMachine) Signup(ctx context.Context, in ports.SignupInput) (*ports.SignupResult, error) {
	if len(in.Password) < domain.MinPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	metadata := map[string]string{
		"name":    strings.TrimSpace(in.Name),
		"surname": strings.TrimSpace(in.Surname),
	}
	if in.Function != nil {
		metadata["function"] = *in.Function
	}

	identity, err := m.source.SignUp(ctx, in.Email, in.Password, metadata)
	if err != nil {
		return nil, err
	}

	profile := domain.NewPendingProfile(*identity, in.Name, in.Surname, in.Function)
	profileErr := m.profiles.Insert(ctx, profile)
	if profileErr != nil {
		m.log.Error().Err(profileErr).Str("identity_id", identity.ID).
			Msg("profile insert failed after signup; identity exists without profile")
	}

	m.commit(domain.SessionState(domain.Session{Identity: *identity, Profile: *profile}), func() bool {
		m.gen++
		m.tracked = identity.ID
		return true
	})

	return &ports.SignupResult{Identity: *identity, Profile: *profile, ProfileErr: profileErr}, nil
}

// ResetPassword asks the backend to send a recovery link. The outcome does
// not depend on whether the email is registered.
func (m *AuthMachine) ResetPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return domain.ErrInvalidEmail
	}
	return m.source.ResetPassword(ctx, email, m.opts.ResetRedirectURL)
}

// UpdatePassword sets a new password with a recovery token, or with the
// current session when recoveryToken is empty.
func (m *AuthMachine) UpdatePassword(ctx context.Context, recoveryToken, password, confirm string) error {
	if len(password) < domain.MinPasswordLength {
		return domain.ErrWeakPassword
	}
	if password != confirm {
		return domain.ErrPasswordMismatch
	}
	return m.source.UpdatePassword(ctx, recoveryToken, password)
}

// Logout clears the local session unconditionally. A backend sign-out
// failure is returned wrapped in ErrLogoutFailed after the state is
// already LoggedOut.
func (m *AuthMachine) Logout(ctx context.Context) error {
	err := m.source.SignOut(ctx)
	m.reset()
	if err != nil && !errors.Is(err, domain.ErrNoSession) {
		m.log.Warn().Err(err).Msg("backend sign-out failed; local session cleared")
		return fmt.Errorf("%w: %w", domain.ErrLogoutFailed, err)
	}
	return nil
}

func (m *AuthMachine) onIdentityChanged(identity *domain.Identity) {
	if identity == nil {
		m.reset()
		return
	}

	m.mu.Lock()
	ctx := m.baseCtx
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	_, _ = m.resolve(ctx, identity)
}

func (m *AuthMachine) resolve(ctx context.Context, identity *domain.Identity) (domain.AuthState, error) {
	return m.resolveIf(ctx, identity, nil)
}

// resolveIf starts a resolution only when guard, run under the lock,
// holds. A skipped resolution leaves the state untouched.
func (m *AuthMachine) resolveIf(ctx context.Context, identity *domain.Identity, guard func() bool) (domain.AuthState, error) {
	var gen uint64
	started := m.commit(domain.Resolving(identity.ID), func() bool {
		if guard != nil && !guard() {
			return false
		}
		m.gen++
		gen = m.gen
		m.tracked = identity.ID
		return true
	})
	if !started {
		m.log.Debug().Str("identity_id", identity.ID).Msg("identity superseded before resolution")
		return m.State(), nil
	}

	rctx, cancel := context.WithTimeout(ctx, m.opts.ResolveTimeout)
	profile, err := m.resolver.Resolve(rctx, *identity)
	cancel()

	next := domain.NextState(identity, profile, err)
	applied := m.commit(next, func() bool {
		return gen == m.gen && m.tracked == identity.ID
	})
	if !applied {
		m.log.Debug().Str("identity_id", identity.ID).Msg("discarding stale profile resolution")
		if m.opts.OnStale != nil {
			m.opts.OnStale()
		}
		return m.State(), nil
	}

	if err != nil {
		m.log.Error().Err(err).Str("identity_id", identity.ID).Msg("profile resolution failed; session forced to logged out")
		return next, err
	}
	m.log.Info().Str("identity_id", identity.ID).Str("state", next.String()).Msg("session resolved")
	return next, nil
}

func (m *AuthMachine) reset() {
	m.commit(domain.LoggedOut(), func() bool {
		m.gen++
		m.tracked = ""
		return true
	})
}

// commit sets the state when precondition (run under the lock) holds, and
// notifies listeners in commit order. emitMu is always taken before mu, so
// a listener may call State without deadlocking against a concurrent
// commit.
func (m *AuthMachine) commit(next domain.AuthState, precondition func() bool) bool {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if precondition != nil && !precondition() {
		m.mu.Unlock()
		return false
	}
	m.state = next
	listeners := make([]StateListener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return true
}
