package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

// IdentityListener is notified when the tracked identity changes for a
// reason the store's caller did not initiate. nil means signed out.
type IdentityListener func(identity *domain.Identity)

// SessionStore holds the identity of one client session. It persists the
// access token through a TokenStore and delegates credential exchange to
// the auth backend. It never interprets roles.
type SessionStore struct {
	clientID string
	backend  ports.AuthBackend
	tokens   ports.TokenStore
	now      func() time.Time
	log      zerolog.Logger

	mu       sync.Mutex
	identity *domain.Identity
	subs     map[uint64]IdentityListener
	nextSub  uint64
	starting bool
	started  bool
	// missed is set when an event arrives while the initial fetch is in
	// flight; Start then fetches again before declaring readiness.
	missed bool
}

func NewSessionStore(clientID string, backend ports.AuthBackend, tokens ports.TokenStore, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		clientID: clientID,
		backend:  backend,
		tokens:   tokens,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "session_store").Str("client_id", clientID).Logger(),
		subs:     make(map[uint64]IdentityListener),
	}
}

// ClientID is the id of the client session this store belongs to. An
// empty id marks a detached store that persists nothing.
func (s *SessionStore) ClientID() string { return s.clientID }

// Start restores any persisted identity. Events delivered while the fetch
// is in flight are not dropped: they trigger another fetch before Start
// returns, so the returned identity reflects every transition seen so far.
func (s *SessionStore) Start(ctx context.Context) (*domain.Identity, error) {
	s.mu.Lock()
	if s.started || s.starting {
		cur := cloneIdentity(s.identity)
		s.mu.Unlock()
		return cur, nil
	}
	s.starting = true
	s.mu.Unlock()

	for {
		identity, err := s.fetch(ctx)

		s.mu.Lock()
		if s.missed && err == nil {
			s.missed = false
			s.mu.Unlock()
			continue
		}
		s.identity = identity
		s.starting, s.started, s.missed = false, true, false
		s.mu.Unlock()

		if err != nil {
			return nil, err
		}
		return cloneIdentity(identity), nil
	}
}

// CurrentIdentity returns a copy of the tracked identity, or nil.
func (s *SessionStore) CurrentIdentity() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneIdentity(s.identity)
}

// Subscribe registers fn for externally originated identity changes.
func (s *SessionStore) Subscribe(fn IdentityListener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// SignIn exchanges credentials and tracks the resulting identity.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	identity, err := s.backend.SignInWithPassword(domain.WithOrigin(ctx, s.clientID), email, password)
	if err != nil {
		return nil, err
	}
	s.track(ctx, identity)
	return cloneIdentity(identity), nil
}

// SignUp creates an identity and tracks it.
func (s *SessionStore) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*domain.Identity, error) {
	identity, err := s.backend.SignUp(domain.WithOrigin(ctx, s.clientID), email, password, metadata)
	if err != nil {
		return nil, err
	}
	s.track(ctx, identity)
	return cloneIdentity(identity), nil
}

// SignOut forgets the identity locally, then asks the backend to revoke
// it. The local part always happens; the backend error is returned.
func (s *SessionStore) SignOut(ctx context.Context) error {
	s.mu.Lock()
	var token string
	if s.identity != nil {
		token = s.identity.AccessToken
	}
	s.identity = nil
	s.mu.Unlock()

	s.forget(ctx)
	if token == "" {
		return nil
	}
	return s.backend.SignOut(domain.WithOrigin(ctx, s.clientID), token)
}

// ResetPassword requests a recovery email.
func (s *SessionStore) ResetPassword(ctx context.Context, email, redirectTo string) error {
	return s.backend.ResetPasswordForEmail(domain.WithOrigin(ctx, s.clientID), email, redirectTo)
}

// UpdatePassword changes the password using token, or the tracked
// identity's token when token is empty.
func (s *SessionStore) UpdatePassword(ctx context.Context, token, password string) error {
	if token == "" {
		if cur := s.CurrentIdentity(); cur != nil {
			token = cur.AccessToken
		}
	}
	if token == "" {
		return domain.ErrNoSession
	}
	return s.backend.UpdateUser(domain.WithOrigin(ctx, s.clientID), token, password)
}

// HandleEvent re-validates the tracked identity after a backend event
// about it and notifies subscribers with the outcome.
func (s *SessionStore) HandleEvent(ctx context.Context, ev domain.AuthEvent) error {
	switch ev.Type {
	case domain.EventSignedIn, domain.EventPasswordRecovery:
		// Another login or a recovery mail leaves this session as it is.
		return nil
	}

	s.mu.Lock()
	if !s.started {
		if s.starting {
			s.missed = true
		}
		s.mu.Unlock()
		return nil
	}
	cur := s.identity
	s.mu.Unlock()

	if ev.Origin != "" && ev.Origin == s.clientID {
		return nil
	}
	if cur == nil || cur.ID != ev.IdentityID {
		return nil
	}

	next, err := s.revalidate(ctx, cur, ev)
	if err != nil {
		// Transport failure: keep the identity but let subscribers
		// re-run their resolution against it.
		s.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("session revalidation failed")
		next = cur
	}

	s.mu.Lock()
	if s.identity != cur {
		// A local sign-in or sign-out happened meanwhile and wins.
		s.mu.Unlock()
		return nil
	}
	s.identity = next
	s.mu.Unlock()

	s.log.Debug().Str("event", string(ev.Type)).Bool("signed_in", next != nil).Msg("identity changed")
	s.notify(next)
	return nil
}

func (s *SessionStore) revalidate(ctx context.Context, cur *domain.Identity, ev domain.AuthEvent) (*domain.Identity, error) {
	if ev.Type == domain.EventSessionExpired && cur.Expired(s.now()) {
		s.forget(ctx)
		return nil, nil
	}

	identity, err := s.backend.GetSession(ctx, cur.AccessToken)
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			s.forget(ctx)
			return nil, nil
		}
		return nil, err
	}
	return identity, nil
}

func (s *SessionStore) fetch(ctx context.Context) (*domain.Identity, error) {
	token, err := s.tokens.Load(ctx, s.clientID)
	if err != nil {
		return nil, fmt.Errorf("load token: %w: %w", domain.ErrBackendUnavailable, err)
	}
	if token == "" {
		return nil, nil
	}

	identity, err := s.backend.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			s.forget(ctx)
			return nil, nil
		}
		return nil, err
	}
	return identity, nil
}

func (s *SessionStore) track(ctx context.Context, identity *domain.Identity) {
	if s.clientID != "" {
		ttl := identity.ExpiresAt.Sub(s.now())
		if err := s.tokens.Save(ctx, s.clientID, identity.AccessToken, ttl); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist token")
		}
	}

	s.mu.Lock()
	s.identity = cloneIdentity(identity)
	if s.starting {
		s.missed = true
	} else {
		s.started = true
	}
	s.mu.Unlock()
}

func (s *SessionStore) forget(ctx context.Context) {
	if s.clientID == "" {
		return
	}
	if err := s.tokens.Delete(ctx, s.clientID); err != nil {
		s.log.Warn().Err(err).Msg("failed to delete persisted token")
	}
}

func (s *SessionStore) notify(identity *domain.Identity) {
	s.mu.Lock()
	subs := make([]IdentityListener, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(cloneIdentity(identity))
	}
}

func cloneIdentity(i *domain.Identity) *domain.Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}
