package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/guard"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

const defaultIdleTTL = 30 * time.Minute

// ClientSession is one browser's view of the auth system: its session
// store, the state machine over it, and the navigation effects it emits.
type ClientSession struct {
	id        string
	Store     *SessionStore
	Machine   *AuthMachine
	Navigator *guard.Navigator

	lastSeen atomic.Int64
	// ready is closed once the initial restore has finished.
	ready chan struct{}
}

var _ ports.ClientSession = (*ClientSession)(nil)

func (c *ClientSession) ID() string { return c.id }

func (c *ClientSession) State() domain.AuthState { return c.Machine.State() }

func (c *ClientSession) Login(ctx context.Context, email, password string) (domain.AuthState, error) {
	return c.Machine.Login(ctx, email, password)
}

func (c *ClientSession) Signup(ctx context.Context, in ports.SignupInput) (*ports.SignupResult, error) {
	return c.Machine.Signup(ctx, in)
}

func (c *ClientSession) Logout(ctx context.Context) error { return c.Machine.Logout(ctx) }

func (c *ClientSession) ResetPassword(ctx context.Context, email string) error {
	return c.Machine.ResetPassword(ctx, email)
}

func (c *ClientSession) UpdatePassword(ctx context.Context, recoveryToken, password, confirm string) error {
	return c.Machine.UpdatePassword(ctx, recoveryToken, password, confirm)
}

func (c *ClientSession) TakeNavigation() (string, bool) { return c.Navigator.Take() }

// Touch marks the session as used at now.
func (c *ClientSession) Touch(now time.Time) {
	c.lastSeen.Store(now.UnixNano())
}

// LastSeen is the time of the last Touch.
func (c *ClientSession) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load()).UTC()
}

func (c *ClientSession) close() {
	c.Machine.Close()
}

func (c *ClientSession) restoring() bool {
	select {
	case <-c.ready:
		return false
	default:
		return true
	}
}

// wait blocks until the initial restore has finished.
func (c *ClientSession) wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Machine MachineOptions
	// IdleTTL evicts sessions unused for longer. The persisted token
	// survives eviction, so the next request restores the session.
	IdleTTL time.Duration
}

// Registry owns every live client session of this process and routes
// backend auth events to the sessions they concern.
type Registry struct {
	backend  ports.AuthBackend
	tokens   ports.TokenStore
	resolver ports.ProfileResolver
	profiles ports.ProfileRepository
	opts     RegistryOptions
	now      func() time.Time
	log      zerolog.Logger

	mu          sync.RWMutex
	sessions    map[string]*ClientSession
	queue       ports.SessionEventQueue
	unsubscribe func()
}

var (
	_ ports.SessionEventHandler = (*Registry)(nil)
	_ ports.SessionResumer      = (*Registry)(nil)
)

func NewRegistry(
	backend ports.AuthBackend,
	tokens ports.TokenStore,
	resolver ports.ProfileResolver,
	profiles ports.ProfileRepository,
	opts RegistryOptions,
	log zerolog.Logger,
) *Registry {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	return &Registry{
		backend:  backend,
		tokens:   tokens,
		resolver: resolver,
		profiles: profiles,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "registry").Logger(),
		sessions: make(map[string]*ClientSession),
	}
}

// Start subscribes to backend auth events and fans them out through queue,
// which must deliver them back to DeliverToSession in per-client order.
func (r *Registry) Start(queue ports.SessionEventQueue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsubscribe != nil {
		return
	}
	r.queue = queue
	r.unsubscribe = r.backend.OnAuthStateChange(r.HandleAuthEvent)
}

// Create opens a fresh, logged-out client session.
func (r *Registry) Create(ctx context.Context) (*ClientSession, error) {
	return r.open(ctx, uuid.NewString())
}

// Open is Create behind the ports.SessionResumer surface. Only login and
// signup call it, so anonymous traffic never grows the registry.
func (r *Registry) Open(ctx context.Context) (ports.ClientSession, error) {
	return r.Create(ctx)
}

// Anonymous returns a detached, logged-out session with an empty id. It is
// neither stored nor started and persists nothing.
func (r *Registry) Anonymous() ports.ClientSession {
	cs := r.newClientSession("")
	close(cs.ready)
	return cs
}

// Get returns a live session without touching storage. The session may
// still be restoring.
func (r *Registry) Get(id string) (*ClientSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cs, ok := r.sessions[id]
	return cs, ok
}

// Load returns the live session id, or restores it from its persisted
// token. ErrNoSession means there is nothing to restore.
func (r *Registry) Load(ctx context.Context, id string) (*ClientSession, error) {
	if cs, ok := r.Get(id); ok {
		return r.await(ctx, cs)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNoSession
	}

	token, err := r.tokens.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, domain.ErrNoSession
	}
	return r.open(ctx, id)
}

// Resume loads the session id. It never creates one: ErrNoSession means
// the caller is anonymous.
func (r *Registry) Resume(ctx context.Context, id string) (ports.ClientSession, error) {
	if id == "" {
		return nil, domain.ErrNoSession
	}
	cs, err := r.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

// Count is the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// HandleAuthEvent queues ev for every session tracking its identity, and
// for every session still restoring, whose identity is not known yet.
func (r *Registry) HandleAuthEvent(ev domain.AuthEvent) {
	r.mu.RLock()
	queue := r.queue
	var targets []string
	for id, cs := range r.sessions {
		if cs.restoring() {
			targets = append(targets, id)
			continue
		}
		if cur := cs.Store.CurrentIdentity(); cur != nil && cur.ID == ev.IdentityID {
			targets = append(targets, id)
		}
	}
	r.mu.RUnlock()

	if queue == nil {
		return
	}
	for _, id := range targets {
		queue.Enqueue(ports.SessionEvent{ClientID: id, Event: ev})
	}
}

// DeliverToSession applies a queued event to its session, if still live.
func (r *Registry) DeliverToSession(ctx context.Context, ev ports.SessionEvent) error {
	cs, ok := r.Get(ev.ClientID)
	if !ok {
		return nil
	}
	return cs.Store.HandleEvent(ctx, ev.Event)
}

// Sweep evicts idle sessions and expires sessions whose token lapsed. It
// returns the number of evicted sessions.
func (r *Registry) Sweep(ctx context.Context) int {
	now := r.now()
	cutoff := now.Add(-r.opts.IdleTTL)

	var evicted []*ClientSession
	var expired []domain.AuthEvent
	var expiredIDs []string

	r.mu.Lock()
	for id, cs := range r.sessions {
		if cs.LastSeen().Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, cs)
			continue
		}
		if cur := cs.Store.CurrentIdentity(); cur != nil && cur.Expired(now) {
			expiredIDs = append(expiredIDs, id)
			expired = append(expired, domain.AuthEvent{
				Type:       domain.EventSessionExpired,
				IdentityID: cur.ID,
				At:         now,
			})
		}
	}
	queue := r.queue
	r.mu.Unlock()

	for _, cs := range evicted {
		cs.close()
	}
	for i, ev := range expired {
		se := ports.SessionEvent{ClientID: expiredIDs[i], Event: ev}
		if queue != nil {
			queue.Enqueue(se)
			continue
		}
		if err := r.DeliverToSession(ctx, se); err != nil {
			r.log.Warn().Err(err).Str("client_id", se.ClientID).Msg("session expiry failed")
		}
	}

	if len(evicted) > 0 || len(expired) > 0 {
		r.log.Debug().Int("evicted", len(evicted)).Int("expired", len(expired)).Msg("session sweep")
	}
	return len(evicted)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Close unsubscribes from the backend and closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	sessions := r.sessions
	r.sessions = make(map[string]*ClientSession)
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, cs := range sessions {
		cs.close()
	}
}

// open registers the session before restoring it, so events published
// while the persisted token is being checked reach its store. Concurrent
// opens of one id share the first session.
func (r *Registry) open(ctx context.Context, id string) (*ClientSession, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return r.await(ctx, existing)
	}
	cs := r.newClientSession(id)
	r.sessions[id] = cs
	r.mu.Unlock()

	if err := cs.Machine.Start(ctx); err != nil {
		// The machine is already LoggedOut; the session stays usable.
		r.log.Warn().Err(err).Str("client_id", id).Msg("session restore failed")
	}
	// A restored session lands where it belongs without a redirect.
	cs.Navigator.Take()
	close(cs.ready)

	r.log.Debug().Str("client_id", id).Str("state", cs.Machine.State().String()).Msg("client session opened")
	return cs, nil
}

func (r *Registry) await(ctx context.Context, cs *ClientSession) (*ClientSession, error) {
	if err := cs.wait(ctx); err != nil {
		return nil, err
	}
	cs.Touch(r.now())
	return cs, nil
}

func (r *Registry) newClientSession(id string) *ClientSession {
	log := r.log.With().Str("client_id", id).Logger()
	store := NewSessionStore(id, r.backend, r.tokens, log)
	cs := &ClientSession{
		id:        id,
		Store:     store,
		Machine:   NewAuthMachine(store, r.resolver, r.profiles, r.opts.Machine, log),
		Navigator: guard.NewNavigator(),
		ready:     make(chan struct{}),
	}
	cs.Machine.Subscribe(cs.Navigator.Observe)
	cs.Touch(r.now())
	return cs
}
