package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/guard"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

// syncQueue delivers session events inline.
type syncQueue struct {
	handler ports.SessionEventHandler
}

func (q syncQueue) Enqueue(ev ports.SessionEvent) {
	_ = q.handler.DeliverToSession(context.Background(), ev)
}

type registryFixture struct {
	*identityFixture
	tokens   *memTokens
	profiles *memProfiles
	reg      *Registry
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	f := &registryFixture{
		identityFixture: newIdentityFixture(t),
		tokens:          newMemTokens(),
		profiles:        newMemProfiles(),
	}
	f.reg = f.newRegistry()
	t.Cleanup(f.reg.Close)
	return f
}

// resolverFunc adapts a function to ports.ProfileResolver.
type resolverFunc func(ctx context.Context, identity domain.Identity) (*domain.Profile, error)

func (f resolverFunc) Resolve(ctx context.Context, identity domain.Identity) (*domain.Profile, error) {
	return f(ctx, identity)
}

func (f *registryFixture) newRegistry() *Registry {
	return f.newRegistryWith(NewProfileResolver(f.profiles, zerolog.Nop()))
}

func (f *registryFixture) newRegistryWith(resolver ports.ProfileResolver) *Registry {
	reg := NewRegistry(f.svc, f.tokens, resolver, f.profiles, RegistryOptions{
		Machine: MachineOptions{ResolveTimeout: time.Second},
		IdleTTL: time.Hour,
	}, zerolog.Nop())
	reg.Start(syncQueue{handler: reg})
	return reg
}

func (f *registryFixture) account(t *testing.T, email string, role domain.Role) {
	t.Helper()
	identity, err := f.svc.SignUp(context.Background(), email, "pass123", nil)
	require.NoError(t, err)
	require.NoError(t, f.profiles.Insert(context.Background(), &domain.Profile{ID: identity.ID, Role: role, Email: email}))
}

func TestRegistry_LoginScenarios(t *testing.T) {
	f := newRegistryFixture(t)
	f.account(t, "vendas@x.com", domain.RoleSales)
	f.account(t, "new@x.com", domain.RolePending)
	ctx := context.Background()

	seller, err := f.reg.Create(ctx)
	require.NoError(t, err)
	state, err := seller.Machine.Login(ctx, "vendas@x.com", "pass123")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAuthenticated, state.Kind)
	assert.Equal(t, domain.RoleSales, state.Role())
	assert.Equal(t, guard.Admit, guard.Decide(state, guard.Route{Path: "/vendas", Module: domain.RoleSales}).Action)
	assert.Equal(t, guard.Decision{Action: guard.Redirect, Target: "/vendas"},
		guard.Decide(state, guard.Route{Path: "/rh", Module: domain.RoleHR}))
	target, ok := seller.Navigator.Take()
	assert.True(t, ok)
	assert.Equal(t, "/vendas", target)

	newcomer, err := f.reg.Create(ctx)
	require.NoError(t, err)
	state, err = newcomer.Machine.Login(ctx, "new@x.com", "pass123")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePending, state.Kind)
	assert.Equal(t, guard.Decision{Action: guard.Redirect, Target: guard.PathPending},
		guard.Decide(state, guard.Route{Path: "/rh", Module: domain.RoleHR}))

	assert.Equal(t, 2, f.reg.Count())
}

func TestRegistry_SignOutElsewhereLogsOutEverySession(t *testing.T) {
	f := newRegistryFixture(t)
	f.account(t, "vendas@x.com", domain.RoleSales)
	ctx := context.Background()

	browser, err := f.reg.Create(ctx)
	require.NoError(t, err)
	phone, err := f.reg.Create(ctx)
	require.NoError(t, err)
	_, err = browser.Machine.Login(ctx, "vendas@x.com", "pass123")
	require.NoError(t, err)
	_, err = phone.Machine.Login(ctx, "vendas@x.com", "pass123")
	require.NoError(t, err)
	browser.Navigator.Take()

	require.NoError(t, phone.Machine.Logout(ctx))

	assert.Equal(t, domain.StateLoggedOut, browser.Machine.State().Kind)
	target, ok := browser.Navigator.Take()
	assert.True(t, ok)
	assert.Equal(t, guard.PathLogin, target)
}

func TestRegistry_AdminApprovalReResolves(t *testing.T) {
	f := newRegistryFixture(t)
	f.account(t, "new@x.com", domain.RolePending)
	ctx := context.Background()

	cs, err := f.reg.Create(ctx)
	require.NoError(t, err)
	state, err := cs.Machine.Login(ctx, "new@x.com", "pass123")
	require.NoError(t, err)
	require.Equal(t, domain.StatePending, state.Kind)
	identity := cs.Store.CurrentIdentity()

	require.NoError(t, f.profiles.UpdateRole(ctx, identity.ID, domain.RoleReception))
	f.reg.HandleAuthEvent(domain.AuthEvent{Type: domain.EventUserUpdated, IdentityID: identity.ID, Origin: domain.OriginAdmin})

	assert.Equal(t, domain.StateAuthenticated, cs.Machine.State().Kind)
	assert.Equal(t, domain.RoleReception, cs.Machine.State().Role())
}

func TestRegistry_LoadRestoresAfterRestart(t *testing.T) {
	f := newRegistryFixture(t)
	f.account(t, "rh@x.com", domain.RoleHR)
	ctx := context.Background()

	cs, err := f.reg.Create(ctx)
	require.NoError(t, err)
	_, err = cs.Machine.Login(ctx, "rh@x.com", "pass123")
	require.NoError(t, err)

	restarted := f.newRegistry()
	defer restarted.Close()
	restored, err := restarted.Load(ctx, cs.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHR, restored.Machine.State().Role())
	_, pending := restored.Navigator.Take()
	assert.False(t, pending)

	again, err := restarted.Load(ctx, cs.ID())
	require.NoError(t, err)
	assert.Same(t, restored, again)
}

func TestRegistry_SignOutElsewhereDuringRestore(t *testing.T) {
	f := newRegistryFixture(t)
	f.account(t, "rh@x.com", domain.RoleHR)
	ctx := context.Background()

	cs, err := f.reg.Create(ctx)
	require.NoError(t, err)
	_, err = cs.Machine.Login(ctx, "rh@x.com", "pass123")
	require.NoError(t, err)
	token := cs.Store.CurrentIdentity().AccessToken

	base := NewProfileResolver(f.profiles, zerolog.Nop())
	var once sync.Once
	restarted := f.newRegistryWith(resolverFunc(func(ctx context.Context, identity domain.Identity) (*domain.Profile, error) {
		once.Do(func() { require.NoError(t, f.svc.SignOut(ctx, token)) })
		return base.Resolve(ctx, identity)
	}))
	defer restarted.Close()

	restored, err := restarted.Load(ctx, cs.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StateLoggedOut, restored.Machine.State().Kind)
	assert.Nil(t, restored.Store.CurrentIdentity())
	token, err = f.tokens.Load(ctx, cs.ID())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestRegistry_EventsReachRestoringSessions(t *testing.T) {
	f := newRegistryFixture(t)
	id := "8f14e45f-ceea-467f-a8f2-2d7c1e3a9b10"
	cs := f.reg.newClientSession(id)
	f.reg.mu.Lock()
	f.reg.sessions[id] = cs
	f.reg.mu.Unlock()

	var got []ports.SessionEvent
	f.reg.queue = queueFunc(func(ev ports.SessionEvent) { got = append(got, ev) })
	f.reg.HandleAuthEvent(domain.AuthEvent{Type: domain.EventSignedOut, IdentityID: "someone"})
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ClientID)

	close(cs.ready)
	got = nil
	f.reg.HandleAuthEvent(domain.AuthEvent{Type: domain.EventSignedOut, IdentityID: "someone"})
	assert.Empty(t, got)
}

func TestRegistry_LoadUnknown(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	_, err := f.reg.Load(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNoSession)
	_, err = f.reg.Load(ctx, "8f14e45f-ceea-467f-a8f2-2d7c1e3a9b10")
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestRegistry_SweepEvictsIdleSessions(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	_, err := f.reg.Create(ctx)
	require.NoError(t, err)
	fresh, err := f.reg.Create(ctx)
	require.NoError(t, err)

	later := time.Now().UTC().Add(2 * time.Hour)
	fresh.Touch(later)
	f.reg.now = func() time.Time { return later }

	assert.Equal(t, 1, f.reg.Sweep(ctx))
	assert.Equal(t, 1, f.reg.Count())
	_, ok := f.reg.Get(fresh.ID())
	assert.True(t, ok)
}

func TestRegistry_SweepExpiresLapsedTokens(t *testing.T) {
	f := newRegistryFixture(t)
	f.account(t, "vendas@x.com", domain.RoleSales)
	ctx := context.Background()

	cs, err := f.reg.Create(ctx)
	require.NoError(t, err)
	_, err = cs.Machine.Login(ctx, "vendas@x.com", "pass123")
	require.NoError(t, err)

	expiry := cs.Store.CurrentIdentity().ExpiresAt.Add(time.Minute)
	cs.Store.now = func() time.Time { return expiry }
	cs.Touch(expiry)
	f.reg.now = func() time.Time { return expiry }

	assert.Zero(t, f.reg.Sweep(ctx))
	assert.Equal(t, domain.StateLoggedOut, cs.Machine.State().Kind)
	assert.Empty(t, f.tokens.tokens)
}

// queueFunc adapts a function to ports.SessionEventQueue.
type queueFunc func(ev ports.SessionEvent)

func (f queueFunc) Enqueue(ev ports.SessionEvent) { f(ev) }

func TestRegistry_Resume(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	_, err := f.reg.Resume(ctx, "")
	assert.ErrorIs(t, err, domain.ErrNoSession)
	_, err = f.reg.Resume(ctx, "8f14e45f-ceea-467f-a8f2-2d7c1e3a9b10")
	assert.ErrorIs(t, err, domain.ErrNoSession)
	assert.Zero(t, f.reg.Count())

	opened, err := f.reg.Open(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, opened.ID())
	assert.Equal(t, domain.StateLoggedOut, opened.State().Kind)

	same, err := f.reg.Resume(ctx, opened.ID())
	require.NoError(t, err)
	assert.Equal(t, opened.ID(), same.ID())
	assert.Equal(t, 1, f.reg.Count())
}

func TestRegistry_AnonymousIsNotStored(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := f.reg.Resume(ctx, "")
		require.ErrorIs(t, err, domain.ErrNoSession)
		anon := f.reg.Anonymous()
		assert.Empty(t, anon.ID())
		assert.Equal(t, domain.StateLoggedOut, anon.State().Kind)
		require.NoError(t, anon.Logout(ctx))
	}

	assert.Zero(t, f.reg.Count())
	assert.Empty(t, f.tokens.tokens)
}
