package service

import (
	"context"
	"sync"
	"time"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

type memCredentials struct {
	mu    sync.Mutex
	creds map[string]*domain.Credential
	err   error
}

func newMemCredentials() *memCredentials {
	return &memCredentials{creds: make(map[string]*domain.Credential)}
}

func (m *memCredentials) FindByEmail(_ context.Context, email string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.creds[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *memCredentials) FindByID(_ context.Context, id string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.creds {
		if c.ID == id {
			clone := *c
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memCredentials) Create(_ context.Context, cred *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.creds[cred.Email]; ok {
		return domain.ErrUserExists
	}
	clone := *cred
	m.creds[cred.Email] = &clone
	return nil
}

func (m *memCredentials) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.creds {
		if c.ID == id {
			c.PasswordHash = hash
			return nil
		}
	}
	return domain.ErrUserNotFound
}

type memRevocations struct {
	mu    sync.Mutex
	marks map[string]time.Time
	err   error
}

func newMemRevocations() *memRevocations {
	return &memRevocations{marks: make(map[string]time.Time)}
}

func (m *memRevocations) Revoke(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.marks[id] = at
	return nil
}

func (m *memRevocations) RevokedAt(_ context.Context, id string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return time.Time{}, false, m.err
	}
	at, ok := m.marks[id]
	return at, ok, nil
}

type memBus struct {
	mu       sync.Mutex
	events   []domain.AuthEvent
	handlers map[int]ports.AuthEventHandler
	next     int
}

func newMemBus() *memBus {
	return &memBus{handlers: make(map[int]ports.AuthEventHandler)}
}

func (b *memBus) Publish(_ context.Context, ev domain.AuthEvent) error {
	b.mu.Lock()
	b.events = append(b.events, ev)
	handlers := make([]ports.AuthEventHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (b *memBus) Subscribe(h ports.AuthEventHandler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *memBus) Events() []domain.AuthEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.AuthEvent(nil), b.events...)
}

type sentMail struct {
	email string
	link  string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendRecovery(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{email: email, link: link})
	return nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]string
	ttls   map[string]time.Duration
}

func newMemTokens() *memTokens {
	return &memTokens{tokens: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *memTokens) Save(_ context.Context, clientID, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[clientID] = token
	m.ttls[clientID] = ttl
	return nil
}

func (m *memTokens) Load(_ context.Context, clientID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[clientID], nil
}

func (m *memTokens) Delete(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, clientID)
	delete(m.ttls, clientID)
	return nil
}

type memProfiles struct {
	mu        sync.Mutex
	rows      map[string]domain.Profile
	findErr   error
	insertErr error
}

func newMemProfiles(rows ...domain.Profile) *memProfiles {
	m := &memProfiles{rows: make(map[string]domain.Profile)}
	for _, p := range rows {
		m.rows[p.ID] = p
	}
	return m
}

func (m *memProfiles) FindByID(_ context.Context, id string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (m *memProfiles) Insert(_ context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.rows[p.ID] = *p
	return nil
}

func (m *memProfiles) UpdateRole(_ context.Context, id string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.Role = role
	m.rows[id] = p
	return nil
}

// stepClock advances by a millisecond on every read.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Now().UTC().Truncate(time.Second)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func profileFor(id, email string, role domain.Role) domain.Profile {
	return domain.Profile{
		ID:              id,
		Role:            role,
		ResponsibleName: "USUARIO",
		Email:           email,
	}
}
