package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

// AuthEventsChannel is the pub/sub channel carrying JSON auth events.
const AuthEventsChannel = "sigem:auth-events"

// AuthEventBus fans auth events out to every process through Redis
// pub/sub. One subscription goroutine serves all local handlers.
type AuthEventBus struct {
	client *redis.Client
	log    zerolog.Logger

	mu       sync.Mutex
	handlers map[uint64]ports.AuthEventHandler
	next     uint64
	pubsub   *redis.PubSub
	done     chan struct{}
}

var _ ports.AuthEventBus = (*AuthEventBus)(nil)

func NewAuthEventBus(client *redis.Client, log zerolog.Logger) *AuthEventBus {
	return &AuthEventBus{
		client:   client,
		log:      log.With().Str("component", "auth_event_bus").Logger(),
		handlers: make(map[uint64]ports.AuthEventHandler),
	}
}

func (b *AuthEventBus) Publish(ctx context.Context, ev domain.AuthEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode auth event: %w", err)
	}
	if err := b.client.Publish(ctx, AuthEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish auth event: %w", err)
	}
	return nil
}

// Subscribe registers handler. Handlers run on the subscription goroutine
// and must not block.
func (b *AuthEventBus) Subscribe(handler ports.AuthEventHandler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Run listens on the channel until ctx is done or Close is called.
func (b *AuthEventBus) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.pubsub != nil {
		b.mu.Unlock()
		return fmt.Errorf("auth event bus already running")
	}
	pubsub := b.client.Subscribe(ctx, AuthEventsChannel)
	b.pubsub = pubsub
	b.done = make(chan struct{})
	done := b.done
	b.mu.Unlock()
	defer close(done)

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", AuthEventsChannel, err)
	}
	b.log.Info().Str("channel", AuthEventsChannel).Msg("listening for auth events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(msg.Payload)
		}
	}
}

// Close stops Run.
func (b *AuthEventBus) Close() error {
	b.mu.Lock()
	pubsub := b.pubsub
	b.mu.Unlock()
	if pubsub == nil {
		return nil
	}
	return pubsub.Close()
}

func (b *AuthEventBus) dispatch(payload string) {
	var ev domain.AuthEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.log.Warn().Err(err).Msg("dropping malformed auth event")
		return
	}

	b.mu.Lock()
	handlers := make([]ports.AuthEventHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	b.log.Debug().Str("event", string(ev.Type)).Str("identity_id", ev.IdentityID).Msg("auth event received")
	for _, h := range handlers {
		h(ev)
	}
}
