package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

// SessionTokens persists the access token of each client session.
// Key format: sigem:session:<client_id>
type SessionTokens struct {
	client *redis.Client
}

var _ ports.TokenStore = (*SessionTokens)(nil)

func NewSessionTokens(client *redis.Client) *SessionTokens {
	return &SessionTokens{client: client}
}

// Save stores token until ttl elapses. A non-positive ttl deletes it.
func (s *SessionTokens) Save(ctx context.Context, clientID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Delete(ctx, clientID)
	}
	if err := s.client.Set(ctx, sessionKey(clientID), token, ttl).Err(); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	return nil
}

func (s *SessionTokens) Load(ctx context.Context, clientID string) (string, error) {
	token, err := s.client.Get(ctx, sessionKey(clientID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load session token: %w", err)
	}
	return token, nil
}

func (s *SessionTokens) Delete(ctx context.Context, clientID string) error {
	if err := s.client.Del(ctx, sessionKey(clientID)).Err(); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

func sessionKey(clientID string) string {
	return "sigem:session:" + clientID
}
