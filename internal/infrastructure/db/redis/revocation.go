package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

// Revocations records global sign-outs.
// Key format: sigem:revoked:<identity_id> -> unix nanoseconds of the sign-out.
type Revocations struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.TokenRevocations = (*Revocations)(nil)

// NewRevocations keeps each mark for ttl, which must be at least the
// access token lifetime so no token outlives its revocation.
func NewRevocations(client *redis.Client, ttl time.Duration) *Revocations {
	return &Revocations{client: client, ttl: ttl}
}

func (r *Revocations) Revoke(ctx context.Context, identityID string, at time.Time) error {
	if err := r.client.Set(ctx, revokedKey(identityID), at.UnixNano(), r.ttl).Err(); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}

func (r *Revocations) RevokedAt(ctx context.Context, identityID string) (time.Time, bool, error) {
	raw, err := r.client.Get(ctx, revokedKey(identityID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("revocation check: %w", err)
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("revocation mark %q: %w", raw, err)
	}
	return time.Unix(0, nanos).UTC(), true, nil
}

func revokedKey(identityID string) string {
	return "sigem:revoked:" + identityID
}
