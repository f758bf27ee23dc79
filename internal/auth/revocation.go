package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const sessionBlacklistKeyPrefix = "auth:session:blacklist:"

type revocationClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// Revocations blacklists session token ids until the token would have expired.
type Revocations struct {
	client revocationClient
}

// NewRevocations wraps a go-redis client.
func NewRevocations(client revocationClient) *Revocations {
	return &Revocations{client: client}
}

// Revoke blacklists jti for the remaining lifetime of the token.
func (r *Revocations) Revoke(ctx context.Context, jti string, expiresAt *jwt.NumericDate, fallback time.Duration) error {
	ttl := fallback
	if expiresAt != nil {
		ttl = time.Until(expiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.client.Set(ctx, sessionBlacklistKeyPrefix+jti, "revoked", ttl).Err()
}

// IsRevoked reports whether jti was blacklisted.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, sessionBlacklistKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
