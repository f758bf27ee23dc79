package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited means the IP+username pair exceeded its hourly attempts.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrLocked means the account is locked after repeated failures.
	ErrLocked = errors.New("account temporarily locked")
)

type throttleClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// LoginThrottle limits login attempts per IP+username and locks accounts
// after repeated failures.
type LoginThrottle struct {
	client        throttleClient
	limitPerHour  int
	lockThreshold int
	lockTTL       time.Duration
	now           func() time.Time
}

// NewLoginThrottle builds a throttle. A non-positive limit or threshold disables that check.
func NewLoginThrottle(client throttleClient, limitPerHour, lockThreshold int, lockTTL time.Duration) *LoginThrottle {
	return &LoginThrottle{
		client:        client,
		limitPerHour:  limitPerHour,
		lockThreshold: lockThreshold,
		lockTTL:       lockTTL,
		now:           time.Now,
	}
}

// Allow counts one attempt and reports whether it may proceed. Redis errors
// fail open.
func (t *LoginThrottle) Allow(ctx context.Context, ip, username string) error {
	username = strings.ToLower(username)

	if t.limitPerHour > 0 {
		rateKey := "rate:login:" + ip + ":" + username + ":" + t.now().UTC().Format("2006010215")
		if count, err := incrWithTTL(ctx, t.client, rateKey, time.Hour); err == nil && count > int64(t.limitPerHour) {
			return ErrRateLimited
		}
	}

	if ttl, _ := t.client.TTL(ctx, "lock:login:"+username).Result(); ttl > 0 {
		return ErrLocked
	}
	return nil
}

// Fail records a failed attempt and locks the account at the threshold.
func (t *LoginThrottle) Fail(ctx context.Context, username string) error {
	username = strings.ToLower(username)
	failKey := "lock:login:fail:" + username
	count, err := incrWithTTL(ctx, t.client, failKey, t.lockTTL)
	if err != nil {
		return err
	}
	if t.lockThreshold > 0 && count >= int64(t.lockThreshold) {
		return t.client.Set(ctx, "lock:login:"+username, "1", t.lockTTL).Err()
	}
	return nil
}

// Reset clears the failure counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, username string) {
	_ = t.client.Del(ctx, "lock:login:fail:"+strings.ToLower(username)).Err()
}

type rateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

func incrWithTTL(ctx context.Context, client rateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}
