package cache

import (
	"context"
	"strings"
	"time"

	"user-hub/internal/config"
)

const (
	failKeyPrefix = "login:fail:"
	lockKeyPrefix = "login:lock:"
)

// LoginGuard tracks failed login attempts per email and locks the account for
// a cooldown once the threshold is crossed. Counters live in Redis, not the
// user row, so a burst of bad passwords never contends with profile writes.
// When Redis is down the guard fails open: login stays available.
type LoginGuard struct {
	redis *Redis

	maxAttempts int
	window      time.Duration
	lockFor     time.Duration
}

func NewLoginGuard(r *Redis, cfg config.LockoutConfig) *LoginGuard {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	window := cfg.Window
	if window <= 0 {
		window = 15 * time.Minute
	}
	lockFor := cfg.LockFor
	if lockFor <= 0 {
		lockFor = 15 * time.Minute
	}
	return &LoginGuard{redis: r, maxAttempts: maxAttempts, window: window, lockFor: lockFor}
}

func (g *LoginGuard) IsLocked(ctx context.Context, email string) (bool, error) {
	return g.redis.Exists(ctx, lockKeyPrefix+normalizeKey(email))
}

// RegisterFailure counts one failed attempt and reports whether this failure
// tripped the lock.
func (g *LoginGuard) RegisterFailure(ctx context.Context, email string) (bool, error) {
	key := normalizeKey(email)
	n, err := g.redis.Incr(ctx, failKeyPrefix+key, g.window)
	if err != nil {
		return false, err
	}
	if n < int64(g.maxAttempts) {
		return false, nil
	}
	if err := g.redis.Set(ctx, lockKeyPrefix+key, "1", g.lockFor); err != nil {
		return false, err
	}
	// The lock only trips once per streak; later failures just extend nothing.
	return n == int64(g.maxAttempts), nil
}

func (g *LoginGuard) Reset(ctx context.Context, email string) error {
	key := normalizeKey(email)
	return g.redis.Delete(ctx, failKeyPrefix+key, lockKeyPrefix+key)
}

func normalizeKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
