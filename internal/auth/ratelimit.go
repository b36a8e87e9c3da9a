package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter keeps fixed-window attempt counters in redis. A nil limiter or
// one without a client never limits.
type RateLimiter struct {
	Redis *redis.Client
}

const (
	loginMaxAttempts         = 5
	loginAttemptTTL          = 10 * time.Minute
	loginBanTTL              = 1 * time.Hour
	twoFAMaxAttempts         = 5
	twoFAAttemptTTL          = 10 * time.Minute
	verifyMaxAttempts        = 5
	verifyAttemptTTL         = 10 * time.Minute
	resetMaxAttempts         = 5
	resetAttemptTTL          = 15 * time.Minute
	registerMaxAttemptsIP    = 10
	registerAttemptTTLIP     = 30 * time.Minute
	registerMaxAttemptsEmail = 3
	registerAttemptTTLEmail  = 30 * time.Minute
	EmailCooldown            = 60 * time.Second
)

// Limit is the outcome of counting one attempt. A counter is locked once it
// reaches its maximum.
type Limit struct {
	Locked bool
	Retry  time.Duration
}

func (r *RateLimiter) enabled() bool {
	return r != nil && r.Redis != nil
}

func (r *RateLimiter) IsIPBanned(ctx context.Context, ip string) bool {
	if !r.enabled() || ip == "" {
		return false
	}
	exists, _ := r.Redis.Exists(ctx, "login_ban:"+ip).Result()
	return exists == 1
}

func (r *RateLimiter) RegisterLoginFailure(ctx context.Context, ip string) error {
	if !r.enabled() || ip == "" {
		return nil
	}
	lim, err := r.hit(ctx, "login_attempts:"+ip, loginMaxAttempts, loginAttemptTTL)
	if err != nil {
		return err
	}
	if lim.Locked {
		r.Redis.Set(ctx, "login_ban:"+ip, "1", loginBanTTL)
		r.Redis.Expire(ctx, "login_attempts:"+ip, loginBanTTL)
	}
	return nil
}

func (r *RateLimiter) ResetLogin(ctx context.Context, ip string) {
	if r.enabled() {
		r.Redis.Del(ctx, "login_attempts:"+ip)
	}
}

// TwoFactorLocked reports whether the user burned through the challenge
// attempts (TOTP and backup codes share the counter).
func (r *RateLimiter) TwoFactorLocked(ctx context.Context, userID string) (Limit, error) {
	return r.peek(ctx, "2fa_attempts:"+userID, twoFAMaxAttempts)
}

func (r *RateLimiter) Register2FAFailure(ctx context.Context, userID string) (Limit, error) {
	return r.hit(ctx, "2fa_attempts:"+userID, twoFAMaxAttempts, twoFAAttemptTTL)
}

func (r *RateLimiter) Reset2FA(ctx context.Context, userID string) {
	if r.enabled() {
		r.Redis.Del(ctx, "2fa_attempts:"+userID)
	}
}

func (r *RateLimiter) RegisterVerifyAttempt(ctx context.Context, email string) (Limit, error) {
	return r.hit(ctx, "verify_attempts:"+strings.ToLower(email), verifyMaxAttempts, verifyAttemptTTL)
}

func (r *RateLimiter) ResetVerify(ctx context.Context, email string) {
	if r.enabled() {
		r.Redis.Del(ctx, "verify_attempts:"+strings.ToLower(email))
	}
}

func (r *RateLimiter) RegisterResetAttempt(ctx context.Context, email, ip string) (Limit, error) {
	return r.hitAll(ctx,
		counter{key: keyIf("reset_attempts:", strings.ToLower(email)), max: resetMaxAttempts, ttl: resetAttemptTTL},
		counter{key: keyIf("reset_attempts_ip:", ip), max: resetMaxAttempts, ttl: resetAttemptTTL},
	)
}

func (r *RateLimiter) RegisterRegisterAttempt(ctx context.Context, email, ip string) (Limit, error) {
	return r.hitAll(ctx,
		counter{key: keyIf("register_attempts_ip:", ip), max: registerMaxAttemptsIP, ttl: registerAttemptTTLIP},
		counter{key: keyIf("register_attempts_email:", strings.ToLower(email)), max: registerMaxAttemptsEmail, ttl: registerAttemptTTLEmail},
	)
}

func (r *RateLimiter) CooldownTTL(ctx context.Context, key string) time.Duration {
	if !r.enabled() {
		return 0
	}
	ttl, err := r.Redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

func (r *RateLimiter) SetCooldown(ctx context.Context, key string, ttl time.Duration) {
	if r.enabled() {
		r.Redis.Set(ctx, key, "1", ttl)
	}
}

type counter struct {
	key string
	max int64
	ttl time.Duration
}

func keyIf(prefix, val string) string {
	if val == "" {
		return ""
	}
	return prefix + val
}

func (r *RateLimiter) hitAll(ctx context.Context, counters ...counter) (Limit, error) {
	var out Limit
	for _, c := range counters {
		if c.key == "" {
			continue
		}
		lim, err := r.hit(ctx, c.key, c.max, c.ttl)
		if err != nil {
			return Limit{}, err
		}
		out.Locked = out.Locked || lim.Locked
		if lim.Retry > out.Retry {
			out.Retry = lim.Retry
		}
	}
	return out, nil
}

func (r *RateLimiter) hit(ctx context.Context, key string, max int64, ttl time.Duration) (Limit, error) {
	if !r.enabled() {
		return Limit{}, nil
	}
	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return Limit{}, err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, ttl)
	}
	retry, _ := r.Redis.TTL(ctx, key).Result()
	return Limit{Locked: attempts >= max, Retry: retry}, nil
}

func (r *RateLimiter) peek(ctx context.Context, key string, max int64) (Limit, error) {
	if !r.enabled() {
		return Limit{}, nil
	}
	attempts, err := r.Redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return Limit{}, nil
	}
	if err != nil {
		return Limit{}, err
	}
	retry, _ := r.Redis.TTL(ctx, key).Result()
	return Limit{Locked: attempts >= max, Retry: retry}, nil
}
